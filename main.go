// The main package for the ovalsync executable.
package main

import (
	"context"

	"github.com/ovalfantasy/ovalsync/cmd"
)

func main() {
	cmd.Execute(context.Background())
}
