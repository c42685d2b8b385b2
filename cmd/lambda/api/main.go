// Command api serves the HTTP API from AWS Lambda behind an API Gateway HTTP API.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/ovalfantasy/ovalsync/internal/config"
	"github.com/ovalfantasy/ovalsync/internal/lambdahttp"
	"github.com/ovalfantasy/ovalsync/internal/server"
)

func main() {
	ctx := context.Background()
	cfg, err := config.Load(os.Getenv("OVALSYNC_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	app, err := server.Build(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build app failed: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	lambda.Start(lambdahttp.Adapt(app.Handler()))
}
