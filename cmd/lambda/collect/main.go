// Command collect runs one social stats collection per scheduled EventBridge event.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/ovalfantasy/ovalsync/internal/api"
	"github.com/ovalfantasy/ovalsync/internal/config"
	"github.com/ovalfantasy/ovalsync/internal/server"
	"github.com/ovalfantasy/ovalsync/internal/socialstats"
)

// detail is the optional payload of the schedule rule. Scheduled events
// carry "{}" and collect every configured platform for today.
type detail struct {
	Date      string   `json:"date"`
	Platforms []string `json:"platforms"`
	Persist   *bool    `json:"persist"`
}

func newHandler(collector api.StatsCollector, logger *zap.Logger) func(context.Context, events.CloudWatchEvent) (socialstats.Report, error) {
	return func(ctx context.Context, ev events.CloudWatchEvent) (socialstats.Report, error) {
		var d detail
		if len(ev.Detail) > 0 {
			if err := sonic.Unmarshal(ev.Detail, &d); err != nil {
				return socialstats.Report{}, fmt.Errorf("decode event detail: %w", err)
			}
		}
		opts := socialstats.CollectOptions{Date: d.Date, Platforms: d.Platforms, Persist: true}
		if d.Persist != nil {
			opts.Persist = *d.Persist
		}

		report, err := collector.Collect(ctx, opts)
		if err != nil {
			logger.Error("scheduled collection rejected", zap.String("event_id", ev.ID), zap.Error(err))
			return socialstats.Report{}, err
		}
		logger.Info("scheduled collection finished",
			zap.String("event_id", ev.ID),
			zap.String("run_id", report.RunID),
			zap.Int("records", len(report.Records)),
			zap.Int("failures", len(report.Failures)),
		)
		return report, nil
	}
}

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

	lambda.Start(newHandler(app.Collector(), app.Logger().Named("collect")))
}
