package cmd

import (
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ovalfantasy/ovalsync/internal/socialstats"
)

func newCollectCmd() *cobra.Command {
	var opts socialstats.CollectOptions
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collects today's social stats once and prints the report",
		Long: `Runs one collection across the configured platforms (or those named with
--platform), upserts the records unless --persist=false, and prints the report
as JSON. The command fails only when every selected platform failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			report, err := appInstance.Collector().Collect(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("collect: %w", err)
			}
			appInstance.Logger().Info("collection finished",
				zap.String("run_id", report.RunID),
				zap.Int("records", len(report.Records)),
				zap.Int("failures", len(report.Failures)),
			)
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if len(report.Records) == 0 && len(report.Failures) > 0 {
				return fmt.Errorf("collect: all %d platforms failed", len(report.Failures))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Date, "date", "", "collection date (YYYY-MM-DD, default today UTC)")
	cmd.Flags().StringSliceVar(&opts.Platforms, "platform", nil, "platforms to collect (default all configured)")
	cmd.Flags().BoolVar(&opts.Persist, "persist", true, "upsert records into the stats store")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	out, err := sonic.ConfigDefault.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	if _, err := fmt.Fprintln(w, string(out)); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
