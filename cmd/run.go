package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/newslake/internal/pipeline"
)

var runDate string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline for one partition date",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := env.Pipeline.Run(ctx, pipeline.RunOptions{Date: runDate})
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("run complete",
			zap.String("run_id", report.RunID),
			zap.String("date", report.Date),
			zap.Int("stages", len(report.Stages)),
		)

		// Print report JSON to stdout
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	runCmd.Flags().StringVar(&runDate, "date", "", "partition date YYYY-MM-DD (default today, UTC)")
	rootCmd.AddCommand(runCmd)
}
