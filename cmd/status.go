package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/newslake/internal/model"
)

var (
	statusLimit  int
	statusRunID  string
	statusOutput string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent pipeline runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("status"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		if statusRunID != "" {
			stages, err := st.ListStages(ctx, statusRunID)
			if err != nil {
				return err
			}
			return renderStages(os.Stdout, statusOutput, stages)
		}

		runs, err := st.ListRuns(ctx, statusLimit)
		if err != nil {
			return err
		}
		return renderRuns(os.Stdout, statusOutput, runs)
	},
}

func renderRuns(w io.Writer, format string, runs []model.Run) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	case "yaml":
		return yaml.NewEncoder(w).Encode(runs)
	case "table":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN ID\tDATE\tMODE\tSTATUS\tSTARTED\tFINISHED")
		for _, r := range runs {
			finished := "-"
			if r.FinishedAt != nil {
				finished = r.FinishedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.ID, r.RunDate, r.Mode, r.Status,
				r.StartedAt.Format("2006-01-02 15:04:05"), finished,
			)
		}
		return tw.Flush()
	default:
		return eris.Errorf("unknown output format %q", format)
	}
}

func renderStages(w io.Writer, format string, stages []model.StageRecord) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stages)
	case "yaml":
		return yaml.NewEncoder(w).Encode(stages)
	case "table":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "STAGE\tPARTITION\tIN\tOUT\tMALFORMED\tSTATUS\tDURATION")
		for _, s := range stages {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
				s.Stage, s.PartitionKey, s.RowsIn, s.RowsOut, s.Malformed,
				s.Status, s.Duration().Round(time.Millisecond),
			)
		}
		return tw.Flush()
	default:
		return eris.Errorf("unknown output format %q", format)
	}
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 20, "number of runs to show")
	statusCmd.Flags().StringVar(&statusRunID, "run-id", "", "show the stages of one run instead")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "output format: table, json, yaml")
	rootCmd.AddCommand(statusCmd)
}
