package commands

import (
	"fmt"
	"os"
	"time"

	"ordersync/lib/serviceutil"
	"ordersync/lib/sqliteutil"
	"ordersync/services/ordersync/dataset"
	"ordersync/services/ordersync/db"
	"ordersync/services/ordersync/report"

	"github.com/spf13/cobra"
)

var (
	reportFile  *string
	reportAfter *string
	reportTop   *int
	reportRuns  *string
)

func init() {
	reportFile = reportCmd.Flags().StringP("file", "f", "orders.json", "Dataset to analyze.")
	reportAfter = reportCmd.Flags().String("after", "", "Only analyze orders strictly after this time (2006-01-02 15:04).")
	reportTop = reportCmd.Flags().Int("top", 25, "Number of item rows to show, 0 for all.")
	reportRuns = reportCmd.Flags().String("runs", "", "Journal db to print recent sync runs from.")
	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report [--file <path/to/orders.json>] [--top <n>]",
	Short: "Prints purchasing statistics derived from the dataset.",
	Run: func(cmd *cobra.Command, args []string) {
		ds, err := dataset.Load(*reportFile)
		if err != nil {
			serviceutil.Fatal("failed to load dataset", err)
		}

		var after time.Time
		if *reportAfter != "" {
			after, err = dataset.ParseDateTime(*reportAfter)
			if err != nil {
				serviceutil.Fatal("invalid --after value", err)
			}
		}

		rep, err := report.Build(ds, after)
		if err != nil {
			serviceutil.Fatal("failed to build report", err)
		}
		report.Render(os.Stdout, rep, *reportTop)

		if *reportRuns != "" {
			printRuns(cmd, *reportRuns)
		}
	},
}

func printRuns(cmd *cobra.Command, path string) {
	journal, err := sqliteutil.OpenDB(db.Schema, path)
	if err != nil {
		serviceutil.Fatal("failed to open journal db", err)
	}
	defer journal.Close()

	runs, err := db.New(journal).ListSyncRuns(cmd.Context(), 20)
	if err != nil {
		serviceutil.Fatal("failed to list sync runs", err)
	}

	fmt.Println()
	fmt.Println("Recent sync runs:")
	for _, run := range runs {
		line := fmt.Sprintf("  %s  %-7s fetched=%d degraded=%d",
			time.Unix(run.StartedAt, 0).Format("2006-01-02 15:04"),
			run.Outcome, run.OrdersFetched, run.OrdersDegraded)
		if run.Error.Valid {
			line += "  " + run.Error.String
		}
		fmt.Println(line)
	}
}
