package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ghosttest/ghost/internal/heal"
	"github.com/ghosttest/ghost/internal/storage"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [path]",
	Short: "Show recent healing sessions for a project",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := resolveRoot(args)
		if err != nil {
			return err
		}

		dbPath := storage.DefaultPath(root)
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			fmt.Println("No session history yet. Run 'ghost watch' first.")
			return nil
		}

		store, err := storage.Open(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.ListRecent(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No sessions recorded.")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "WHEN\tFILE\tKIND\tOUTCOME\tATTEMPTS\tDIAGNOSTIC")
		for _, rec := range records {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
				rec.StartedAt.Format("2006-01-02 15:04:05"),
				filepath.Base(rec.Path),
				rec.Kind,
				colorizeOutcome(rec.Outcome),
				rec.Attempts,
				rec.Diagnostic)
		}
		return tw.Flush()
	},
}

func colorizeOutcome(outcome string) string {
	switch heal.Outcome(outcome) {
	case heal.OutcomePassed:
		return color.GreenString(outcome)
	case heal.OutcomeSourceBugFlagged:
		return color.New(color.FgRed, color.Bold).Sprint(outcome)
	case heal.OutcomeAttemptsExhausted:
		return color.YellowString(outcome)
	case heal.OutcomeFatalError:
		return color.RedString(outcome)
	default:
		return outcome
	}
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum sessions to show")
}
