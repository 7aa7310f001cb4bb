package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ternarybob/pixelparity/internal/app"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history <component>",
	Short: "Show recent verdicts for a component and whether its DOM drifted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if config.History.Path == "" {
			return fmt.Errorf("run history is disabled, set [history] path")
		}

		a, err := app.New(config, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.OpenHistory(); err != nil {
			return err
		}

		component := args[0]
		ctx := context.Background()
		records, err := a.History.Last(ctx, component, historyLimit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Printf("No recorded runs for %s\n", component)
			return nil
		}

		for _, rec := range records {
			result := "pass"
			if !rec.Passed {
				result = "FAIL " + strings.Join(rec.Reasons, "; ")
			}
			fmt.Printf("%s  %s  dom=%.12s/%.12s  %s\n",
				rec.StartedAt.Format("2006-01-02 15:04:05"), rec.RunID, rec.A.DOM, rec.B.DOM, result)
		}

		drift, err := a.History.Drift(ctx, component)
		if err != nil {
			return err
		}
		if drift {
			fmt.Printf("\n%s: DOM changed since the previous run\n", component)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of runs to show (0 for all)")
}
