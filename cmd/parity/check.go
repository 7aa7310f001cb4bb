package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/pixelparity/internal/app"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the component catalog against the scenario file",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(config, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		c := a.Consistency()
		for _, report := range []string{c.MissingReport(), c.OrphanReport(), c.UnknownReport()} {
			if report != "" {
				fmt.Printf("%s\n\n", report)
			}
		}
		if !c.OK() {
			return errors.New("catalog check failed")
		}

		fmt.Printf("✓ %d components, %d scenarios, consistent\n", len(c.Catalog), len(c.Scenarios))
		return nil
	},
}
