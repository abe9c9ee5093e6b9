package cli

import (
	"github.com/spf13/cobra"

	"pricewatch/internal/app"
)

var checkQuotes map[string]string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one evaluation cycle against persisted alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.CheckOptions{
			Quotes: checkQuotes,
		}
		return getApp().Check(cmd.Context(), opts)
	},
}

func init() {
	checkCmd.Flags().StringToStringVar(&checkQuotes, "quote", nil, "Current price per product, e.g. --quote p1=99.90")
}
