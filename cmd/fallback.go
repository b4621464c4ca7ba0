package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/checkout-navigator/api/schemas"
	"github.com/xkilldash9x/checkout-navigator/internal/fallback"
)

func newFallbackCmd() *cobra.Command {
	var (
		name     string
		location string
		checkIn  string
		checkOut string
		site     string
	)

	fallbackCmd := &cobra.Command{
		Use:   "fallback",
		Short: "Prints the search URL for a booking without launching a browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}

			in, err := schemas.ParseDate(checkIn)
			if err != nil {
				return fmt.Errorf("invalid --checkin: %w", err)
			}
			out, err := schemas.ParseDate(checkOut)
			if err != nil {
				return fmt.Errorf("invalid --checkout: %w", err)
			}

			ncfg := cfg.Navigator()
			if cmd.Flags().Changed("site") {
				ncfg.Site = site
			}
			builder := fallback.New(ncfg.Site, fallback.WithCurrency(ncfg.Currency))
			url := builder.Build(schemas.BookingRequest{
				TargetName: name,
				Location:   location,
				CheckIn:    in,
				CheckOut:   out,
			})
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}

	fallbackCmd.Flags().StringVar(&name, "name", "", "Property name")
	fallbackCmd.Flags().StringVar(&location, "location", "", "City or area")
	fallbackCmd.Flags().StringVar(&checkIn, "checkin", "", "Check-in date, YYYY-MM-DD (default tomorrow)")
	fallbackCmd.Flags().StringVar(&checkOut, "checkout", "", "Check-out date, YYYY-MM-DD (default the day after check-in)")
	fallbackCmd.Flags().StringVar(&site, "site", "", "Target site host. (Overrides config/env)")
	_ = fallbackCmd.MarkFlagRequired("name")
	return fallbackCmd
}
