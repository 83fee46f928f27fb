package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"ratewatcher/internal/app"
	"ratewatcher/internal/model"
)

var (
	simulateLocation string
	simulateRateType string
	simulateRates    []string
	simulatePrevious float64
	simulateTo       string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Drive the pipeline with fixed source rates and trigger an alert",
	RunE: func(cmd *cobra.Command, args []string) error {
		rateType, ok := model.ParseRateType(simulateRateType)
		if !ok {
			return fmt.Errorf("unrecognized --rate-type value %q", simulateRateType)
		}
		if len(simulateRates) == 0 {
			return errors.New("--rate must be provided at least once (source=value)")
		}

		sourceRates := make(map[string]float64, len(simulateRates))
		for _, raw := range simulateRates {
			name, value, found := strings.Cut(raw, "=")
			if !found {
				return fmt.Errorf("invalid --rate value %q, expected source=value", raw)
			}
			parsed, err := strconv.ParseFloat(value, 64)
			if err != nil || parsed <= 0 {
				return fmt.Errorf("invalid rate in %q", raw)
			}
			sourceRates[strings.TrimSpace(name)] = parsed
		}

		opts := app.SimulateOptions{
			LocationCode: simulateLocation,
			RateType:     rateType,
			SourceRates:  sourceRates,
			PreviousRate: simulatePrevious,
			To:           simulateTo,
		}
		return getApp().SimulateAlert(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateLocation, "location", "US", "Location code")
	simulateCmd.Flags().StringVar(&simulateRateType, "rate-type", string(model.Rate30YearFixed), "Rate type")
	simulateCmd.Flags().StringArrayVar(&simulateRates, "rate", nil, "Source rate as source=value (repeatable)")
	simulateCmd.Flags().Float64Var(&simulatePrevious, "previous", 0, "Previous snapshot rate")
	simulateCmd.Flags().StringVar(&simulateTo, "to", "", "Recipient email for the simulated alert")
}
