package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dverbeek/carwise/internal/cli"
	"github.com/dverbeek/carwise/internal/engine"
	"github.com/dverbeek/carwise/internal/model"
	"github.com/dverbeek/carwise/internal/service"
)

func valueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "value <plate>",
		Short: "Value a single vehicle by license plate",
		Long: `Resolve a license plate against the vehicle registry, gather marketplace
comparables, the pricing index valuation and our own sale history, and print
purchase advice.`,
		Args: cobra.ExactArgs(1),
		RunE: runValue,
	}

	cmd.Flags().IntP("mileage", "m", 0, "Current mileage (the registry does not carry it)")
	cmd.Flags().StringSlice("options", nil, "Extra options to include in the valuation")
	cmd.Flags().Bool("save", false, "Persist the advice to the local database")
	cmd.Flags().String("format", "table", "Output format (table, json)")

	_ = viper.BindPFlag("value.mileage", cmd.Flags().Lookup("mileage"))
	_ = viper.BindPFlag("value.options", cmd.Flags().Lookup("options"))
	_ = viper.BindPFlag("value.save", cmd.Flags().Lookup("save"))
	_ = viper.BindPFlag("value.format", cmd.Flags().Lookup("format"))

	return cmd
}

func runValue(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := slog.Default()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	orch, _, err := buildOrchestrator(store, logger)
	if err != nil {
		return err
	}

	slog.Info(cli.FormatTitle(fmt.Sprintf("Valuing %s...", args[0])))

	result, err := orch.Value(ctx, engine.RunInput{
		Plate:   args[0],
		Mileage: viper.GetInt("value.mileage"),
		Options: viper.GetStringSlice("value.options"),
	})
	if err != nil {
		return err
	}

	if viper.GetString("value.format") == "json" {
		encoded, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		fmt.Println(string(encoded))
	} else {
		fmt.Println(renderResult(result))
	}

	if viper.GetBool("value.save") {
		adviceStore, ok := store.(service.AdviceStore)
		if !ok {
			slog.Warn(cli.FormatWarning("configured database does not support saving advice"))
			return nil
		}
		if err := adviceStore.SaveAdvice(ctx, result.Advice); err != nil {
			return fmt.Errorf("failed to save advice: %w", err)
		}
		slog.Info(cli.FormatSuccess("Advice saved"))
	}

	return nil
}

// renderResult builds the human-readable advice box.
func renderResult(result *model.RunResult) string {
	advice := result.Advice
	var b strings.Builder

	fmt.Fprintf(&b, "Recommendation: %s\n", cli.FormatRecommendation(advice.Recommendation))
	fmt.Fprintf(&b, "Selling price:  %s\n", cli.FormatEuro(advice.RecommendedSellingPrice))
	fmt.Fprintf(&b, "Purchase price: %s\n", cli.FormatEuro(advice.RecommendedPurchasePrice))
	fmt.Fprintf(&b, "Target margin:  %.1f%%\n", advice.TargetMarginPct)
	if advice.ExpectedDaysToSell > 0 {
		fmt.Fprintf(&b, "Days to sell:   %d\n", advice.ExpectedDaysToSell)
	}

	b.WriteString("\nSources:\n")
	if !result.Portal.IsEmpty() {
		fmt.Fprintf(&b, "  portals: %d comparables (%d primary), median %s\n",
			result.Portal.ListingCount, result.Portal.PrimaryCount, cli.FormatEuro(result.Portal.MedianPrice))
	} else {
		b.WriteString("  portals: " + cli.SubtleStyle.Render("no comparables") + "\n")
	}
	if result.Index != nil {
		fmt.Fprintf(&b, "  index:   %s (liquidity %s, ETR %d days)\n",
			cli.FormatEuro(result.Index.TotalValue), result.Index.Liquidity, result.Index.ExpectedTimeToRetail)
	} else {
		b.WriteString("  index:   " + cli.SubtleStyle.Render("no record") + "\n")
	}
	if result.Internal != nil && !result.Internal.IsEmpty() {
		fmt.Fprintf(&b, "  history: %d of our own sales, avg margin %.1f%%\n",
			result.Internal.Count(), result.Internal.AverageMarginPct)
	} else {
		b.WriteString("  history: " + cli.SubtleStyle.Render("no matching sales") + "\n")
	}

	if advice.Reasoning != "" {
		fmt.Fprintf(&b, "\n%s\n", advice.Reasoning)
	}
	if advice.IndexDeviationNote != "" {
		b.WriteString(cli.FormatWarning(advice.IndexDeviationNote) + "\n")
	}
	for _, risk := range advice.RiskFactors {
		b.WriteString(cli.ErrorStyle.Render("  - "+risk) + "\n")
	}
	for _, opp := range advice.Opportunities {
		b.WriteString(cli.SuccessStyle.Render("  + "+opp) + "\n")
	}

	return cli.RenderBox(result.Vehicle.Label(), strings.TrimRight(b.String(), "\n"))
}
