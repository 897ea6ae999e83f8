package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dverbeek/carwise/internal/cli"
	"github.com/dverbeek/carwise/internal/service"
)

func adviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "advice",
		Short: "List recently saved valuation advice",
		RunE:  runAdvice,
	}

	cmd.Flags().IntP("limit", "n", 20, "Number of records to show")
	_ = viper.BindPFlag("advice.limit", cmd.Flags().Lookup("limit"))

	return cmd
}

func runAdvice(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	adviceStore, ok := store.(service.AdviceStore)
	if !ok {
		return fmt.Errorf("configured database does not store advice")
	}

	records, err := adviceStore.GetRecentAdvice(ctx, viper.GetInt("advice.limit"))
	if err != nil {
		return fmt.Errorf("failed to load advice: %w", err)
	}
	if len(records) == 0 {
		fmt.Println(cli.SubtleStyle.Render("No saved advice yet. Run 'carwise value <plate> --save' first."))
		return nil
	}

	var lines []string
	for _, record := range records {
		lines = append(lines, fmt.Sprintf("%s  %s  %s  sell %s, buy %s",
			record.CreatedAt.Format("2006-01-02"),
			cli.FormatRecommendation(record.Recommendation),
			record.Vehicle.Label(),
			cli.FormatEuro(record.RecommendedSellingPrice),
			cli.FormatEuro(record.RecommendedPurchasePrice)))
	}

	fmt.Println(cli.RenderBox("Recent Advice", strings.Join(lines, "\n")))
	return nil
}
