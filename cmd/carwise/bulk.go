package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dverbeek/carwise/internal/cli"
	"github.com/dverbeek/carwise/internal/config"
	"github.com/dverbeek/carwise/internal/engine"
	"github.com/dverbeek/carwise/internal/model"
	"github.com/dverbeek/carwise/internal/parser"
	"github.com/dverbeek/carwise/internal/sheets"
)

func bulkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bulk <file.csv>",
		Short: "Value a batch of supplier rows from a CSV file",
		Long: `Run the valuation pipeline over a supplier list. Each row is either a
license plate or a free-text description; free text is parsed in batches
before the runs start. A failing row is marked and the batch continues.

The CSV needs a header. Recognized columns: description, plate, mileage,
asking_price.`,
		Args: cobra.ExactArgs(1),
		RunE: runBulk,
	}

	cmd.Flags().IntP("concurrency", "c", engine.DefaultBulkConcurrency, "Rows valued in parallel")
	cmd.Flags().Bool("export", false, "Export the results to Google Sheets")
	cmd.Flags().String("json-out", "", "Write the full result bundle to a JSON file")

	_ = viper.BindPFlag("bulk.concurrency", cmd.Flags().Lookup("concurrency"))
	_ = viper.BindPFlag("bulk.export", cmd.Flags().Lookup("export"))
	_ = viper.BindPFlag("bulk.json_out", cmd.Flags().Lookup("json-out"))

	return cmd
}

func runBulk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := slog.Default()

	rows, err := readBulkCSV(args[0])
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("no rows found in %s", args[0])
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	orch, client, err := buildOrchestrator(store, logger)
	if err != nil {
		return err
	}

	runner := engine.NewBulkRunner(orch, parser.New(client, logger), viper.GetInt("bulk.concurrency"), logger)

	slog.Info(cli.FormatTitle(fmt.Sprintf("Valuing %d vehicles...", len(rows))))

	bar := progressbar.NewOptions(len(rows),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Valuing vehicles...[reset]"),
	)

	runner.Process(ctx, rows, func(progress model.BulkProgress) {
		_ = bar.Set(progress.Index)
		bar.Describe(fmt.Sprintf("[cyan]%s[reset]", progress.Current))
	})
	_ = bar.Finish()
	fmt.Fprintln(os.Stderr)

	printBulkSummary(rows)

	if path := viper.GetString("bulk.json_out"); path != "" {
		if err := writeBulkJSON(path, rows); err != nil {
			return err
		}
		slog.Info(cli.FormatSuccess("Results written"), "path", path)
	}

	if viper.GetBool("bulk.export") {
		if err := exportToSheets(ctx, rows, logger); err != nil {
			return fmt.Errorf("failed to export to Google Sheets: %w", err)
		}
	}

	return nil
}

// readBulkCSV loads supplier rows. The header decides which columns exist;
// at minimum one of description or plate is required.
func readBulkCSV(path string) ([]*model.BulkRow, error) {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	descCol, hasDesc := columns["description"]
	plateCol, hasPlate := columns["plate"]
	if !hasDesc && !hasPlate {
		return nil, fmt.Errorf("CSV needs a description or plate column")
	}

	var rows []*model.BulkRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}

		row := &model.BulkRow{
			Index:  len(rows),
			Status: model.BulkPending,
		}
		if hasDesc && descCol < len(record) {
			row.Description = strings.TrimSpace(record[descCol])
		}
		if hasPlate && plateCol < len(record) {
			row.Plate = strings.TrimSpace(record[plateCol])
		}
		if col, ok := columns["mileage"]; ok && col < len(record) {
			row.Mileage, _ = strconv.Atoi(strings.TrimSpace(record[col]))
		}
		if col, ok := columns["asking_price"]; ok && col < len(record) {
			row.AskingPrice, _ = strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
		}

		if row.Description == "" && row.Plate == "" {
			continue
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func printBulkSummary(rows []*model.BulkRow) {
	var buy, noBuy, uncertain, failed int
	var lines []string

	for _, row := range rows {
		switch {
		case row.Status == model.BulkError:
			failed++
			lines = append(lines, cli.FormatError(fmt.Sprintf("row %d: %s", row.Index+1, row.Error)))
		case row.Result != nil && row.Result.Advice != nil:
			advice := row.Result.Advice
			switch advice.Recommendation {
			case model.RecommendBuy:
				buy++
			case model.RecommendNoBuy:
				noBuy++
			case model.RecommendUncertain:
				uncertain++
			}
			lines = append(lines, fmt.Sprintf("%s  %s  sell %s, buy %s",
				cli.FormatRecommendation(advice.Recommendation),
				row.Result.Vehicle.Label(),
				cli.FormatEuro(advice.RecommendedSellingPrice),
				cli.FormatEuro(advice.RecommendedPurchasePrice)))
		}
	}

	summary := fmt.Sprintf("%s\n\nBuy: %d  No-buy: %d  Uncertain: %d  Failed: %d",
		strings.Join(lines, "\n"), buy, noBuy, uncertain, failed)
	fmt.Println(cli.RenderBox(fmt.Sprintf("Batch Complete (%d rows)", len(rows)), summary))
}

func writeBulkJSON(path string, rows []*model.BulkRow) error {
	f, err := os.Create(path) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(rows)
}

func exportToSheets(ctx context.Context, rows []*model.BulkRow, logger *slog.Logger) error {
	sheetsCfg, err := config.LoadSheetsConfig()
	if err != nil {
		return err
	}

	writer, err := sheets.NewWriter(ctx, *sheetsCfg, logger)
	if err != nil {
		return err
	}

	exported := make([]model.BulkRow, len(rows))
	for i, row := range rows {
		exported[i] = *row
	}

	if err := writer.Export(ctx, exported); err != nil {
		return err
	}

	slog.Info(cli.FormatSuccess("Exported to Google Sheets"))
	return nil
}
