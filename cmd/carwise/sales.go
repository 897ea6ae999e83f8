package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dverbeek/carwise/internal/cli"
	"github.com/dverbeek/carwise/internal/model"
)

func salesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sales",
		Short: "Manage the historical sales database",
	}

	cmd.AddCommand(salesImportCmd())

	return cmd
}

func salesImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import historical sales from a CSV file",
		Long: `Import our own completed sales so the pipeline can compare against them.

The CSV needs a header. Required columns: brand, model, purchase_price,
selling_price. Optional: trim, build_year, mileage, fuel_type, transmission,
body_type, power, color, channel (B2B/B2C), purchase_date, sold_date
(dates as 2006-01-02).`,
		Args: cobra.ExactArgs(1),
		RunE: runSalesImport,
	}
}

func runSalesImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	sales, err := readSalesCSV(args[0])
	if err != nil {
		return err
	}
	if len(sales) == 0 {
		return fmt.Errorf("no sales found in %s", args[0])
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.SaveSales(ctx, sales); err != nil {
		return fmt.Errorf("failed to save sales: %w", err)
	}

	slog.Info(cli.FormatSuccess(fmt.Sprintf("Imported %d sales", len(sales))))
	return nil
}

func readSalesCSV(path string) ([]model.InternalComparableSale, error) {
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
	for _, required := range []string{"brand", "model", "purchase_price", "selling_price"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("CSV is missing required column %q", required)
		}
	}

	field := func(record []string, name string) string {
		col, ok := columns[name]
		if !ok || col >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[col])
	}

	var sales []model.InternalComparableSale
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}
		line++

		sale := model.InternalComparableSale{
			Vehicle: model.VehicleAttributes{
				Brand:        field(record, "brand"),
				Model:        field(record, "model"),
				Trim:         field(record, "trim"),
				FuelType:     field(record, "fuel_type"),
				Transmission: field(record, "transmission"),
				BodyType:     field(record, "body_type"),
				Color:        field(record, "color"),
			},
			Channel: model.ChannelB2C,
		}

		sale.Vehicle.BuildYear, _ = strconv.Atoi(field(record, "build_year"))
		sale.Vehicle.Mileage, _ = strconv.Atoi(field(record, "mileage"))
		sale.Vehicle.Power, _ = strconv.Atoi(field(record, "power"))

		sale.PurchasePrice, err = strconv.ParseFloat(field(record, "purchase_price"), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad purchase_price: %w", line, err)
		}
		sale.SellingPrice, err = strconv.ParseFloat(field(record, "selling_price"), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad selling_price: %w", line, err)
		}

		if channel := strings.ToUpper(field(record, "channel")); channel == string(model.ChannelB2B) {
			sale.Channel = model.ChannelB2B
		}
		if v := field(record, "purchase_date"); v != "" {
			sale.PurchaseDate, err = time.Parse("2006-01-02", v)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad purchase_date: %w", line, err)
			}
		}
		if v := field(record, "sold_date"); v != "" {
			sale.SoldDate, err = time.Parse("2006-01-02", v)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad sold_date: %w", line, err)
			}
		}

		sales = append(sales, sale)
	}

	return sales, nil
}
