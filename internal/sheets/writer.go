package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/dverbeek/carwise/internal/common"
	"github.com/dverbeek/carwise/internal/model"
	"github.com/dverbeek/carwise/internal/portals"
	"github.com/dverbeek/carwise/internal/service"
)

// Writer exports completed bulk valuations to a Google Sheets spreadsheet.
type Writer struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

// NewWriter creates a new Google Sheets exporter.
func NewWriter(ctx context.Context, config Config, logger *slog.Logger) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	srv, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Writer{
		config:  config,
		service: srv,
		logger:  logger,
	}, nil
}

// Export writes the batch results to the spreadsheet, replacing any previous
// content. Rows keep their batch order; errored rows are written alongside
// completed ones so the buyer sees the whole batch in one place.
func (w *Writer) Export(ctx context.Context, rows []model.BulkRow) error {
	if len(rows) == 0 {
		return fmt.Errorf("nothing to export")
	}

	w.logger.Info("starting spreadsheet export", "rows", len(rows))

	spreadsheetID, err := w.getOrCreateSpreadsheet(ctx)
	if err != nil {
		return fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	if clearErr := w.clearSheet(ctx, spreadsheetID); clearErr != nil {
		return fmt.Errorf("failed to clear sheet: %w", clearErr)
	}

	values := prepareRows(rows)

	retryOpts := service.RetryOptions{
		MaxAttempts:  w.config.RetryAttempts,
		InitialDelay: w.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	err = common.WithRetry(ctx, func() error {
		return w.writeData(ctx, spreadsheetID, values)
	}, retryOpts)
	if err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}

	if w.config.EnableFormatting {
		err = common.WithRetry(ctx, func() error {
			return w.applyFormatting(ctx, spreadsheetID, rows)
		}, retryOpts)
		if err != nil {
			// A plain but complete export beats a failed one.
			w.logger.Warn("failed to apply formatting", "error", err)
		}
	}

	w.logger.Info("spreadsheet export completed",
		"spreadsheet_id", spreadsheetID,
		"rows_written", len(values))

	return nil
}

// createSheetsService creates a Google Sheets API service.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}

		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		oauthConfig := &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{sheets.SpreadsheetsScope},
		}

		token := &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		}

		tokenSource = oauthConfig.TokenSource(ctx, token)
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return srv, nil
}

// getOrCreateSpreadsheet gets an existing spreadsheet or creates a new one.
func (w *Writer) getOrCreateSpreadsheet(ctx context.Context) (string, error) {
	if w.config.SpreadsheetID != "" {
		_, err := w.service.Spreadsheets.Get(w.config.SpreadsheetID).Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("unable to access spreadsheet %s: %w", w.config.SpreadsheetID, err)
		}
		return w.config.SpreadsheetID, nil
	}

	spreadsheet := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{
			Title:    w.config.SpreadsheetName,
			TimeZone: w.config.TimeZone,
		},
		Sheets: []*sheets.Sheet{
			{
				Properties: &sheets.SheetProperties{
					Title: "Valuations",
				},
			},
		},
	}

	created, err := w.service.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create spreadsheet: %w", err)
	}

	w.logger.Info("created new spreadsheet",
		"id", created.SpreadsheetId,
		"url", created.SpreadsheetUrl)

	return created.SpreadsheetId, nil
}

// clearSheet clears all data from the sheet.
func (w *Writer) clearSheet(ctx context.Context, spreadsheetID string) error {
	_, err := w.service.Spreadsheets.Values.Clear(spreadsheetID, "A:Z", &sheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

// prepareRows flattens the batch into sheet values: one header row, one row
// per vehicle in batch order, then a trailing summary block.
func prepareRows(rows []model.BulkRow) [][]any {
	values := make([][]any, 0, len(rows)+8)
	values = append(values, headerRow)

	for _, row := range rows {
		values = append(values, dataRow(row))
	}

	summary := summarize(rows)
	values = append(values,
		[]any{}, // Empty row
		[]any{"Summary"},
		[]any{"Total", summary.Total},
		[]any{"Buy", summary.Buy},
		[]any{"No-Buy", summary.NoBuy},
		[]any{"Uncertain", summary.Uncertain},
		[]any{"Errors", summary.Errors},
	)

	return values
}

func dataRow(row model.BulkRow) []any {
	cells := make([]any, columnCount)
	for i := range cells {
		cells[i] = ""
	}

	if row.Status == model.BulkError {
		cells[colBrand] = row.Description
		cells[colError] = row.Error
		return cells
	}
	if row.Result == nil {
		cells[colBrand] = row.Description
		cells[colError] = "no result"
		return cells
	}

	v := row.Result.Vehicle
	cells[colBrand] = v.Brand
	cells[colModel] = v.Model
	cells[colFuelType] = v.FuelType
	if v.Mileage > 0 {
		cells[colMileage] = v.Mileage
	}
	if v.BuildYear > 0 {
		cells[colBuildYear] = v.BuildYear
	}

	if idx := row.Result.Index; idx != nil {
		cells[colAveragePriceRatio] = fmt.Sprintf("%.2f", idx.AveragePriceRatio)
		cells[colTimeToRetail] = idx.ExpectedTimeToRetail
		cells[colIndexPrice] = idx.TotalValue
		cells[colLiquidity] = string(idx.Liquidity)
	}

	if advice := row.Result.Advice; advice != nil {
		cells[colSellingPrice] = advice.RecommendedSellingPrice
		cells[colPurchasePrice] = advice.RecommendedPurchasePrice
		cells[colRecommendation] = string(advice.Recommendation)
	}

	if urls := portals.BuildSearchURLs(v); len(urls) > 0 {
		cells[colSearchLink] = urls[0]
	}

	return cells
}

// writeData writes the values in batches to stay under API limits.
func (w *Writer) writeData(ctx context.Context, spreadsheetID string, values [][]any) error {
	for i := 0; i < len(values); i += w.config.BatchSize {
		end := i + w.config.BatchSize
		if end > len(values) {
			end = len(values)
		}

		batch := values[i:end]
		valueRange := &sheets.ValueRange{
			Values: batch,
		}

		rangeStr := fmt.Sprintf("A%d", i+1)
		_, err := w.service.Spreadsheets.Values.Update(spreadsheetID, rangeStr, valueRange).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("failed to write batch starting at row %d: %w", i+1, err)
		}

		w.logger.Debug("wrote batch", "start_row", i+1, "rows", len(batch))
	}

	return nil
}

var (
	colorBuy       = &sheets.Color{Red: 0.83, Green: 0.93, Blue: 0.83}
	colorNoBuy     = &sheets.Color{Red: 0.96, Green: 0.78, Blue: 0.78}
	colorUncertain = &sheets.Color{Red: 1.0, Green: 0.95, Blue: 0.78}
	colorError     = &sheets.Color{Red: 0.9, Green: 0.9, Blue: 0.9}

	liquidityColors = map[model.LiquidityClass]*sheets.Color{
		model.LiquidityHigh:   colorBuy,
		model.LiquidityMedium: colorUncertain,
		model.LiquidityLow:    colorNoBuy,
	}
)

func rowColor(row model.BulkRow) *sheets.Color {
	if row.Status == model.BulkError {
		return colorError
	}
	if row.Result == nil || row.Result.Advice == nil {
		return nil
	}
	switch row.Result.Advice.Recommendation {
	case model.RecommendBuy:
		return colorBuy
	case model.RecommendNoBuy:
		return colorNoBuy
	case model.RecommendUncertain:
		return colorUncertain
	}
	return nil
}

func backgroundRequest(rowIndex int64, startCol, endCol int64, color *sheets.Color) *sheets.Request {
	return &sheets.Request{
		RepeatCell: &sheets.RepeatCellRequest{
			Range: &sheets.GridRange{
				SheetId:          0,
				StartRowIndex:    rowIndex,
				EndRowIndex:      rowIndex + 1,
				StartColumnIndex: startCol,
				EndColumnIndex:   endCol,
			},
			Cell: &sheets.CellData{
				UserEnteredFormat: &sheets.CellFormat{
					BackgroundColor: color,
				},
			},
			Fields: "userEnteredFormat.backgroundColor",
		},
	}
}

// applyFormatting colors each row by its recommendation, highlights the
// liquidity cell, and formats headers and price columns.
func (w *Writer) applyFormatting(ctx context.Context, spreadsheetID string, rows []model.BulkRow) error {
	requests := []*sheets.Request{
		// Bold, frozen header
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          0,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   columnCount,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{
							Bold: true,
						},
					},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		},
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId: 0,
					GridProperties: &sheets.GridProperties{
						FrozenRowCount: 1,
					},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
		// Currency columns
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          0,
					StartRowIndex:    1,
					EndRowIndex:      int64(len(rows) + 1),
					StartColumnIndex: colIndexPrice,
					EndColumnIndex:   colPurchasePrice + 1,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						NumberFormat: &sheets.NumberFormat{
							Type:    "CURRENCY",
							Pattern: "€#,##0",
						},
					},
				},
				Fields: "userEnteredFormat.numberFormat",
			},
		},
		// Auto-resize columns
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    0,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   columnCount,
				},
			},
		},
	}

	// Per-row coloring. Data rows start right below the header.
	for i, row := range rows {
		rowIndex := int64(i + 1)

		if color := rowColor(row); color != nil {
			requests = append(requests, backgroundRequest(rowIndex, 0, columnCount, color))
		}

		if row.Result != nil && row.Result.Index != nil {
			if color, ok := liquidityColors[row.Result.Index.Liquidity]; ok {
				requests = append(requests, backgroundRequest(rowIndex, colLiquidity, colLiquidity+1, color))
			}
		}
	}

	batchUpdate := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}

	_, err := w.service.Spreadsheets.BatchUpdate(spreadsheetID, batchUpdate).Context(ctx).Do()
	return err
}
