package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dverbeek/carwise/internal/model"
	"github.com/dverbeek/carwise/internal/parser"
	"github.com/dverbeek/carwise/internal/service"
)

// DefaultBulkConcurrency keeps the batch gentle on the AI search and pricing
// index rate limits. Concurrency nests but is capped once at the row level.
const DefaultBulkConcurrency = 2

// BulkRunner drives the free-text parser plus the single-vehicle pipeline
// over many supplier rows, isolating per-row failure.
type BulkRunner struct {
	orch        *Orchestrator
	parser      DescriptionParser
	concurrency int
	logger      *slog.Logger
}

// NewBulkRunner creates a bulk runner. concurrency <= 0 uses the default.
func NewBulkRunner(orch *Orchestrator, descParser DescriptionParser, concurrency int, logger *slog.Logger) *BulkRunner {
	if concurrency <= 0 {
		concurrency = DefaultBulkConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BulkRunner{
		orch:        orch,
		parser:      descParser,
		concurrency: concurrency,
		logger:      logger,
	}
}

// IngestDescriptions attaches a pending BulkRow per input row.
func IngestDescriptions(descriptions []string) []*model.BulkRow {
	rows := make([]*model.BulkRow, len(descriptions))
	for i, desc := range descriptions {
		rows[i] = &model.BulkRow{
			Index:       i,
			Description: desc,
			Status:      model.BulkPending,
		}
	}
	return rows
}

// Process runs every pending row through the pipeline. A per-row failure sets
// that row to error with a message and continues; once started, the batch
// always completes and the progress counter ends at len(rows).
func (b *BulkRunner) Process(ctx context.Context, rows []*model.BulkRow, progress service.ProgressFunc) {
	b.parseRows(ctx, rows)

	sem := make(chan struct{}, b.concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	done := 0

	for _, row := range rows {
		wg.Add(1)
		go func(row *model.BulkRow) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			b.processRow(ctx, row)

			mu.Lock()
			done++
			if progress != nil {
				progress(model.BulkProgress{
					Index:   done,
					Total:   len(rows),
					Current: rowLabel(row),
				})
			}
			mu.Unlock()
		}(row)
	}

	wg.Wait()
}

// parseRows runs the free-text parser in batches over rows that have a
// description but no plate. Parser failures leave the row for processRow to
// reject; siblings are unaffected.
func (b *BulkRunner) parseRows(ctx context.Context, rows []*model.BulkRow) {
	var pending []*model.BulkRow
	var descriptions []string

	flush := func() {
		if len(pending) == 0 {
			return
		}
		parsed, err := b.parser.ParseDescriptions(ctx, descriptions)
		if err == nil {
			for i, row := range pending {
				if i >= len(parsed) {
					break
				}
				attrs := parsed[i].Attributes
				row.ParseConfidence = parsed[i].Confidence
				if row.Mileage > 0 {
					attrs.Mileage = row.Mileage
				}
				if attrs.Brand != "" {
					row.Result = &model.RunResult{Vehicle: attrs}
				}
			}
		} else {
			b.logger.Warn("bulk parse batch failed, rows will be rejected individually", "error", err)
		}
		pending = pending[:0]
		descriptions = descriptions[:0]
	}

	for _, row := range rows {
		if row.Plate != "" || row.Description == "" {
			continue
		}
		pending = append(pending, row)
		descriptions = append(descriptions, row.Description)
		if len(pending) == parser.MaxBatchSize {
			flush()
		}
	}
	flush()
}

func (b *BulkRunner) processRow(ctx context.Context, row *model.BulkRow) {
	row.Status = model.BulkProcessing

	input := RunInput{Plate: row.Plate, Mileage: row.Mileage}
	if row.Plate == "" {
		if row.Result == nil || row.Result.Vehicle.Brand == "" {
			row.Status = model.BulkError
			row.Error = "description could not be parsed into a vehicle"
			return
		}
		attrs := row.Result.Vehicle
		input.Attrs = &attrs
	}

	result, err := b.orch.Value(ctx, input)
	if err != nil {
		row.Status = model.BulkError
		row.Error = err.Error()
		b.logger.Warn("bulk row failed", "row", row.Index, "error", err)
		return
	}

	row.Result = result
	row.Status = model.BulkCompleted
}

func rowLabel(row *model.BulkRow) string {
	if row.Result != nil && row.Result.Vehicle.Brand != "" {
		return row.Result.Vehicle.Label()
	}
	if row.Plate != "" {
		return row.Plate
	}
	return fmt.Sprintf("row %d", row.Index+1)
}
