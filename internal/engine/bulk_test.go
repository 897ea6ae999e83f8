package engine

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dverbeek/carwise/internal/model"
)

type stubParser struct {
	mu      sync.Mutex
	batches [][]string
	parse   func(desc string) model.ParsedVehicle
	err     error
}

func (s *stubParser) ParseDescriptions(_ context.Context, descriptions []string) ([]model.ParsedVehicle, error) {
	s.mu.Lock()
	s.batches = append(s.batches, descriptions)
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	out := make([]model.ParsedVehicle, len(descriptions))
	for i, desc := range descriptions {
		out[i] = s.parse(desc)
	}
	return out, nil
}

func parseByBrand(desc string) model.ParsedVehicle {
	fields := strings.Fields(desc)
	if len(fields) == 0 || fields[0] == "unparseable" {
		return model.ParsedVehicle{Confidence: 0.3, Source: "fallback"}
	}
	return model.ParsedVehicle{
		Attributes: model.VehicleAttributes{Brand: fields[0], Model: strings.Join(fields[1:], " ")},
		Confidence: 0.9,
		Source:     "llm",
	}
}

// failingResolver fails only for one specific plate.
type failingResolver struct {
	failPlate string
}

func (f *failingResolver) Resolve(_ context.Context, plate string) (model.VehicleAttributes, error) {
	if plate == f.failPlate {
		return model.VehicleAttributes{}, assertError("registry rejected " + plate)
	}
	return golfAttrs(), nil
}

type assertError string

func (e assertError) Error() string { return string(e) }

func TestBulkProcess(t *testing.T) {
	t.Run("processes every row and reports full progress", func(t *testing.T) {
		orch, _, _ := healthyOrchestrator()
		runner := NewBulkRunner(orch, &stubParser{parse: parseByBrand}, 3, nil)

		rows := IngestDescriptions([]string{
			"Volkswagen Golf 2020",
			"Toyota Yaris 2018",
			"Audi A4 Avant",
		})

		var mu sync.Mutex
		var progress []model.BulkProgress
		runner.Process(context.Background(), rows, func(p model.BulkProgress) {
			mu.Lock()
			progress = append(progress, p)
			mu.Unlock()
		})

		for _, row := range rows {
			assert.Equal(t, model.BulkCompleted, row.Status, "row %d", row.Index)
			require.NotNil(t, row.Result)
			assert.NotNil(t, row.Result.Advice)
		}

		require.Len(t, progress, 3)
		assert.Equal(t, 3, progress[len(progress)-1].Index)
		assert.Equal(t, 3, progress[len(progress)-1].Total)
	})

	t.Run("row failure is isolated", func(t *testing.T) {
		orch, _, _ := healthyOrchestrator()
		orch.resolver = &failingResolver{failPlate: "BB-222-B"}
		runner := NewBulkRunner(orch, &stubParser{parse: parseByBrand}, 2, nil)

		rows := []*model.BulkRow{
			{Index: 0, Plate: "AA-111-A", Status: model.BulkPending},
			{Index: 1, Plate: "BB-222-B", Status: model.BulkPending},
			{Index: 2, Plate: "CC-333-C", Status: model.BulkPending},
		}

		count := 0
		runner.Process(context.Background(), rows, func(model.BulkProgress) { count++ })

		assert.Equal(t, model.BulkCompleted, rows[0].Status)
		assert.Equal(t, model.BulkError, rows[1].Status)
		assert.NotEmpty(t, rows[1].Error)
		assert.Equal(t, model.BulkCompleted, rows[2].Status)
		// The batch always runs to completion.
		assert.Equal(t, 3, count)
	})

	t.Run("unparseable description errors its row only", func(t *testing.T) {
		orch, _, _ := healthyOrchestrator()
		runner := NewBulkRunner(orch, &stubParser{parse: parseByBrand}, 1, nil)

		rows := IngestDescriptions([]string{
			"unparseable supplier note",
			"Volkswagen Golf 2020",
		})

		runner.Process(context.Background(), rows, nil)

		assert.Equal(t, model.BulkError, rows[0].Status)
		assert.Contains(t, rows[0].Error, "parsed")
		assert.Equal(t, model.BulkCompleted, rows[1].Status)
	})

	t.Run("parser batch failure rejects rows individually", func(t *testing.T) {
		orch, _, _ := healthyOrchestrator()
		runner := NewBulkRunner(orch, &stubParser{err: assertError("llm down")}, 1, nil)

		rows := IngestDescriptions([]string{"Volkswagen Golf 2020"})
		runner.Process(context.Background(), rows, nil)

		assert.Equal(t, model.BulkError, rows[0].Status)
	})

	t.Run("plate rows skip the parser", func(t *testing.T) {
		orch, _, _ := healthyOrchestrator()
		parser := &stubParser{parse: parseByBrand}
		runner := NewBulkRunner(orch, parser, 1, nil)

		rows := []*model.BulkRow{{Index: 0, Plate: "AA-111-A", Status: model.BulkPending}}
		runner.Process(context.Background(), rows, nil)

		assert.Empty(t, parser.batches)
		assert.Equal(t, model.BulkCompleted, rows[0].Status)
	})

	t.Run("large batches are chunked for the parser", func(t *testing.T) {
		orch, _, _ := healthyOrchestrator()
		parser := &stubParser{parse: parseByBrand}
		runner := NewBulkRunner(orch, parser, 4, nil)

		descriptions := make([]string, 25)
		for i := range descriptions {
			descriptions[i] = "Volkswagen Golf 2020"
		}
		rows := IngestDescriptions(descriptions)
		runner.Process(context.Background(), rows, nil)

		require.Len(t, parser.batches, 2)
		assert.Len(t, parser.batches[0], 20)
		assert.Len(t, parser.batches[1], 5)
	})

	t.Run("row mileage carries into the parsed attributes", func(t *testing.T) {
		orch, _, advisor := healthyOrchestrator()
		runner := NewBulkRunner(orch, &stubParser{parse: parseByBrand}, 1, nil)

		rows := IngestDescriptions([]string{"Volkswagen Golf 2020"})
		rows[0].Mileage = 62000
		runner.Process(context.Background(), rows, nil)

		require.Equal(t, model.BulkCompleted, rows[0].Status)
		assert.Equal(t, 62000, advisor.inputs.Vehicle.Mileage)
	})

	t.Run("ingest assigns ordered pending rows", func(t *testing.T) {
		rows := IngestDescriptions([]string{"a", "b"})
		require.Len(t, rows, 2)
		assert.Equal(t, 0, rows[0].Index)
		assert.Equal(t, 1, rows[1].Index)
		assert.Equal(t, model.BulkPending, rows[0].Status)
	})
}
