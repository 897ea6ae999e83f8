package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dverbeek/carwise/internal/advice"
	"github.com/dverbeek/carwise/internal/common"
	"github.com/dverbeek/carwise/internal/model"
)

type stubResolver struct {
	attrs model.VehicleAttributes
	err   error
}

func (s *stubResolver) Resolve(context.Context, string) (model.VehicleAttributes, error) {
	return s.attrs, s.err
}

type stubSearcher struct {
	analysis *model.PortalAnalysis
	panics   bool
}

func (s *stubSearcher) Search(context.Context, model.VehicleAttributes, []string) *model.PortalAnalysis {
	if s.panics {
		panic("portal search blew up")
	}
	return s.analysis
}

type stubIndex struct {
	result *model.PricingIndexResult
	err    error
	called bool
}

func (s *stubIndex) Valuate(context.Context, string) (*model.PricingIndexResult, error) {
	s.called = true
	return s.result, s.err
}

type stubComparer struct {
	comparison *model.InternalComparison
}

func (s *stubComparer) Compare(context.Context, model.VehicleAttributes) *model.InternalComparison {
	return s.comparison
}

type stubAdvisor struct {
	inputs advice.Inputs
	advice *model.ValuationAdvice
	err    error
}

func (s *stubAdvisor) Synthesize(_ context.Context, in advice.Inputs) (*model.ValuationAdvice, error) {
	s.inputs = in
	if s.err != nil {
		return nil, s.err
	}
	return s.advice, nil
}

func golfAttrs() model.VehicleAttributes {
	return model.VehicleAttributes{Brand: "Volkswagen", Model: "Golf", BuildYear: 2020}
}

func healthyOrchestrator() (*Orchestrator, *stubIndex, *stubAdvisor) {
	index := &stubIndex{result: &model.PricingIndexResult{TotalValue: 18500}}
	advisor := &stubAdvisor{advice: &model.ValuationAdvice{Recommendation: model.RecommendBuy}}
	orch := NewOrchestrator(
		&stubResolver{attrs: golfAttrs()},
		&stubSearcher{analysis: &model.PortalAnalysis{ListingCount: 4, PrimaryCount: 3, MedianPrice: 18400}},
		index,
		&stubComparer{comparison: &model.InternalComparison{CountB2C: 3, AverageMarginPct: 15}},
		advisor,
		nil,
	)
	return orch, index, advisor
}

func TestRunExecute(t *testing.T) {
	t.Run("happy path reaches complete with all sources", func(t *testing.T) {
		orch, index, advisor := healthyOrchestrator()
		run := orch.NewRun(RunInput{Plate: "AB-123-C"})

		assert.Equal(t, StateIdle, run.State())

		result, err := run.Execute(context.Background())
		require.NoError(t, err)
		require.NotNil(t, result)

		assert.Equal(t, StateComplete, run.State())
		assert.True(t, index.called)
		assert.NotNil(t, result.Portal)
		assert.NotNil(t, result.Index)
		assert.NotNil(t, result.Internal)
		assert.Equal(t, model.RecommendBuy, result.Advice.Recommendation)
		assert.Equal(t, result, run.Result())

		// The advisor saw exactly what the fetchers produced.
		assert.Equal(t, "AB-123-C", advisor.inputs.Plate)
		assert.Equal(t, golfAttrs(), advisor.inputs.Vehicle)
	})

	t.Run("identity failure is fatal", func(t *testing.T) {
		orch, _, _ := healthyOrchestrator()
		orch.resolver = &stubResolver{err: common.ErrNotFound}
		run := orch.NewRun(RunInput{Plate: "XX-999-X"})

		result, err := run.Execute(context.Background())
		require.Error(t, err)
		assert.Nil(t, result)
		assert.Equal(t, StateError, run.State())
		assert.True(t, errors.Is(run.Err(), common.ErrNotFound))
	})

	t.Run("index failure degrades the branch only", func(t *testing.T) {
		orch, index, _ := healthyOrchestrator()
		index.result = nil
		index.err = common.ErrUpstream
		run := orch.NewRun(RunInput{Plate: "AB-123-C"})

		result, err := run.Execute(context.Background())
		require.NoError(t, err)
		assert.Equal(t, StateComplete, run.State())
		assert.Nil(t, result.Index)
		assert.NotNil(t, result.Portal)
		assert.NotNil(t, result.Internal)
	})

	t.Run("panicking fetcher degrades the branch only", func(t *testing.T) {
		orch, _, _ := healthyOrchestrator()
		orch.portals = &stubSearcher{panics: true}
		run := orch.NewRun(RunInput{Plate: "AB-123-C"})

		result, err := run.Execute(context.Background())
		require.NoError(t, err)
		assert.Nil(t, result.Portal)
		assert.NotNil(t, result.Index)
	})

	t.Run("index is skipped without a plate", func(t *testing.T) {
		orch, index, _ := healthyOrchestrator()
		attrs := golfAttrs()
		run := orch.NewRun(RunInput{Attrs: &attrs})

		result, err := run.Execute(context.Background())
		require.NoError(t, err)
		assert.False(t, index.called)
		assert.Nil(t, result.Index)
	})

	t.Run("mileage and options supplement resolved attributes", func(t *testing.T) {
		orch, _, advisor := healthyOrchestrator()
		run := orch.NewRun(RunInput{Plate: "AB-123-C", Mileage: 45000, Options: []string{"pano"}})

		_, err := run.Execute(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 45000, advisor.inputs.Vehicle.Mileage)
		assert.Equal(t, []string{"pano"}, advisor.inputs.Vehicle.Options)
	})

	t.Run("no input at all is an error", func(t *testing.T) {
		orch, _, _ := healthyOrchestrator()
		run := orch.NewRun(RunInput{})

		_, err := run.Execute(context.Background())
		require.Error(t, err)
		assert.Equal(t, StateError, run.State())
	})

	t.Run("zero-source synthesis ends the run in error", func(t *testing.T) {
		orch, _, advisor := healthyOrchestrator()
		advisor.err = advice.ErrNoSources
		run := orch.NewRun(RunInput{Plate: "AB-123-C"})

		_, err := run.Execute(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, advice.ErrNoSources))
		assert.Equal(t, StateError, run.State())
	})

	t.Run("re-execution resets a failed run", func(t *testing.T) {
		orch, _, _ := healthyOrchestrator()
		failing := &stubResolver{err: common.ErrUpstream}
		orch.resolver = failing
		run := orch.NewRun(RunInput{Plate: "AB-123-C"})

		_, err := run.Execute(context.Background())
		require.Error(t, err)
		assert.Equal(t, StateError, run.State())

		failing.err = nil
		failing.attrs = golfAttrs()
		result, err := run.Execute(context.Background())
		require.NoError(t, err)
		assert.Equal(t, StateComplete, run.State())
		assert.NotNil(t, result)
		assert.NoError(t, run.Err())
	})
}
