// Package engine orchestrates valuation runs: identity resolution, the
// parallel source fan-out, and advice synthesis, plus the bulk batch driver.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dverbeek/carwise/internal/advice"
	"github.com/dverbeek/carwise/internal/model"
	"github.com/dverbeek/carwise/internal/portals"
)

// State is the lifecycle of a single-vehicle run.
type State string

const (
	StateIdle         State = "idle"
	StateResolving    State = "resolving"
	StateFetching     State = "fetching"
	StateSynthesizing State = "synthesizing"
	StateComplete     State = "complete"
	StateError        State = "error"
)

// Orchestrator sequences Resolver → parallel {portals, index, internal} →
// Synthesizer.
type Orchestrator struct {
	resolver Resolver
	portals  PortalSearcher
	index    IndexValuator
	internal InternalComparer
	advisor  Advisor
	logger   *slog.Logger
}

// NewOrchestrator wires the pipeline dependencies.
func NewOrchestrator(resolver Resolver, searcher PortalSearcher, index IndexValuator, internal InternalComparer, advisor Advisor, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		resolver: resolver,
		portals:  searcher,
		index:    index,
		internal: internal,
		advisor:  advisor,
		logger:   logger,
	}
}

// RunInput identifies the vehicle for a run. Either Plate is set (identity
// comes from the registry) or Attrs is pre-resolved (bulk rows parsed from
// free text). Mileage and Options supplement registry data, which lacks both.
type RunInput struct {
	Plate   string
	Attrs   *model.VehicleAttributes
	Mileage int
	Options []string
}

// Run is one single-vehicle valuation. A Run is re-entrant: Execute on a
// completed or failed run resets all downstream state first.
type Run struct {
	orch   *Orchestrator
	input  RunInput
	mu     sync.Mutex
	state  State
	result *model.RunResult
	err    error
}

// NewRun creates an idle run for the given input.
func (o *Orchestrator) NewRun(input RunInput) *Run {
	return &Run{orch: o, input: input, state: StateIdle}
}

// State returns the current lifecycle state.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Result returns the run's result bundle, nil until synthesis completed.
func (r *Run) Result() *model.RunResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// Err returns the fatal run error, if any.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Run) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Execute drives the run to a terminal state. The error state is reachable
// only from resolving: identity failure is fatal, while a failure in any one
// of the three parallel fetchers degrades that branch to an empty result.
func (r *Run) Execute(ctx context.Context) (*model.RunResult, error) {
	// Re-entry resets downstream state.
	r.mu.Lock()
	r.result = nil
	r.err = nil
	r.state = StateResolving
	r.mu.Unlock()

	attrs, err := r.resolveIdentity(ctx)
	if err != nil {
		r.mu.Lock()
		r.state = StateError
		r.err = err
		r.mu.Unlock()
		return nil, err
	}

	r.setState(StateFetching)
	result := r.fetchSources(ctx, attrs)

	r.setState(StateSynthesizing)
	adviceResult, err := r.orch.advisor.Synthesize(ctx, advice.Inputs{
		Plate:    r.input.Plate,
		Vehicle:  attrs,
		Portal:   result.Portal,
		Index:    result.Index,
		Internal: result.Internal,
	})
	if err != nil {
		// Synthesis refusing to run means every source came back empty;
		// this is a pipeline-level failure, not an identity failure, but it
		// still ends the run.
		r.mu.Lock()
		r.state = StateError
		r.err = err
		r.mu.Unlock()
		return nil, fmt.Errorf("advice synthesis failed: %w", err)
	}
	result.Advice = adviceResult

	r.mu.Lock()
	r.result = result
	r.state = StateComplete
	r.mu.Unlock()

	return result, nil
}

func (r *Run) resolveIdentity(ctx context.Context) (model.VehicleAttributes, error) {
	var attrs model.VehicleAttributes

	switch {
	case r.input.Attrs != nil:
		attrs = *r.input.Attrs
	case r.input.Plate != "":
		resolved, err := r.orch.resolver.Resolve(ctx, r.input.Plate)
		if err != nil {
			return model.VehicleAttributes{}, err
		}
		attrs = resolved
	default:
		return model.VehicleAttributes{}, fmt.Errorf("run needs a plate or resolved attributes")
	}

	if r.input.Mileage > 0 {
		attrs.Mileage = r.input.Mileage
	}
	if len(r.input.Options) > 0 {
		attrs.Options = r.input.Options
	}
	return attrs, nil
}

// fetchSources fans out to the three fetchers and waits for all of them to
// settle individually. A branch that fails or panics yields a nil result and
// never rejects the join.
func (r *Run) fetchSources(ctx context.Context, attrs model.VehicleAttributes) *model.RunResult {
	result := &model.RunResult{Vehicle: attrs}

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		defer r.recoverBranch("portals")
		result.Portal = r.orch.portals.Search(ctx, attrs, portals.BuildSearchURLs(attrs))
	}()

	go func() {
		defer wg.Done()
		defer r.recoverBranch("pricing index")
		if r.input.Plate == "" || r.orch.index == nil {
			return
		}
		idx, err := r.orch.index.Valuate(ctx, r.input.Plate)
		if err != nil {
			r.orch.logger.Warn("pricing index fetch failed, continuing without it",
				"plate", r.input.Plate, "error", err)
			return
		}
		result.Index = idx
	}()

	go func() {
		defer wg.Done()
		defer r.recoverBranch("internal comparables")
		result.Internal = r.orch.internal.Compare(ctx, attrs)
	}()

	wg.Wait()
	return result
}

func (r *Run) recoverBranch(name string) {
	if rec := recover(); rec != nil {
		r.orch.logger.Error("source fetcher panicked, branch degraded to empty",
			"source", name, "panic", rec)
	}
}

// Value is the convenience path: create a run, execute it, return the result.
func (o *Orchestrator) Value(ctx context.Context, input RunInput) (*model.RunResult, error) {
	return o.NewRun(input).Execute(ctx)
}
