package model

// BulkRowStatus is the lifecycle of one supplier row in a batch. Rows are
// terminal at completed/error and never auto-retried.
type BulkRowStatus string

const (
	BulkPending    BulkRowStatus = "pending"
	BulkProcessing BulkRowStatus = "processing"
	BulkCompleted  BulkRowStatus = "completed"
	BulkError      BulkRowStatus = "error"
)

// BulkRow carries one supplier-provided row through the batch pipeline. It is
// created at ingestion, mutated in place by the bulk runner, and owns the full
// result bundle once completed.
type BulkRow struct {
	Index           int           `json:"index"`
	Description     string        `json:"description"`
	Plate           string        `json:"plate,omitempty"`
	Mileage         int           `json:"mileage,omitempty"`
	AskingPrice     float64       `json:"askingPrice,omitempty"`
	ParseConfidence float64       `json:"parseConfidence,omitempty"`
	Status          BulkRowStatus `json:"status"`
	Error           string        `json:"error,omitempty"`
	Result          *RunResult    `json:"result,omitempty"`
}

// RunResult bundles everything a single-vehicle run produced.
type RunResult struct {
	Vehicle  VehicleAttributes   `json:"vehicle"`
	Portal   *PortalAnalysis     `json:"portal,omitempty"`
	Index    *PricingIndexResult `json:"index,omitempty"`
	Internal *InternalComparison `json:"internal,omitempty"`
	Advice   *ValuationAdvice    `json:"advice,omitempty"`
}

// BulkProgress reports aggregate batch progress to the caller.
type BulkProgress struct {
	Index   int    `json:"index"`
	Total   int    `json:"total"`
	Current string `json:"current"`
}
