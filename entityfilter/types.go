package entityfilter

import "time"

// FilterOptions configures one Filter call (spec.md §4.8).
type FilterOptions struct {
	// Page and PageSize select an ID page from the entity type's data
	// service when IDs is empty.
	Page     int
	PageSize int

	// BatchSize bounds how many entities are processed per sequential
	// chunk (default 100).
	BatchSize int

	// Concurrency bounds how many entity pipelines run at once within a
	// batch (default 16).
	Concurrency int

	// PerEntityTimeout bounds one entity's pipeline (default 5s).
	PerEntityTimeout time.Duration

	// Trace, when true, attaches an eval.Trace to each evaluated entity.
	Trace bool

	// IncludeEntityData, when true, attaches the resolved field-value map
	// to each entity result.
	IncludeEntityData bool
}

func (o FilterOptions) withDefaults() FilterOptions {
	out := o
	if out.BatchSize <= 0 {
		out.BatchSize = 100
	}
	if out.Concurrency <= 0 {
		out.Concurrency = 16
	}
	if out.PerEntityTimeout <= 0 {
		out.PerEntityTimeout = 5 * time.Second
	}
	if out.PageSize <= 0 {
		out.PageSize = 100
	}
	return out
}

// EntityResult is one entity's outcome (spec.md §4.8 "Output").
type EntityResult struct {
	EntityID   string
	Matched    bool
	EntityData map[string]interface{}
	Trace      interface{}
	Error      *EntityProcessingError
}

// Pagination reports the page window consulted when IDs were not
// supplied directly.
type Pagination struct {
	Page     int
	PageSize int
	HasMore  bool
}

// Metrics distinguishes data-retrieval time from rule-evaluation time and
// reports batch count (spec.md §4.8 "Output").
type Metrics struct {
	DataRetrievalMs float64
	EvaluationMs    float64
	BatchCount      int
	Summary         string
}

// FilterResult is the caller-visible filter-result contract (spec.md §6
// "Filter result").
type FilterResult struct {
	RunID          string
	Entities       []EntityResult
	TotalProcessed int
	TotalMatched   int
	TotalFailed    int
	Pagination     Pagination
	Metrics        Metrics
	Errors         []EntityProcessingError
}
