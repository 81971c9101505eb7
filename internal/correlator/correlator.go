// Package correlator isolates, inside a finalized block's event log, the
// events attributable to one submission. The index reported by the live
// submission callback can be stale or missing when the block also packs
// unsigned system transactions, so the correlator re-fetches the block's full
// log and re-derives the extrinsic index by scanning for the first phase
// whose emitting module is in the set the submission could have touched.
// When the scan fails, the live callback's events are returned as a tagged,
// degraded fallback rather than an error.
package correlator

import (
	"context"
	"slices"

	"github.com/gabapcia/ledgerwatch/internal/ledger"
	"github.com/gabapcia/ledgerwatch/internal/pkg/logger"
)

// EventSource fetches the complete, ordered event log of one block,
// independently of any live subscription.
type EventSource interface {
	BlockEvents(ctx context.Context, blockHash string) ([]ledger.Event, error)
}

// Attribution tags how the returned event set was derived.
type Attribution int

const (
	// AttributionCorrelated means the events were re-derived from the
	// finalized block's log and verifiably belong to the submission's
	// extrinsic index.
	AttributionCorrelated Attribution = iota

	// AttributionFallback means the scan found no matching phase (or the
	// log could not be fetched) and the live callback's events were
	// returned unverified.
	AttributionFallback
)

// String implements fmt.Stringer.
func (a Attribution) String() string {
	if a == AttributionCorrelated {
		return "correlated"
	}
	return "fallback"
}

// Query describes one correlation request.
type Query struct {
	// Block is the block the submission landed in.
	Block ledger.BlockRef

	// LiveEvents is the event list reported by the live submission
	// callback, used as the degraded fallback.
	LiveEvents []ledger.Event

	// CandidateModules is the set of modules this submission could
	// plausibly have touched.
	CandidateModules []string

	// ExpectedEvent optionally narrows the scan to phases that also emit
	// this event name, disambiguating blocks where two submissions hit the
	// same module. When no phase satisfies it, the scan falls back to
	// module-only matching.
	ExpectedEvent string
}

// Result is the correlated (or fallback) event subset for one submission.
type Result struct {
	Events      []ledger.Event
	Attribution Attribution

	// ExtrinsicIndex is the re-derived index; set only when correlated.
	ExtrinsicIndex *uint32
}

// Verified reports whether the events were re-derived from the block log.
func (r Result) Verified() bool {
	return r.Attribution == AttributionCorrelated
}

// Service correlates submissions with block event logs.
type Service interface {
	Correlate(ctx context.Context, q Query) (Result, error)
}

// service is the default Service implementation.
type service struct {
	source EventSource
}

var _ Service = (*service)(nil)

// New creates a correlator reading block logs from the given source.
func New(source EventSource) *service {
	return &service{source: source}
}

// Correlate implements the Service interface. It never fails the operation
// over a missing match: any scan or fetch failure degrades to the live
// callback's events tagged AttributionFallback.
func (s *service) Correlate(ctx context.Context, q Query) (Result, error) {
	log, err := s.source.BlockEvents(ctx, q.Block.Hash)
	if err != nil {
		logger.Warn(ctx, "block event log unavailable, falling back to live callback events",
			"block.hash", q.Block.Hash,
			"error", err,
		)
		return fallback(q), nil
	}

	index, found := findExtrinsicIndex(log, q)
	if !found {
		logger.Warn(ctx, "no event phase matched candidate modules, falling back to live callback events",
			"block.hash", q.Block.Hash,
			"candidateModules", q.CandidateModules,
		)
		return fallback(q), nil
	}

	return Result{
		Events:         eventsAtIndex(log, index),
		Attribution:    AttributionCorrelated,
		ExtrinsicIndex: &index,
	}, nil
}

// fallback builds the degraded result from the live callback's events.
func fallback(q Query) Result {
	return Result{
		Events:      q.LiveEvents,
		Attribution: AttributionFallback,
	}
}

// findExtrinsicIndex scans the log in order for the first extrinsic phase
// matching the query. When an expected event name is supplied it is tried
// first; module-only matching is the fallback pass. Two same-module
// submissions in one block still resolve to the first match in log order.
func findExtrinsicIndex(log []ledger.Event, q Query) (uint32, bool) {
	if q.ExpectedEvent != "" {
		for _, ev := range log {
			if ev.Phase.IsExtrinsic() && matchesModule(ev, q.CandidateModules) && ev.Name == q.ExpectedEvent {
				return ev.Phase.ExtrinsicIndex, true
			}
		}
	}

	for _, ev := range log {
		if ev.Phase.IsExtrinsic() && matchesModule(ev, q.CandidateModules) {
			return ev.Phase.ExtrinsicIndex, true
		}
	}

	return 0, false
}

func matchesModule(ev ledger.Event, candidates []string) bool {
	return slices.Contains(candidates, ev.Module)
}

// eventsAtIndex returns every event the block attributes to the extrinsic at
// the given index, preserving log order.
func eventsAtIndex(log []ledger.Event, index uint32) []ledger.Event {
	var out []ledger.Event
	for _, ev := range log {
		if ev.Phase.IsExtrinsic() && ev.Phase.ExtrinsicIndex == index {
			out = append(out, ev)
		}
	}
	return out
}
