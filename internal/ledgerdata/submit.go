package ledgerdata

import (
	"context"
	"slices"
	"time"

	"github.com/gabapcia/ledgerwatch/internal/correlator"
	"github.com/gabapcia/ledgerwatch/internal/identifier"
	"github.com/gabapcia/ledgerwatch/internal/ledger"
	"github.com/gabapcia/ledgerwatch/internal/pkg/logger"
	"github.com/gabapcia/ledgerwatch/internal/submitter"
)

// identifierKeys are the payload field names under which the ledger has been
// observed to deliver minted record identifiers, in resolution order.
var identifierKeys = []string{"id", "identifier", "recordId", "record_id"}

// SubmitResult is the composite answer to one write operation.
type SubmitResult struct {
	// Identifiers are the validated 128-bit identifiers minted by the
	// submission's events. Unextractable identifiers are omitted, never
	// replaced by placeholders.
	Identifiers []identifier.Identifier128

	// Outcome is the submission's terminal state. Its Events field holds
	// the correlated set when verification succeeded.
	Outcome submitter.Outcome

	// EventsVerified reports whether Outcome.Events were re-derived from
	// the finalized block's log (true) or are the live callback's
	// unverified attribution (false).
	EventsVerified bool
}

// SubmitAndAwait implements the Service interface.
func (s *service) SubmitAndAwait(ctx context.Context, call ledger.Call, signer submitter.Signer, finalityRequired bool) (SubmitResult, error) {
	outcome, err := s.engine.Submit(ctx, call, signer, finalityRequired)
	if err != nil {
		return SubmitResult{}, err
	}

	result := SubmitResult{Outcome: outcome}

	if outcome.Kind.Succeeded() {
		correlated, err := s.correlator.Correlate(ctx, correlator.Query{
			Block:            outcome.Block,
			LiveEvents:       outcome.Events,
			CandidateModules: []string{call.Module},
		})
		if err != nil {
			return SubmitResult{}, err
		}

		result.EventsVerified = correlated.Verified()
		result.Outcome.Events = correlated.Events
		if correlated.ExtrinsicIndex != nil {
			result.Outcome.ExtrinsicIndex = correlated.ExtrinsicIndex
		}

		result.Identifiers = extractIdentifiers(correlated.Events)
	}

	s.journalOutcome(ctx, result)

	return result, nil
}

// LookupOutcome implements the Service interface.
func (s *service) LookupOutcome(ctx context.Context, txHash string) (JournalEntry, error) {
	return s.journal.LookupOutcome(ctx, txHash)
}

// extractIdentifiers pulls every valid 128-bit identifier out of the event
// payloads. Malformed candidates are dropped, not coerced.
func extractIdentifiers(events []ledger.Event) []identifier.Identifier128 {
	var out []identifier.Identifier128
	for _, ev := range events {
		for _, key := range identifierKeys {
			raw, ok := ev.Payload[key]
			if !ok {
				continue
			}

			id, ok := identifier.Extract(raw)
			if !ok {
				continue
			}

			if !slices.Contains(out, id) {
				out = append(out, id)
			}
		}
	}
	return out
}

// journalOutcome records the terminal outcome best-effort: the journal is an
// operational aid, never load-bearing for the caller's result.
func (s *service) journalOutcome(ctx context.Context, result SubmitResult) {
	if result.Outcome.TxHash == "" {
		return
	}

	entry := JournalEntry{
		TxHash:         result.Outcome.TxHash,
		Outcome:        result.Outcome.Kind.String(),
		ErrorKind:      result.Outcome.ErrorKind.String(),
		Detail:         result.Outcome.Detail,
		Block:          result.Outcome.Block,
		Identifiers:    result.Identifiers,
		EventsVerified: result.EventsVerified,
		RetryCount:     result.Outcome.RetryCount,
		RecordedAt:     time.Now().UTC(),
	}

	if err := s.journal.RecordOutcome(ctx, entry); err != nil {
		logger.Warn(ctx, "failed to journal submission outcome",
			"tx.hash", entry.TxHash,
			"error", err,
		)
	}
}
