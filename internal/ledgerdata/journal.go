package ledgerdata

import (
	"context"
	"errors"
	"time"

	"github.com/gabapcia/ledgerwatch/internal/identifier"
	"github.com/gabapcia/ledgerwatch/internal/ledger"
)

// ErrOutcomeNotFound reports that no outcome has been journaled under the
// requested transaction hash.
var ErrOutcomeNotFound = errors.New("no journaled outcome for transaction")

// JournalEntry is the durable record of one terminal submission outcome.
// It is an audit trail for operational tooling, not a cache: ledger state is
// always re-read from the node.
type JournalEntry struct {
	TxHash         string                      `json:"txHash"`
	Outcome        string                      `json:"outcome"`
	ErrorKind      string                      `json:"errorKind"`
	Detail         string                      `json:"detail,omitempty"`
	Block          ledger.BlockRef             `json:"block"`
	Identifiers    []identifier.Identifier128  `json:"identifiers,omitempty"`
	EventsVerified bool                        `json:"eventsVerified"`
	RetryCount     int                         `json:"retryCount"`
	RecordedAt     time.Time                   `json:"recordedAt"`
}

// OutcomeJournal persists terminal submission outcomes.
type OutcomeJournal interface {
	// RecordOutcome stores the entry under its transaction hash.
	RecordOutcome(ctx context.Context, entry JournalEntry) error

	// LookupOutcome retrieves an entry, or ErrOutcomeNotFound.
	LookupOutcome(ctx context.Context, txHash string) (JournalEntry, error)
}

// nopJournal is the default journal when none is configured.
type nopJournal struct{}

var _ OutcomeJournal = nopJournal{}

func (nopJournal) RecordOutcome(context.Context, JournalEntry) error {
	return nil
}

func (nopJournal) LookupOutcome(context.Context, string) (JournalEntry, error) {
	return JournalEntry{}, ErrOutcomeNotFound
}
