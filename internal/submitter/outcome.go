package submitter

import (
	"fmt"

	"github.com/gabapcia/ledgerwatch/internal/ledger"
)

// OutcomeKind is the terminal classification of one submission.
type OutcomeKind int

const (
	// OutcomeIncluded means the transaction landed in a block and the
	// caller accepted probabilistic finality.
	OutcomeIncluded OutcomeKind = iota

	// OutcomeFinalized means the block holding the transaction is
	// irreversible.
	OutcomeFinalized

	// OutcomeRejected means the submission failed terminally: either a
	// non-retryable dispatch/pool error, or the retry budget was exhausted
	// on a retryable one.
	OutcomeRejected

	// OutcomeTimedOut means every attempt exceeded its wall-clock bound
	// without the node reporting a terminal state.
	OutcomeTimedOut
)

// String implements fmt.Stringer.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeIncluded:
		return "included"
	case OutcomeFinalized:
		return "finalized"
	case OutcomeRejected:
		return "rejected"
	case OutcomeTimedOut:
		return "timedOut"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Succeeded reports whether the submission reached a block.
func (k OutcomeKind) Succeeded() bool {
	return k == OutcomeIncluded || k == OutcomeFinalized
}

// ErrorKind classifies terminal failures per the client's error taxonomy.
type ErrorKind int

const (
	// ErrorKindNone marks a successful outcome.
	ErrorKindNone ErrorKind = iota

	// ErrorKindPoolRejection covers transient pool-level rejections
	// (priority too low, stale nonce) that exhausted the retry budget.
	ErrorKindPoolRejection

	// ErrorKindDispatchFailure covers module-level execution failures.
	// Never retried: they indicate a logic or state precondition violation.
	ErrorKindDispatchFailure

	// ErrorKindTimeout covers attempts that exceeded the wall-clock bound.
	// Ambiguous: the transaction may still have been included.
	ErrorKindTimeout
)

// String implements fmt.Stringer.
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindNone:
		return "none"
	case ErrorKindPoolRejection:
		return "poolRejection"
	case ErrorKindDispatchFailure:
		return "dispatchFailure"
	case ErrorKindTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("errorKind(%d)", int(k))
	}
}

// Outcome is produced exactly once per submission. It carries enough
// structure for the caller to render a user-facing message without
// re-deriving context.
type Outcome struct {
	Kind OutcomeKind

	// Block and Events are set for Included/Finalized outcomes. Events are
	// the live callback's attribution; the correlator verifies them.
	Block          ledger.BlockRef
	Events         []ledger.Event
	ExtrinsicIndex *uint32

	// TxHash is the content hash of the last signed envelope submitted.
	TxHash string

	// RetryCount is the number of resubmissions performed (attempts - 1).
	RetryCount int

	// ErrorKind and Detail describe terminal failures. Detail carries the
	// decoded human-readable error text verbatim.
	ErrorKind ErrorKind
	Detail    string
}
