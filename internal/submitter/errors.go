package submitter

import (
	"errors"
	"strings"

	"github.com/gabapcia/ledgerwatch/internal/pkg/transport/jsonrpc"
	"github.com/gabapcia/ledgerwatch/internal/tracker"
)

// Pool-level rejection sentinels. The node adapter wraps the raw node
// responses in these so classification does not depend on the node's exact
// wording, which has drifted across versions.
var (
	// ErrPriorityTooLow means another transaction from the same signer is
	// already queued with a competing nonce at higher priority.
	ErrPriorityTooLow = errors.New("transaction priority is too low")

	// ErrNonceRejected means the node rejected the transaction's sequence
	// number as stale or out of order (including usurped slots).
	ErrNonceRejected = errors.New("transaction nonce rejected")

	// ErrPoolDropped means the pool evicted the transaction before it
	// reached a block.
	ErrPoolDropped = errors.New("transaction dropped from the pool")

	// ErrAmbiguousInclusion means an attempt timed out but the signer's
	// account state advanced in the meantime: the transaction may have been
	// included, so resubmitting is not safe.
	ErrAmbiguousInclusion = errors.New("timed out while account state advanced; transaction may have been included")
)

// Known node error codes for pool rejections, kept alongside message
// matching because older node versions report the message only.
const (
	codeInvalidTransaction = 1010
	codePriorityTooLow     = 1014
)

// classify maps a submission failure to its taxonomy kind and whether it may
// be retried. Only three classes are retryable: priority-too-low, nonce or
// ordering rejections, and local timeouts presumed to be pool eviction.
func classify(err error) (ErrorKind, bool) {
	switch {
	case errors.Is(err, ErrPriorityTooLow), errors.Is(err, ErrNonceRejected):
		return ErrorKindPoolRejection, true

	case errors.Is(err, ErrPoolDropped):
		return ErrorKindTimeout, true

	case errors.Is(err, ErrAmbiguousInclusion):
		return ErrorKindTimeout, false

	case errors.Is(err, tracker.ErrTimedOut):
		return ErrorKindTimeout, true

	case errors.Is(err, tracker.ErrDispatchFailed):
		return ErrorKindDispatchFailure, false
	}

	var remote *jsonrpc.RemoteError
	if errors.As(err, &remote) {
		msg := strings.ToLower(remote.Message)

		switch {
		case remote.Code == codePriorityTooLow, strings.Contains(msg, "priority is too low"):
			return ErrorKindPoolRejection, true

		case remote.Code == codeInvalidTransaction &&
			(strings.Contains(msg, "outdated") || strings.Contains(msg, "stale") || strings.Contains(msg, "nonce")):
			return ErrorKindPoolRejection, true
		}
	}

	// Everything else is a terminal dispatch-level rejection.
	return ErrorKindDispatchFailure, false
}
