// Package tracker turns the node's asynchronous status stream for one
// submitted transaction into a single terminal result. It enforces the
// Submitted → Broadcast → InBlock → Finalized ordering, absorbs module-level
// dispatch failures from any point, and resolves module error indices to
// human-readable descriptors through the node's live metadata.
package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/gabapcia/ledgerwatch/internal/ledger"
	"github.com/gabapcia/ledgerwatch/internal/pkg/logger"
)

var (
	// ErrTimedOut indicates the per-attempt deadline expired before the
	// stream reached a terminal state. The caller cannot know whether the
	// transaction landed.
	ErrTimedOut = errors.New("submission timed out before reaching a terminal state")

	// ErrStreamClosed indicates the node closed the status stream without
	// delivering a terminal state.
	ErrStreamClosed = errors.New("status stream closed before a terminal state")

	// ErrDispatchFailed is the root of every module-level execution failure.
	ErrDispatchFailed = errors.New("dispatch failed")

	// ErrOutOfOrderStatus indicates the node reported a status transition
	// that violates the per-submission ordering guarantee.
	ErrOutOfOrderStatus = errors.New("status transition out of order")
)

// Status is the lifecycle position of one submission.
type Status int

const (
	StatusSubmitted Status = iota
	StatusBroadcast
	StatusInBlock
	StatusFinalized
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusSubmitted:
		return "submitted"
	case StatusBroadcast:
		return "broadcast"
	case StatusInBlock:
		return "inBlock"
	case StatusFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// StatusEvent is one element of the node's status stream for a submission.
// Exactly one of the progress fields is meaningful per event: a Status
// transition, a pool-level rejection in Err, or a module-level execution
// failure in ModuleError.
type StatusEvent struct {
	Status Status

	// Block is set from InBlock onward.
	Block ledger.BlockRef

	// ExtrinsicIndex is the index the live callback attributes to this
	// submission. It may be absent or stale when the block also carries
	// unsigned system transactions; the correlator re-derives it.
	ExtrinsicIndex *uint32

	// Events are the events the live callback attributes to this
	// submission. Kept as the degraded fallback for correlation.
	Events []ledger.Event

	// ModuleError is set when the node reports a module-level execution
	// failure for the transaction.
	ModuleError *ledger.ModuleError

	// Err carries a pool-level rejection (dropped, usurped, invalid).
	Err error
}

// DispatchError is a module-level execution failure decoded against the
// node's live metadata. It matches ErrDispatchFailed via errors.Is.
type DispatchError struct {
	Ref        ledger.ModuleError
	Descriptor ledger.ErrorDescriptor
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	if e.Descriptor.Module == "" {
		return fmt.Sprintf("%s: module %d error %d (metadata unavailable)",
			ErrDispatchFailed, e.Ref.ModuleIndex, e.Ref.ErrorIndex)
	}
	return fmt.Sprintf("%s: %s", ErrDispatchFailed, e.Descriptor)
}

// Is reports whether target is ErrDispatchFailed.
func (e *DispatchError) Is(target error) bool {
	return target == ErrDispatchFailed
}

// ErrorMetadata resolves a module error reference to a human-readable
// descriptor using the node's live metadata. Error codes are not stable
// across node versions, so implementations must consult the connected node
// rather than a hard-coded table.
type ErrorMetadata interface {
	ErrorDescriptor(ctx context.Context, ref ledger.ModuleError) (ledger.ErrorDescriptor, error)
}

// Result is the terminal outcome of a tracked submission: the state it
// settled in (InBlock or Finalized), where, and what the live callback
// reported about it.
type Result struct {
	Status         Status
	Block          ledger.BlockRef
	ExtrinsicIndex *uint32
	Events         []ledger.Event
}

// Service tracks one status stream to a terminal result.
type Service interface {
	// Track consumes events until the stream reaches a terminal state, the
	// stream closes, or ctx expires. When finalityRequired is false, InBlock
	// is accepted as terminal; otherwise tracking continues to Finalized.
	Track(ctx context.Context, events <-chan StatusEvent, finalityRequired bool) (Result, error)
}

// service is the default Service implementation.
type service struct {
	metadata ErrorMetadata
}

var _ Service = (*service)(nil)

// New creates a tracker that decodes dispatch failures through the given
// metadata source.
func New(metadata ErrorMetadata) *service {
	return &service{metadata: metadata}
}

// Track implements the Service interface.
func (s *service) Track(ctx context.Context, events <-chan StatusEvent, finalityRequired bool) (Result, error) {
	var (
		current   = StatusSubmitted
		inBlock   Result
		seenBlock bool
	)

	for {
		select {
		case <-ctx.Done():
			return Result{}, fmt.Errorf("%w: %w", ErrTimedOut, ctx.Err())

		case ev, ok := <-events:
			if !ok {
				return Result{}, ErrStreamClosed
			}

			if ev.Err != nil {
				return Result{}, ev.Err
			}

			if ev.ModuleError != nil {
				return Result{}, s.decodeDispatchFailure(ctx, *ev.ModuleError)
			}

			if ev.Status < current {
				return Result{}, fmt.Errorf("%w: %s after %s", ErrOutOfOrderStatus, ev.Status, current)
			}
			current = ev.Status

			switch ev.Status {
			case StatusInBlock:
				inBlock = Result{
					Status:         StatusInBlock,
					Block:          ev.Block,
					ExtrinsicIndex: ev.ExtrinsicIndex,
					Events:         ev.Events,
				}
				seenBlock = true

				if !finalityRequired {
					return inBlock, nil
				}

			case StatusFinalized:
				result := Result{
					Status:         StatusFinalized,
					Block:          ev.Block,
					ExtrinsicIndex: ev.ExtrinsicIndex,
					Events:         ev.Events,
				}

				// Some node versions only attach the event list to the
				// InBlock report; carry it forward.
				if result.Events == nil && seenBlock {
					result.Events = inBlock.Events
					if result.ExtrinsicIndex == nil {
						result.ExtrinsicIndex = inBlock.ExtrinsicIndex
					}
				}

				return result, nil
			}
		}
	}
}

// decodeDispatchFailure resolves the module error through live metadata. A
// metadata failure degrades to the raw indices instead of masking the
// dispatch failure itself.
func (s *service) decodeDispatchFailure(ctx context.Context, ref ledger.ModuleError) error {
	descriptor, err := s.metadata.ErrorDescriptor(ctx, ref)
	if err != nil {
		logger.Warn(ctx, "failed to decode dispatch error against node metadata",
			"moduleIndex", ref.ModuleIndex,
			"errorIndex", ref.ErrorIndex,
			"error", err,
		)
		return &DispatchError{Ref: ref}
	}

	return &DispatchError{Ref: ref, Descriptor: descriptor}
}
