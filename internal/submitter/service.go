// Package submitter implements the transaction submission engine: it signs a
// call, fetches the signer's current account sequence number from the node
// (never a cached value), submits the encoded envelope, drives the status
// tracker to a terminal state, and retries with linear backoff on the three
// transient rejection classes. Every other failure is terminal and surfaces
// immediately.
package submitter

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/gabapcia/ledgerwatch/internal/ledger"
	"github.com/gabapcia/ledgerwatch/internal/pkg/logger"
	"github.com/gabapcia/ledgerwatch/internal/pkg/validator"
	"github.com/gabapcia/ledgerwatch/internal/tracker"

	retry "github.com/avast/retry-go/v4"
)

// Node is the submission-side interface to the ledger node. The returned
// status channel must close when ctx is canceled; canceling the per-attempt
// context is how the engine tears down the live subscription on every exit
// path.
type Node interface {
	// AccountNonce returns the signer's next account sequence number as
	// currently known by the node.
	AccountNonce(ctx context.Context, address string) (uint64, error)

	// SubmitAndWatch submits the signed transaction and streams its status
	// transitions until a terminal state or ctx cancellation.
	SubmitAndWatch(ctx context.Context, tx SignedTransaction) (<-chan tracker.StatusEvent, error)
}

// Service drives submissions to a terminal Outcome. Submissions for
// different signers are independent and may run concurrently; submissions
// for the same signer must be serialized by the caller, since the engine
// fetches but does not reserve the next sequence number.
type Service interface {
	// Submit signs and submits the call, retrying transient rejections up
	// to the configured attempt budget. The returned error is non-nil only
	// for caller-side failures (invalid call, canceled context, signing);
	// node-side failures are reported inside the Outcome.
	Submit(ctx context.Context, call ledger.Call, signer Signer, finalityRequired bool) (Outcome, error)
}

// service is the default Service implementation.
type service struct {
	node    Node
	tracker tracker.Service

	maxAttempts    uint
	attemptTimeout time.Duration
	backoffBase    time.Duration
	backoffStep    time.Duration
}

var _ Service = (*service)(nil)

// config holds the engine settings prior to construction.
type config struct {
	maxAttempts    uint
	attemptTimeout time.Duration
	backoffBase    time.Duration
	backoffStep    time.Duration
}

// Option customizes the submission engine.
type Option func(*config)

// WithMaxAttempts sets the attempt budget (initial attempt included).
// Default: 3.
func WithMaxAttempts(n uint) Option {
	return func(c *config) {
		c.maxAttempts = n
	}
}

// WithAttemptTimeout bounds the wall-clock duration of a single attempt,
// from submission to terminal status. Default: 30 seconds.
func WithAttemptTimeout(d time.Duration) Option {
	return func(c *config) {
		c.attemptTimeout = d
	}
}

// WithBackoff sets the linear backoff parameters: the delay before retry n
// (1-based) is base + (n-1)*step, giving a conflicting in-flight transaction
// time to clear. Defaults: 1s base, 1s step.
func WithBackoff(base, step time.Duration) Option {
	return func(c *config) {
		c.backoffBase = base
		c.backoffStep = step
	}
}

// New creates a submission engine bound to the given node and tracker.
func New(node Node, statusTracker tracker.Service, opts ...Option) *service {
	cfg := config{
		maxAttempts:    3,
		attemptTimeout: 30 * time.Second,
		backoffBase:    1 * time.Second,
		backoffStep:    1 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &service{
		node:           node,
		tracker:        statusTracker,
		maxAttempts:    cfg.maxAttempts,
		attemptTimeout: cfg.attemptTimeout,
		backoffBase:    cfg.backoffBase,
		backoffStep:    cfg.backoffStep,
	}
}

// Submit implements the Service interface.
func (s *service) Submit(ctx context.Context, call ledger.Call, signer Signer, finalityRequired bool) (Outcome, error) {
	if err := validator.Validate(call); err != nil {
		return Outcome{}, err
	}

	var (
		attempts atomic.Int64
		result   tracker.Result
		lastHash string
	)

	err := retry.Do(
		func() error {
			attempt := int(attempts.Add(1))

			res, txHash, err := s.attempt(ctx, call, signer, finalityRequired, attempt)
			if txHash != "" {
				lastHash = txHash
			}
			if err != nil {
				kind, retryable := classify(err)
				logger.Warn(ctx, "submission attempt failed",
					"tx.hash", txHash,
					"tx.attempt", attempt,
					"error.kind", kind,
					"error.retryable", retryable,
					"error", err,
				)
				return err
			}

			result = res
			return nil
		},
		retry.Attempts(s.maxAttempts),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			_, retryable := classify(err)
			return retryable
		}),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			// Linear backoff: base + attempt-index * step.
			return s.backoffBase + time.Duration(n)*s.backoffStep
		}),
	)

	retryCount := int(attempts.Load()) - 1

	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return Outcome{}, err
		}
		return s.failureOutcome(err, lastHash, retryCount), nil
	}

	outcome := Outcome{
		Kind:           OutcomeIncluded,
		Block:          result.Block,
		Events:         result.Events,
		ExtrinsicIndex: result.ExtrinsicIndex,
		TxHash:         lastHash,
		RetryCount:     retryCount,
	}
	if result.Status == tracker.StatusFinalized {
		outcome.Kind = OutcomeFinalized
	}

	logger.Info(ctx, "submission reached terminal state",
		"tx.hash", lastHash,
		"tx.retries", retryCount,
		"outcome", outcome.Kind,
		"block.hash", result.Block.Hash,
	)
	return outcome, nil
}

// failureOutcome maps a terminal submission error to its Outcome.
func (s *service) failureOutcome(err error, txHash string, retryCount int) Outcome {
	kind, _ := classify(err)

	outcome := Outcome{
		Kind:       OutcomeRejected,
		TxHash:     txHash,
		RetryCount: retryCount,
		ErrorKind:  kind,
		Detail:     err.Error(),
	}
	if kind == ErrorKindTimeout {
		outcome.Kind = OutcomeTimedOut
	}

	return outcome
}

// attempt performs one full submission cycle: nonce fetch, sign, submit,
// track. The per-attempt context bounds the whole cycle and its cancellation
// tears down the node subscription on every exit path.
func (s *service) attempt(ctx context.Context, call ledger.Call, signer Signer, finalityRequired bool, attempt int) (tracker.Result, string, error) {
	nonce, err := s.node.AccountNonce(ctx, signer.Address())
	if err != nil {
		return tracker.Result{}, "", err
	}

	tx, err := buildSignedTransaction(call, signer, nonce)
	if err != nil {
		return tracker.Result{}, "", err
	}

	h := newHandle(tx, attempt)
	logger.Debug(ctx, "submitting transaction",
		"tx.id", h.id,
		"tx.hash", tx.Hash,
		"tx.nonce", nonce,
		"tx.attempt", attempt,
	)

	attemptCtx, cancel := context.WithTimeout(ctx, s.attemptTimeout)
	defer cancel()

	stream, err := s.node.SubmitAndWatch(attemptCtx, tx)
	if err != nil {
		return tracker.Result{}, tx.Hash, err
	}

	result, err := s.tracker.Track(attemptCtx, stream, finalityRequired)
	if err != nil {
		if errors.Is(err, tracker.ErrTimedOut) {
			return tracker.Result{}, tx.Hash, s.disambiguateTimeout(ctx, signer, nonce, err)
		}
		return tracker.Result{}, tx.Hash, err
	}

	return result, tx.Hash, nil
}

// disambiguateTimeout re-checks account state after an ambiguous timeout. A
// timeout is presumed to be pool eviction and is retryable, but if the
// signer's sequence number advanced past the one this attempt used, the
// transaction may have landed and resubmitting is not safe.
func (s *service) disambiguateTimeout(ctx context.Context, signer Signer, usedNonce uint64, timeoutErr error) error {
	current, err := s.node.AccountNonce(ctx, signer.Address())
	if err != nil {
		// State could not be re-checked; keep the ambiguous-but-retryable
		// classification and let the next attempt's fresh nonce decide.
		return timeoutErr
	}

	if current > usedNonce {
		return errors.Join(ErrAmbiguousInclusion, timeoutErr)
	}

	return timeoutErr
}
