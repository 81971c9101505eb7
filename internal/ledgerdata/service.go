// Package ledgerdata is the caller-facing surface of the client: reads that
// fetch raw ledger state and normalize it into canonical records, and writes
// that drive a submission to a terminal outcome, correlate its events, and
// extract the identifiers it minted.
package ledgerdata

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gabapcia/ledgerwatch/internal/correlator"
	"github.com/gabapcia/ledgerwatch/internal/ledger"
	"github.com/gabapcia/ledgerwatch/internal/normalizer"
	"github.com/gabapcia/ledgerwatch/internal/pkg/validator"
	"github.com/gabapcia/ledgerwatch/internal/submitter"
)

var (
	// ErrNotFound reports the absence of a queried record. Absence is a
	// valid result, not a failure; callers branch on it with errors.Is.
	ErrNotFound = errors.New("record not found")

	// ErrUnknownCollection means no normalization schema is registered for
	// the requested collection.
	ErrUnknownCollection = errors.New("unknown collection")
)

// StateReader fetches raw, encoding-ambiguous ledger state from the node.
type StateReader interface {
	// QueryRecord returns one stored record, or ErrNotFound.
	QueryRecord(ctx context.Context, collection, key string) (json.RawMessage, error)

	// ListRecords returns every stored record under a collection.
	ListRecords(ctx context.Context, collection string) ([]json.RawMessage, error)
}

// Service exposes the client's public operations.
type Service interface {
	// Query fetches and normalizes one record. Absence surfaces as
	// ErrNotFound.
	Query(ctx context.Context, collection, key string) (normalizer.Record, error)

	// QueryAll fetches and normalizes every record in a collection.
	QueryAll(ctx context.Context, collection string) ([]normalizer.Record, error)

	// SubmitAndAwait submits a call and waits for its terminal outcome,
	// returning the identifiers it minted and whether the attributed events
	// were verified against the finalized block's log.
	SubmitAndAwait(ctx context.Context, call ledger.Call, signer submitter.Signer, finalityRequired bool) (SubmitResult, error)

	// LookupOutcome retrieves a previously journaled outcome by transaction
	// hash, for operational tooling.
	LookupOutcome(ctx context.Context, txHash string) (JournalEntry, error)
}

// service is the default Service implementation.
type service struct {
	reader     StateReader
	engine     submitter.Service
	correlator correlator.Service
	journal    OutcomeJournal
	schemas    map[string]normalizer.Schema
}

var _ Service = (*service)(nil)

// config holds optional collaborators prior to construction.
type config struct {
	journal OutcomeJournal
}

// Option customizes the service.
type Option func(*config)

// WithOutcomeJournal enables best-effort journaling of terminal outcomes.
func WithOutcomeJournal(j OutcomeJournal) Option {
	return func(c *config) {
		c.journal = j
	}
}

// New creates the ledger data client. schemas maps collection names to their
// normalization tables; querying an unregistered collection fails with
// ErrUnknownCollection.
func New(reader StateReader, engine submitter.Service, corr correlator.Service, schemas map[string]normalizer.Schema, opts ...Option) *service {
	cfg := config{
		journal: nopJournal{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &service{
		reader:     reader,
		engine:     engine,
		correlator: corr,
		journal:    cfg.journal,
		schemas:    schemas,
	}
}

// queryInput carries the validated parameters of one read.
type queryInput struct {
	Collection string `validate:"required"`
	Key        string `validate:"required"`
}

// Query implements the Service interface.
func (s *service) Query(ctx context.Context, collection, key string) (normalizer.Record, error) {
	if err := validator.Validate(queryInput{Collection: collection, Key: key}); err != nil {
		return normalizer.Record{}, err
	}

	schema, ok := s.schemas[collection]
	if !ok {
		return normalizer.Record{}, ErrUnknownCollection
	}

	raw, err := s.reader.QueryRecord(ctx, collection, key)
	if err != nil {
		return normalizer.Record{}, err
	}

	return normalizer.Normalize(raw, schema)
}

// QueryAll implements the Service interface.
func (s *service) QueryAll(ctx context.Context, collection string) ([]normalizer.Record, error) {
	schema, ok := s.schemas[collection]
	if !ok {
		return nil, ErrUnknownCollection
	}

	raws, err := s.reader.ListRecords(ctx, collection)
	if err != nil {
		return nil, err
	}

	records := make([]normalizer.Record, 0, len(raws))
	for _, raw := range raws {
		record, err := normalizer.Normalize(raw, schema)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, nil
}
