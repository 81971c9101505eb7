package ledgerdata

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/gabapcia/ledgerwatch/internal/correlator"
	"github.com/gabapcia/ledgerwatch/internal/identifier"
	"github.com/gabapcia/ledgerwatch/internal/ledger"
	"github.com/gabapcia/ledgerwatch/internal/normalizer"
	"github.com/gabapcia/ledgerwatch/internal/submitter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	record json.RawMessage
	list   []json.RawMessage
	err    error
}

func (f fakeReader) QueryRecord(context.Context, string, string) (json.RawMessage, error) {
	return f.record, f.err
}

func (f fakeReader) ListRecords(context.Context, string) ([]json.RawMessage, error) {
	return f.list, f.err
}

type fakeEngine struct {
	outcome submitter.Outcome
	err     error
}

func (f fakeEngine) Submit(context.Context, ledger.Call, submitter.Signer, bool) (submitter.Outcome, error) {
	return f.outcome, f.err
}

type fakeCorrelator struct {
	result   correlator.Result
	err      error
	gotQuery *correlator.Query
}

func (f *fakeCorrelator) Correlate(_ context.Context, q correlator.Query) (correlator.Result, error) {
	f.gotQuery = &q
	return f.result, f.err
}

type memJournal struct {
	entries map[string]JournalEntry
	err     error
}

func newMemJournal() *memJournal {
	return &memJournal{entries: make(map[string]JournalEntry)}
}

func (m *memJournal) RecordOutcome(_ context.Context, entry JournalEntry) error {
	if m.err != nil {
		return m.err
	}
	m.entries[entry.TxHash] = entry
	return nil
}

func (m *memJournal) LookupOutcome(_ context.Context, txHash string) (JournalEntry, error) {
	entry, ok := m.entries[txHash]
	if !ok {
		return JournalEntry{}, ErrOutcomeNotFound
	}
	return entry, nil
}

type stubSigner struct{}

func (stubSigner) Address() string { return "0xsigner" }

func (stubSigner) Sign(payload []byte) ([]byte, error) { return payload, nil }

func testSchemas() map[string]normalizer.Schema {
	return map[string]normalizer.Schema{
		"policies": {
			Name: "policy",
			Fields: []normalizer.FieldSpec{
				{Name: "policyId", Position: 0, Kind: normalizer.KindString, Required: true},
				{Name: "premiumPerShare", Position: 1, Kind: normalizer.KindDecimal, Scale: 6, Required: true},
			},
		},
	}
}

func TestQuery(t *testing.T) {
	t.Run("normalizes the fetched record", func(t *testing.T) {
		reader := fakeReader{record: json.RawMessage(`{"policy_id": "pol-1", "premium_per_share": 5000000}`)}
		svc := New(reader, fakeEngine{}, &fakeCorrelator{}, testSchemas())

		record, err := svc.Query(t.Context(), "policies", "pol-1")

		require.NoError(t, err)
		premium, ok := record.Field("premiumPerShare").Decimal()
		require.True(t, ok)
		assert.Equal(t, 5.0, premium)
	})

	t.Run("absence surfaces as ErrNotFound", func(t *testing.T) {
		svc := New(fakeReader{err: ErrNotFound}, fakeEngine{}, &fakeCorrelator{}, testSchemas())

		_, err := svc.Query(t.Context(), "policies", "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unregistered collection is rejected", func(t *testing.T) {
		svc := New(fakeReader{}, fakeEngine{}, &fakeCorrelator{}, testSchemas())

		_, err := svc.Query(t.Context(), "unknown", "pol-1")
		assert.ErrorIs(t, err, ErrUnknownCollection)
	})

	t.Run("empty key fails validation", func(t *testing.T) {
		svc := New(fakeReader{}, fakeEngine{}, &fakeCorrelator{}, testSchemas())

		_, err := svc.Query(t.Context(), "policies", "")
		assert.Error(t, err)
	})
}

func TestQueryAll(t *testing.T) {
	t.Run("normalizes every record in the collection", func(t *testing.T) {
		reader := fakeReader{list: []json.RawMessage{
			json.RawMessage(`{"policyId": "pol-1", "premiumPerShare": 1000000}`),
			json.RawMessage(`{"policy_id": "pol-2", "premium_per_share": 2000000}`),
		}}
		svc := New(reader, fakeEngine{}, &fakeCorrelator{}, testSchemas())

		records, err := svc.QueryAll(t.Context(), "policies")

		require.NoError(t, err)
		require.Len(t, records, 2)

		id, ok := records[1].Field("policyId").String()
		require.True(t, ok)
		assert.Equal(t, "pol-2", id)
	})

	t.Run("unregistered collection is rejected", func(t *testing.T) {
		svc := New(fakeReader{}, fakeEngine{}, &fakeCorrelator{}, testSchemas())

		_, err := svc.QueryAll(t.Context(), "unknown")
		assert.ErrorIs(t, err, ErrUnknownCollection)
	})
}

func TestSubmitAndAwait(t *testing.T) {
	block := ledger.BlockRef{Hash: "0xblock", Height: 99}
	call := ledger.Call{Module: "policies", Function: "create_policy"}

	mintedID := identifier.Identifier128("0x0123456789abcdef0123456789abcdef")
	mintEvent := ledger.Event{
		Module: "policies",
		Name:   "PolicyCreated",
		Payload: map[string]json.RawMessage{
			"id": json.RawMessage(`"0x0123456789abcdef0123456789abcdef"`),
		},
	}

	t.Run("successful submission verifies events and extracts identifiers", func(t *testing.T) {
		engine := fakeEngine{outcome: submitter.Outcome{
			Kind:   submitter.OutcomeFinalized,
			Block:  block,
			TxHash: "0xtx",
			Events: []ledger.Event{{Module: "policies", Name: "PolicyCreated"}},
		}}
		index := uint32(1)
		corr := &fakeCorrelator{result: correlator.Result{
			Events:         []ledger.Event{mintEvent},
			Attribution:    correlator.AttributionCorrelated,
			ExtrinsicIndex: &index,
		}}
		journal := newMemJournal()
		svc := New(fakeReader{}, engine, corr, testSchemas(), WithOutcomeJournal(journal))

		result, err := svc.SubmitAndAwait(t.Context(), call, stubSigner{}, true)

		require.NoError(t, err)
		assert.True(t, result.EventsVerified)
		assert.Equal(t, []identifier.Identifier128{mintedID}, result.Identifiers)
		assert.Equal(t, []ledger.Event{mintEvent}, result.Outcome.Events)
		require.NotNil(t, result.Outcome.ExtrinsicIndex)
		assert.Equal(t, uint32(1), *result.Outcome.ExtrinsicIndex)

		// The correlator was queried against the outcome's block with the
		// call's module as the candidate.
		require.NotNil(t, corr.gotQuery)
		assert.Equal(t, block, corr.gotQuery.Block)
		assert.Equal(t, []string{"policies"}, corr.gotQuery.CandidateModules)

		// The terminal outcome was journaled under the transaction hash.
		entry, err := svc.LookupOutcome(t.Context(), "0xtx")
		require.NoError(t, err)
		assert.Equal(t, "finalized", entry.Outcome)
		assert.True(t, entry.EventsVerified)
		assert.Equal(t, []identifier.Identifier128{mintedID}, entry.Identifiers)
	})

	t.Run("fallback attribution is flagged unverified", func(t *testing.T) {
		live := []ledger.Event{mintEvent}
		engine := fakeEngine{outcome: submitter.Outcome{
			Kind:   submitter.OutcomeIncluded,
			Block:  block,
			TxHash: "0xtx",
			Events: live,
		}}
		corr := &fakeCorrelator{result: correlator.Result{
			Events:      live,
			Attribution: correlator.AttributionFallback,
		}}
		svc := New(fakeReader{}, engine, corr, testSchemas())

		result, err := svc.SubmitAndAwait(t.Context(), call, stubSigner{}, false)

		require.NoError(t, err)
		assert.False(t, result.EventsVerified)
		assert.Equal(t, live, result.Outcome.Events)
		assert.Equal(t, []identifier.Identifier128{mintedID}, result.Identifiers)
	})

	t.Run("failed submission skips correlation and carries no identifiers", func(t *testing.T) {
		engine := fakeEngine{outcome: submitter.Outcome{
			Kind:      submitter.OutcomeRejected,
			TxHash:    "0xtx",
			ErrorKind: submitter.ErrorKindDispatchFailure,
			Detail:    "policies.InsufficientShares",
		}}
		corr := &fakeCorrelator{}
		journal := newMemJournal()
		svc := New(fakeReader{}, engine, corr, testSchemas(), WithOutcomeJournal(journal))

		result, err := svc.SubmitAndAwait(t.Context(), call, stubSigner{}, true)

		require.NoError(t, err)
		assert.Nil(t, corr.gotQuery)
		assert.Empty(t, result.Identifiers)
		assert.False(t, result.EventsVerified)

		entry, err := svc.LookupOutcome(t.Context(), "0xtx")
		require.NoError(t, err)
		assert.Equal(t, "rejected", entry.Outcome)
		assert.Equal(t, "dispatchFailure", entry.ErrorKind)
	})

	t.Run("engine errors pass through", func(t *testing.T) {
		svc := New(fakeReader{}, fakeEngine{err: assert.AnError}, &fakeCorrelator{}, testSchemas())

		_, err := svc.SubmitAndAwait(t.Context(), call, stubSigner{}, true)
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("journal failures never fail the submission", func(t *testing.T) {
		engine := fakeEngine{outcome: submitter.Outcome{
			Kind:   submitter.OutcomeFinalized,
			Block:  block,
			TxHash: "0xtx",
		}}
		corr := &fakeCorrelator{result: correlator.Result{Attribution: correlator.AttributionFallback}}
		journal := newMemJournal()
		journal.err = assert.AnError
		svc := New(fakeReader{}, engine, corr, testSchemas(), WithOutcomeJournal(journal))

		result, err := svc.SubmitAndAwait(t.Context(), call, stubSigner{}, true)

		require.NoError(t, err)
		assert.Equal(t, submitter.OutcomeFinalized, result.Outcome.Kind)
	})
}

func TestLookupOutcome(t *testing.T) {
	t.Run("unconfigured journal reports absence", func(t *testing.T) {
		svc := New(fakeReader{}, fakeEngine{}, &fakeCorrelator{}, testSchemas())

		_, err := svc.LookupOutcome(t.Context(), "0xmissing")
		assert.ErrorIs(t, err, ErrOutcomeNotFound)
	})
}

func TestExtractIdentifiers(t *testing.T) {
	t.Run("deduplicates and skips malformed candidates", func(t *testing.T) {
		events := []ledger.Event{
			{Payload: map[string]json.RawMessage{"id": json.RawMessage(`"0x0123456789abcdef0123456789abcdef"`)}},
			{Payload: map[string]json.RawMessage{"record_id": json.RawMessage(`"0x0123456789ABCDEF0123456789ABCDEF"`)}},
			{Payload: map[string]json.RawMessage{"id": json.RawMessage(`"garbage"`)}},
			{Payload: map[string]json.RawMessage{"unrelated": json.RawMessage(`"0xffffffffffffffffffffffffffffffff"`)}},
		}

		ids := extractIdentifiers(events)

		assert.Equal(t, []identifier.Identifier128{"0x0123456789abcdef0123456789abcdef"}, ids)
	})
}
