package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gabapcia/ledgerwatch/internal/ledgerdata"

	"github.com/redis/go-redis/v9"
)

const (
	// journalKeyPrefix namespaces every outcome journal key.
	journalKeyPrefix = "ledgerwatch"

	// journalTTL bounds how long terminal outcomes are kept. The journal is
	// an operational audit trail, not a system of record; the ledger itself
	// is the durable source.
	journalTTL = 30 * 24 * time.Hour
)

// journalKey builds the key for one transaction hash:
//
//	"ledgerwatch:outcome:<txHash>"
func journalKey(txHash string) string {
	return fmt.Sprintf("%s:outcome:%s", journalKeyPrefix, txHash)
}

// RecordOutcome stores a terminal submission outcome under its transaction
// hash, with a TTL.
func (c *client) RecordOutcome(ctx context.Context, entry ledgerdata.JournalEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return c.conn.Set(ctx, journalKey(entry.TxHash), payload, journalTTL).Err()
}

// LookupOutcome retrieves a journaled outcome, mapping a missing key to
// ledgerdata.ErrOutcomeNotFound.
func (c *client) LookupOutcome(ctx context.Context, txHash string) (ledgerdata.JournalEntry, error) {
	val, err := c.conn.Get(ctx, journalKey(txHash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			err = ledgerdata.ErrOutcomeNotFound
		}
		return ledgerdata.JournalEntry{}, err
	}

	var entry ledgerdata.JournalEntry
	return entry, json.Unmarshal([]byte(val), &entry)
}

// Compile-time assertion that client implements the OutcomeJournal interface.
var _ ledgerdata.OutcomeJournal = (*client)(nil)
