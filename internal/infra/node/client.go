// Package node implements the ledger node adapter over JSON-RPC: state
// queries, account sequence numbers, transaction submission with a polled
// status stream, block event logs, and error metadata resolution. It is the
// single owner of the node connection handle; every service receives it by
// injection.
package node

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gabapcia/ledgerwatch/internal/ledger"
	"github.com/gabapcia/ledgerwatch/internal/ledgerdata"
	"github.com/gabapcia/ledgerwatch/internal/pkg/transport/jsonrpc"
)

// client talks to one ledger node over JSON-RPC.
type client struct {
	conn jsonrpc.Client

	// Error metadata is node-version-specific: cached for the lifetime of
	// this connection handle, re-fetched when a new handle is built.
	metaMu   sync.Mutex
	metaErrs map[ledger.ModuleError]ledger.ErrorDescriptor
}

// NewClient builds a node adapter on the given JSON-RPC connection.
func NewClient(conn jsonrpc.Client) *client {
	return &client{
		conn: conn,
	}
}

// QueryRecord fetches one stored record by collection and key. Absence is a
// valid result, reported as ledgerdata.ErrNotFound.
func (c *client) QueryRecord(ctx context.Context, collection, key string) (json.RawMessage, error) {
	data, err := c.conn.Call(ctx, "state_getRecord", collection, key)
	if err != nil {
		return nil, err
	}

	if isNull(data) {
		return nil, ledgerdata.ErrNotFound
	}

	return data, nil
}

// ListRecords fetches every stored record under a collection.
func (c *client) ListRecords(ctx context.Context, collection string) ([]json.RawMessage, error) {
	data, err := c.conn.Call(ctx, "state_listRecords", collection)
	if err != nil {
		return nil, err
	}

	var records []json.RawMessage
	return records, json.Unmarshal(data, &records)
}

// AccountNonce returns the next account sequence number the node expects for
// the address. It is always fetched live, never cached, so concurrent actors
// sharing the node do not trip over a stale value.
func (c *client) AccountNonce(ctx context.Context, address string) (uint64, error) {
	data, err := c.conn.Call(ctx, "system_accountNextIndex", address)
	if err != nil {
		return 0, err
	}

	var nonce uint64
	return nonce, json.Unmarshal(data, &nonce)
}

// BlockEvents fetches the complete ordered event log of one block.
func (c *client) BlockEvents(ctx context.Context, blockHash string) ([]ledger.Event, error) {
	data, err := c.conn.Call(ctx, "chain_getBlockEvents", blockHash)
	if err != nil {
		return nil, err
	}

	var events []ledger.Event
	return events, json.Unmarshal(data, &events)
}

// metadataResponse mirrors the node's error metadata listing.
type metadataResponse struct {
	Modules []struct {
		Index  uint8  `json:"index"`
		Name   string `json:"name"`
		Errors []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"errors"`
	} `json:"modules"`
}

// ErrorDescriptor resolves a module error reference against the node's live
// metadata. The metadata is fetched lazily once per connection handle.
func (c *client) ErrorDescriptor(ctx context.Context, ref ledger.ModuleError) (ledger.ErrorDescriptor, error) {
	c.metaMu.Lock()
	defer c.metaMu.Unlock()

	if c.metaErrs == nil {
		if err := c.loadErrorMetadata(ctx); err != nil {
			return ledger.ErrorDescriptor{}, err
		}
	}

	descriptor, ok := c.metaErrs[ref]
	if !ok {
		return ledger.ErrorDescriptor{}, fmt.Errorf("no metadata entry for module %d error %d", ref.ModuleIndex, ref.ErrorIndex)
	}

	return descriptor, nil
}

// loadErrorMetadata fetches and indexes the node's error metadata. Callers
// must hold metaMu.
func (c *client) loadErrorMetadata(ctx context.Context) error {
	data, err := c.conn.Call(ctx, "state_getMetadata")
	if err != nil {
		return fmt.Errorf("fetching node metadata: %w", err)
	}

	var meta metadataResponse
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("decoding node metadata: %w", err)
	}

	index := make(map[ledger.ModuleError]ledger.ErrorDescriptor)
	for _, module := range meta.Modules {
		for i, moduleErr := range module.Errors {
			ref := ledger.ModuleError{ModuleIndex: module.Index, ErrorIndex: uint8(i)}
			index[ref] = ledger.ErrorDescriptor{
				Module:      module.Name,
				Name:        moduleErr.Name,
				Description: moduleErr.Description,
			}
		}
	}

	c.metaErrs = index
	return nil
}

// isNull reports whether a raw JSON payload is empty or the null literal.
func isNull(data json.RawMessage) bool {
	return len(data) == 0 || string(data) == "null"
}
