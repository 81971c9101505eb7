package node

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gabapcia/ledgerwatch/internal/ledger"
	"github.com/gabapcia/ledgerwatch/internal/submitter"
	"github.com/gabapcia/ledgerwatch/internal/tracker"
)

const (
	// statusPollInterval is how often the adapter polls the node for the
	// submission's current status.
	statusPollInterval = 500 * time.Millisecond

	// statusChannelBufferSize bounds the status stream buffer. A submission
	// emits at most a handful of transitions.
	statusChannelBufferSize = 8
)

// extrinsicStatusResponse is the node's status snapshot for one submitted
// transaction.
type extrinsicStatusResponse struct {
	Status         string              `json:"status"`
	Block          ledger.BlockRef     `json:"block"`
	ExtrinsicIndex *uint32             `json:"extrinsicIndex"`
	Events         []ledger.Event      `json:"events"`
	ModuleError    *ledger.ModuleError `json:"moduleError"`
	Message        string              `json:"message"`
}

// SubmitAndWatch submits the signed envelope and streams status transitions
// by polling the node. The returned channel closes when a terminal state is
// reached or ctx is canceled; cancellation is the unsubscribe path.
func (c *client) SubmitAndWatch(ctx context.Context, tx submitter.SignedTransaction) (<-chan tracker.StatusEvent, error) {
	encoded := "0x" + hex.EncodeToString(tx.Encoded)
	if _, err := c.conn.Call(ctx, "author_submitExtrinsic", encoded); err != nil {
		return nil, err
	}

	eventsCh := make(chan tracker.StatusEvent, statusChannelBufferSize)
	go c.watchExtrinsicStatus(ctx, tx.Hash, eventsCh)

	return eventsCh, nil
}

// watchExtrinsicStatus polls the node until the transaction reaches a
// terminal state or ctx is canceled, emitting one StatusEvent per observed
// transition.
func (c *client) watchExtrinsicStatus(ctx context.Context, txHash string, eventsCh chan<- tracker.StatusEvent) {
	defer close(eventsCh)

	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	var lastStatus string
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		snapshot, err := c.extrinsicStatus(ctx, txHash)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Transient poll failures are absorbed; the per-attempt timeout
			// bounds how long absorption can last.
			continue
		}

		if snapshot.Status == lastStatus {
			continue
		}
		lastStatus = snapshot.Status

		event, terminal, ok := snapshot.toStatusEvent()
		if !ok {
			continue
		}

		select {
		case eventsCh <- event:
		case <-ctx.Done():
			return
		}

		if terminal {
			return
		}
	}
}

// extrinsicStatus fetches the node's current view of one transaction.
func (c *client) extrinsicStatus(ctx context.Context, txHash string) (extrinsicStatusResponse, error) {
	data, err := c.conn.Call(ctx, "author_extrinsicStatus", txHash)
	if err != nil {
		return extrinsicStatusResponse{}, err
	}

	var snapshot extrinsicStatusResponse
	return snapshot, json.Unmarshal(data, &snapshot)
}

// toStatusEvent maps a node status snapshot onto the tracker's event model.
// The second return reports whether the state is terminal; the third whether
// the snapshot produces an event at all.
func (r extrinsicStatusResponse) toStatusEvent() (tracker.StatusEvent, bool, bool) {
	switch r.Status {
	case "pending":
		return tracker.StatusEvent{}, false, false

	case "broadcast":
		return tracker.StatusEvent{Status: tracker.StatusBroadcast}, false, true

	case "inBlock":
		return tracker.StatusEvent{
			Status:         tracker.StatusInBlock,
			Block:          r.Block,
			ExtrinsicIndex: r.ExtrinsicIndex,
			Events:         r.Events,
		}, false, true

	case "finalized":
		return tracker.StatusEvent{
			Status:         tracker.StatusFinalized,
			Block:          r.Block,
			ExtrinsicIndex: r.ExtrinsicIndex,
			Events:         r.Events,
		}, true, true

	case "dispatchFailed":
		return tracker.StatusEvent{ModuleError: r.ModuleError}, true, true

	case "dropped":
		return tracker.StatusEvent{
			Err: fmt.Errorf("%w: %s", submitter.ErrPoolDropped, r.Message),
		}, true, true

	case "usurped":
		return tracker.StatusEvent{
			Err: fmt.Errorf("%w: %s", submitter.ErrNonceRejected, r.Message),
		}, true, true

	case "priorityTooLow":
		return tracker.StatusEvent{
			Err: fmt.Errorf("%w: %s", submitter.ErrPriorityTooLow, r.Message),
		}, true, true

	default:
		return tracker.StatusEvent{
			Err: fmt.Errorf("node rejected transaction (%s): %s", r.Status, r.Message),
		}, true, true
	}
}
