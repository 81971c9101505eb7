package submitter

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/gabapcia/ledgerwatch/internal/ledger"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// encMode is the deterministic CBOR encoder for call envelopes. The node
// recomputes the content hash over the submitted bytes, so encoding must be
// byte-stable across clients.
var encMode cbor.EncMode

func init() {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("submitter: building CBOR encode mode: %v", err))
	}
	encMode = em
}

// signingPayload is the portion of the envelope covered by the signature.
type signingPayload struct {
	Module   string         `cbor:"module"`
	Function string         `cbor:"function"`
	Args     map[string]any `cbor:"args,omitempty"`
	Address  string         `cbor:"address"`
	Nonce    uint64         `cbor:"nonce"`
}

// envelope is the full signed wire form submitted to the node.
type envelope struct {
	Payload   signingPayload `cbor:"payload"`
	Signature []byte         `cbor:"signature"`
}

// SignedTransaction is the binary-encoded, signed call ready for submission,
// together with its content hash. The hash is the reference the node uses in
// status reports and the key under which outcomes are journaled.
type SignedTransaction struct {
	Encoded []byte
	Hash    string
	Address string
	Nonce   uint64
}

// handle is the engine's private record of one in-flight transaction. It is
// owned exclusively by the submission loop and discarded once a terminal
// outcome exists.
type handle struct {
	id          string
	tx          SignedTransaction
	submittedAt time.Time
	attempt     int
}

// buildSignedTransaction encodes, signs, and hashes one call for the given
// signer and account sequence number.
func buildSignedTransaction(call ledger.Call, signer Signer, nonce uint64) (SignedTransaction, error) {
	payload := signingPayload{
		Module:   call.Module,
		Function: call.Function,
		Args:     call.Args,
		Address:  signer.Address(),
		Nonce:    nonce,
	}

	payloadBytes, err := encMode.Marshal(payload)
	if err != nil {
		return SignedTransaction{}, fmt.Errorf("encoding call payload: %w", err)
	}

	signature, err := signer.Sign(payloadBytes)
	if err != nil {
		return SignedTransaction{}, fmt.Errorf("signing call payload: %w", err)
	}

	encoded, err := encMode.Marshal(envelope{
		Payload:   payload,
		Signature: signature,
	})
	if err != nil {
		return SignedTransaction{}, fmt.Errorf("encoding signed envelope: %w", err)
	}

	digest := blake2b.Sum256(encoded)
	return SignedTransaction{
		Encoded: encoded,
		Hash:    "0x" + hex.EncodeToString(digest[:]),
		Address: signer.Address(),
		Nonce:   nonce,
	}, nil
}

// newHandle mints the engine's private record for one signed transaction.
func newHandle(tx SignedTransaction, attempt int) handle {
	return handle{
		id:          uuid.NewString(),
		tx:          tx,
		submittedAt: time.Now().UTC(),
		attempt:     attempt,
	}
}
