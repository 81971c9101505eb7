package submitter

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
)

// Signer signs encoded call payloads on behalf of one account. Wallet
// integrations supply their own implementation; Ed25519Signer is the default
// used by tooling and tests.
type Signer interface {
	// Address returns the account identity the node uses for nonce lookups.
	Address() string

	// Sign produces a signature over the given payload.
	Sign(payload []byte) ([]byte, error)
}

// Ed25519Signer signs with an in-memory ed25519 private key. The account
// address is the hex-rendered public key.
type Ed25519Signer struct {
	priv    ed25519.PrivateKey
	address string
}

var _ Signer = (*Ed25519Signer)(nil)

// NewEd25519Signer wraps an ed25519 private key as a Signer.
func NewEd25519Signer(priv ed25519.PrivateKey) (*Ed25519Signer, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid ed25519 private key size %d", len(priv))
	}

	pub := priv.Public().(ed25519.PublicKey)
	return &Ed25519Signer{
		priv:    priv,
		address: "0x" + hex.EncodeToString(pub),
	}, nil
}

// Address implements the Signer interface.
func (s *Ed25519Signer) Address() string {
	return s.address
}

// Sign implements the Signer interface.
func (s *Ed25519Signer) Sign(payload []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, payload), nil
}
