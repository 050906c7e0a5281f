// Package wallet loads the process keypair once at startup. The keypair
// is read-only after construction.
package wallet

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Keypair is an ed25519 signing key with its base58 public key.
type Keypair struct {
	priv   ed25519.PrivateKey
	pubkey string
}

// FromBase58 loads a keypair from a base58 secret. Both the 64-byte
// full secret and the 32-byte seed form are accepted.
func FromBase58(secret string) (*Keypair, error) {
	raw, err := base58.Decode(secret)
	if err != nil {
		return nil, fmt.Errorf("decode secret: %w", err)
	}

	var priv ed25519.PrivateKey
	switch len(raw) {
	case ed25519.PrivateKeySize:
		priv = ed25519.PrivateKey(raw)
		derived := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
		if !bytes.Equal(priv.Public().(ed25519.PublicKey), derived.Public().(ed25519.PublicKey)) {
			return nil, fmt.Errorf("secret public half does not match seed")
		}
	case ed25519.SeedSize:
		priv = ed25519.NewKeyFromSeed(raw)
	default:
		return nil, fmt.Errorf("secret is %d bytes, want %d or %d", len(raw), ed25519.SeedSize, ed25519.PrivateKeySize)
	}

	pub := priv.Public().(ed25519.PublicKey)
	if err := validateOnCurve(pub); err != nil {
		return nil, err
	}

	return &Keypair{
		priv:   priv,
		pubkey: base58.Encode(pub),
	}, nil
}

// validateOnCurve rejects public keys that are not valid curve points.
func validateOnCurve(pub ed25519.PublicKey) error {
	if _, err := new(edwards25519.Point).SetBytes(pub); err != nil {
		return fmt.Errorf("public key not on curve: %w", err)
	}
	return nil
}

// Pubkey returns the base58 public key.
func (k *Keypair) Pubkey() string {
	return k.pubkey
}

// Sign signs a serialized message.
func (k *Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(k.priv, message)
}

// Verify checks a signature over a message against this keypair.
func (k *Keypair) Verify(message, sig []byte) bool {
	return ed25519.Verify(k.priv.Public().(ed25519.PublicKey), message, sig)
}
