// Package signer verifies ECDSA order signatures against an expected offerer
// address. Both 65-byte (r ‖ s ‖ v) and 64-byte EIP-2098 compact signatures
// are accepted.
package signer

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrInvalidSignature is returned when a signature does not recover to
	// the expected signer.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrBadSignatureLength is returned for signatures that are neither 64
	// nor 65 bytes long.
	ErrBadSignatureLength = errors.New("signature must be 64 or 65 bytes")
)

// Verify checks that sig over digest recovers to signer.
func Verify(signer common.Address, digest common.Hash, sig []byte) error {
	normalized, err := normalize(sig)
	if err != nil {
		return err
	}

	pub, err := crypto.SigToPub(digest.Bytes(), normalized)
	if err != nil {
		return ErrInvalidSignature
	}
	if crypto.PubkeyToAddress(*pub) != signer {
		return ErrInvalidSignature
	}
	return nil
}

// normalize converts a signature into the 65-byte [r ‖ s ‖ recovery-id] form
// expected by crypto.SigToPub, unpacking EIP-2098 compact signatures and
// mapping legacy v values 27/28 down to 0/1.
func normalize(sig []byte) ([]byte, error) {
	switch len(sig) {
	case crypto.SignatureLength:
		out := make([]byte, crypto.SignatureLength)
		copy(out, sig)
		if out[64] >= 27 {
			out[64] -= 27
		}
		if out[64] > 1 {
			return nil, ErrInvalidSignature
		}
		return out, nil

	case crypto.SignatureLength - 1:
		// EIP-2098: the recovery id rides in the top bit of s.
		out := make([]byte, crypto.SignatureLength)
		copy(out, sig)
		out[64] = sig[32] >> 7
		out[32] &= 0x7f
		return out, nil

	default:
		return nil, ErrBadSignatureLength
	}
}
