package permit

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"safeLiquidity/internal/model"
)

// Sign hashes the typed data and signs it with key.
func Sign(td apitypes.TypedData, key *ecdsa.PrivateKey) (model.Signature, error) {
	if key == nil {
		return model.Signature{}, fmt.Errorf("signing key is nil")
	}
	digest, err := Hash(td)
	if err != nil {
		return model.Signature{}, err
	}
	raw, err := crypto.Sign(digest, key)
	if err != nil {
		return model.Signature{}, fmt.Errorf("sign digest: %w", err)
	}
	return SplitSignature(raw)
}

// SplitSignature splits a 65-byte r || s || v signature. v may be a
// recovery id (0/1) or already in Ethereum form (27/28).
func SplitSignature(raw []byte) (model.Signature, error) {
	if len(raw) != crypto.SignatureLength {
		return model.Signature{}, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(raw))
	}
	v := raw[64]
	if v < 27 {
		v += 27
	}
	if v != 27 && v != 28 {
		return model.Signature{}, fmt.Errorf("%w: v=%d", ErrInvalidSignature, raw[64])
	}

	var sig model.Signature
	copy(sig.R[:], raw[:32])
	copy(sig.S[:], raw[32:64])
	sig.V = v
	return sig, nil
}

// Recover returns the address that produced sig over td.
func Recover(td apitypes.TypedData, sig model.Signature) (common.Address, error) {
	digest, err := Hash(td)
	if err != nil {
		return common.Address{}, err
	}
	raw := sig.Bytes()
	raw[64] -= 27
	pub, err := crypto.SigToPub(digest, raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
