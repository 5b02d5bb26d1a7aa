package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PermitMessage holds the fields of an EIP-2612 style Permit.
type PermitMessage struct {
	Owner    common.Address
	Spender  common.Address
	Value    *big.Int
	Nonce    *big.Int
	Deadline *big.Int
}

// Domain holds the EIP-712 domain of the contract that verifies the permit.
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// Signature is a secp256k1 signature split for contract submission.
// V is always 27 or 28.
type Signature struct {
	V uint8
	R [32]byte
	S [32]byte
}

// Bytes returns the 65-byte r || s || v form.
func (s Signature) Bytes() []byte {
	out := make([]byte, 65)
	copy(out[:32], s.R[:])
	copy(out[32:64], s.S[:])
	out[64] = s.V
	return out
}

// PermitResult is the printable outcome of a permit signing.
type PermitResult struct {
	Digest    string `json:"digest"`
	Nonce     string `json:"nonce"`
	Deadline  string `json:"deadline"`
	Signature string `json:"signature,omitempty"`
	V         uint8  `json:"v,omitempty"`
	R         string `json:"r,omitempty"`
	S         string `json:"s,omitempty"`
}
