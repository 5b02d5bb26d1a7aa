package permit

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"safeLiquidity/internal/model"
)

// PrimaryType is the EIP-712 primary type of a permit.
const PrimaryType = "Permit"

func permitTypes(domain model.Domain) apitypes.Types {
	domainType := []apitypes.Type{{Name: "name", Type: "string"}}
	if domain.Version != "" {
		domainType = append(domainType, apitypes.Type{Name: "version", Type: "string"})
	}
	domainType = append(domainType,
		apitypes.Type{Name: "chainId", Type: "uint256"},
		apitypes.Type{Name: "verifyingContract", Type: "address"},
	)

	return apitypes.Types{
		"EIP712Domain": domainType,
		PrimaryType: {
			{Name: "owner", Type: "address"},
			{Name: "spender", Type: "address"},
			{Name: "value", Type: "uint256"},
			{Name: "nonce", Type: "uint256"},
			{Name: "deadline", Type: "uint256"},
		},
	}
}

// Build assembles the EIP-712 typed data for a permit. Integers are
// carried as decimal strings so the JSON form is exact.
func Build(msg model.PermitMessage, domain model.Domain) (apitypes.TypedData, error) {
	if err := validateMessage(msg); err != nil {
		return apitypes.TypedData{}, err
	}
	if err := validateDomain(domain); err != nil {
		return apitypes.TypedData{}, err
	}

	return apitypes.TypedData{
		Types:       permitTypes(domain),
		PrimaryType: PrimaryType,
		Domain:      typedDomain(domain),
		Message: apitypes.TypedDataMessage{
			"owner":    msg.Owner.Hex(),
			"spender":  msg.Spender.Hex(),
			"value":    msg.Value.String(),
			"nonce":    msg.Nonce.String(),
			"deadline": msg.Deadline.String(),
		},
	}, nil
}

func typedDomain(domain model.Domain) apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              domain.Name,
		Version:           domain.Version,
		ChainId:           (*math.HexOrDecimal256)(new(big.Int).Set(domain.ChainID)),
		VerifyingContract: domain.VerifyingContract.Hex(),
	}
}

// Hash returns keccak256(0x19 0x01 || domainSeparator || hashStruct(message)).
func Hash(td apitypes.TypedData) ([]byte, error) {
	digest, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return nil, fmt.Errorf("hash typed data: %w", err)
	}
	return digest, nil
}

// DomainSeparator computes the separator the verifying contract should
// have stored.
func DomainSeparator(domain model.Domain) (common.Hash, error) {
	if err := validateDomain(domain); err != nil {
		return common.Hash{}, err
	}
	td := apitypes.TypedData{Types: permitTypes(domain), Domain: typedDomain(domain)}
	sep, err := td.HashStruct("EIP712Domain", td.Domain.Map())
	if err != nil {
		return common.Hash{}, fmt.Errorf("hash domain: %w", err)
	}
	return common.BytesToHash(sep), nil
}

// Encode returns the eth_signTypedData_v4 JSON payload. Map keys are
// sorted by encoding/json, so equal inputs give equal bytes.
func Encode(td apitypes.TypedData) ([]byte, error) {
	out, err := json.Marshal(td)
	if err != nil {
		return nil, fmt.Errorf("encode typed data: %w", err)
	}
	return out, nil
}

func validateMessage(msg model.PermitMessage) error {
	if msg.Owner == (common.Address{}) {
		return fmt.Errorf("%w: owner is zero", ErrInvalidMessage)
	}
	if msg.Spender == (common.Address{}) {
		return fmt.Errorf("%w: spender is zero", ErrInvalidMessage)
	}
	fields := []struct {
		name  string
		value *big.Int
	}{
		{"value", msg.Value},
		{"nonce", msg.Nonce},
		{"deadline", msg.Deadline},
	}
	for _, f := range fields {
		if f.value == nil {
			return fmt.Errorf("%w: %s is required", ErrInvalidMessage, f.name)
		}
		if f.value.Sign() < 0 || f.value.BitLen() > 256 {
			return fmt.Errorf("%w: %s out of uint256 range", ErrInvalidMessage, f.name)
		}
	}
	return nil
}

func validateDomain(domain model.Domain) error {
	if domain.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDomain)
	}
	if domain.ChainID == nil || domain.ChainID.Sign() <= 0 {
		return fmt.Errorf("%w: chain id must be positive", ErrInvalidDomain)
	}
	if domain.VerifyingContract == (common.Address{}) {
		return fmt.Errorf("%w: verifying contract is zero", ErrInvalidDomain)
	}
	return nil
}
