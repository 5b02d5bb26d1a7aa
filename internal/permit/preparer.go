package permit

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"go.uber.org/zap"

	"safeLiquidity/internal/dex"
	"safeLiquidity/internal/model"
)

// Request describes a permit the owner wants to grant on an LP token.
type Request struct {
	Pair     common.Address
	Spender  common.Address
	Value    *big.Int
	Domain   model.Domain
	Deadline *big.Int // overrides now+ttl when set
}

// Signed is a permit ready for submission.
type Signed struct {
	Message   model.PermitMessage
	TypedData apitypes.TypedData
	Digest    common.Hash
	Signature model.Signature
}

// Result converts the signed permit into its printable form.
func (s Signed) Result() model.PermitResult {
	return model.PermitResult{
		Digest:    s.Digest.Hex(),
		Nonce:     s.Message.Nonce.String(),
		Deadline:  s.Message.Deadline.String(),
		Signature: common.Bytes2Hex(s.Signature.Bytes()),
		V:         s.Signature.V,
		R:         common.Bytes2Hex(s.Signature.R[:]),
		S:         common.Bytes2Hex(s.Signature.S[:]),
	}
}

// Preparer reads the permit nonce, builds and signs the permit, then reads
// the nonce again. The second read catches a permit that another
// transaction consumed while this one was being signed.
type Preparer struct {
	caller dex.Caller
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewPreparer builds a Preparer. ttl is added to the current time to form
// the permit deadline.
func NewPreparer(caller dex.Caller, ttl time.Duration, logger *zap.Logger) *Preparer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Preparer{
		caller: caller,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

// Prepare signs a permit for req with key. The owner is the key's address.
func (p *Preparer) Prepare(ctx context.Context, req Request, key *ecdsa.PrivateKey) (Signed, error) {
	if key == nil {
		return Signed{}, fmt.Errorf("signing key is nil")
	}
	owner := crypto.PubkeyToAddress(key.PublicKey)

	nonce, err := dex.PermitNonce(ctx, p.caller, req.Pair, owner)
	if err != nil {
		return Signed{}, fmt.Errorf("read permit nonce: %w", err)
	}

	deadline := req.Deadline
	if deadline == nil {
		deadline = big.NewInt(p.now().Add(p.ttl).Unix())
	}
	msg := model.PermitMessage{
		Owner:    owner,
		Spender:  req.Spender,
		Value:    req.Value,
		Nonce:    nonce,
		Deadline: deadline,
	}

	td, err := Build(msg, req.Domain)
	if err != nil {
		return Signed{}, err
	}
	digest, err := Hash(td)
	if err != nil {
		return Signed{}, err
	}
	sig, err := Sign(td, key)
	if err != nil {
		return Signed{}, err
	}

	current, err := dex.PermitNonce(ctx, p.caller, req.Pair, owner)
	if err != nil {
		return Signed{}, fmt.Errorf("re-read permit nonce: %w", err)
	}
	if current.Cmp(nonce) != 0 {
		return Signed{}, fmt.Errorf("%w: signed %s, chain has %s", ErrStaleNonce, nonce, current)
	}

	p.logger.Debug("permit signed",
		zap.String("pair", req.Pair.Hex()),
		zap.String("owner", owner.Hex()),
		zap.String("spender", req.Spender.Hex()),
		zap.String("nonce", nonce.String()),
		zap.String("deadline", msg.Deadline.String()),
	)

	return Signed{
		Message:   msg,
		TypedData: td,
		Digest:    common.BytesToHash(digest),
		Signature: sig,
	}, nil
}

// ResolveDomain reads the LP token name and checks that the resulting
// domain hashes to the pair's DOMAIN_SEPARATOR.
func ResolveDomain(ctx context.Context, caller dex.Caller, pair common.Address, chainID *big.Int, version string) (model.Domain, error) {
	name, err := dex.PairName(ctx, caller, pair)
	if err != nil {
		return model.Domain{}, fmt.Errorf("read pair name: %w", err)
	}
	domain := model.Domain{
		Name:              name,
		Version:           version,
		ChainID:           chainID,
		VerifyingContract: pair,
	}

	want, err := dex.DomainSeparator(ctx, caller, pair)
	if err != nil {
		return model.Domain{}, fmt.Errorf("read domain separator: %w", err)
	}
	got, err := DomainSeparator(domain)
	if err != nil {
		return model.Domain{}, err
	}
	if got != want {
		return model.Domain{}, fmt.Errorf("%w: computed %s, contract has %s", ErrDomainMismatch, got.Hex(), want.Hex())
	}
	return domain, nil
}
