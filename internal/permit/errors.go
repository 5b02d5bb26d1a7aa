package permit

import "errors"

var (
	ErrInvalidMessage   = errors.New("invalid permit message")
	ErrInvalidDomain    = errors.New("invalid eip-712 domain")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrStaleNonce       = errors.New("permit nonce changed before submission")
	ErrDomainMismatch   = errors.New("domain separator does not match contract")
)
