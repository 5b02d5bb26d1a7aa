package pair

import "errors"

var (
	ErrIdenticalAddresses = errors.New("identical token addresses")
	ErrZeroAddress        = errors.New("zero token address")
	ErrInvalidAddress     = errors.New("invalid token address")
	ErrNoWrappedNative    = errors.New("native token requested but no wrapped native configured")
	ErrPairNotDeployed    = errors.New("pair not deployed by factory")
	ErrPairMismatch       = errors.New("derived pair does not match factory")
)
