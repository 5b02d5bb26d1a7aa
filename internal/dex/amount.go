package dex

import (
	"math/big"
	"strings"
)

// FormatAmount renders a base-unit amount as a decimal string using the
// token's decimals, e.g. 1500000 with 6 decimals is "1.5".
func FormatAmount(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	sign := value.Sign()
	abs := new(big.Int).Abs(value)
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	text := new(big.Rat).SetFrac(abs, denom).FloatString(int(decimals))
	text = strings.TrimRight(strings.TrimRight(text, "0"), ".")
	if sign < 0 {
		return "-" + text
	}
	return text
}
