package model

// DeriveError records a derivation failure for an input line.
type DeriveError struct {
	Line   uint64 `json:"line"`
	TokenA string `json:"token_a"`
	TokenB string `json:"token_b"`
	Error  string `json:"error"`
}
