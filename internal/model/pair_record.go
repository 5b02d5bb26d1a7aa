package model

// PairRecord represents a derived pair for storage.
type PairRecord struct {
	ChainID      uint64 `json:"chain_id"`
	Factory      string `json:"factory"`
	InitCodeHash string `json:"init_code_hash"`
	Token0       string `json:"token0"`
	Token1       string `json:"token1"`
	Pair         string `json:"pair"`
	Verified     bool   `json:"verified"`
	DerivedAt    string `json:"derived_at"`
}

// PairRequest is one line of a batch derivation input.
type PairRequest struct {
	TokenA string `json:"token_a"`
	TokenB string `json:"token_b"`
}
