package config

import (
	"time"

	"github.com/spf13/pflag"
)

// DeriveConfig holds configuration for the derive command.
type DeriveConfig struct {
	Common
	TokenA string
	TokenB string
	Verify bool
	PGDSN  string
}

// LoadDerive merges config file, environment variables, and flags into DeriveConfig.
func LoadDerive(cfgFile string, flags *pflag.FlagSet) (DeriveConfig, error) {
	v, err := load(cfgFile, flags, nil)
	if err != nil {
		return DeriveConfig{}, err
	}
	common, err := loadCommon(v)
	if err != nil {
		return DeriveConfig{}, err
	}
	return DeriveConfig{
		Common: common,
		TokenA: v.GetString("token-a"),
		TokenB: v.GetString("token-b"),
		Verify: v.GetBool("verify"),
		PGDSN:  v.GetString("pg-dsn"),
	}, nil
}

// PermitConfig holds configuration for the permit command.
type PermitConfig struct {
	Common
	Pair     string
	Owner    string
	Spender  string
	Value    string
	Nonce    string
	Deadline string
	TTL      time.Duration
	KeyFile  string
	Name     string
}

// LoadPermit merges config file, environment variables, and flags into PermitConfig.
func LoadPermit(cfgFile string, flags *pflag.FlagSet) (PermitConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"ttl": 20 * time.Minute,
	})
	if err != nil {
		return PermitConfig{}, err
	}
	common, err := loadCommon(v)
	if err != nil {
		return PermitConfig{}, err
	}
	return PermitConfig{
		Common:   common,
		Pair:     v.GetString("pair"),
		Owner:    v.GetString("owner"),
		Spender:  v.GetString("spender"),
		Value:    v.GetString("value"),
		Nonce:    v.GetString("nonce"),
		Deadline: v.GetString("deadline"),
		TTL:      v.GetDuration("ttl"),
		KeyFile:  v.GetString("key-file"),
		Name:     v.GetString("name"),
	}, nil
}

// RemoveConfig holds configuration for the remove command.
type RemoveConfig struct {
	Common
	TokenA      string
	TokenB      string
	Liquidity   string
	To          string
	SlippageBps uint32
	TTL         time.Duration
	KeyFile     string
	ApproveMax  bool
}

// LoadRemove merges config file, environment variables, and flags into RemoveConfig.
func LoadRemove(cfgFile string, flags *pflag.FlagSet) (RemoveConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"slippage-bps": 50,
		"ttl":          20 * time.Minute,
	})
	if err != nil {
		return RemoveConfig{}, err
	}
	common, err := loadCommon(v)
	if err != nil {
		return RemoveConfig{}, err
	}
	return RemoveConfig{
		Common:      common,
		TokenA:      v.GetString("token-a"),
		TokenB:      v.GetString("token-b"),
		Liquidity:   v.GetString("liquidity"),
		To:          v.GetString("to"),
		SlippageBps: v.GetUint32("slippage-bps"),
		TTL:         v.GetDuration("ttl"),
		KeyFile:     v.GetString("key-file"),
		ApproveMax:  v.GetBool("approve-max"),
	}, nil
}

// BatchConfig holds configuration for the batch command.
type BatchConfig struct {
	Common
	In                string
	Out               string
	Errors            string
	PGDSN             string
	BatchSize         uint64
	Verify            bool
	Concurrency       int
	Checkpoint        string
	CheckpointEnabled bool
}

// LoadBatch merges config file, environment variables, and flags into BatchConfig.
func LoadBatch(cfgFile string, flags *pflag.FlagSet) (BatchConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"out":                "./data/pairs.jsonl",
		"errors":             "./data/derive_errors.jsonl",
		"batch-size":         uint64(500),
		"concurrency":        4,
		"checkpoint":         "./data/batch_checkpoint.json",
		"checkpoint-enabled": true,
	})
	if err != nil {
		return BatchConfig{}, err
	}
	common, err := loadCommon(v)
	if err != nil {
		return BatchConfig{}, err
	}
	return BatchConfig{
		Common:            common,
		In:                v.GetString("in"),
		Out:               v.GetString("out"),
		Errors:            v.GetString("errors"),
		PGDSN:             v.GetString("pg-dsn"),
		BatchSize:         v.GetUint64("batch-size"),
		Verify:            v.GetBool("verify"),
		Concurrency:       v.GetInt("concurrency"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
	}, nil
}
