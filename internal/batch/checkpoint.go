package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Checkpoint records how far a batch got through one input file. Digest
// is the keccak256 of the input contents; an edited file gets a fresh run.
type Checkpoint struct {
	Input             string `json:"input"`
	Digest            string `json:"digest"`
	LastProcessedLine uint64 `json:"last_processed_line"`
	UpdatedAt         string `json:"updated_at,omitempty"`
}

// InputDigest hashes raw input contents for Checkpoint.Digest.
func InputDigest(data []byte) string {
	return crypto.Keccak256Hash(data).Hex()
}

// Covers reports whether the checkpoint belongs to input with digest.
func (cp Checkpoint) Covers(input, digest string) bool {
	return cp.Input == input && cp.Digest == digest
}

// CheckpointStore keeps a single checkpoint in a JSON file. A disabled
// store loads nothing and saves nothing.
type CheckpointStore struct {
	path    string
	enabled bool
}

func NewCheckpointStore(path string, enabled bool) *CheckpointStore {
	return &CheckpointStore{path: path, enabled: enabled && path != ""}
}

func (c *CheckpointStore) Load() (Checkpoint, bool, error) {
	if !c.enabled {
		return Checkpoint{}, false, nil
	}

	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, false, fmt.Errorf("parse checkpoint %s: %w", c.path, err)
	}
	if cp.Digest != "" && len(common.FromHex(cp.Digest)) != common.HashLength {
		return Checkpoint{}, false, fmt.Errorf("parse checkpoint %s: bad digest %q", c.path, cp.Digest)
	}
	return cp, true, nil
}

// Save writes cp through a temp file and rename so a crash never leaves a
// half-written checkpoint.
func (c *CheckpointStore) Save(cp Checkpoint) error {
	if !c.enabled {
		return nil
	}

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	cp.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}
