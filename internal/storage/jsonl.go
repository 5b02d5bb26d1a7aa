package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"safeLiquidity/internal/model"
)

// JsonlStorage appends JSON lines to a file.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// PutPairBatch appends a batch of pair records.
func (s *JsonlStorage) PutPairBatch(_ context.Context, records []model.PairRecord) error {
	items := make([]interface{}, 0, len(records))
	for _, r := range records {
		items = append(items, r)
	}
	return s.append(items)
}

// PutErrors appends a batch of derivation failures.
func (s *JsonlStorage) PutErrors(errs []model.DeriveError) error {
	items := make([]interface{}, 0, len(errs))
	for _, e := range errs {
		items = append(items, e)
	}
	return s.append(items)
}

// ListPairs reads back every pair record in the file. A missing file
// holds no pairs.
func (s *JsonlStorage) ListPairs(_ context.Context) ([]model.PairRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	var records []model.PairRecord
	dec := json.NewDecoder(bufio.NewReader(file))
	for {
		var rec model.PairRecord
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode record %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}
}

func (s *JsonlStorage) append(items []interface{}) error {
	if len(items) == 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, item := range items {
		line, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}
