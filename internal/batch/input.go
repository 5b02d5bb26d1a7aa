package batch

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"safeLiquidity/internal/model"
)

// Line is one parsed input line. Number is 1-based; blank lines are
// skipped but still counted.
type Line struct {
	Number   uint64
	Request  model.PairRequest
	ParseErr error
}

// ReadRequests reads JSONL pair requests. Malformed lines are returned
// with ParseErr set so they end up in the error output.
func ReadRequests(r io.Reader) ([]Line, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []Line
	var number uint64
	for scanner.Scan() {
		number++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		line := Line{Number: number}
		if err := json.Unmarshal(raw, &line.Request); err != nil {
			line.ParseErr = fmt.Errorf("parse line: %w", err)
		} else if line.Request.TokenA == "" || line.Request.TokenB == "" {
			line.ParseErr = fmt.Errorf("token_a and token_b are required")
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan input: %w", err)
	}
	return lines, nil
}
