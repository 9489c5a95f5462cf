package internal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Record is one line of a vectors file: {"id": 3, "vector": [0.1, 0.2, 0.3]}.
type Record struct {
	ID     uint32    `json:"id"`
	Vector []float32 `json:"vector"`
}

// ReadRecords decodes JSON Lines from r and calls fn for each record. Blank
// lines are skipped; errors carry the 1-based line number.
func ReadRecords(r io.Reader, fn func(Record) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}

		var rec struct {
			ID     *uint32   `json:"id"`
			Vector []float32 `json:"vector"`
		}
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if rec.ID == nil {
			return fmt.Errorf("line %d: missing id", line)
		}

		if err := fn(Record{ID: *rec.ID, Vector: rec.Vector}); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}

	if err := sc.Err(); err != nil {
		return fmt.Errorf("read records: %w", err)
	}
	return nil
}

// ParseVector parses "1,0.5,0.5". Whitespace around components is ignored.
func ParseVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty vector")
	}

	parts := strings.Split(s, ",")
	v := make([]float32, 0, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("component %d: %w", i, err)
		}
		v = append(v, float32(f))
	}
	return v, nil
}
