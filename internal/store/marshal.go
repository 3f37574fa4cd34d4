package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// solutionEncoding names the payload format of the solutions table.
const solutionEncoding = "zstd+json"

// marshalJSON converts v to JSON TEXT for storage.
// Map keys are sorted by encoding/json, so identical values always store
// identical text.
func marshalJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// marshalDecisions stores a nil decision map as "{}".
func marshalDecisions(d map[string]string) (string, error) {
	if d == nil {
		d = map[string]string{}
	}
	s, err := marshalJSON(d)
	if err != nil {
		return "", fmt.Errorf("marshal decisions: %w", err)
	}
	return s, nil
}

// marshalNames stores a nil name list as "[]".
func marshalNames(names []string) (string, error) {
	if names == nil {
		names = []string{}
	}
	s, err := marshalJSON(names)
	if err != nil {
		return "", fmt.Errorf("marshal names: %w", err)
	}
	return s, nil
}

func unmarshalDecisions(data string) (map[string]string, error) {
	out := map[string]string{}
	if data == "" || data == "{}" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal decisions: %w", err)
	}
	return out, nil
}

func unmarshalNames(data string) ([]string, error) {
	out := []string{}
	if data == "" || data == "[]" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal names: %w", err)
	}
	return out, nil
}

// formatBound renders a node bound as TEXT. SQLite REAL columns cannot
// hold NaN, and infinite bounds are the common case for failed subsolves.
func formatBound(b float64) string {
	return strconv.FormatFloat(b, 'g', -1, 64)
}

func parseBound(s string) (float64, error) {
	b, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse bound %q: %w", s, err)
	}
	return b, nil
}

// nullableObjective maps a non-finite objective to NULL.
func nullableObjective(obj float64) any {
	if math.IsNaN(obj) || math.IsInf(obj, 0) {
		return nil
	}
	return obj
}

// solutionPayload is the JSON document stored for an optimal run.
type solutionPayload struct {
	Objective float64            `json:"objective"`
	Selection map[string]string  `json:"selection"`
	Values    map[string]float64 `json:"values"`
}

// encodeSolution compresses a solution document with zstd.
func (s *Store) encodeSolution(p solutionPayload) ([]byte, error) {
	doc, err := marshalJSON(p)
	if err != nil {
		return nil, fmt.Errorf("marshal solution: %w", err)
	}
	return s.enc.EncodeAll([]byte(doc), nil), nil
}

func (s *Store) decodeSolution(encoding string, payload []byte) (solutionPayload, error) {
	var p solutionPayload
	if encoding != solutionEncoding {
		return p, fmt.Errorf("unsupported solution encoding %q", encoding)
	}
	doc, err := s.dec.DecodeAll(payload, nil)
	if err != nil {
		return p, fmt.Errorf("decompress solution: %w", err)
	}
	if err := json.Unmarshal(doc, &p); err != nil {
		return p, fmt.Errorf("unmarshal solution: %w", err)
	}
	return p, nil
}
