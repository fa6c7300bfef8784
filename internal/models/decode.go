package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrEmptyResult is returned when a document holds no result object.
var ErrEmptyResult = errors.New("document holds no analysis result")

// ParseResult decodes an AnalysisResult. Both the bare result and the
// scoring service envelope {"status": ..., "data": {...}} are accepted.
func ParseResult(data []byte) (*AnalysisResult, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decoding result: %w", err)
	}
	if envelope == nil {
		return nil, ErrEmptyResult
	}
	if inner, ok := envelope["data"]; ok {
		if _, hasStatus := envelope["status"]; hasStatus {
			data = inner
		}
	}

	var result *AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decoding result: %w", err)
	}
	if result == nil {
		return nil, ErrEmptyResult
	}
	return result, nil
}

// ReadResult reads and decodes a result from r.
func ReadResult(r io.Reader) (*AnalysisResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading result: %w", err)
	}
	return ParseResult(data)
}

// LoadResultFile reads a result document from disk.
func LoadResultFile(path string) (*AnalysisResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading result file: %w", err)
	}
	return ParseResult(data)
}
