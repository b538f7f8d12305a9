package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"bloomCache/internal/model"
)

// Record types written to the JSONL file.
const (
	RecordOutcome  = "outcome"
	RecordSnapshot = "snapshot"
	RecordPair     = "pair"
)

type outcomeLine struct {
	Type string `json:"type"`
	model.BlockOutcome
}

type snapshotLine struct {
	Type string `json:"type"`
	model.Effectiveness
}

type pairLine struct {
	Type string `json:"type"`
	model.PairRecord
}

// JsonlStorage appends records to a JSONL file, one JSON object per line,
// each tagged with its record type.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// PutOutcome appends a block outcome.
func (s *JsonlStorage) PutOutcome(_ context.Context, outcome model.BlockOutcome) error {
	return s.appendLines([]interface{}{outcomeLine{Type: RecordOutcome, BlockOutcome: outcome}})
}

// PutSnapshot appends an effectiveness snapshot.
func (s *JsonlStorage) PutSnapshot(_ context.Context, snapshot model.Effectiveness) error {
	return s.appendLines([]interface{}{snapshotLine{Type: RecordSnapshot, Effectiveness: snapshot}})
}

// PutPairs appends one line per cached pair.
func (s *JsonlStorage) PutPairs(_ context.Context, pairs []model.PairRecord) error {
	lines := make([]interface{}, 0, len(pairs))
	for _, p := range pairs {
		lines = append(lines, pairLine{Type: RecordPair, PairRecord: p})
	}
	return s.appendLines(lines)
}

func (s *JsonlStorage) appendLines(records []interface{}) error {
	if len(records) == 0 {
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
	for _, record := range records {
		line, err := json.Marshal(record)
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
