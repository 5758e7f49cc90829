// Package storage persists harvested links: a SQLite link table and a JSONL
// run journal.
package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/matsen/linkharvest/internal/record"
)

// MaxJSONLLineCapacity is the maximum buffer size for reading JSONL lines (1MB per line).
const MaxJSONLLineCapacity = 1024 * 1024

// Journal actions.
const (
	ActionCreated   = "created"
	ActionUpdated   = "updated"
	ActionDuplicate = "duplicate"
	ActionDryRun    = "dry-run"
	ActionFailed    = "failed"
)

// JournalEntry is one line of a run journal.
type JournalEntry struct {
	RunID  string                `json:"run_id"`
	Key    string                `json:"key"`
	Action string                `json:"action"`
	Ref    string                `json:"ref,omitempty"`
	Record record.ResolvedRecord `json:"record"`
	Entry  record.Entry          `json:"entry"`
	Error  string                `json:"error,omitempty"`
}

// ReadJournal reads all entries from a JSONL journal.
func ReadJournal(path string) ([]JournalEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // Empty file returns empty slice
		}
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	defer f.Close()

	var entries []JournalEntry
	scanner := bufio.NewScanner(f)

	buf := make([]byte, MaxJSONLLineCapacity)
	scanner.Buffer(buf, MaxJSONLLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var e JournalEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", lineNum, err)
		}
		entries = append(entries, e)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading journal: %w", err)
	}

	return entries, nil
}

// AppendJournal adds an entry to the end of a JSONL journal.
func AppendJournal(path string, e JournalEntry) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening journal for append: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding journal entry: %w", err)
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing journal entry: %w", err)
	}

	return nil
}

// FindByKey returns the index of the last entry with the given key.
func FindByKey(entries []JournalEntry, key string) (int, bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Key == key {
			return i, true
		}
	}
	return -1, false
}
