// Package quota keeps the per-phone guest trial ledger: a single JSON file
// mapping phone numbers to usage counts, read wholesale and rewritten
// wholesale on every update. All read-modify-write cycles are serialized
// behind one mutex; multi-instance deployments would need file locking or a
// real key-value store on top of this.
package quota

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Trial ceilings. Pro analyses count against both.
const (
	MaxTotal = 3
	MaxPro   = 1
)

var (
	ErrTotalExhausted = errors.New("total trial quota exhausted")
	ErrProExhausted   = errors.New("pro trial quota exhausted")
)

// Record is the usage count for one phone number. Invariant:
// 0 <= Pro <= Total <= MaxTotal. Records are never deleted.
type Record struct {
	Total int `json:"total"`
	Pro   int `json:"pro"`
}

// Ledger is the on-disk guest usage store.
type Ledger struct {
	mu   sync.Mutex
	path string
}

// Open prepares a ledger at path, creating the parent directory if needed.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}
	l := &Ledger{path: path}
	// Fail fast on an unreadable or corrupt file rather than at first use.
	if _, err := l.load(); err != nil {
		return nil, err
	}
	return l, nil
}

// Peek returns the usage record for a phone number. Unknown phones get a
// zero record.
func (l *Ledger) Peek(phone string) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	all, err := l.load()
	if err != nil {
		return Record{}, err
	}
	return all[phone], nil
}

// Consume checks the ceilings and, when allowed, increments the counters for
// one analysis. The increment is never rolled back: a failed analysis after a
// successful Consume still costs a trial use.
func (l *Ledger) Consume(phone string, pro bool) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	all, err := l.load()
	if err != nil {
		return Record{}, err
	}
	rec := all[phone]
	if rec.Total >= MaxTotal {
		return rec, ErrTotalExhausted
	}
	if pro && rec.Pro >= MaxPro {
		return rec, ErrProExhausted
	}

	rec.Total++
	if pro {
		rec.Pro++
	}
	all[phone] = rec

	if err := l.store(all); err != nil {
		return rec, err
	}
	return rec, nil
}

// load reads the whole ledger file into memory. A missing file is an empty
// ledger.
func (l *Ledger) load() (map[string]Record, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]Record), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	all := make(map[string]Record)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &all); err != nil {
			return nil, fmt.Errorf("failed to parse ledger: %w", err)
		}
	}
	return all, nil
}

// store rewrites the whole ledger file. Written to a temp file first so a
// crash mid-write cannot corrupt the ledger.
func (l *Ledger) store(all map[string]Record) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("failed to replace ledger: %w", err)
	}
	return nil
}
