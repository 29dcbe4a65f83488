// Package audit implements the append-only audit log: every state-changing
// action is recorded as one immutable JSON line, partitioned by UTC date,
// with a parallel human-readable summary file. Writes are strictly additive;
// no update or delete operation exists.
package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	jsonlPrefix    = "audit_"
	readablePrefix = "audit_readable_"
	datePartition  = "2006-01-02"
)

// Logger appends audit events to date-partitioned files under a single
// directory. Historical partitions become naturally immutable once the
// date rolls over.
type Logger struct {
	dir string
	mu  sync.Mutex
}

// NewLogger creates the log directory if needed.
func NewLogger(dir string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("audit.NewLogger: mkdir %s: %w", dir, err)
	}
	return &Logger{dir: dir}, nil
}

// Log appends one event to both representations. It returns only after
// both writes have landed, so a caller that emits an event before
// responding cannot lose it to a crash afterwards.
func (l *Logger) Log(ctx context.Context, e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("audit.Logger.Log: marshal: %w", err)
	}

	date := e.Timestamp.UTC().Format(datePartition)

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := appendLine(filepath.Join(l.dir, jsonlPrefix+date+".jsonl"), line); err != nil {
		return fmt.Errorf("audit.Logger.Log: %w", err)
	}
	if err := appendLine(filepath.Join(l.dir, readablePrefix+date+".log"), []byte(e.LogLine())); err != nil {
		return fmt.Errorf("audit.Logger.Log: %w", err)
	}

	log.Info().
		Str("event_type", string(e.Type)).
		Str("resource_type", e.ResourceType).
		Bool("success", e.Success).
		Msg("audit: " + e.Action)

	return nil
}

func appendLine(path string, line []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	_, writeErr := f.Write(append(line, '\n'))
	closeErr := f.Close()
	if writeErr != nil {
		return fmt.Errorf("append %s: %w", path, writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close %s: %w", path, closeErr)
	}
	return nil
}

// Filter narrows a Query. All supplied fields must match (conjunctive).
type Filter struct {
	Type         EventType
	ActorID      *uuid.UUID
	ResourceType string
	ResourceID   *uuid.UUID
	Since        time.Time
	Until        time.Time
}

func (f Filter) matches(e Event) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.ActorID != nil && (e.ActorID == nil || *e.ActorID != *f.ActorID) {
		return false
	}
	if f.ResourceType != "" && e.ResourceType != f.ResourceType {
		return false
	}
	if f.ResourceID != nil && (e.ResourceID == nil || *e.ResourceID != *f.ResourceID) {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
		return false
	}
	return true
}

// Query replays the log through the filter, scanning partitions in
// ascending date order and stopping once limit matches are collected.
// Lines that fail to parse are skipped; a forensic log must survive
// partial corruption of unrelated lines.
func (l *Logger) Query(ctx context.Context, f Filter, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}

	pattern := filepath.Join(l.dir, jsonlPrefix+"*.jsonl")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("audit.Logger.Query: glob: %w", err)
	}
	sort.Strings(files)

	var events []Event
	for _, file := range files {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("audit.Logger.Query: %w", ctx.Err())
		}

		done, scanErr := l.scanFile(file, f, limit, &events)
		if scanErr != nil {
			return nil, scanErr
		}
		if done {
			break
		}
	}

	return events, nil
}

func (l *Logger) scanFile(path string, f Filter, limit int, events *[]Event) (bool, error) {
	fh, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("audit.Logger.Query: open %s: %w", path, err)
	}
	defer fh.Close()

	scanner := bufio.NewScanner(fh)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		var e Event
		if unmarshalErr := json.Unmarshal(scanner.Bytes(), &e); unmarshalErr != nil {
			log.Warn().Str("file", filepath.Base(path)).Err(unmarshalErr).Msg("audit: skipping unparseable log line")
			continue
		}

		if !f.matches(e) {
			continue
		}

		*events = append(*events, e)
		if len(*events) >= limit {
			return true, nil
		}
	}

	if scanErr := scanner.Err(); scanErr != nil {
		return false, fmt.Errorf("audit.Logger.Query: scan %s: %w", path, scanErr)
	}
	return false, nil
}
