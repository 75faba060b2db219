// Package journal records scan lifecycle events as append-only JSON
// lines. The journal is the audit trail for what a scan did and when;
// replaying it reconstructs the timeline of a crashed or disputed run.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType tags one scan lifecycle event
type EventType string

const (
	EventScanStarted     EventType = "scan_started"
	EventRegionStarted   EventType = "region_started"
	EventRegionCompleted EventType = "region_completed"
	EventRegionFailed    EventType = "region_failed"
	EventScanCompleted   EventType = "scan_completed"
	EventScanFailed      EventType = "scan_failed"
	EventScanCancelled   EventType = "scan_cancelled"
)

// Entry is one journal line
type Entry struct {
	Timestamp time.Time       `json:"timestamp"`
	Sequence  int64           `json:"sequence"`
	Type      EventType       `json:"type"`
	ScanID    string          `json:"scan_id"`
	Region    string          `json:"region,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Journal appends scan events to a dated file. Every append flushes
// and syncs so a crash loses at most the entry being written.
type Journal struct {
	mu       sync.Mutex
	file     *os.File
	writer   *bufio.Writer
	sequence int64
	dir      string
}

// Open creates or opens a journal file in the given directory
func Open(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	// Dated filename so old journals rotate out naturally
	filename := fmt.Sprintf("costhound-%s.journal", time.Now().Format("20060102-150405"))
	path := filepath.Join(dir, filename)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open journal file: %w", err)
	}

	return &Journal{
		file:   file,
		writer: bufio.NewWriter(file),
		dir:    dir,
	}, nil
}

// Close flushes and closes the journal
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.writer.Flush(); err != nil {
		return err
	}
	return j.file.Close()
}

// Record appends one event. data may be nil.
func (j *Journal) Record(event EventType, scanID, region string, data any) error {
	return j.record(event, scanID, region, data, nil)
}

// RecordError appends one event carrying an error
func (j *Journal) RecordError(event EventType, scanID, region string, data any, cause error) error {
	return j.record(event, scanID, region, data, cause)
}

func (j *Journal) record(event EventType, scanID, region string, data any, cause error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.sequence++

	entry := Entry{
		Timestamp: time.Now().UTC(),
		Sequence:  j.sequence,
		Type:      event,
		ScanID:    scanID,
		Region:    region,
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal journal data: %w", err)
		}
		entry.Data = raw
	}
	if cause != nil {
		entry.Error = cause.Error()
	}

	return j.writeEntry(entry)
}

func (j *Journal) writeEntry(entry Entry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}

	if _, err := j.writer.Write(line); err != nil {
		return fmt.Errorf("write journal entry: %w", err)
	}
	if err := j.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write journal newline: %w", err)
	}
	if err := j.writer.Flush(); err != nil {
		return fmt.Errorf("flush journal: %w", err)
	}
	return j.file.Sync()
}

// Reader iterates one journal file entry by entry
type Reader struct {
	scanner *bufio.Scanner
	file    *os.File
}

// NewReader opens a journal file for replay
func NewReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal file: %w", err)
	}
	return &Reader{
		scanner: bufio.NewScanner(file),
		file:    file,
	}, nil
}

// Next returns the next entry, io.EOF at the end
func (r *Reader) Next() (*Entry, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}

	var entry Entry
	if err := json.Unmarshal(r.scanner.Bytes(), &entry); err != nil {
		return nil, fmt.Errorf("unmarshal journal entry: %w", err)
	}
	return &entry, nil
}

// Close closes the reader
func (r *Reader) Close() error {
	return r.file.Close()
}

// Replay walks every journal file in dir and hands entries newer than
// since to the handler, oldest file first.
func Replay(dir string, since time.Time, handler func(*Entry) error) error {
	files, err := filepath.Glob(filepath.Join(dir, "costhound-*.journal"))
	if err != nil {
		return fmt.Errorf("list journal files: %w", err)
	}

	for _, path := range files {
		if err := replayFile(path, since, handler); err != nil {
			return err
		}
	}
	return nil
}

func replayFile(path string, since time.Time, handler func(*Entry) error) error {
	reader, err := NewReader(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	for {
		entry, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if entry.Timestamp.After(since) {
			if err := handler(entry); err != nil {
				return err
			}
		}
	}
}
