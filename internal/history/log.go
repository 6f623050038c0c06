// Package history writes the append-only trade history log.
//
// Every line is mirrored to stderr and appended to a log file so a run
// can be replayed after the process exits. The file handle is explicit
// process state: Open it once at startup and Close it on shutdown.
package history

import (
	"fmt"
	"os"
	"sync"
)

// Log is an append-only line log backed by a file
type Log struct {
	mu   sync.Mutex
	file *os.File
}

// Open opens (or creates) the history file in append mode
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open history log %s: %w", path, err)
	}
	return &Log{file: f}, nil
}

// Write appends a raw line. Best effort: write errors never reach the caller.
func (l *Log) Write(line string) {
	os.Stderr.WriteString(line)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.WriteString(line)
	}
}

// Printf formats a message and appends it as one line
func (l *Log) Printf(format string, args ...any) {
	l.Write(fmt.Sprintf(format, args...) + "\n")
}

// Close flushes and closes the underlying file
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Sync()
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.file = nil
	return err
}

// Nop returns a log that only mirrors to stderr. Used in tests and when
// no history path is configured.
func Nop() *Log {
	return &Log{}
}
