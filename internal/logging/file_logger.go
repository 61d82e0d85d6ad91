package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileLogger implements the Logger interface, writing logs asynchronously
// to a file. Several CLI invocations may share one log file, so each
// logger carries a run prefix that tags its lines.
type FileLogger struct {
	logChan chan string
	file    *os.File
	prefix  string
	waiter  sync.WaitGroup
	mu      sync.Mutex // Protects file handle during close
}

// NewFileLogger creates a logger that appends to the given file path,
// creating the directory if needed. The prefix (typically a run id) is
// included in every line; it may be empty.
func NewFileLogger(filePath, prefix string) (*FileLogger, error) {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", filePath, err)
	}

	logger := &FileLogger{
		logChan: make(chan string, 100),
		file:    f,
		prefix:  prefix,
	}

	logger.waiter.Add(1)
	go logger.writer()

	return logger, nil
}

// writer runs in a background goroutine, draining logChan into the file.
func (l *FileLogger) writer() {
	defer l.waiter.Done()
	for msg := range l.logChan {
		l.mu.Lock()
		if l.file != nil {
			_, _ = l.file.WriteString(msg)
		}
		l.mu.Unlock()
	}
}

// Log formats the message and sends it to the log channel.
func (l *FileLogger) Log(format string, args ...interface{}) {
	now := time.Now().Format("2006-01-02T15:04:05.000Z07:00")
	var msg string
	if l.prefix != "" {
		msg = fmt.Sprintf("[%s] [%s] %s\n", now, l.prefix, fmt.Sprintf(format, args...))
	} else {
		msg = fmt.Sprintf("[%s] %s\n", now, fmt.Sprintf(format, args...))
	}

	// Drop the message rather than block the caller when the buffer is full.
	select {
	case l.logChan <- msg:
	default:
	}
}

// IsEnabled returns true for FileLogger.
func (l *FileLogger) IsEnabled() bool {
	return true
}

// Close signals the writer goroutine to exit and closes the log file.
func (l *FileLogger) Close() error {
	close(l.logChan)
	l.waiter.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Ensure FileLogger implements the Logger interface.
var _ Logger = (*FileLogger)(nil)
