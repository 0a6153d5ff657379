// Package stream tails an access-log file and parses it into the
// ingestion-time models.LogEntry shape, for deployments that feed the
// detector from a log file rather than in-process instrumentation.
// Adapted from the teacher's stream.LogStream/Tailer: kept the
// fsnotify-driven tail loop with its periodic-read fallback and log
// rotation handling, swapped the stdlib "log" package for zap to match
// the rest of the detector's logging.
package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/justin4957/logflow-anomaly-detector/internal/parser"
	"github.com/justin4957/logflow-anomaly-detector/pkg/models"
)

// LogStream handles real-time log file streaming.
type LogStream struct {
	log       *zap.Logger
	logPath   string
	logFormat string
	parser    parser.LogParser
	tailer    FileTailer
}

// FileTailer interface for tailing files.
type FileTailer interface {
	Start(ctx context.Context, path string) (<-chan string, error)
	Stop() error
}

// NewLogStream creates a new log stream.
func NewLogStream(log *zap.Logger, logPath, logFormat string) *LogStream {
	return &LogStream{
		log:       log,
		logPath:   logPath,
		logFormat: logFormat,
		parser:    parser.NewParser(logFormat, log),
		tailer:    NewTailer(log),
	}
}

// Start begins streaming and parsing logs, emitting each parsed
// *models.LogEntry on output until ctx is cancelled.
func (ls *LogStream) Start(ctx context.Context, output chan<- *models.LogEntry) {
	lineChan, err := ls.tailer.Start(ctx, ls.logPath)
	if err != nil {
		ls.log.Error("failed to start log tailer", zap.Error(err))
		return
	}

	for {
		select {
		case <-ctx.Done():
			ls.tailer.Stop()
			return
		case line, ok := <-lineChan:
			if !ok {
				return
			}

			entry, err := ls.parser.Parse(line)
			if err != nil {
				ls.log.Warn("failed to parse log line", zap.Error(err))
				continue
			}

			output <- entry
		}
	}
}

// Tailer implements FileTailer for real-time file tailing.
type Tailer struct {
	log *zap.Logger

	watcher    *fsnotify.Watcher
	file       *os.File
	reader     *bufio.Reader
	lineChan   chan string
	stopCh     chan struct{}
	offset     int64
	mu         sync.RWMutex
	path       string
	incomplete string // buffer for incomplete lines
}

// NewTailer creates a new file tailer.
func NewTailer(log *zap.Logger) *Tailer {
	return &Tailer{
		log:      log,
		lineChan: make(chan string, 100),
		stopCh:   make(chan struct{}),
	}
}

// Start begins tailing the specified file.
func (t *Tailer) Start(ctx context.Context, path string) (<-chan string, error) {
	t.mu.Lock()
	t.path = path
	t.mu.Unlock()

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	t.file = file

	offset, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to seek file: %w", err)
	}
	t.offset = offset
	t.reader = bufio.NewReader(file)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	t.watcher = watcher

	if err := watcher.Add(path); err != nil {
		watcher.Close()
		file.Close()
		return nil, fmt.Errorf("failed to watch file: %w", err)
	}

	t.log.Info("started tailing file", zap.String("path", path))

	go t.tailLoop(ctx)

	return t.lineChan, nil
}

// tailLoop is the main loop that watches for file changes.
func (t *Tailer) tailLoop(ctx context.Context) {
	defer func() {
		close(t.lineChan)
		t.log.Debug("tailer loop stopped")
	}()

	// Ticker for periodic reads, a fallback if fsnotify misses events.
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-t.stopCh:
			return

		case event, ok := <-t.watcher.Events:
			if !ok {
				return
			}

			switch {
			case event.Op&fsnotify.Write == fsnotify.Write:
				t.readNewLines()

			case event.Op&fsnotify.Remove == fsnotify.Remove:
				t.log.Info("log file removed", zap.String("path", event.Name))
				t.handleFileRotation()

			case event.Op&fsnotify.Rename == fsnotify.Rename:
				t.log.Info("log file renamed", zap.String("path", event.Name))
				t.handleFileRotation()

			case event.Op&fsnotify.Create == fsnotify.Create:
				if event.Name == t.path {
					t.reopenFile()
				}
			}

		case err, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
			t.log.Warn("watcher error", zap.Error(err))

		case <-ticker.C:
			t.readNewLines()
		}
	}
}

// readNewLines reads new lines from the file.
func (t *Tailer) readNewLines() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.file == nil {
		return
	}

	fileInfo, err := t.file.Stat()
	if err != nil {
		t.log.Warn("failed to stat file", zap.Error(err))
		return
	}

	currentSize := fileInfo.Size()

	// File truncated: log rotation scenario.
	if currentSize < t.offset {
		t.log.Info("log file truncated, resetting to beginning",
			zap.String("path", t.path), zap.String("previous_offset", humanize.Bytes(uint64(t.offset))))
		t.offset = 0
		t.file.Seek(0, io.SeekStart)
		t.reader = bufio.NewReader(t.file)
		t.incomplete = ""
		return
	}

	if currentSize == t.offset {
		return
	}

	for {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				if line != "" {
					t.incomplete = line
				}
				break
			}
			t.log.Warn("error reading file", zap.Error(err))
			break
		}

		if t.incomplete != "" {
			line = t.incomplete + line
			t.incomplete = ""
		}

		if len(line) > 0 && line[len(line)-1] == '\n' {
			line = line[:len(line)-1]
		}
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}
		if line == "" {
			continue
		}

		newOffset, _ := t.file.Seek(0, io.SeekCurrent)
		t.offset = newOffset

		select {
		case t.lineChan <- line:
		default:
			t.log.Debug("line channel full, dropping line")
		}
	}
}

// handleFileRotation handles log rotation scenarios.
func (t *Tailer) handleFileRotation() {
	time.Sleep(100 * time.Millisecond)
	t.reopenFile()
}

// reopenFile reopens the file after rotation.
func (t *Tailer) reopenFile() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.file != nil {
		t.file.Close()
	}

	file, err := os.Open(t.path)
	if err != nil {
		t.log.Warn("failed to reopen file", zap.Error(err))
		return
	}

	t.file = file
	t.offset = 0
	t.reader = bufio.NewReader(file)
	t.incomplete = ""

	t.log.Info("reopened file", zap.String("path", t.path))
}

// Stop stops the file tailer.
func (t *Tailer) Stop() error {
	close(t.stopCh)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.watcher != nil {
		if err := t.watcher.Close(); err != nil {
			t.log.Warn("error closing watcher", zap.Error(err))
		}
		t.watcher = nil
	}

	if t.file != nil {
		if err := t.file.Close(); err != nil {
			t.log.Warn("error closing file", zap.Error(err))
		}
		t.file = nil
	}

	return nil
}
