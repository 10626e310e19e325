// Package audit persists a durable, queryable trail of pipeline decisions
// as JSON-lines records: filter denials, policy failures, time-lock
// outcomes, and the request/response records of requests that completed
// their matched ruleset.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventType identifies the point in the pipeline that produced an Event.
type EventType string

const (
	EventRequestAudited  EventType = "gateway:RequestAudited"
	EventResponseAudited EventType = "gateway:ResponseAudited"
	EventFilterDenied    EventType = "gateway:FilterDenied"
	EventAuthFailed      EventType = "gateway:AuthenticationFailed"
	EventTimeLockGranted EventType = "gateway:TimeLockGranted"
	EventTimeLockDenied  EventType = "gateway:TimeLockDenied"
	EventConfigChanged   EventType = "gateway:ConfigChanged"
)

// Event is one audit record.
type Event struct {
	ID             string                 `json:"id"`
	Timestamp      time.Time              `json:"timestamp"`
	EventType      EventType              `json:"event_type"`
	RulesetName    string                 `json:"ruleset_name"`
	Entity         string                 `json:"entity"`
	AWSAction      string                 `json:"aws_action,omitempty"`
	RequestID      string                 `json:"request_id"`
	RemoteAddr     string                 `json:"remote_addr"`
	Resource       string                 `json:"resource"`
	Status         string                 `json:"status"` // success, failure
	UpstreamStatus int                    `json:"upstream_status,omitempty"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Details        map[string]interface{} `json:"details,omitempty"`
}

// LoggerConfig controls where and how audit events are persisted.
type LoggerConfig struct {
	OutputPath   string
	MaxSizeMB    int
	MaxBackups   int
	RedactFields []string
}

// DefaultLoggerConfig returns sane defaults for a standalone deployment.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		OutputPath:   "/var/log/goldengate/audit.log",
		MaxSizeMB:    100,
		MaxBackups:   30,
		RedactFields: []string{"secret", "signature", "AWSAccessKeyId"},
	}
}

// Logger appends Events to a rotating JSON-lines file.
type Logger struct {
	config LoggerConfig
	logger *zap.Logger

	mu     sync.Mutex
	file   *os.File
	stopCh chan struct{}
	closed bool
}

// NewLogger opens (creating if necessary) the configured audit log file.
func NewLogger(config LoggerConfig, logger *zap.Logger) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(config.OutputPath), 0o755); err != nil {
		return nil, fmt.Errorf("create audit log directory: %w", err)
	}
	f, err := os.OpenFile(config.OutputPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &Logger{config: config, logger: logger, file: f, stopCh: make(chan struct{})}, nil
}

// Start launches the background rotation loop; cancel ctx or call Stop to
// end it.
func (l *Logger) Start(ctx context.Context) {
	l.logger.Info("starting audit logger", zap.String("output", l.config.OutputPath))
	go l.rotationLoop(ctx)
}

// Stop closes the underlying file and ends the rotation loop.
func (l *Logger) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	close(l.stopCh)
	if l.file != nil {
		l.file.Close()
	}
	l.closed = true
	return nil
}

// Log appends event, filling in ID/Timestamp defaults and redacting
// configured field names from Details.
func (l *Logger) Log(event *Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	l.redact(event)

	data, err := json.Marshal(event)
	if err != nil {
		l.logger.Error("marshal audit event", zap.Error(err))
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Write(data)
		l.file.Write([]byte("\n"))
	}
}

func (l *Logger) redact(event *Event) {
	if event.Details == nil {
		return
	}
	for _, field := range l.config.RedactFields {
		if _, ok := event.Details[field]; ok {
			event.Details[field] = "***REDACTED***"
		}
	}
}

func (l *Logger) rotationLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.checkRotation()
		}
	}
}

func (l *Logger) checkRotation() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return
	}
	stat, err := l.file.Stat()
	if err != nil {
		return
	}
	if int(stat.Size()/(1024*1024)) >= l.config.MaxSizeMB {
		l.rotateLocked()
	}
}

func (l *Logger) rotateLocked() {
	backupName := fmt.Sprintf("%s.%s", l.config.OutputPath, time.Now().Format("2006-01-02-15-04-05"))

	if l.file != nil {
		l.file.Close()
	}
	if err := os.Rename(l.config.OutputPath, backupName); err != nil {
		l.logger.Error("rotate audit log", zap.Error(err))
		return
	}

	f, err := os.OpenFile(l.config.OutputPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		l.logger.Error("open rotated audit log", zap.Error(err))
		return
	}
	l.file = f
	l.cleanupBackupsLocked()
}

func (l *Logger) cleanupBackupsLocked() {
	dir := filepath.Dir(l.config.OutputPath)
	pattern := filepath.Base(l.config.OutputPath) + ".*"

	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil || len(matches) <= l.config.MaxBackups {
		return
	}
	sortByModTime(matches)
	for _, stale := range matches[:len(matches)-l.config.MaxBackups] {
		if err := os.Remove(stale); err != nil {
			l.logger.Warn("remove old audit log", zap.String("file", stale), zap.Error(err))
		}
	}
}

func sortByModTime(files []string) {
	for i := range files {
		for j := i + 1; j < len(files); j++ {
			ti, erri := os.Stat(files[i])
			tj, errj := os.Stat(files[j])
			if erri != nil || errj != nil {
				continue
			}
			if ti.ModTime().After(tj.ModTime()) {
				files[i], files[j] = files[j], files[i]
			}
		}
	}
}

// Query filters recorded events for inspection (e.g. by an operator CLI).
type Query struct {
	Entity    string
	EventType EventType
	StartTime time.Time
	EndTime   time.Time
}

// QueryEvents reads every event satisfying q from the audit log.
func (l *Logger) QueryEvents(query Query) ([]*Event, error) {
	f, err := os.Open(l.config.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	var results []*Event
	decoder := json.NewDecoder(f)
	for {
		var event Event
		if err := decoder.Decode(&event); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("decode audit event: %w", err)
		}
		if query.Entity != "" && event.Entity != query.Entity {
			continue
		}
		if query.EventType != "" && event.EventType != query.EventType {
			continue
		}
		if !query.StartTime.IsZero() && event.Timestamp.Before(query.StartTime) {
			continue
		}
		if !query.EndTime.IsZero() && event.Timestamp.After(query.EndTime) {
			continue
		}
		results = append(results, &event)
	}
	return results, nil
}
