package audit

import (
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ═══════════════════════════════════════════════════════════════════════════════
// AUDIT LOG - Append-only JSONL streams for signals, trades and performance
// ═══════════════════════════════════════════════════════════════════════════════
//
// One record per line, millisecond timestamp on every record, size-based
// rotation. The dashboard and offline analysis read these files; the bot
// never reads them back.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Logger appends JSON records to a rotating file
type Logger struct {
	out *lumberjack.Logger
}

// Config controls rotation
type Config struct {
	Dir        string
	MaxSizeMB  int
	MaxBackups int
}

// NewLogger creates a rotating JSONL logger for the given stream name
func NewLogger(cfg Config, name string) *Logger {
	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 50
	}
	return &Logger{
		out: &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, name+".jsonl"),
			MaxSize:    maxSize,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		},
	}
}

// Log appends one record. A write failure is logged and swallowed: audit
// loss must never stop the trading loop.
func (l *Logger) Log(record map[string]any) {
	record["timestamp"] = time.Now().UTC().UnixMilli()

	data, err := json.Marshal(record)
	if err != nil {
		log.Error().Err(err).Msg("Audit record marshal failed")
		return
	}
	if _, err := l.out.Write(append(data, '\n')); err != nil {
		log.Error().Err(err).Msg("Audit record write failed")
	}
}

// Close flushes and closes the underlying file
func (l *Logger) Close() error {
	return l.out.Close()
}

// Streams bundles the three audit logs the bot writes
type Streams struct {
	Signals     *Logger
	Trades      *Logger
	Performance *Logger
}

// NewStreams opens all audit streams under the configured directory
func NewStreams(cfg Config) *Streams {
	return &Streams{
		Signals:     NewLogger(cfg, "signals"),
		Trades:      NewLogger(cfg, "trades"),
		Performance: NewLogger(cfg, "performance"),
	}
}

// Close closes all streams
func (s *Streams) Close() {
	_ = s.Signals.Close()
	_ = s.Trades.Close()
	_ = s.Performance.Close()
}
