package engine

import (
	"encoding/json"
	"time"
)

// LogCapacity bounds the per-tournament auction log.
const LogCapacity = 200

type LogLevel string

const (
	LevelInfo LogLevel = "info"
	LevelWarn LogLevel = "warn"
)

type LogEntry struct {
	At       time.Time `json:"at"`
	Level    LogLevel  `json:"level"`
	Message  string    `json:"message"`
	PlayerID string    `json:"playerId,omitempty"`
	TeamID   string    `json:"teamId,omitempty"`
}

// Log is a fixed-capacity ring of entries; once full the oldest is overwritten.
// The zero value is empty and ready to use.
type Log struct {
	buf   []LogEntry
	start int
}

func (l *Log) Append(e LogEntry) {
	if len(l.buf) < LogCapacity {
		l.buf = append(l.buf, e)
		return
	}
	l.buf[l.start] = e
	l.start = (l.start + 1) % LogCapacity
}

func (l *Log) Len() int { return len(l.buf) }

// Entries returns the log oldest first.
func (l *Log) Entries() []LogEntry {
	out := make([]LogEntry, 0, len(l.buf))
	out = append(out, l.buf[l.start:]...)
	return append(out, l.buf[:l.start]...)
}

func (l *Log) clone() Log {
	return Log{buf: l.Entries()}
}

func (l Log) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Entries())
}

func (l *Log) UnmarshalJSON(data []byte) error {
	var entries []LogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	*l = Log{}
	for _, e := range entries {
		l.Append(e)
	}
	return nil
}
