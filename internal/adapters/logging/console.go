package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/kostore/internal/ports"
)

const redacted = "[REDACTED]"

// Keys whose values never reach the output.
var secretKeys = map[string]bool{
	"token":         true,
	"authorization": true,
	"password":      true,
}

// GitHub token prefixes recognised inside free-form values.
var tokenPrefixes = []string{"ghp_", "gho_", "ghu_", "ghs_", "ghr_", "github_pat_"}

// stream is the writer shared by a logger and everything derived from it.
type stream struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *stream) writeLine(line []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.w.Write(append(line, '\n'))
}

// ConsoleLogger writes one entry per line, as text or JSON, to a terminal
// stream. Loggers derived with With share the stream and the level.
type ConsoleLogger struct {
	out    *stream
	level  *atomic.Int32
	fields []ports.Field
	format format
	now    func() time.Time
}

type format struct {
	json  bool
	time  bool
	label bool
}

// ConsoleLoggerOption configures the console logger.
type ConsoleLoggerOption func(*ConsoleLogger)

// WithOutput sets the output writer (default: os.Stderr).
func WithOutput(w io.Writer) ConsoleLoggerOption {
	return func(l *ConsoleLogger) { l.out = &stream{w: w} }
}

// WithLevel sets the minimum log level (default: Info).
func WithLevel(level ports.Level) ConsoleLoggerOption {
	return func(l *ConsoleLogger) { l.level.Store(int32(level)) }
}

// WithJSONFormat switches to one JSON object per line.
func WithJSONFormat(enabled bool) ConsoleLoggerOption {
	return func(l *ConsoleLogger) { l.format.json = enabled }
}

// WithTimestamp toggles the timestamp (default: on).
func WithTimestamp(enabled bool) ConsoleLoggerOption {
	return func(l *ConsoleLogger) { l.format.time = enabled }
}

// WithLevelLabel toggles the level label (default: on).
func WithLevelLabel(enabled bool) ConsoleLoggerOption {
	return func(l *ConsoleLogger) { l.format.label = enabled }
}

// NewConsoleLogger creates a console logger writing to stderr at Info.
func NewConsoleLogger(opts ...ConsoleLoggerOption) *ConsoleLogger {
	l := &ConsoleLogger{
		out:    &stream{w: os.Stderr},
		level:  &atomic.Int32{},
		format: format{time: true, label: true},
		now:    time.Now,
	}
	l.level.Store(int32(ports.LevelInfo))
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Debug logs a debug message.
func (l *ConsoleLogger) Debug(_ context.Context, msg string, fields ...ports.Field) {
	l.log(ports.LevelDebug, msg, fields)
}

// Info logs an informational message.
func (l *ConsoleLogger) Info(_ context.Context, msg string, fields ...ports.Field) {
	l.log(ports.LevelInfo, msg, fields)
}

// Warn logs a warning message.
func (l *ConsoleLogger) Warn(_ context.Context, msg string, fields ...ports.Field) {
	l.log(ports.LevelWarn, msg, fields)
}

// Error logs an error message.
func (l *ConsoleLogger) Error(_ context.Context, msg string, fields ...ports.Field) {
	l.log(ports.LevelError, msg, fields)
}

// With returns a derived logger that prefixes fields to every entry.
func (l *ConsoleLogger) With(fields ...ports.Field) ports.Logger {
	derived := *l
	derived.fields = append(append(make([]ports.Field, 0, len(l.fields)+len(fields)), l.fields...), fields...)
	return &derived
}

// Level returns the minimum log level.
func (l *ConsoleLogger) Level() ports.Level {
	return ports.Level(l.level.Load())
}

// SetLevel changes the minimum level for this logger and every logger
// derived from the same root.
func (l *ConsoleLogger) SetLevel(level ports.Level) {
	l.level.Store(int32(level))
}

func (l *ConsoleLogger) log(level ports.Level, msg string, fields []ports.Field) {
	if level < l.Level() {
		return
	}
	all := append(append(make([]ports.Field, 0, len(l.fields)+len(fields)), l.fields...), fields...)
	for i := range all {
		all[i].Value = scrub(all[i])
	}

	var line []byte
	if l.format.json {
		line = l.encodeJSON(level, msg, all)
	} else {
		line = l.encodeText(level, msg, all)
	}
	l.out.writeLine(line)
}

// encodeJSON keeps keys in the order they were given: time, level, msg,
// then the fields.
func (l *ConsoleLogger) encodeJSON(level ports.Level, msg string, fields []ports.Field) []byte {
	var b bytes.Buffer
	b.WriteByte('{')
	first := true
	put := func(key string, value interface{}) {
		v, err := json.Marshal(value)
		if err != nil {
			v, _ = json.Marshal(fmt.Sprint(value))
		}
		k, _ := json.Marshal(key)
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.Write(k)
		b.WriteByte(':')
		b.Write(v)
	}

	if l.format.time {
		put("time", l.now().UTC().Format(time.RFC3339))
	}
	if l.format.label {
		put("level", level.String())
	}
	put("msg", msg)
	for _, f := range fields {
		put(f.Key, f.Value)
	}
	b.WriteByte('}')
	return b.Bytes()
}

func (l *ConsoleLogger) encodeText(level ports.Level, msg string, fields []ports.Field) []byte {
	var b bytes.Buffer
	if l.format.time {
		b.WriteString(l.now().Format("15:04:05"))
		b.WriteByte(' ')
	}
	if l.format.label {
		fmt.Fprintf(&b, "[%s] ", level)
	}
	b.WriteString(msg)

	for _, f := range fields {
		if s, ok := f.Value.(string); ok && (s == "" || strings.ContainsAny(s, " \t\"=")) {
			fmt.Fprintf(&b, " %s=%q", f.Key, s)
			continue
		}
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}
	return b.Bytes()
}

// scrub hides secret-named fields and GitHub tokens embedded in string values.
func scrub(f ports.Field) interface{} {
	if secretKeys[strings.ToLower(f.Key)] {
		return redacted
	}
	s, ok := f.Value.(string)
	if !ok {
		return f.Value
	}
	for _, prefix := range tokenPrefixes {
		for {
			i := strings.Index(s, prefix)
			if i < 0 {
				break
			}
			end := i + len(prefix)
			for end < len(s) && isTokenChar(s[end]) {
				end++
			}
			s = s[:i] + redacted + s[end:]
		}
	}
	return s
}

func isTokenChar(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

var _ ports.Logger = (*ConsoleLogger)(nil)
