package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level is the severity of a log line
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel accepts DEBUG, INFO, WARN/WARNING and ERROR in any case.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG, nil
	case "", "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger writes leveled lines with key=value context fields.
type Logger struct {
	mu     *sync.RWMutex
	level  *Level
	out    *log.Logger
	fields map[string]interface{}
}

func New(level Level, w io.Writer) *Logger {
	if w == nil {
		w = os.Stdout
	}
	lvl := level
	return &Logger{
		mu:     &sync.RWMutex{},
		level:  &lvl,
		out:    log.New(w, "", 0),
		fields: map[string]interface{}{},
	}
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = New(INFO, os.Stdout)
)

// Default returns the process-wide logger.
func Default() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefault replaces the process-wide logger.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// WithFields returns a child logger carrying the given key/value pairs.
// The child shares level and output with its parent.
func (l *Logger) WithFields(kv ...interface{}) *Logger {
	child := &Logger{
		mu:     l.mu,
		level:  l.level,
		out:    l.out,
		fields: make(map[string]interface{}, len(l.fields)+len(kv)/2),
	}
	for k, v := range l.fields {
		child.fields[k] = v
	}
	addPairs(child.fields, kv)
	return child
}

func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(key, value)
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.log(DEBUG, msg, kv...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.log(INFO, msg, kv...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.log(WARN, msg, kv...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.log(ERROR, msg, kv...) }

func (l *Logger) Fatal(msg string, kv ...interface{}) {
	l.log(ERROR, msg, kv...)
	os.Exit(1)
}

func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.level = level
}

func (l *Logger) GetLevel() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return *l.level
}

func (l *Logger) IsDebugEnabled() bool {
	return l.GetLevel() <= DEBUG
}

// Writer adapts the logger to an io.Writer; every write becomes one line at the given level.
func (l *Logger) Writer(level Level) io.Writer {
	return writerFunc(func(p []byte) (int, error) {
		l.log(level, strings.TrimRight(string(p), "\n"))
		return len(p), nil
	})
}

// StdLogger returns a standard library logger that writes through l, for
// APIs such as http.Server.ErrorLog.
func (l *Logger) StdLogger(level Level) *log.Logger {
	return log.New(l.Writer(level), "", 0)
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

func (l *Logger) log(level Level, msg string, kv ...interface{}) {
	if level < l.GetLevel() {
		return
	}

	fields := make(map[string]interface{}, len(l.fields)+len(kv)/2)
	for k, v := range l.fields {
		fields[k] = v
	}
	addPairs(fields, kv)

	ts := time.Now().Format("2006-01-02T15:04:05.000Z07:00")
	l.out.Print(formatLine(ts, level, msg, fields))
}

func addPairs(dst map[string]interface{}, kv []interface{}) {
	for i := 0; i+1 < len(kv); i += 2 {
		dst[fmt.Sprintf("%v", kv[i])] = kv[i+1]
	}
}

func formatLine(ts string, level Level, msg string, fields map[string]interface{}) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s] %s", ts, level, msg)

	if len(fields) == 0 {
		return b.String()
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteString(" |")
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, formatValue(fields[k]))
	}
	return b.String()
}

func formatValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		if strings.ContainsAny(v, " \t") {
			return fmt.Sprintf("%q", v)
		}
		return v
	case error:
		return fmt.Sprintf("%q", v.Error())
	case time.Duration:
		return v.String()
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}
