package logger

import (
	"strings"
	"sync"
)

// Log levels accepted in config (log.level).
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// Output encodings accepted in config (log.format).
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

var levelAliases = map[string]string{
	"warning": WarnLevel,
	"err":     ErrorLevel,
	"trace":   DebugLevel,
}

var (
	globalLogger *Logger
	once         sync.Once
)

// Get returns the process-wide logger. The first call picks level and
// format; later calls return the same instance.
func Get(level, format string) *Logger {
	once.Do(func() {
		globalLogger = newZapLogger(normalizeLevel(level), normalizeFormat(format))
	})
	return globalLogger
}

func normalizeLevel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if alias, ok := levelAliases[s]; ok {
		return alias
	}
	return s
}

func normalizeFormat(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), FormatJSON) {
		return FormatJSON
	}
	return FormatConsole
}
