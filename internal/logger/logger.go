package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"sync"
)

var (
	showDateTime  bool
	defaultLogger *Logger
	logFile       *os.File
	// mu guards the package state and serialises writes
	mu            sync.Mutex
)

// LogLevel orders messages by importance
type LogLevel int

const (
	colorReset   = "\033[0m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorBlue    = "\033[34m"
	colorMagenta = "\033[35m"
	colorCyan    = "\033[36m"
	colorOrange  = "\033[38;5;208m"
)

const (
	DEBUG LogLevel = iota
	INFO
	INFORM
	HIGHLIGHT
	WARN
	ERROR
	FATAL
)

// DefaultLogPath is where file output goes when no path is configured
const DefaultLogPath = "/tmp/football-analyzer.log"

type Logger struct {
	infoLogger  *log.Logger
	errorLogger *log.Logger
	level       LogLevel
}

func init() {
	defaultLogger = NewLogger(INFO)
}

func flags() int {
	if showDateTime {
		return log.Ldate | log.Ltime
	}
	return 0
}

func SetShowDateTime(value bool) {
	mu.Lock()
	defer mu.Unlock()
	showDateTime = value
	defaultLogger.infoLogger.SetFlags(flags())
	defaultLogger.errorLogger.SetFlags(flags())
}

// SetLevel changes the minimum level written by the package level functions
func SetLevel(level LogLevel) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger.level = level
}

// ParseLevel converts a level name such as "debug" or "WARN" into a LogLevel
func ParseLevel(name string) (LogLevel, error) {
	for l := DEBUG; l <= FATAL; l++ {
		if strings.EqualFold(name, l.String()) {
			return l, nil
		}
	}
	return INFO, fmt.Errorf("unknown log level %q", name)
}

// SetLogOutput sets the output destination for logs
// 'c' for console, 'f' for file, 'b' for both.
// An empty path uses DefaultLogPath.
func SetLogOutput(outputType rune, path string) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	if path == "" {
		path = DefaultLogPath
	}

	var infoWriter, errorWriter io.Writer

	switch outputType {
	case 'c':
		infoWriter = os.Stdout
		errorWriter = os.Stderr
	case 'f', 'b':
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logFile = f
		infoWriter = f
		errorWriter = f
		if outputType == 'b' {
			infoWriter = io.MultiWriter(os.Stdout, f)
			errorWriter = io.MultiWriter(os.Stderr, f)
		}
	default:
		return fmt.Errorf("invalid log output type: %c", outputType)
	}

	defaultLogger.infoLogger = log.New(infoWriter, "", flags())
	defaultLogger.errorLogger = log.New(errorWriter, "", flags())
	return nil
}

// SetWriters points the default logger at arbitrary writers, mostly for tests.
// MCP mode uses it to keep stdout free for protocol traffic.
func SetWriters(info, errs io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger.infoLogger = log.New(info, "", flags())
	defaultLogger.errorLogger = log.New(errs, "", flags())
}

// Close releases the log file, if one is open
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

func NewLogger(level LogLevel) *Logger {
	return &Logger{
		infoLogger:  log.New(os.Stdout, "", flags()),
		errorLogger: log.New(os.Stderr, "", flags()),
		level:       level,
	}
}

func (l *Logger) log(level LogLevel, format string, v ...any) {
	mu.Lock()
	defer mu.Unlock()

	if level < l.level {
		return
	}

	_, file, line, ok := runtime.Caller(2)
	if !ok {
		file, line = "unknown", 0
	}
	prefix := fmt.Sprintf("[%s] %s:%d: ", level, filepath.Base(file), line)

	words := []string{format}
	var objects []string
	for _, arg := range v {
		word, object := formatArg(arg)
		words = append(words, word)
		if object != "" {
			objects = append(objects, object)
		}
	}

	out := l.infoLogger
	if level >= ERROR {
		out = l.errorLogger
	}
	color := level.color()
	out.Println(prefix + color + strings.Join(words, " ") + colorReset)
	// complex values follow as indented JSON, one line group each
	for _, object := range objects {
		out.Println(prefix + color + object + colorReset)
	}
}

// levels holds the name and colour of each level, indexed by LogLevel
var levels = [...]struct {
	name  string
	color string
}{
	DEBUG:     {"DEBUG", colorBlue},
	INFO:      {"INFO", colorGreen},
	INFORM:    {"INFORM", colorMagenta},
	HIGHLIGHT: {"HIGHLIGHT", colorCyan},
	WARN:      {"WARN", colorYellow},
	ERROR:     {"ERROR", colorOrange},
	FATAL:     {"FATAL", colorRed},
}

func (l LogLevel) valid() bool {
	return l >= DEBUG && int(l) < len(levels)
}

func (l LogLevel) color() string {
	if !l.valid() {
		return colorReset
	}
	return levels[l].color
}

func (l LogLevel) String() string {
	if !l.valid() {
		return "UNKNOWN"
	}
	return levels[l].name
}

// formatArg renders one log argument. Scalars and errors are written inline;
// anything else is named inline and returned as indented JSON in object.
func formatArg(arg any) (word, object string) {
	switch v := arg.(type) {
	case nil:
		return "nil", ""
	case error:
		return v.Error(), ""
	case float32:
		return fmt.Sprintf("%.2f", v), ""
	case float64:
		return fmt.Sprintf("%.2f", v), ""
	case string, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(v), ""
	}
	data, err := json.MarshalIndent(arg, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", arg), ""
	}
	return fmt.Sprintf("[Object of type %s]", reflect.TypeOf(arg)), string(data)
}

// Convenience methods using the default logger
func Debug(format string, v ...any) {
	defaultLogger.log(DEBUG, format, v...)
}

func Info(format string, v ...any) {
	defaultLogger.log(INFO, format, v...)
}

func Inform(format string, v ...any) {
	defaultLogger.log(INFORM, format, v...)
}

func Highlight(format string, v ...any) {
	defaultLogger.log(HIGHLIGHT, format, v...)
}

func Warn(format string, v ...any) {
	defaultLogger.log(WARN, format, v...)
}

func Error(format string, v ...any) {
	defaultLogger.log(ERROR, format, v...)
}

func Fatal(format string, v ...any) {
	defaultLogger.log(FATAL, format, v...)
	os.Exit(1)
}
