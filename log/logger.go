// Package log writes leveled log lines to stderr.
//
// The level of a line is given by a prefix, e.g. "[warn] missing node".
// Lines below the minimum level are dropped, lines without level are
// always written. Each line is prefixed with the time and the elapsed time
// since the start of the process.
package log

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

type Level int

const (
	LDebug Level = iota
	LProgress
	LStep
	LInfo
	LWarn
	LError
	LFatal
	lNone
)

var levelNames = []string{"debug", "progress", "step", "info", "warn", "error", "fatal"}

func (l Level) String() string {
	if l < 0 || l >= lNone {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel returns the level with the given name.
func ParseLevel(name string) (Level, error) {
	for i, n := range levelNames {
		if n == strings.ToLower(name) {
			return Level(i), nil
		}
	}
	return lNone, errors.Errorf("unknown log level %q", name)
}

var DefaultLogger *log.Logger
var defaultFilter = &levelFilter{
	start:    time.Now(),
	writer:   os.Stderr,
	minLevel: LProgress,
}

func init() {
	DefaultLogger = log.New(defaultFilter, "", 0)
}

type levelFilter struct {
	mu       sync.Mutex
	start    time.Time
	writer   io.Writer
	minLevel Level
}

// levelOf returns the level of the [level] prefix of line, or lNone.
func levelOf(line []byte) Level {
	if len(line) == 0 || line[0] != '[' {
		return lNone
	}
	end := bytes.IndexByte(line, ']')
	if end < 0 {
		return lNone
	}
	l, err := ParseLevel(string(line[1:end]))
	if err != nil {
		return lNone
	}
	return l
}

func (f *levelFilter) Check(line []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return levelOf(line) >= f.minLevel
}

func (f *levelFilter) Write(p []byte) (int, error) {
	if !f.Check(p) {
		return len(p), nil
	}
	b := bytes.Buffer{}
	now := time.Now()
	d := now.Sub(f.start)
	fmt.Fprintf(&b, "[%s] %d:%02d:%02d ",
		now.Format(time.RFC3339),
		int(d.Hours()),
		int(math.Mod(d.Minutes(), 60)),
		int(math.Mod(d.Seconds(), 60)),
	)
	b.Write(p)

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.writer.Write(b.Bytes()); err != nil {
		return 0, err
	}
	return len(p), nil
}

func SetMinLevel(lvl Level) {
	defaultFilter.mu.Lock()
	defaultFilter.minLevel = lvl
	defaultFilter.mu.Unlock()
}

// SetOutput redirects all log output to w.
func SetOutput(w io.Writer) {
	defaultFilter.mu.Lock()
	defaultFilter.writer = w
	defaultFilter.mu.Unlock()
}

// Logger writes lines with a fixed component prefix after the level,
// e.g. "[warn] badger: ...".
type Logger struct {
	prefix string
}

func New(component string) *Logger {
	return &Logger{prefix: component + ": "}
}

func (l *Logger) printf(lvl Level, format string, v ...interface{}) {
	DefaultLogger.Printf("["+lvl.String()+"] "+l.prefix+format, v...)
}

func (l *Logger) Debugf(format string, v ...interface{}) { l.printf(LDebug, format, v...) }
func (l *Logger) Infof(format string, v ...interface{})  { l.printf(LInfo, format, v...) }
func (l *Logger) Warnf(format string, v ...interface{})  { l.printf(LWarn, format, v...) }
func (l *Logger) Errorf(format string, v ...interface{}) { l.printf(LError, format, v...) }

var root = &Logger{}

func Println(v ...interface{}) {
	DefaultLogger.Println(v...)
}

func Printf(format string, v ...interface{}) {
	DefaultLogger.Printf(format, v...)
}

func Debugf(format string, v ...interface{}) { root.Debugf(format, v...) }
func Infof(format string, v ...interface{})  { root.Infof(format, v...) }
func Warnf(format string, v ...interface{})  { root.Warnf(format, v...) }
func Errorf(format string, v ...interface{}) { root.Errorf(format, v...) }

func Fatal(v ...interface{}) {
	DefaultLogger.Fatal(append([]interface{}{"[fatal]"}, v...)...)
}

func Fatalf(format string, v ...interface{}) {
	DefaultLogger.Fatalf("[fatal] "+format, v...)
}

// Count formats n with thousands separators.
func Count(n int) string {
	return humanize.Comma(int64(n))
}

// Step logs the start of name and returns a func that logs the end with
// the elapsed time.
func Step(name string) func() {
	start := time.Now()
	Println("[step] Starting:", name)
	return func() {
		Printf("[step] Finished: %s in %s", name, time.Since(start))
	}
}
