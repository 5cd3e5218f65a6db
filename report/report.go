// Package report carries the messages emitted while preparing release
// artifacts. Components receive a Reporter instead of writing to the console
// so that their output can be captured and asserted on.
package report

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

// Reporter receives informational and error messages.
type Reporter interface {
	// Infof reports an informational message.
	Infof(format string, args ...any)
	// Error reports a failure that happened while doing context.
	Error(context string, err error)
}

// Console is a Reporter writing colored lines to a terminal.
// Informational lines are white, errors are red and prefixed with "[ERROR]".
type Console struct {
	Out io.Writer
	Err io.Writer

	mu    sync.Mutex
	info  *color.Color
	alert *color.Color
}

// NewConsole returns a Console writing informational messages to stdout and
// errors to stderr.
func NewConsole() *Console {
	return &Console{Out: os.Stdout, Err: os.Stderr}
}

func (c *Console) init() {
	if c.info == nil {
		c.info = color.New(color.FgWhite)
		c.alert = color.New(color.FgRed)
	}
	if c.Out == nil {
		c.Out = os.Stdout
	}
	if c.Err == nil {
		c.Err = os.Stderr
	}
}

// Infof implements Reporter.
func (c *Console) Infof(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.init()
	c.info.Fprintln(c.Out, fmt.Sprintf(format, args...))
}

// Error implements Reporter.
func (c *Console) Error(context string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.init()
	c.alert.Fprintln(c.Err, ErrorLine(context, err))
}

// ErrorLine formats an error the way it is shown to users.
func ErrorLine(context string, err error) string {
	return fmt.Sprintf("[ERROR] %s %v", context, err)
}

// Level is the severity of a recorded message.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Entry is a single message captured by a Recorder.
type Entry struct {
	Level   Level
	Message string
}

// Recorder is a Reporter keeping every message in memory.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// Infof implements Reporter.
func (r *Recorder) Infof(format string, args ...any) {
	r.add(LevelInfo, fmt.Sprintf(format, args...))
}

// Error implements Reporter.
func (r *Recorder) Error(context string, err error) {
	r.add(LevelError, ErrorLine(context, err))
}

func (r *Recorder) add(l Level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: l, Message: msg})
}

// Entries returns a copy of the recorded messages in emission order.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Messages returns the recorded messages of the given level.
func (r *Recorder) Messages(l Level) []string {
	var out []string
	for _, e := range r.Entries() {
		if e.Level == l {
			out = append(out, e.Message)
		}
	}
	return out
}

type discard struct{}

func (discard) Infof(string, ...any) {}
func (discard) Error(string, error)  {}

// Discard is a Reporter that drops every message.
var Discard Reporter = discard{}
