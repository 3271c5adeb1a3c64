// Package log implements a leveled, key-value logger in the style this
// codebase's teacher lineage has always rolled its own rather than
// reaching for a structured-logging dependency.
package log

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Lvl is a log level.
type Lvl int

const (
	LvlCrit Lvl = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

func (l Lvl) String() string {
	switch l {
	case LvlCrit:
		return "CRIT"
	case LvlError:
		return "ERROR"
	case LvlWarn:
		return "WARN"
	case LvlInfo:
		return "INFO"
	case LvlDebug:
		return "DEBUG"
	case LvlTrace:
		return "TRACE"
	default:
		return "UNKNOWN"
	}
}

// Record is one emitted log line.
type Record struct {
	Time time.Time
	Lvl  Lvl
	Msg  string
	Ctx  []interface{}
	Call CallInfo
}

// Handler writes a Record somewhere.
type Handler interface {
	Log(r *Record) error
}

// Logger emits Records carrying a fixed set of context key-values.
type Logger interface {
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})
	New(ctx ...interface{}) Logger
	SetHandler(h Handler)
}

type logger struct {
	ctx []interface{}
	h   *swapHandler
}

type swapHandler struct {
	mu sync.RWMutex
	h  Handler
}

func (s *swapHandler) Log(r *Record) error {
	s.mu.RLock()
	h := s.h
	s.mu.RUnlock()
	if h == nil {
		return nil
	}
	return h.Log(r)
}

func (s *swapHandler) Swap(h Handler) {
	s.mu.Lock()
	s.h = h
	s.mu.Unlock()
}

// New creates a Logger that tags every record with ctx, rooted under the
// process-wide Root logger's handler.
func New(ctx ...interface{}) Logger {
	return root.New(ctx...)
}

func (l *logger) New(ctx ...interface{}) Logger {
	child := &logger{h: l.h}
	child.ctx = make([]interface{}, 0, len(l.ctx)+len(ctx))
	child.ctx = append(child.ctx, l.ctx...)
	child.ctx = append(child.ctx, normalize(ctx)...)
	return child
}

func (l *logger) write(lvl Lvl, msg string, ctx []interface{}) {
	r := &Record{
		Time: time.Now(),
		Lvl:  lvl,
		Msg:  msg,
		Call: caller(3),
	}
	r.Ctx = make([]interface{}, 0, len(l.ctx)+len(ctx))
	r.Ctx = append(r.Ctx, l.ctx...)
	r.Ctx = append(r.Ctx, normalize(ctx)...)
	l.h.Log(r)
}

func (l *logger) Trace(msg string, ctx ...interface{}) { l.write(LvlTrace, msg, ctx) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(LvlDebug, msg, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(LvlInfo, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(LvlWarn, msg, ctx) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(LvlError, msg, ctx) }
func (l *logger) Crit(msg string, ctx ...interface{}) {
	l.write(LvlCrit, msg, ctx)
	os.Exit(1)
}

func (l *logger) SetHandler(h Handler) { l.h.Swap(h) }

func normalize(ctx []interface{}) []interface{} {
	if len(ctx)%2 != 0 {
		ctx = append(ctx, "LOG_ERRNOCTX", fmt.Sprintf("%+v", ctx[len(ctx)-1]))
	}
	return ctx
}

var root = &logger{h: new(swapHandler)}

func init() {
	root.SetHandler(StreamHandler(os.Stderr, TerminalFormat(IsTerminal(os.Stderr))))
}

// Root returns the root logger.
func Root() Logger { return root }

// SetDefault configures the root logger's handler; typically called once
// from main() with the verbosity/format the user asked for.
func SetDefault(h Handler) { root.SetHandler(h) }

func Trace(msg string, ctx ...interface{}) { root.write(LvlTrace, msg, ctx) }
func Debug(msg string, ctx ...interface{}) { root.write(LvlDebug, msg, ctx) }
func Info(msg string, ctx ...interface{})  { root.write(LvlInfo, msg, ctx) }
func Warn(msg string, ctx ...interface{})  { root.write(LvlWarn, msg, ctx) }
func Error(msg string, ctx ...interface{}) { root.write(LvlError, msg, ctx) }
func Crit(msg string, ctx ...interface{}) {
	root.write(LvlCrit, msg, ctx)
	os.Exit(1)
}
