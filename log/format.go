package log

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// IsTerminal reports whprobeer w is an interactive terminal, used to decide
// whprobeer to color-code level names.
func IsTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

var lvlColor = map[Lvl]*color.Color{
	LvlCrit:  color.New(color.FgMagenta, color.Bold),
	LvlError: color.New(color.FgRed),
	LvlWarn:  color.New(color.FgYellow),
	LvlInfo:  color.New(color.FgGreen),
	LvlDebug: color.New(color.FgCyan),
	LvlTrace: color.New(color.FgWhite),
}

// Format renders a Record as a line of text.
type Format interface {
	Format(r *Record) []byte
}

type formatFunc func(*Record) []byte

func (f formatFunc) Format(r *Record) []byte { return f(r) }

// TerminalFormat mirrors the teacher lineage's console formatter: a fixed-
// width, color-coded level tag followed by the message and "k=v" pairs.
func TerminalFormat(color bool) Format {
	return formatFunc(func(r *Record) []byte {
		var b bytes.Buffer
		lvl := r.Lvl.String()
		if color {
			if c, ok := lvlColor[r.Lvl]; ok {
				lvl = c.Sprint(lvl)
			}
		}
		fmt.Fprintf(&b, "%s[%s] %s", r.Time.Format("01-02|15:04:05.000"), lvl, r.Msg)
		if r.Call.Valid() {
			fmt.Fprintf(&b, " %s", r.Call)
		}
		for i := 0; i < len(r.Ctx); i += 2 {
			fmt.Fprintf(&b, " %v=%v", r.Ctx[i], formatValue(r.Ctx[i+1]))
		}
		b.WriteByte('\n')
		return b.Bytes()
	})
}

func formatValue(v interface{}) string {
	switch x := v.(type) {
	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	default:
		s := fmt.Sprintf("%+v", v)
		if strings.ContainsAny(s, " \t\n\"=") {
			return fmt.Sprintf("%q", s)
		}
		return s
	}
}

type streamHandler struct {
	mu  sync.Mutex
	w   io.Writer
	fmt Format
}

func (h *streamHandler) Log(r *Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(h.fmt.Format(r))
	return err
}

// StreamHandler writes formatted records to w, wrapping it with a
// colorable writer so ANSI codes render on Windows consoles too.
func StreamHandler(w io.Writer, f Format) Handler {
	if f, ok := w.(*os.File); ok {
		w = colorable.NewColorable(f)
	}
	return &streamHandler{w: w, fmt: f}
}

// CallInfo is the file:line of the caller that emitted a Record.
type CallInfo struct {
	fn   string
	file string
	line int
}

func (c CallInfo) Valid() bool { return c.file != "" }

func (c CallInfo) String() string {
	return fmt.Sprintf("%s:%d", c.file, c.line)
}

func caller(skip int) CallInfo {
	call := stack.Caller(skip)
	frame := call.Frame()
	return CallInfo{fn: frame.Function, file: shortFile(frame.File), line: frame.Line}
}

func shortFile(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}
