package shell

import (
	"fmt"

	"golang.org/x/text/width"
)

// Control bytes the line editor recognizes.
const (
	ctrlA     = 1
	ctrlE     = 5
	ctrlK     = 11
	ctrlU     = 21
	ctrlW     = 23
	backspace = 8
	del       = 127
	cr        = 13
	lf        = 10
	esc       = 27
)

/// Editor is a byte-at-a-time raw-mode line editor: it accumulates a
/// line in an internal buffer, supports Emacs-style kill/cursor
/// bindings and arrow-key history browsing via CSI escape sequences,
/// and redraws the whole line on every edit.
type Editor struct {
	prompt string
	hist   *History

	buf    []byte
	cursor int

	escState int // 0 = idle, 1 = saw ESC, 2 = saw ESC '['

	browsing bool
	histIdx  int
	saved    []byte

	out func(string)
}

/// NewEditor builds an editor that writes its redraws through out.
func NewEditor(prompt string, hist *History, out func(string)) *Editor {
	return &Editor{prompt: prompt, hist: hist, out: out}
}

/// Reset clears the current line, for starting a fresh prompt.
func (e *Editor) Reset() {
	e.buf = e.buf[:0]
	e.cursor = 0
	e.browsing = false
	e.escState = 0
}

/// Line returns the buffer's current contents.
func (e *Editor) Line() string { return string(e.buf) }

/// Feed processes one input byte. It returns the completed line and
/// done=true once Enter is seen; otherwise it redraws and returns
/// done=false.
func (e *Editor) Feed(b byte) (string, bool) {
	if e.escState == 1 {
		if b == '[' {
			e.escState = 2
		} else {
			e.escState = 0
		}
		return "", false
	}
	if e.escState == 2 {
		e.escState = 0
		switch b {
		case 'A':
			e.historyUp()
		case 'B':
			e.historyDown()
		case 'C':
			if e.cursor < len(e.buf) {
				e.cursor++
			}
		case 'D':
			if e.cursor > 0 {
				e.cursor--
			}
		}
		e.redraw()
		return "", false
	}

	switch b {
	case esc:
		e.escState = 1
		return "", false
	case cr, lf:
		line := string(e.buf)
		e.out("\r\n")
		e.Reset()
		return line, true
	case ctrlA:
		e.cursor = 0
	case ctrlE:
		e.cursor = len(e.buf)
	case ctrlK:
		e.buf = e.buf[:e.cursor]
	case ctrlU:
		e.buf = append([]byte{}, e.buf[e.cursor:]...)
		e.cursor = 0
	case ctrlW:
		start := e.cursor
		for start > 0 && e.buf[start-1] == ' ' {
			start--
		}
		for start > 0 && e.buf[start-1] != ' ' {
			start--
		}
		e.buf = append(e.buf[:start], e.buf[e.cursor:]...)
		e.cursor = start
	case backspace, del:
		if e.cursor > 0 {
			e.buf = append(e.buf[:e.cursor-1], e.buf[e.cursor:]...)
			e.cursor--
		}
	default:
		tail := append([]byte{}, e.buf[e.cursor:]...)
		e.buf = append(e.buf[:e.cursor], b)
		e.buf = append(e.buf, tail...)
		e.cursor++
	}
	e.redraw()
	return "", false
}

/// historyUp walks one entry further into the past, saving the
/// pre-walk input the first time it is called so Down can restore it.
func (e *Editor) historyUp() {
	if e.hist == nil || e.hist.Len() == 0 {
		return
	}
	if !e.browsing {
		e.saved = append([]byte{}, e.buf...)
		e.browsing = true
		e.histIdx = 0
	} else if e.histIdx+1 < e.hist.Len() {
		e.histIdx++
	}
	cmd, ok := e.hist.At(e.histIdx)
	if !ok {
		return
	}
	e.buf = []byte(cmd)
	e.cursor = len(e.buf)
}

/// historyDown walks back toward the present, restoring the saved
/// pre-walk input once it passes the newest history entry.
func (e *Editor) historyDown() {
	if !e.browsing {
		return
	}
	if e.histIdx == 0 {
		e.browsing = false
		e.buf = e.saved
		e.cursor = len(e.buf)
		return
	}
	e.histIdx--
	cmd, ok := e.hist.At(e.histIdx)
	if !ok {
		return
	}
	e.buf = []byte(cmd)
	e.cursor = len(e.buf)
}

/// displayColumns returns how many terminal columns b occupies,
/// counting East Asian wide/fullwidth runes as two columns each so the
/// cursor math in redraw lines up on terminals that render them wide.
func displayColumns(b []byte) int {
	cols := 0
	for _, r := range string(b) {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			cols += 2
		default:
			cols++
		}
	}
	return cols
}

/// redraw rewrites the whole line: return to column zero, print the
/// prompt and buffer, erase anything stale past the end, then move the
/// cursor left to its logical position.
func (e *Editor) redraw() {
	if e.out == nil {
		return
	}
	s := "\r" + e.prompt + string(e.buf) + "\x1b[K"
	back := displayColumns(e.buf[e.cursor:])
	if back > 0 {
		s += fmt.Sprintf("\x1b[%dD", back)
	}
	e.out(s)
}
