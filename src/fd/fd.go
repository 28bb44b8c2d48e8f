// Package fd is the per-environment file-descriptor layer: a small
// fixed table of slots, a pipe implementation backed by circbuf's
// ring buffer, an in-memory file stand-in for the filesystem boundary
// this kernel externalizes, and a working-directory helper built on
// bpath.
package fd

import "sync"

import "bpath"
import "circbuf"
import "defs"
import "mem"
import "stat"

/// Kind identifies what a descriptor refers to.
type Kind int

const (
	KindPipe Kind = iota
	KindConsole
	KindFile
)

/// Pipe_t is a single-writer, single-reader byte stream. Reads and
/// writes never block inside this package: a short or zero-length
/// result means "try again", and the caller is expected to yield and
/// retry, exactly as the external interface
/// describes pipe I/O being built from yield loops rather than a
/// blocking primitive.
type Pipe_t struct {
	sync.Mutex
	cb          circbuf.Circbuf_t
	readOpen    int
	writeOpen   int
}

/// NewPipe creates a pipe with one read end and one write end already
/// open; closing the last end of either side marks that side done.
func NewPipe(phys mem.Page_i) *Pipe_t {
	p := &Pipe_t{readOpen: 1, writeOpen: 1}
	p.cb.Cb_init(defs.PGSIZE, phys)
	return p
}

/// Read copies as many ready bytes as fit into dst. It returns (0,
/// true) at end-of-stream once the write side is fully closed and the
/// buffer has drained.
func (p *Pipe_t) Read(dst []uint8) (int, bool, defs.Err_t) {
	p.Lock()
	defer p.Unlock()
	n, err := p.cb.Read(dst)
	if err != 0 {
		return 0, false, err
	}
	eof := n == 0 && p.writeOpen == 0
	return n, eof, 0
}

/// Write copies as much of src as fits into the pipe's buffer,
/// failing INVAL if the read side has already closed (the classic
/// broken-pipe condition).
func (p *Pipe_t) Write(src []uint8) (int, defs.Err_t) {
	p.Lock()
	defer p.Unlock()
	if p.readOpen == 0 {
		return 0, defs.INVAL
	}
	return p.cb.Write(src)
}

/// CloseRead and CloseWrite drop one reference to the respective end;
/// the pipe only truly releases its backing page once both ends are
/// gone.
func (p *Pipe_t) CloseRead(phys mem.Page_i) {
	p.Lock()
	defer p.Unlock()
	p.readOpen--
	p.maybeRelease()
}

func (p *Pipe_t) CloseWrite(phys mem.Page_i) {
	p.Lock()
	defer p.Unlock()
	p.writeOpen--
	p.maybeRelease()
}

func (p *Pipe_t) maybeRelease() {
	if p.readOpen <= 0 && p.writeOpen <= 0 {
		p.cb.Cb_release()
	}
}

/// file_t is the in-memory stand-in for a filesystem-backed file: the
/// external interface treats on-disk storage as an out-of-scope
/// collaborator, so reads and writes here operate on a plain byte
/// slice that callers can preload with fixture content.
type file_t struct {
	sync.Mutex
	data []byte
	pos  int
}

/// Fd_t is one open file descriptor.
type Fd_t struct {
	Kind       Kind
	Pipe       *Pipe_t
	PipeIsRead bool
	file       *file_t
	console    *ConsoleFd
}

/// ConsoleFd is the minimal console device surface a descriptor needs;
/// src/console supplies the real implementation.
type ConsoleFd struct {
	Write func([]byte) int
	Read  func([]byte) int
}

/// NewFile wraps an in-memory byte buffer as a descriptor, read/write
/// at an independent cursor.
func NewFile(data []byte) *Fd_t {
	return &Fd_t{Kind: KindFile, file: &file_t{data: append([]byte(nil), data...)}}
}

/// NewConsole wraps a console device as a descriptor.
func NewConsole(c *ConsoleFd) *Fd_t {
	return &Fd_t{Kind: KindConsole, console: c}
}

/// NewPipeEnd wraps one end of a pipe as a descriptor.
func NewPipeEnd(p *Pipe_t, isRead bool) *Fd_t {
	return &Fd_t{Kind: KindPipe, Pipe: p, PipeIsRead: isRead}
}

/// Read dispatches to the descriptor's underlying kind.
func (f *Fd_t) Read(dst []uint8) (int, defs.Err_t) {
	switch f.Kind {
	case KindPipe:
		if !f.PipeIsRead {
			return 0, defs.INVAL
		}
		n, _, err := f.Pipe.Read(dst)
		return n, err
	case KindConsole:
		return f.console.Read(dst), 0
	case KindFile:
		f.file.Lock()
		defer f.file.Unlock()
		n := copy(dst, f.file.data[f.file.pos:])
		f.file.pos += n
		return n, 0
	}
	return 0, defs.INVAL
}

/// Write dispatches to the descriptor's underlying kind.
func (f *Fd_t) Write(src []uint8) (int, defs.Err_t) {
	switch f.Kind {
	case KindPipe:
		if f.PipeIsRead {
			return 0, defs.INVAL
		}
		return f.Pipe.Write(src)
	case KindConsole:
		return f.console.Write(src), 0
	case KindFile:
		f.file.Lock()
		defer f.file.Unlock()
		end := f.file.pos + len(src)
		if end > len(f.file.data) {
			grown := make([]byte, end)
			copy(grown, f.file.data)
			f.file.data = grown
		}
		copy(f.file.data[f.file.pos:end], src)
		f.file.pos = end
		return len(src), 0
	}
	return 0, defs.INVAL
}

/// Stat fills in a stat record for this descriptor: its kind as a
/// mode tag, and its size where one is meaningful, the same shape
/// ufs.Ufs_t.Stat fills from a real on-disk inode.
func (f *Fd_t) Stat() (*stat.Stat_t, defs.Err_t) {
	st := &stat.Stat_t{}
	switch f.Kind {
	case KindPipe:
		st.Wmode(stat.ModeFifo)
	case KindConsole:
		st.Wmode(stat.ModeChar)
	case KindFile:
		f.file.Lock()
		st.Wmode(stat.ModeRegular)
		st.Wsize(uint(len(f.file.data)))
		f.file.Unlock()
	default:
		return nil, defs.INVAL
	}
	return st, 0
}

/// Close releases any resource a descriptor's kind holds open.
func (f *Fd_t) Close(phys mem.Page_i) {
	if f.Kind == KindPipe {
		if f.PipeIsRead {
			f.Pipe.CloseRead(phys)
		} else {
			f.Pipe.CloseWrite(phys)
		}
	}
}

/// Table_t is the fixed NOFILE-slot descriptor table of one
/// environment.
type Table_t struct {
	sync.Mutex
	slots [defs.NOFILE]*Fd_t
}

/// Alloc installs fdv in the lowest free slot, failing MAX_OPEN if the
/// table is full.
func (t *Table_t) Alloc(fdv *Fd_t) (int, defs.Err_t) {
	t.Lock()
	defer t.Unlock()
	for i, s := range t.slots {
		if s == nil {
			t.slots[i] = fdv
			return i, 0
		}
	}
	return 0, defs.MAX_OPEN
}

/// Get returns the descriptor at fdno, or BAD_ENV-style BAD_FD via
/// INVAL if the slot is unused or out of range.
func (t *Table_t) Get(fdno int) (*Fd_t, defs.Err_t) {
	t.Lock()
	defer t.Unlock()
	if fdno < 0 || fdno >= defs.NOFILE || t.slots[fdno] == nil {
		return nil, defs.INVAL
	}
	return t.slots[fdno], 0
}

/// Close releases fdno's slot.
func (t *Table_t) Close(fdno int, phys mem.Page_i) defs.Err_t {
	if fdno < 0 || fdno >= defs.NOFILE {
		return defs.INVAL
	}
	t.Lock()
	f := t.slots[fdno]
	if f == nil {
		t.Unlock()
		return defs.INVAL
	}
	t.slots[fdno] = nil
	t.Unlock()
	f.Close(phys)
	return 0
}

/// Dup installs the same descriptor object at the lowest free slot, so
/// both fd numbers refer to the same pipe/file/console state.
func (t *Table_t) Dup(fdno int) (int, defs.Err_t) {
	if fdno < 0 || fdno >= defs.NOFILE {
		return 0, defs.INVAL
	}
	t.Lock()
	f := t.slots[fdno]
	t.Unlock()
	if f == nil {
		return 0, defs.INVAL
	}
	return t.Alloc(f)
}

/// Cwd_t tracks one environment's current working directory.
type Cwd_t struct {
	sync.Mutex
	path string
}

/// NewCwd starts a working directory at the root.
func NewCwd() *Cwd_t {
	return &Cwd_t{path: "/"}
}

/// Chdir resolves rel against the current path and adopts the result.
func (c *Cwd_t) Chdir(rel string) {
	c.Lock()
	defer c.Unlock()
	c.path = bpath.Canonicalize(c.path, rel)
}

/// Getwd returns the current working directory.
func (c *Cwd_t) Getwd() string {
	c.Lock()
	defer c.Unlock()
	return c.path
}
