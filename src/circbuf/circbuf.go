// Package circbuf implements a single page-backed ring buffer. Pipes
// (fd.Pipe_t) are the only consumer: a single writer and single reader
// share one ring, coordinating hangup through the kernel's pipe-end
// reference counts rather than through the buffer itself.
package circbuf

import "defs"
import "mem"

/// Circbuf_t is a byte ring over one physical page. It is not safe for
/// concurrent use without an external lock; fd.Pipe_t supplies that.
type Circbuf_t struct {
	phys  mem.Page_i /// page allocator/refcount interface
	buf   []uint8    /// backing memory, length == bufsz
	bufsz int        /// buffer capacity in bytes
	head  int        /// write position, monotonically increasing
	tail  int        /// read position, monotonically increasing
	p_pg  mem.Pa_t    /// physical page backing the buffer, once allocated
}

/// Bufsz returns the configured buffer size.
func (cb *Circbuf_t) Bufsz() int {
	return cb.bufsz
}

/// Cb_init records the buffer size and allocator; the backing page is
/// allocated lazily on first use so construction cannot fail.
func (cb *Circbuf_t) Cb_init(sz int, m mem.Page_i) {
	if sz <= 0 || sz > defs.PGSIZE {
		panic("bad circbuf size")
	}
	cb.phys = m
	cb.bufsz = sz
	cb.head, cb.tail = 0, 0
}

/// Cb_ensure guarantees the buffer is backed by a physical page.
func (cb *Circbuf_t) Cb_ensure() defs.Err_t {
	if cb.buf != nil {
		return 0
	}
	if cb.bufsz == 0 {
		panic("circbuf not initialized")
	}
	pg, p_pg, ok := cb.phys.Refpg_new_nozero()
	if !ok {
		return defs.NO_MEM
	}
	cb.phys.Refup(p_pg) /// circbuf owns this page directly, outside any page table
	bpg := mem.Pg2bytes(pg)[:]
	cb.buf = bpg[:cb.bufsz]
	cb.p_pg = p_pg
	return 0
}

/// Cb_release drops the reference to the backing page.
func (cb *Circbuf_t) Cb_release() {
	if cb.buf == nil {
		return
	}
	cb.phys.Refdown(cb.p_pg)
	cb.p_pg = 0
	cb.buf = nil
	cb.head, cb.tail = 0, 0
}

/// Full returns true when the buffer cannot accept more data.
func (cb *Circbuf_t) Full() bool {
	return cb.head-cb.tail == cb.bufsz
}

/// Empty reports whether the buffer contains any unread data.
func (cb *Circbuf_t) Empty() bool {
	return cb.head == cb.tail
}

/// Left returns the remaining write capacity in bytes.
func (cb *Circbuf_t) Left() int {
	return cb.bufsz - (cb.head - cb.tail)
}

/// Used returns the current number of unread bytes.
func (cb *Circbuf_t) Used() int {
	return cb.head - cb.tail
}

/// Write copies as much of src as fits into the ring, allocating the
/// backing page on first use. It returns the number of bytes copied.
func (cb *Circbuf_t) Write(src []uint8) (int, defs.Err_t) {
	if err := cb.Cb_ensure(); err != 0 {
		return 0, err
	}
	n := len(src)
	if room := cb.Left(); n > room {
		n = room
	}
	for i := 0; i < n; i++ {
		cb.buf[(cb.head+i)%cb.bufsz] = src[i]
	}
	cb.head += n
	return n, 0
}

/// Read copies as much unread data as fits into dst. It returns the
/// number of bytes copied.
func (cb *Circbuf_t) Read(dst []uint8) (int, defs.Err_t) {
	if err := cb.Cb_ensure(); err != 0 {
		return 0, err
	}
	n := len(dst)
	if avail := cb.Used(); n > avail {
		n = avail
	}
	for i := 0; i < n; i++ {
		dst[i] = cb.buf[(cb.tail+i)%cb.bufsz]
	}
	cb.tail += n
	return n, 0
}
