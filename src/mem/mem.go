// Package mem is the kernel's physical page allocator. Every physical
// frame is reference counted; a frame returns to the free list only
// when its count drops to zero, the way biscuit's Physmem_t tracks
// page lifetime across multiple page-table mappings.
package mem

import "defs"
import "sync"
import "unsafe"

/// Pa_t is a physical, page-aligned address.
type Pa_t uint32

/// Pg_t is one physical page viewed as an array of 32-bit words, the
/// natural access granularity on this processor.
type Pg_t [defs.PGSIZE / 4]uint32

/// Page_i is the allocator interface consumed by callers that only
/// need to grab and release pages without reaching into Physmem_t's
/// internals: circbuf's ring buffer and vm's page-table walker both
/// depend only on this.
type Page_i interface {
	Refpg_new() (*Pg_t, Pa_t, bool)
	Refpg_new_nozero() (*Pg_t, Pa_t, bool)
	Refup(Pa_t)
	Refdown(Pa_t) bool
	Refcnt(Pa_t) int
	Pa2pg(Pa_t) *Pg_t
}

/// Physmem_t is the sole implementation of Page_i: a flat array of
/// frames starting at a fixed physical base, an index-based free
/// list, and a parallel refcount array. Using frame indices rather
/// than raw pointers keeps the free list GC-friendly and makes a
/// corrupted refcount easy to bounds-check.
type Physmem_t struct {
	sync.Mutex
	pgs   []Pg_t
	ref   []int32
	free  []int32
	base  Pa_t
}

/// Phys_init carves out npages frames starting at physical address
/// base. All frames start on the free list with a zero refcount.
func Phys_init(npages int, base Pa_t) *Physmem_t {
	p := &Physmem_t{
		pgs:  make([]Pg_t, npages),
		ref:  make([]int32, npages),
		free: make([]int32, npages),
		base: base,
	}
	for i := 0; i < npages; i++ {
		p.free[i] = int32(npages - 1 - i)
	}
	return p
}

func (p *Physmem_t) pa2idx(pa Pa_t) int {
	off := pa - p.base
	if off%defs.PGSIZE != 0 {
		panic("unaligned physical address")
	}
	idx := int(off / defs.PGSIZE)
	if idx < 0 || idx >= len(p.pgs) {
		panic("physical address out of range")
	}
	return idx
}

func (p *Physmem_t) idx2pa(idx int) Pa_t {
	return p.base + Pa_t(idx*defs.PGSIZE)
}

/// Refpg_new_nozero allocates a frame without clearing it. Its refcount
/// starts at zero: the caller is expected to claim ownership with
/// Refup (directly, or via vm.PageInsert mapping it somewhere) before
/// the frame is reachable from anywhere that could Refdown it.
func (p *Physmem_t) Refpg_new_nozero() (*Pg_t, Pa_t, bool) {
	p.Lock()
	defer p.Unlock()
	if len(p.free) == 0 {
		return nil, 0, false
	}
	n := len(p.free) - 1
	idx := p.free[n]
	p.free = p.free[:n]
	p.ref[idx] = 0
	return &p.pgs[idx], p.idx2pa(int(idx)), true
}

/// Refpg_new allocates a zero-filled frame.
func (p *Physmem_t) Refpg_new() (*Pg_t, Pa_t, bool) {
	pg, pa, ok := p.Refpg_new_nozero()
	if !ok {
		return nil, 0, false
	}
	for i := range pg {
		pg[i] = 0
	}
	return pg, pa, true
}

/// Refup increments a frame's refcount. A freshly allocated frame
/// starts at zero, so the first Refup is what gives it an owner; this
/// mirrors page_insert in the original kernel, which increments on
/// every successful mapping rather than assuming one reference from
/// allocation alone.
func (p *Physmem_t) Refup(pa Pa_t) {
	p.Lock()
	defer p.Unlock()
	p.ref[p.pa2idx(pa)]++
}

/// Refdown decrements a frame's refcount, returning it to the free
/// list and reporting true when the count reaches zero.
func (p *Physmem_t) Refdown(pa Pa_t) bool {
	p.Lock()
	defer p.Unlock()
	idx := p.pa2idx(pa)
	if p.ref[idx] <= 0 {
		panic("refdown of free frame")
	}
	p.ref[idx]--
	if p.ref[idx] == 0 {
		p.free = append(p.free, int32(idx))
		return true
	}
	return false
}

/// Refcnt reports the current refcount of a frame, for test assertions
/// and the conditional-remove family of operations.
func (p *Physmem_t) Refcnt(pa Pa_t) int {
	p.Lock()
	defer p.Unlock()
	return int(p.ref[p.pa2idx(pa)])
}

/// Pa2pg returns the page backing a physical address without altering
/// its refcount.
func (p *Physmem_t) Pa2pg(pa Pa_t) *Pg_t {
	p.Lock()
	idx := p.pa2idx(pa)
	p.Unlock()
	return &p.pgs[idx]
}

/// Nfree reports the number of unallocated frames, used by tests that
/// check for page leaks across an operation.
func (p *Physmem_t) Nfree() int {
	p.Lock()
	defer p.Unlock()
	return len(p.free)
}

/// Pg2bytes reinterprets a page as a flat byte array, for callers like
/// circbuf that treat a page as an untyped byte buffer.
func Pg2bytes(pg *Pg_t) *[defs.PGSIZE]uint8 {
	return (*[defs.PGSIZE]uint8)(unsafe.Pointer(pg))
}
