// Package heap is the kernel's own dynamic-memory allocator, serving
// malloc/free requests for kernel data structures out of a fixed
// [HEAP_BEGIN, HEAP_BEGIN+HEAP_SIZE) window. It never calls back into
// mem's physical-page allocator: the window is a single pre-allocated
// arena, split and coalesced first-fit, the way the original kernel's
// MBlock free list works.
package heap

import "container/list"
import "sync"

import "defs"

/// Align is the byte alignment malloc guarantees every block to, the
/// original MBlock layout's padding requirement.
const Align = 8

/// HeaderOverhead approximates the fixed fields of the original
/// MBlock record (size, ptr, free, padding) that a real allocation
/// would spend out of the arena alongside the requested payload, so
/// that back-to-back large allocations exhaust the heap at the same
/// point the original bookkeeping does.
const HeaderOverhead = 24

/// mblock mirrors the original kernel's MBlock: an address range plus
/// a free/allocated flag, kept in address order by the containing
/// list.List so neighbors can be found in O(1) for coalescing.
type mblock struct {
	off  int /// byte offset into the arena
	size int /// usable size of this block
	free bool
}

/// Heap_t is the allocator. One instance backs the kernel heap; tests
/// construct additional instances over smaller arenas to exercise
/// exhaustion and fragmentation without touching the real window.
type Heap_t struct {
	sync.Mutex
	base  uint32
	size  int
	l     *list.List
}

/// Init builds a heap over an arena of the given size, starting at
/// base. A single free block spans the whole arena.
func Init(base uint32, size int) *Heap_t {
	h := &Heap_t{base: base, size: size, l: list.New()}
	h.l.PushBack(&mblock{off: 0, size: size, free: true})
	return h
}

/// New builds the kernel's singleton heap over the external-interface
/// HEAP_BEGIN/HEAP_SIZE window.
func New() *Heap_t {
	return Init(defs.HEAP_BEGIN, int(defs.HEAP_SIZE))
}

func roundup(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

/// Malloc returns the address of a freshly allocated block of at
/// least size bytes, or ok=false if size is not positive or the heap
/// is exhausted or too fragmented to satisfy the request.
func (h *Heap_t) Malloc(size int) (uint32, bool) {
	if size <= 0 {
		return 0, false
	}
	size = roundup(size, Align)
	needed := size + HeaderOverhead

	h.Lock()
	defer h.Unlock()

	for e := h.l.Front(); e != nil; e = e.Next() {
		b := e.Value.(*mblock)
		if !b.free || b.size < needed {
			continue
		}
		rem := b.size - needed
		if rem >= Align {
			newOff := b.off + needed
			b.size = size
			h.l.InsertAfter(&mblock{off: newOff, size: rem, free: true}, e)
		}
		b.free = false
		return h.base + uint32(b.off), true
	}
	return 0, false
}

/// Free releases the block at addr, coalescing it with an adjacent
/// free neighbor on either side.
func (h *Heap_t) Free(addr uint32) {
	if addr == 0 {
		return
	}
	off := int(addr - h.base)

	h.Lock()
	defer h.Unlock()

	var target *list.Element
	for e := h.l.Front(); e != nil; e = e.Next() {
		if e.Value.(*mblock).off == off {
			target = e
			break
		}
	}
	if target == nil {
		panic("heap: free of unknown address")
	}
	b := target.Value.(*mblock)
	if b.free {
		panic("heap: double free")
	}
	b.free = true

	if next := target.Next(); next != nil && next.Value.(*mblock).free {
		nb := next.Value.(*mblock)
		b.size += nb.size
		h.l.Remove(next)
	}
	if prev := target.Prev(); prev != nil && prev.Value.(*mblock).free {
		pb := prev.Value.(*mblock)
		pb.size += b.size
		h.l.Remove(target)
	}
}

/// Used returns the number of bytes currently allocated, for tests
/// that check fragmentation behavior across a sequence of operations.
func (h *Heap_t) Used() int {
	h.Lock()
	defer h.Unlock()
	n := 0
	for e := h.l.Front(); e != nil; e = e.Next() {
		if b := e.Value.(*mblock); !b.free {
			n += b.size
		}
	}
	return n
}

/// Blocks returns the number of blocks (free and allocated) currently
/// tracked, so tests can assert coalescing actually merged entries.
func (h *Heap_t) Blocks() int {
	h.Lock()
	defer h.Unlock()
	return h.l.Len()
}
