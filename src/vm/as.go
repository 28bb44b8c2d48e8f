// Package vm manages the two-level, software-walked page tables that
// back every environment's address space. There is no hardware page
// table walker on this processor: the TLB-refill exception handler
// calls the same PgdirWalk this package uses for mem_map and
// page-fault servicing, so the layout here is the only layout the
// machine ever sees.
package vm

import "defs"
import "mem"

const (
	pdshift = 22
	ptshift = 12
	ptmask  = 0x3ff
)

/// Pdx returns the page-directory index of a virtual address.
func Pdx(va uint32) uint32 {
	return va >> pdshift
}

/// Ptx returns the page-table index of a virtual address.
func Ptx(va uint32) uint32 {
	return (va >> ptshift) & ptmask
}

/// entry packs a physical frame number and flag bits the way both PDEs
/// and PTEs are encoded: frame number in the high 20 bits, flags in
/// the low 12.
type entry uint32

func mkentry(pa mem.Pa_t, perm uint32) entry {
	return entry(uint32(pa)&^uint32(defs.PGSIZE-1) | perm&uint32(defs.PGSIZE-1))
}

func (e entry) pa() mem.Pa_t   { return mem.Pa_t(uint32(e) &^ uint32(defs.PGSIZE-1)) }
func (e entry) perm() uint32   { return uint32(e) & uint32(defs.PGSIZE-1) }
func (e entry) valid() bool    { return uint32(e)&defs.PTE_V != 0 }

/// dir views a physical page as 1024 directory/table entries.
type dir struct {
	pg *mem.Pg_t
}

func asDir(pg *mem.Pg_t) dir { return dir{pg} }

func (d dir) get(i uint32) entry     { return entry(d.pg[i]) }
func (d dir) set(i uint32, e entry)  { d.pg[i] = uint32(e) }

/// TlbInval is called whenever a mapping changes so the ASID-tagged TLB
/// can be kept consistent with the page tables. Each call names one
/// (asid, va) pair to invalidate.
type TlbInval func(asid uint32, va uint32)

/// PgdirWalk returns the PTE slot for va within pgdir, allocating the
/// second-level page table on demand when create is true. The backing
/// frame of a freshly created page table is charged to phys and its
/// lifetime is managed exactly like any user page: page_remove on the
/// directory entry's owner must eventually drop it.
func PgdirWalk(pgdir *mem.Pg_t, va uint32, create bool, phys mem.Page_i) (*uint32, defs.Err_t) {
	pd := asDir(pgdir)
	pde := pd.get(Pdx(va))
	if !pde.valid() {
		if !create {
			return nil, 0
		}
		_, pa, ok := phys.Refpg_new()
		if !ok {
			return nil, defs.NO_MEM
		}
		phys.Refup(pa) /// owned by this directory slot until the env is torn down
		pde = mkentry(pa, defs.PTE_V)
		pd.set(Pdx(va), pde)
	}
	pt := asDir(phys.Pa2pg(pde.pa()))
	return &pt.pg[Ptx(va)], 0
}

/// PageLookup resolves va to its backing physical address, returning
/// ok=false if no valid mapping exists.
func PageLookup(pgdir *mem.Pg_t, va uint32, phys mem.Page_i) (mem.Pa_t, uint32, bool) {
	slot, err := PgdirWalk(pgdir, va, false, phys)
	if err != 0 || slot == nil || entry(*slot) == 0 || !entry(*slot).valid() {
		return 0, 0, false
	}
	e := entry(*slot)
	return e.pa(), e.perm(), true
}

/// PageInsert maps physical page pa at va in pgdir with the given
/// permission bits. Mapping the same frame at a second va increments
/// its refcount; replacing an existing mapping at the same va drops
/// the refcount of whatever was there before linking in the new one,
/// so a page never gets refup'd twice for one slot.
func PageInsert(pgdir *mem.Pg_t, asid uint32, pa mem.Pa_t, va uint32, perm uint32, phys mem.Page_i, inval TlbInval) defs.Err_t {
	slot, err := PgdirWalk(pgdir, va, true, phys)
	if err != 0 {
		return err
	}
	old := entry(*slot)
	phys.Refup(pa)
	if old.valid() {
		if old.pa() == pa {
			phys.Refdown(pa) /// net no-op: same page re-mapped at same va
		} else {
			phys.Refdown(old.pa())
		}
	}
	*slot = uint32(mkentry(pa, perm|defs.PTE_V))
	if inval != nil {
		inval(asid, va)
	}
	return 0
}

/// PageRemove unmaps va, dropping the backing page's refcount. It is a
/// no-op if va has no mapping.
func PageRemove(pgdir *mem.Pg_t, asid uint32, va uint32, phys mem.Page_i, inval TlbInval) {
	slot, err := PgdirWalk(pgdir, va, false, phys)
	if err != 0 || slot == nil {
		return
	}
	e := entry(*slot)
	if !e.valid() {
		return
	}
	phys.Refdown(e.pa())
	*slot = 0
	if inval != nil {
		inval(asid, va)
	}
}

/// PageConditionalRemove walks every page-table entry below vaLimit
/// (exclusive) and removes those whose permission bits match mask:
/// under exact, the PTE's perm bits must contain every bit of mask; by
/// default any overlapping bit is enough. It returns the number of
/// mappings removed, matching the kernel's bulk-teardown path used
/// when an environment's COW-library mappings must be dropped
/// selectively rather than by wiping the whole address space.
func PageConditionalRemove(pgdir *mem.Pg_t, asid uint32, mask uint32, exact bool, vaLimit uint32, phys mem.Page_i, inval TlbInval) int {
	count := 0
	pd := asDir(pgdir)
	for pdx := uint32(0); pdx < uint32(defs.PGSIZE/4); pdx++ {
		base := pdx << pdshift
		if base >= vaLimit {
			break
		}
		pde := pd.get(pdx)
		if !pde.valid() {
			continue
		}
		pt := asDir(phys.Pa2pg(pde.pa()))
		for ptx := uint32(0); ptx < uint32(defs.PGSIZE/4); ptx++ {
			va := base | ptx<<ptshift
			if va >= vaLimit {
				break
			}
			e := pt.get(ptx)
			if !e.valid() {
				continue
			}
			perm := e.perm()
			match := false
			if exact {
				match = perm&mask == mask
			} else {
				match = perm&mask != 0
			}
			if !match {
				continue
			}
			phys.Refdown(e.pa())
			pt.set(ptx, 0)
			if inval != nil {
				inval(asid, va)
			}
			count++
		}
	}
	return count
}

/// ForEachUserPage walks every valid mapping in pgdir below vaLimit,
/// lowest address first, invoking fn with each mapping's va, backing
/// frame and permission bits. It stops and returns fn's error at the
/// first non-zero result; fork's page-duplication walk is built on
/// this, sharing the same two-level traversal as PageConditionalRemove.
func ForEachUserPage(pgdir *mem.Pg_t, vaLimit uint32, phys mem.Page_i, fn func(va uint32, pa mem.Pa_t, perm uint32) defs.Err_t) defs.Err_t {
	pd := asDir(pgdir)
	for pdx := uint32(0); pdx < uint32(defs.PGSIZE/4); pdx++ {
		base := pdx << pdshift
		if base >= vaLimit {
			break
		}
		pde := pd.get(pdx)
		if !pde.valid() {
			continue
		}
		pt := asDir(phys.Pa2pg(pde.pa()))
		for ptx := uint32(0); ptx < uint32(defs.PGSIZE/4); ptx++ {
			va := base | ptx<<ptshift
			if va >= vaLimit {
				break
			}
			e := pt.get(ptx)
			if !e.valid() {
				continue
			}
			if err := fn(va, e.pa(), e.perm()); err != 0 {
				return err
			}
		}
	}
	return 0
}

/// Pgfault services a TLB-mod (write to a read-only page) exception.
/// When the faulting page is marked PTE_COW and not PTE_PROTECT, it
/// allocates a fresh frame, copies the old contents, and remaps the
/// page writable and private to this environment — the kernel half of
/// user-space fork's copy-on-write contract.
func Pgfault(pgdir *mem.Pg_t, asid uint32, va uint32, phys mem.Page_i, inval TlbInval) defs.Err_t {
	pa, perm, ok := PageLookup(pgdir, va, phys)
	if !ok {
		return defs.INVAL
	}
	if perm&defs.PTE_PROTECT != 0 {
		return defs.PERM
	}
	if perm&defs.PTE_COW == 0 {
		return defs.INVAL
	}
	newpg, newpa, ok := phys.Refpg_new_nozero()
	if !ok {
		return defs.NO_MEM
	}
	old := phys.Pa2pg(pa)
	copy(newpg[:], old[:])
	newperm := (perm &^ defs.PTE_COW) | defs.PTE_D
	return PageInsert(pgdir, asid, newpa, va&^uint32(defs.PGSIZE-1), newperm, phys, inval)
}
