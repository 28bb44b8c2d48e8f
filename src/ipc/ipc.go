// Package ipc implements the kernel's two IPC primitives: synchronous
// value/page rendezvous between exactly two environments, and
// multi-reader shared-memory regions keyed by a small integer handle.
package ipc

import "sync"

import "defs"
import "mem"
import "proc"
import "vm"

/// Recv marks e as waiting to receive a value, recording where an
/// accompanying page (if any) should be mapped. The scheduler must
/// observe e.Status and not run it again until a matching Send wakes
/// it, the same suspend-on-recv contract as the blocking syscall.
func Recv(e *proc.Env_t, dstva uint32, perm uint32) defs.Err_t {
	if dstva != 0 && dstva%defs.PGSIZE != 0 {
		return defs.INVAL
	}
	e.Lock()
	defer e.Unlock()
	e.IpcRecving = true
	e.IpcDstva = dstva
	e.IpcPerm = perm
	e.Status = proc.ENV_NOT_RUNNABLE
	return 0
}

/// Send delivers value (and, if both sides named a page, one page of
/// memory) from caller to target. It fails with IPC_NOT_RECV if
/// target is not currently blocked in Recv, and with INVAL if either
/// side's va is misaligned. On success target transitions back to
/// ENV_RUNNABLE with IpcRecving cleared.
func Send(target *proc.Env_t, caller *proc.Env_t, value uint32, srcva uint32, perm uint32, phys mem.Page_i, inval vm.TlbInval) defs.Err_t {
	if srcva != 0 && srcva%defs.PGSIZE != 0 {
		return defs.INVAL
	}

	target.Lock()
	defer target.Unlock()
	if !target.IpcRecving {
		return defs.IPC_NOT_RECV
	}

	if srcva != 0 && target.IpcDstva != 0 {
		pa, _, ok := vm.PageLookup(caller.Pgdir, srcva, phys)
		if !ok {
			return defs.INVAL
		}
		mapperm := target.IpcPerm
		if err := vm.PageInsert(target.Pgdir, target.Asid, pa, target.IpcDstva, mapperm|perm, phys, inval); err != 0 {
			return err
		}
	}

	target.IpcValue = value
	target.IpcFrom = caller.Id
	target.IpcRecving = false
	target.Status = proc.ENV_RUNNABLE
	return 0
}

const (
	N_SHM      = 8
	N_SHM_PAGE = 8
)

/// Shm_t is one shared-memory region: up to N_SHM_PAGE physical frames
/// bound into zero or more environments' address spaces. Open counts
/// how many environments currently have it bound, so shm_free can
/// refuse to tear down a region still in use.
type Shm_t struct {
	npage int
	pages [N_SHM_PAGE]mem.Pa_t
	open  int
}

/// Table_t is the fixed N_SHM-slot shared-memory directory.
type Table_t struct {
	sync.Mutex
	slots [N_SHM]*Shm_t
}

/// NewTable builds an empty shared-memory directory.
func NewTable() *Table_t {
	return &Table_t{}
}

/// New allocates npage fresh frames into a free slot and returns its
/// key. Every frame starts zeroed and referenced once, by the table
/// itself; New maps nothing, and each Bind adds one reference per
/// mapping.
func (t *Table_t) New(npage int, phys mem.Page_i) (int, defs.Err_t) {
	if npage <= 0 || npage > N_SHM_PAGE {
		return 0, defs.INVAL
	}
	t.Lock()
	defer t.Unlock()
	key := -1
	for i, s := range t.slots {
		if s == nil {
			key = i
			break
		}
	}
	if key == -1 {
		return 0, defs.NO_MEM
	}
	s := &Shm_t{npage: npage}
	for i := 0; i < npage; i++ {
		_, pa, ok := phys.Refpg_new()
		if !ok {
			for j := 0; j < i; j++ {
				phys.Refdown(s.pages[j])
			}
			return 0, defs.NO_MEM
		}
		phys.Refup(pa)
		s.pages[i] = pa
	}
	t.slots[key] = s
	return key, 0
}

/// Bind maps every frame of key's region at consecutive pages starting
/// at va in the caller's address space, writable (PTE_D), and
/// increments the region's open count.
func (t *Table_t) Bind(key int, va uint32, pgdir *mem.Pg_t, asid uint32, phys mem.Page_i, inval func(uint32, uint32)) defs.Err_t {
	if key < 0 || key >= N_SHM || va%defs.PGSIZE != 0 {
		return defs.INVAL
	}
	t.Lock()
	s := t.slots[key]
	t.Unlock()
	if s == nil {
		return defs.INVAL
	}
	for i := 0; i < s.npage; i++ {
		dst := va + uint32(i)*defs.PGSIZE
		if err := vm.PageInsert(pgdir, asid, s.pages[i], dst, defs.PTE_D, phys, inval); err != 0 {
			return err
		}
	}
	t.Lock()
	s.open++
	t.Unlock()
	return 0
}

/// Unbind removes key's mappings starting at va from the caller's
/// address space and decrements the region's open count.
func (t *Table_t) Unbind(key int, va uint32, pgdir *mem.Pg_t, asid uint32, phys mem.Page_i, inval func(uint32, uint32)) defs.Err_t {
	if key < 0 || key >= N_SHM || va%defs.PGSIZE != 0 {
		return defs.INVAL
	}
	t.Lock()
	s := t.slots[key]
	t.Unlock()
	if s == nil {
		return defs.INVAL
	}
	for i := 0; i < s.npage; i++ {
		vm.PageRemove(pgdir, asid, va+uint32(i)*defs.PGSIZE, phys, inval)
	}
	t.Lock()
	s.open--
	t.Unlock()
	return 0
}

/// Free releases key's region, failing BUSY while any environment
/// still has it bound.
func (t *Table_t) Free(key int, phys mem.Page_i) defs.Err_t {
	if key < 0 || key >= N_SHM {
		return defs.INVAL
	}
	t.Lock()
	defer t.Unlock()
	s := t.slots[key]
	if s == nil {
		return defs.INVAL
	}
	if s.open > 0 {
		return defs.BUSY
	}
	for i := 0; i < s.npage; i++ {
		phys.Refdown(s.pages[i])
	}
	t.slots[key] = nil
	return 0
}

/// Open reports a region's current bind count, for tests.
func (t *Table_t) Open(key int) int {
	t.Lock()
	defer t.Unlock()
	if s := t.slots[key]; s != nil {
		return s.open
	}
	return 0
}
