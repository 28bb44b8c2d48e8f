// Package proc owns the environment (process) table: allocation,
// teardown, id resolution, and the per-environment shell-variable
// store that travels with each env across fork. The run queues that
// decide *which* runnable env goes next live in sched; this package
// only tracks what an env is and whether it currently wants to run.
package proc

import "sync"

import "accnt"
import "defs"
import "fd"
import "mem"

/// Status is the lifecycle state of an environment.
type Status int

const (
	ENV_FREE Status = iota
	ENV_RUNNABLE
	ENV_NOT_RUNNABLE
)

/// Trapframe is a simplified snapshot of a suspended environment's
/// saved register file. This kernel does not model the MIPS register
/// set directly; only the one field user-space fork actually depends
/// on, the syscall return-value register ($v0, MIPS register 2), is
/// meaningful to the code in this module. The rest exists so
/// set_trapframe has somewhere to copy a full register dump to.
type Trapframe struct {
	Regs [32]uint32
}

/// Var_t is one shell-visible environment variable, scoped either to a
/// single shell instance (Owner != 0) or global (Owner == 0); globals
/// are the only ones copied into a child on fork.
type Var_t struct {
	Name  string
	Value string
	Perm  int /// 1 => readonly, cannot be unset or redeclared, even by its owner
	Owner int
}

/// Env_t is the kernel's control block for one environment. There is
/// one Env_t per OS-level thread of control; MOS runs exactly one
/// thread per environment, so this doubles as the scheduling unit.
type Env_t struct {
	sync.Mutex

	Id       defs.Envid_t
	Gen      uint32
	Asid     uint32
	ParentId defs.Envid_t
	Status   Status
	Pgdir    *mem.Pg_t

	/// Pri is the Round-Robin time-slice quantum; higher runs longer
	/// once scheduled.
	Pri int

	/// EDF scheduling parameters; zero values mean the env is RR-only.
	IsEdf          bool
	EdfPeriod      int
	EdfRuntime     int
	PeriodDeadline int
	RuntimeLeft    int

	/// IPC rendezvous state.
	IpcValue   uint32
	IpcFrom    defs.Envid_t
	IpcRecving bool
	IpcDstva   uint32
	IpcPerm    uint32

	UserTlbModEntry uint32
	Tf              Trapframe

	ShellId int
	Vars    []*Var_t
	Cwd     *fd.Cwd_t
	Files   fd.Table_t

	Acct accnt.Accnt_t
}

const nenv = defs.NENV

/// Table_t is the fixed-size environment table plus its free list.
/// Generation counting in each envid means a stale handle to a reaped
/// slot can never be mistaken for the new occupant.
type Table_t struct {
	sync.Mutex
	envs []*Env_t
	free []uint32 /// indices of unused slots
	gen  uint32
}

/// NewTable builds an empty table with every slot free.
func NewTable() *Table_t {
	t := &Table_t{envs: make([]*Env_t, nenv)}
	for i := nenv - 1; i >= 0; i-- {
		t.free = append(t.free, uint32(i))
	}
	return t
}

func mkid(gen uint32, idx uint32) defs.Envid_t {
	return defs.Envid_t(gen<<defs.LOG2NENV | idx&(nenv-1))
}

/// Envx returns the table-slot index encoded in an envid.
func Envx(id defs.Envid_t) uint32 {
	return uint32(id) & (nenv - 1)
}

/// Alloc reserves a table slot for a new environment with the given
/// parent, returning NO_FREE_ENV if the table is full.
func (t *Table_t) Alloc(parent defs.Envid_t) (*Env_t, defs.Err_t) {
	t.Lock()
	defer t.Unlock()
	if len(t.free) == 0 {
		return nil, defs.NO_FREE_ENV
	}
	n := len(t.free) - 1
	idx := t.free[n]
	t.free = t.free[:n]
	t.gen++
	e := &Env_t{
		Id:       mkid(t.gen, idx),
		Gen:      t.gen,
		Asid:     idx,
		ParentId: parent,
		Status:   ENV_NOT_RUNNABLE,
		Pri:      1,
		Cwd:      fd.NewCwd(),
	}
	t.envs[idx] = e
	return e, 0
}

/// Free returns an environment's slot to the free list. The caller is
/// responsible for having already released the env's pages and
/// removed it from every scheduling list.
func (t *Table_t) Free(e *Env_t) {
	t.Lock()
	defer t.Unlock()
	idx := Envx(e.Id)
	if t.envs[idx] != e {
		panic("proc: freeing an env not owned by this table slot")
	}
	t.envs[idx] = nil
	e.Status = ENV_FREE
	t.free = append(t.free, idx)
}

/// Envid2env resolves envid to its Env_t. envid==0 resolves to curenv.
/// With checkperm set, resolution fails with PERM unless the target is
/// curenv itself or curenv's direct child.
func (t *Table_t) Envid2env(envid defs.Envid_t, curenv *Env_t, checkperm bool) (*Env_t, defs.Err_t) {
	if envid == 0 {
		return curenv, 0
	}
	t.Lock()
	e := t.envs[Envx(envid)]
	t.Unlock()
	if e == nil || e.Id != envid {
		return nil, defs.BAD_ENV
	}
	if checkperm && curenv != nil {
		if e != curenv && e.ParentId != curenv.Id {
			return nil, defs.PERM
		}
	}
	return e, 0
}

/// Declare implements the shell's declare builtin against one env's
/// own variable store. Records are matched by (name, caller): a
/// caller whose existing record is readonly gets PERM, a different
/// caller gets a separate record of its own, and a successful write
/// upgrades Perm to the stronger of the old and new value.
func (e *Env_t) Declare(name, value string, perm, caller int) defs.Err_t {
	e.Lock()
	defer e.Unlock()
	for _, v := range e.Vars {
		if v.Name != name || v.Owner != caller {
			continue
		}
		if v.Perm == 1 {
			return defs.PERM
		}
		v.Value = value
		if perm > v.Perm {
			v.Perm = perm
		}
		return 0
	}
	e.Vars = append(e.Vars, &Var_t{Name: name, Value: value, Perm: perm, Owner: caller})
	return 0
}

/// Unset removes a variable by name, failing PERM if it is readonly.
func (e *Env_t) Unset(name string) defs.Err_t {
	e.Lock()
	defer e.Unlock()
	for i, v := range e.Vars {
		if v.Name != name {
			continue
		}
		if v.Perm == 1 {
			return defs.PERM
		}
		e.Vars = append(e.Vars[:i], e.Vars[i+1:]...)
		return 0
	}
	return 0
}

/// Get returns the value of name, preferring a record owned by caller
/// over a global one, or "" if neither exists.
func (e *Env_t) Get(name string, caller int) string {
	e.Lock()
	defer e.Unlock()
	best := ""
	found := false
	for _, v := range e.Vars {
		if v.Name != name {
			continue
		}
		if v.Owner == caller {
			return v.Value
		}
		if v.Owner == 0 {
			best, found = v.Value, true
		}
	}
	if found {
		return best
	}
	return ""
}

/// GetAll returns every variable visible to caller (its own plus every
/// global), for the shell's declare-with-no-arguments listing.
func (e *Env_t) GetAll(caller int) []*Var_t {
	e.Lock()
	defer e.Unlock()
	out := make([]*Var_t, 0, len(e.Vars))
	for _, v := range e.Vars {
		if v.Owner == caller || v.Owner == 0 {
			out = append(out, v)
		}
	}
	return out
}

/// CopyVarsFrom copies every global (Owner==0) variable from parent
/// into e, the fork-time variable inheritance rule.
func (e *Env_t) CopyVarsFrom(parent *Env_t) {
	parent.Lock()
	globals := make([]*Var_t, 0, len(parent.Vars))
	for _, v := range parent.Vars {
		if v.Owner == 0 {
			cp := *v
			globals = append(globals, &cp)
		}
	}
	parent.Unlock()

	e.Lock()
	e.Vars = append(e.Vars, globals...)
	e.Unlock()
}
