// Package sysgate is the single trap vector every syscall passes
// through: it validates user pointers, then dispatches on syscall
// number to the kernel functions in proc, vm, ipc and sched. Nothing
// outside this package should call those kernel functions directly on
// behalf of a user request — that would skip the pointer checks every
// other syscall gets for free.
package sysgate

import "sync"

import "defs"
import "ipc"
import "mem"
import "proc"
import "sched"
import "ustr"
import "vm"

/// Gate_t wires together the subsystems a syscall might touch. One
/// instance serves the whole running kernel.
type Gate_t struct {
	sync.Mutex
	Envs  *proc.Table_t
	Sched *sched.Sched_t
	Phys  *mem.Physmem_t
	Shm   *ipc.Table_t
	Inval vm.TlbInval

	/// Console is where SYS_PUTCHAR/SYS_PRINT_CONS/SYS_CGETC land;
	/// kept as an interface so tests can substitute a buffer.
	Console interface {
		Putc(byte)
		Getc() byte
	}
}

/// checkuser validates that a user-supplied virtual address range
/// lies below UTOP and, for writes, maps to a present page with the
/// dirty (writable) bit set in curenv's address space.
func checkuser(e *proc.Env_t, phys mem.Page_i, va uint32, n uint32, write bool) defs.Err_t {
	if va >= defs.UTOP || va+n > defs.UTOP || va+n < va {
		return defs.INVAL
	}
	if n == 0 {
		return 0
	}
	start := va &^ uint32(defs.PGSIZE-1)
	end := (va + n - 1) &^ uint32(defs.PGSIZE-1)
	for p := start; ; p += defs.PGSIZE {
		_, perm, ok := vm.PageLookup(e.Pgdir, p, phys)
		if !ok {
			return defs.INVAL
		}
		if write && perm&defs.PTE_D == 0 {
			return defs.INVAL
		}
		if p == end {
			break
		}
	}
	return 0
}

/// Args is the fixed five-word argument vector every syscall number
/// indexes into, the same shape as the trap frame's argument
/// registers.
type Args [5]uint32

/// Dispatch services one syscall on behalf of curenv. It returns the
/// syscall's result value and an Err_t, which is 0 on success and
/// negative on failure — exactly what gets marshaled back to user
/// space as the syscall's return value.
func (g *Gate_t) Dispatch(curenv *proc.Env_t, no defs.Sysno, a Args) (uint32, defs.Err_t) {
	switch no {
	case defs.SYS_PUTCHAR:
		g.Console.Putc(byte(a[0]))
		return 0, 0

	case defs.SYS_PRINT_CONS:
		va, n := a[0], a[1]
		if err := checkuser(curenv, g.Phys, va, n, false); err != 0 {
			return 0, err
		}
		buf, err := g.readBytes(curenv, va, int(n))
		if err != 0 {
			return 0, err
		}
		for _, b := range buf {
			g.Console.Putc(b)
		}
		return n, 0

	case defs.SYS_CGETC:
		return uint32(g.Console.Getc()), 0

	case defs.SYS_WRITE_DEV:
		dev, va, n := int(a[0]), a[1], a[2]
		if dev != defs.D_CONSOLE {
			return 0, defs.INVAL
		}
		buf, err := g.readBytes(curenv, va, int(n))
		if err != 0 {
			return 0, err
		}
		for _, b := range buf {
			g.Console.Putc(b)
		}
		return n, 0

	case defs.SYS_READ_DEV:
		dev, va, n := int(a[0]), a[1], a[2]
		if dev != defs.D_CONSOLE {
			return 0, defs.INVAL
		}
		if err := checkuser(curenv, g.Phys, va, n, true); err != 0 {
			return 0, err
		}
		buf := make([]byte, n)
		for i := range buf {
			buf[i] = g.Console.Getc()
		}
		if err := g.writeBytes(curenv, va, buf); err != 0 {
			return 0, err
		}
		return n, 0

	case defs.SYS_EXOFORK:
		child, err := g.Envs.Alloc(curenv.Id)
		if err != 0 {
			return 0, err
		}
		child.Tf = curenv.Tf
		child.Tf.Regs[2] = 0 /// $v0: fork returns 0 in the child
		child.Pri = curenv.Pri
		child.CopyVarsFrom(curenv)
		return uint32(child.Id), 0

	case defs.SYS_SET_ENV_STATUS:
		target, err := g.Envs.Envid2env(defs.Envid_t(a[0]), curenv, true)
		if err != 0 {
			return 0, err
		}
		status := proc.Status(a[1])
		if status != proc.ENV_RUNNABLE && status != proc.ENV_NOT_RUNNABLE {
			return 0, defs.INVAL
		}
		wasRunnable := target.Status == proc.ENV_RUNNABLE
		target.Status = status
		if status == proc.ENV_RUNNABLE && !wasRunnable {
			if target.IsEdf {
				g.Sched.AddEdf(target, target.EdfRuntime, target.EdfPeriod)
			} else {
				g.Sched.AddRR(target)
			}
		} else if status == proc.ENV_NOT_RUNNABLE && wasRunnable {
			g.Sched.Remove(target)
		}
		return 0, 0

	case defs.SYS_SET_TRAPFRAME:
		target, err := g.Envs.Envid2env(defs.Envid_t(a[0]), curenv, true)
		if err != 0 {
			return 0, err
		}
		buf, err := g.readBytes(curenv, a[1], len(target.Tf.Regs)*4)
		if err != 0 {
			return 0, err
		}
		for i := range target.Tf.Regs {
			target.Tf.Regs[i] = uint32(buf[4*i]) | uint32(buf[4*i+1])<<8 |
				uint32(buf[4*i+2])<<16 | uint32(buf[4*i+3])<<24
		}
		return 0, 0

	case defs.SYS_PANIC:
		g.destroy(curenv)
		return 0, 0

	case defs.SYS_SET_CUR_PATH:
		path, err := g.readCStr(curenv, a[0], 256)
		if err != 0 {
			return 0, err
		}
		curenv.Cwd.Chdir(path)
		return 0, 0

	case defs.SYS_GET_CUR_PATH:
		path := curenv.Cwd.Getwd()
		if err := g.writeCStr(curenv, a[0], a[1], path); err != 0 {
			return 0, err
		}
		return uint32(len(path)), 0

	case defs.SYS_GET_ALL_VAR:
		vars := curenv.GetAll(curenv.ShellId)
		lines := make([]string, len(vars))
		for i, v := range vars {
			lines[i] = v.Name + "=" + v.Value
		}
		joined := ""
		for i, l := range lines {
			if i > 0 {
				joined += "\n"
			}
			joined += l
		}
		if err := g.writeCStr(curenv, a[0], a[1], joined); err != 0 {
			return 0, err
		}
		return uint32(len(joined)), 0

	case defs.SYS_GETENVID:
		return uint32(curenv.Id), 0

	case defs.SYS_GET_PARENT_ENVID:
		return uint32(curenv.ParentId), 0

	case defs.SYS_YIELD:
		g.Sched.Schedule(true)
		return 0, 0

	case defs.SYS_ENV_DESTROY:
		target, err := g.Envs.Envid2env(defs.Envid_t(a[0]), curenv, true)
		if err != 0 {
			return 0, err
		}
		g.destroy(target)
		return 0, 0

	case defs.SYS_SET_TLB_MOD_ENTRY:
		curenv.UserTlbModEntry = a[0]
		return 0, 0

	case defs.SYS_MEM_ALLOC:
		va, perm := a[0], a[1]
		if va%defs.PGSIZE != 0 {
			return 0, defs.INVAL
		}
		_, pa, ok := g.Phys.Refpg_new()
		if !ok {
			return 0, defs.NO_MEM
		}
		return 0, vm.PageInsert(curenv.Pgdir, curenv.Asid, pa, va, perm, g.Phys, g.Inval)

	case defs.SYS_MEM_MAP:
		srcEnv, err := g.Envs.Envid2env(defs.Envid_t(a[0]), curenv, false)
		if err != 0 {
			return 0, err
		}
		dstEnv, err := g.Envs.Envid2env(defs.Envid_t(a[2]), curenv, false)
		if err != 0 {
			return 0, err
		}
		srcva, dstva, perm := a[1], a[3], a[4]
		if srcva%defs.PGSIZE != 0 || dstva%defs.PGSIZE != 0 {
			return 0, defs.INVAL
		}
		pa, _, ok := vm.PageLookup(srcEnv.Pgdir, srcva, g.Phys)
		if !ok {
			return 0, defs.INVAL
		}
		return 0, vm.PageInsert(dstEnv.Pgdir, dstEnv.Asid, pa, dstva, perm, g.Phys, g.Inval)

	case defs.SYS_MEM_UNMAP:
		target, err := g.Envs.Envid2env(defs.Envid_t(a[0]), curenv, true)
		if err != 0 {
			return 0, err
		}
		va := a[1]
		if va%defs.PGSIZE != 0 {
			return 0, defs.INVAL
		}
		vm.PageRemove(target.Pgdir, target.Asid, va, g.Phys, g.Inval)
		return 0, 0

	case defs.SYS_IPC_RECV:
		return 0, ipc.Recv(curenv, a[0], a[1])

	case defs.SYS_IPC_TRY_SEND:
		target, err := g.Envs.Envid2env(defs.Envid_t(a[0]), curenv, false)
		if err != 0 {
			return 0, err
		}
		return 0, ipc.Send(target, curenv, a[1], a[2], a[3], g.Phys, g.Inval)

	case defs.SYS_SHM_NEW:
		key, err := g.Shm.New(int(a[0]), g.Phys)
		return uint32(key), err

	case defs.SYS_SHM_BIND:
		return 0, g.Shm.Bind(int(a[0]), a[1], curenv.Pgdir, curenv.Asid, g.Phys, g.Inval)

	case defs.SYS_SHM_UNBIND:
		return 0, g.Shm.Unbind(int(a[0]), a[1], curenv.Pgdir, curenv.Asid, g.Phys, g.Inval)

	case defs.SYS_SHM_FREE:
		return 0, g.Shm.Free(int(a[0]), g.Phys)

	case defs.SYS_DECLARE_VAR:
		name, err := g.readCStr(curenv, a[0], defs.MAX_VAR_NAME)
		if err != 0 {
			return 0, err
		}
		value, err := g.readCStr(curenv, a[1], defs.MAX_VAR_VALUE)
		if err != 0 {
			return 0, err
		}
		return 0, curenv.Declare(name, value, int(a[2]), curenv.ShellId)

	case defs.SYS_UNSET_VAR:
		name, err := g.readCStr(curenv, a[0], defs.MAX_VAR_NAME)
		if err != 0 {
			return 0, err
		}
		return 0, curenv.Unset(name)

	case defs.SYS_GET_VAR:
		name, err := g.readCStr(curenv, a[0], defs.MAX_VAR_NAME)
		if err != 0 {
			return 0, err
		}
		value := curenv.Get(name, curenv.ShellId)
		if err := g.writeCStr(curenv, a[1], a[2], value); err != 0 {
			return 0, err
		}
		return uint32(len(value)), 0

	case defs.SYS_ALLOC_SHELL_ID:
		curenv.ShellId = int(curenv.Id)
		return uint32(curenv.ShellId), 0

	default:
		return 0, defs.UNSPECIFIED
	}
}

/// readCStr copies a NUL-terminated string of at most maxlen bytes out
/// of curenv's address space starting at va.
func (g *Gate_t) readCStr(curenv *proc.Env_t, va uint32, maxlen int) (string, defs.Err_t) {
	if err := checkuser(curenv, g.Phys, va, uint32(maxlen), false); err != 0 {
		return "", err
	}
	pa, _, ok := vm.PageLookup(curenv.Pgdir, va&^uint32(defs.PGSIZE-1), g.Phys)
	if !ok {
		return "", defs.INVAL
	}
	pg := mem.Pg2bytes(g.Phys.Pa2pg(pa))
	off := int(va % defs.PGSIZE)
	end := off + maxlen
	if end > len(pg) {
		end = len(pg)
	}
	return ustr.MkUstrSlice(pg[off:end]).String(), 0
}

/// readBytes copies exactly n bytes out of curenv's address space
/// starting at va, for callers that need a raw fixed-length region
/// rather than a NUL-terminated string.
func (g *Gate_t) readBytes(curenv *proc.Env_t, va uint32, n int) ([]byte, defs.Err_t) {
	if err := checkuser(curenv, g.Phys, va, uint32(n), false); err != 0 {
		return nil, err
	}
	out := make([]byte, 0, n)
	for len(out) < n {
		pa, _, ok := vm.PageLookup(curenv.Pgdir, (va)&^uint32(defs.PGSIZE-1), g.Phys)
		if !ok {
			return nil, defs.INVAL
		}
		pg := mem.Pg2bytes(g.Phys.Pa2pg(pa))
		off := int(va % defs.PGSIZE)
		take := len(pg) - off
		if take > n-len(out) {
			take = n - len(out)
		}
		out = append(out, pg[off:off+take]...)
		va += uint32(take)
	}
	return out, 0
}

/// writeBytes writes src verbatim into curenv's address space at va.
func (g *Gate_t) writeBytes(curenv *proc.Env_t, va uint32, src []byte) defs.Err_t {
	if err := checkuser(curenv, g.Phys, va, uint32(len(src)), true); err != 0 {
		return err
	}
	written := 0
	for written < len(src) {
		pa, _, ok := vm.PageLookup(curenv.Pgdir, (va)&^uint32(defs.PGSIZE-1), g.Phys)
		if !ok {
			return defs.INVAL
		}
		pg := mem.Pg2bytes(g.Phys.Pa2pg(pa))
		off := int(va % defs.PGSIZE)
		take := len(pg) - off
		if take > len(src)-written {
			take = len(src) - written
		}
		copy(pg[off:off+take], src[written:written+take])
		written += take
		va += uint32(take)
	}
	return 0
}

/// writeCStr writes s, NUL-terminated, into curenv's address space at
/// va, failing INVAL if it would not fit within bufsize bytes.
func (g *Gate_t) writeCStr(curenv *proc.Env_t, va uint32, bufsize uint32, s string) defs.Err_t {
	if uint32(len(s)+1) > bufsize {
		return defs.INVAL
	}
	if err := checkuser(curenv, g.Phys, va, bufsize, true); err != 0 {
		return err
	}
	pa, _, ok := vm.PageLookup(curenv.Pgdir, va&^uint32(defs.PGSIZE-1), g.Phys)
	if !ok {
		return defs.INVAL
	}
	pg := mem.Pg2bytes(g.Phys.Pa2pg(pa))
	off := int(va % defs.PGSIZE)
	copy(pg[off:], s)
	pg[off+len(s)] = 0
	return 0
}

func (g *Gate_t) destroy(e *proc.Env_t) {
	g.Sched.Remove(e)
	g.Envs.Free(e)
}
