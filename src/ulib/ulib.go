// Package ulib is the user-space fork/COW runtime. Fork creates the
// child and marks it runnable through sysgate's syscall dispatch, the
// same boundary a real user program would cross; the page-table work
// (child lookup, page-directory allocation, the mapping walk and each
// Duppage insert) calls proc, mem and vm directly. A real MOS binary
// links this in and calls Fork the way libc callers call fork(2).
package ulib

import "sysgate"

import "defs"
import "mem"
import "proc"
import "vm"

/// Duppage decides how one present parent page is reflected into the
/// child during fork, per the four-way disposition: library pages are
/// shared read-write in both envs; writable, non-protected pages are
/// shared copy-on-write with D cleared in both; everything else
/// (read-only pages, and writable pages marked PTE_PROTECT) gets an
/// eager private copy in the child with its permissions unchanged,
/// since neither the protected-write nor the read-only case will ever
/// trigger the TLB-mod handler to make that copy lazily.
func Duppage(phys mem.Page_i, inval vm.TlbInval,
	parentPgdir *mem.Pg_t, parentAsid uint32,
	childPgdir *mem.Pg_t, childAsid uint32,
	va uint32, pa mem.Pa_t, perm uint32) defs.Err_t {

	switch {
	case perm&defs.PTE_LIBRARY != 0:
		if err := vm.PageInsert(childPgdir, childAsid, pa, va, perm, phys, inval); err != 0 {
			return err
		}
		return 0

	case perm&defs.PTE_D != 0 && perm&defs.PTE_PROTECT == 0:
		cowperm := (perm &^ defs.PTE_D) | defs.PTE_COW
		if err := vm.PageInsert(parentPgdir, parentAsid, pa, va, cowperm, phys, inval); err != 0 {
			return err
		}
		return vm.PageInsert(childPgdir, childAsid, pa, va, cowperm, phys, inval)

	default:
		newpg, newpa, ok := phys.Refpg_new_nozero()
		if !ok {
			return defs.NO_MEM
		}
		old := phys.Pa2pg(pa)
		copy(newpg[:], old[:])
		return vm.PageInsert(childPgdir, childAsid, newpa, va, perm, phys, inval)
	}
}

/// Fork duplicates curenv into a freshly allocated, initially
/// not-runnable child: it installs the child's page directory,
/// applies Duppage across every present user mapping below UTOP,
/// copies the parent's global variables and TLB-mod handler entry,
/// then marks the child runnable. It returns the child's envid to the
/// caller, playing the parent's half of fork's contract; resuming the
/// child itself with a zero return value is the scheduler's and the
/// trap-return path's job once it is next dispatched, not something a
/// single Go call can do for both sides of one fork at once.
func Fork(g *sysgate.Gate_t, curenv *proc.Env_t) (defs.Envid_t, defs.Err_t) {
	if curenv.UserTlbModEntry == 0 {
		return 0, defs.INVAL
	}

	childv, err := g.Dispatch(curenv, defs.SYS_EXOFORK, sysgate.Args{})
	if err != 0 {
		return 0, err
	}
	child, err := g.Envs.Envid2env(defs.Envid_t(childv), curenv, true)
	if err != 0 {
		return 0, err
	}

	pgdirpg, pgdirpa, ok := g.Phys.Refpg_new()
	if !ok {
		g.Envs.Free(child)
		return 0, defs.NO_MEM
	}
	g.Phys.Refup(pgdirpa)
	child.Pgdir = pgdirpg
	child.UserTlbModEntry = curenv.UserTlbModEntry

	err = vm.ForEachUserPage(curenv.Pgdir, defs.UTOP, g.Phys, func(va uint32, pa mem.Pa_t, perm uint32) defs.Err_t {
		return Duppage(g.Phys, g.Inval, curenv.Pgdir, curenv.Asid, child.Pgdir, child.Asid, va, pa, perm)
	})
	if err != 0 {
		g.Envs.Free(child)
		return 0, err
	}

	if _, err := g.Dispatch(curenv, defs.SYS_SET_ENV_STATUS, sysgate.Args{uint32(child.Id), uint32(proc.ENV_RUNNABLE)}); err != 0 {
		return 0, err
	}
	return child.Id, 0
}

/// HandleTlbMod services a write fault against curenv's address space
/// at va, the kernel-routed half of the COW contract that Fork's
/// Duppage sets up: a plain write to a shared COW page must silently
/// become private rather than corrupt the other env's copy.
func HandleTlbMod(g *sysgate.Gate_t, curenv *proc.Env_t, va uint32) defs.Err_t {
	return vm.Pgfault(curenv.Pgdir, curenv.Asid, va, g.Phys, g.Inval)
}
