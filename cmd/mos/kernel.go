// Package main boots an in-process instance of the kernel and hands
// it to an interactive (or scripted) shell session. It plays the role
// biscuit's own assembly boot stub and kernel/Main() play for a real
// machine: build the subsystem tables, bring up one running
// environment, and start the shell loop.
package main

import (
	"fmt"

	"console"
	"defs"
	"ipc"
	"mem"
	"proc"
	"sched"
	"sysgate"
)

const (
	physPages = 4096
	physBase  = mem.Pa_t(0x10000000)

	// Scratch virtual addresses the shell environment's own variable
	// and path syscalls marshal strings through. A real user program
	// would carry its own heap/stack for this; the interactive shell
	// plays a trusted-supervisor role here (see DESIGN.md), so these
	// three pages exist purely to satisfy sysgate's checkuser/readCStr/
	// writeCStr marshaling path rather than to back a real heap.
	scratchNameVa  = uint32(0x00500000)
	scratchValueVa = uint32(0x00501000)
	scratchPathVa  = uint32(0x00502000)
)

/// kernel bundles everything cmd/mos needs to run one shell session:
/// the syscall gate, the shell's own environment, and the physical
/// memory pool backing both.
type kernel struct {
	gate    *sysgate.Gate_t
	shell   *proc.Env_t
	phys    *mem.Physmem_t
	console *consoleAdapter

	/// namedFiles is the demo's whole externalized "filesystem": a
	/// flat path-to-bytes map that redirection targets read and write
	/// through, standing in for the real filesystem collaborator
	/// spec.md carves out of scope.
	namedFiles map[string][]byte
}

/// consoleAdapter satisfies sysgate.Gate_t's Console field without
/// exposing the whole console.Console surface to the syscall gate.
type consoleAdapter struct {
	c *console.Console
}

func (a *consoleAdapter) Putc(b byte) { a.c.Putc(b) }
func (a *consoleAdapter) Getc() byte  { return a.c.Getc() }

/// bootKernel allocates the physical pool, the environment and
/// scheduler tables, and one runnable environment for the interactive
/// shell, mapping its scratch pages and assigning it a shell id.
func bootKernel(cc *console.Console) (*kernel, error) {
	phys := mem.Phys_init(physPages, physBase)
	envs := proc.NewTable()
	sch := sched.New()
	shm := ipc.NewTable()

	g := &sysgate.Gate_t{
		Envs:    envs,
		Sched:   sch,
		Phys:    phys,
		Shm:     shm,
		Console: &consoleAdapter{c: cc},
	}

	shellEnv, err := envs.Alloc(0)
	if err != 0 {
		return nil, fmt.Errorf("mos: allocating the shell environment: err %d", err)
	}

	pgdirpg, pgdirpa, ok := phys.Refpg_new()
	if !ok {
		return nil, fmt.Errorf("mos: out of physical memory bringing up the shell environment")
	}
	phys.Refup(pgdirpa)
	shellEnv.Pgdir = pgdirpg
	shellEnv.Status = proc.ENV_RUNNABLE
	shellEnv.UserTlbModEntry = 1 // sentinel: this host process owns its own page faults

	for _, va := range []uint32{scratchNameVa, scratchValueVa, scratchPathVa} {
		if _, err := g.Dispatch(shellEnv, defs.SYS_MEM_ALLOC, sysgate.Args{va, defs.PTE_D}); err != 0 {
			return nil, fmt.Errorf("mos: mapping scratch page at 0x%x: err %d", va, err)
		}
	}

	g.Sched.AddRR(shellEnv)
	if _, err := g.Dispatch(shellEnv, defs.SYS_ALLOC_SHELL_ID, sysgate.Args{}); err != 0 {
		return nil, fmt.Errorf("mos: allocating a shell id: err %d", err)
	}

	return &kernel{
		gate:       g,
		shell:      shellEnv,
		phys:       phys,
		console:    &consoleAdapter{c: cc},
		namedFiles: map[string][]byte{},
	}, nil
}
