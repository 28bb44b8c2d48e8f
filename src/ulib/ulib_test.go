package ulib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"defs"
	"ipc"
	"mem"
	"proc"
	"sched"
	"sysgate"
	"vm"
)

func newForkableEnv(t *testing.T) (*sysgate.Gate_t, *proc.Env_t) {
	t.Helper()
	phys := mem.Phys_init(256, 0x100000)
	envs := proc.NewTable()
	e, err := envs.Alloc(0)
	require.Equal(t, defs.Err_t(0), err)
	pgdirpg, pgdirpa, ok := phys.Refpg_new()
	require.True(t, ok)
	phys.Refup(pgdirpa)
	e.Pgdir = pgdirpg
	e.Status = proc.ENV_RUNNABLE
	e.UserTlbModEntry = 0xdeadbeef

	g := &sysgate.Gate_t{Envs: envs, Sched: sched.New(), Phys: phys, Shm: ipc.NewTable()}
	return g, e
}

func TestForkRefusesWithoutTlbModHandlerInstalled(t *testing.T) {
	g, e := newForkableEnv(t)
	e.UserTlbModEntry = 0
	_, err := Fork(g, e)
	assert.Equal(t, defs.INVAL, err)
}

func TestForkSharesLibraryPageWritableInBothEnvs(t *testing.T) {
	g, e := newForkableEnv(t)
	const va = uint32(0x00500000)
	require.Equal(t, defs.Err_t(0), vm.PageInsert(e.Pgdir, e.Asid, allocPage(t, g), va, defs.PTE_D|defs.PTE_LIBRARY, g.Phys, nil))

	childid, err := Fork(g, e)
	require.Equal(t, defs.Err_t(0), err)
	child, err := g.Envs.Envid2env(childid, e, false)
	require.Equal(t, defs.Err_t(0), err)

	ppa, pperm, ok := vm.PageLookup(e.Pgdir, va, g.Phys)
	require.True(t, ok)
	cpa, cperm, ok := vm.PageLookup(child.Pgdir, va, g.Phys)
	require.True(t, ok)
	assert.Equal(t, ppa, cpa, "library pages must stay the same physical frame")
	assert.NotZero(t, cperm&defs.PTE_D)
	assert.NotZero(t, pperm&defs.PTE_D)
}

func TestForkMakesWritablePageCowInBothEnvs(t *testing.T) {
	g, e := newForkableEnv(t)
	const va = uint32(0x00500000)
	require.Equal(t, defs.Err_t(0), vm.PageInsert(e.Pgdir, e.Asid, allocPage(t, g), va, defs.PTE_D, g.Phys, nil))

	childid, err := Fork(g, e)
	require.Equal(t, defs.Err_t(0), err)
	child, _ := g.Envs.Envid2env(childid, e, false)

	_, pperm, _ := vm.PageLookup(e.Pgdir, va, g.Phys)
	_, cperm, _ := vm.PageLookup(child.Pgdir, va, g.Phys)
	assert.NotZero(t, pperm&defs.PTE_COW)
	assert.Zero(t, pperm&defs.PTE_D)
	assert.NotZero(t, cperm&defs.PTE_COW)
	assert.Zero(t, cperm&defs.PTE_D)
}

// TestForkGivesProtectedPageAPrivateCopy ports the duptest.c scenario:
// a PTE_PROTECT page written before fork must not be shared, and a
// subsequent write in the child must never be visible to the parent.
func TestForkGivesProtectedPageAPrivateCopy(t *testing.T) {
	g, e := newForkableEnv(t)
	const va = uint32(0x00410000)
	pa := allocPage(t, g)
	require.Equal(t, defs.Err_t(0), vm.PageInsert(e.Pgdir, e.Asid, pa, va, defs.PTE_D|defs.PTE_PROTECT, g.Phys, nil))
	writeByte(g.Phys, e.Pgdir, va, 0x7c)

	childid, err := Fork(g, e)
	require.Equal(t, defs.Err_t(0), err)
	child, _ := g.Envs.Envid2env(childid, e, false)

	ppa, _, _ := vm.PageLookup(e.Pgdir, va, g.Phys)
	cpa, cperm, _ := vm.PageLookup(child.Pgdir, va, g.Phys)
	assert.NotEqual(t, ppa, cpa, "protected pages must get a private copy")
	assert.NotZero(t, cperm&defs.PTE_D, "child's copy keeps its original writable perm")
	assert.Zero(t, cperm&defs.PTE_COW)

	writeByte(g.Phys, child.Pgdir, va, 0x3c)
	assert.Equal(t, byte(0x7c), readByte(g.Phys, e.Pgdir, va), "parent's copy must be untouched")
	assert.Equal(t, byte(0x3c), readByte(g.Phys, child.Pgdir, va))
}

func TestHandleTlbModMaterializesPrivateCopyOnWrite(t *testing.T) {
	g, e := newForkableEnv(t)
	const va = uint32(0x00500000)
	require.Equal(t, defs.Err_t(0), vm.PageInsert(e.Pgdir, e.Asid, allocPage(t, g), va, defs.PTE_D, g.Phys, nil))

	childid, err := Fork(g, e)
	require.Equal(t, defs.Err_t(0), err)
	child, _ := g.Envs.Envid2env(childid, e, false)

	require.Equal(t, defs.Err_t(0), HandleTlbMod(g, child, va))
	cpa, cperm, _ := vm.PageLookup(child.Pgdir, va, g.Phys)
	ppa, _, _ := vm.PageLookup(e.Pgdir, va, g.Phys)
	assert.NotEqual(t, ppa, cpa)
	assert.NotZero(t, cperm&defs.PTE_D)
	assert.Zero(t, cperm&defs.PTE_COW)
}

func allocPage(t *testing.T, g *sysgate.Gate_t) mem.Pa_t {
	t.Helper()
	_, pa, ok := g.Phys.Refpg_new()
	require.True(t, ok)
	return pa
}

func writeByte(phys mem.Page_i, pgdir *mem.Pg_t, va uint32, v byte) {
	pa, _, _ := vm.PageLookup(pgdir, va, phys)
	mem.Pg2bytes(phys.Pa2pg(pa))[va%defs.PGSIZE] = v
}

func readByte(phys mem.Page_i, pgdir *mem.Pg_t, va uint32) byte {
	pa, _, _ := vm.PageLookup(pgdir, va, phys)
	return mem.Pg2bytes(phys.Pa2pg(pa))[va%defs.PGSIZE]
}
