package sysgate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"defs"
	"ipc"
	"mem"
	"proc"
	"sched"
)

func newGate(t *testing.T) (*Gate_t, *proc.Env_t) {
	t.Helper()
	phys := mem.Phys_init(256, 0x100000)
	envs := proc.NewTable()
	e, err := envs.Alloc(0)
	require.Equal(t, defs.Err_t(0), err)
	pgdirpg, pgdirpa, ok := phys.Refpg_new()
	require.True(t, ok)
	phys.Refup(pgdirpa)
	_ = pgdirpg
	e.Pgdir = pgdirpg
	e.Status = proc.ENV_RUNNABLE

	g := &Gate_t{Envs: envs, Sched: sched.New(), Phys: phys, Shm: ipc.NewTable()}
	return g, e
}

func TestSysMemAllocThenUnmap(t *testing.T) {
	g, e := newGate(t)
	const va = uint32(0x00500000)

	_, err := g.Dispatch(e, defs.SYS_MEM_ALLOC, Args{va, defs.PTE_D})
	require.Equal(t, defs.Err_t(0), err)

	require.Equal(t, defs.Err_t(0), checkuser(e, g.Phys, va, 4, true))

	_, err = g.Dispatch(e, defs.SYS_MEM_UNMAP, Args{uint32(e.Id), va})
	require.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, defs.INVAL, checkuser(e, g.Phys, va, 4, false))
}

func TestSysMemAllocRejectsMisalignedVa(t *testing.T) {
	g, e := newGate(t)
	_, err := g.Dispatch(e, defs.SYS_MEM_ALLOC, Args{0x00500001, defs.PTE_D})
	assert.Equal(t, defs.INVAL, err)
}

func TestSysGetenvidAndParent(t *testing.T) {
	g, e := newGate(t)
	v, err := g.Dispatch(e, defs.SYS_GETENVID, Args{})
	require.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, uint32(e.Id), v)
}

func TestDeclareAndGetVarRoundTrip(t *testing.T) {
	g, e := newGate(t)
	const nameVa, valVa, outVa = uint32(0x00600000), uint32(0x00601000), uint32(0x00602000)

	for _, va := range []uint32{nameVa, valVa, outVa} {
		_, err := g.Dispatch(e, defs.SYS_MEM_ALLOC, Args{va, defs.PTE_D})
		require.Equal(t, defs.Err_t(0), err)
	}

	require.Equal(t, defs.Err_t(0), g.writeCStr(e, nameVa, defs.PGSIZE, "PATH"))
	require.Equal(t, defs.Err_t(0), g.writeCStr(e, valVa, defs.PGSIZE, "bin"))

	_, err := g.Dispatch(e, defs.SYS_DECLARE_VAR, Args{nameVa, valVa, 0})
	require.Equal(t, defs.Err_t(0), err)

	n, err := g.Dispatch(e, defs.SYS_GET_VAR, Args{nameVa, outVa, 64})
	require.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, uint32(3), n)

	got, err := g.readCStr(e, outVa, 64)
	require.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, "bin", got)
}

func TestCheckuserRejectsAboveUtop(t *testing.T) {
	_, e := newGate(t)
	assert.Equal(t, defs.INVAL, checkuser(e, nil, defs.UTOP, 1, false))
}

func TestEnvDestroyRemovesFromScheduler(t *testing.T) {
	g, e := newGate(t)
	g.Sched.AddRR(e)
	_, err := g.Dispatch(e, defs.SYS_ENV_DESTROY, Args{uint32(e.Id)})
	require.Equal(t, defs.Err_t(0), err)
	assert.Panics(t, func() { g.Sched.Schedule(false) })
}
