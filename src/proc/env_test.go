package proc

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"defs"
)

func TestDeclareReadonlyRejectsLaterAssignmentByOwner(t *testing.T) {
	e := &Env_t{}
	assert.Equal(t, defs.Err_t(0), e.Declare("NAME", "x", 1, 7))
	assert.Equal(t, defs.PERM, e.Declare("NAME", "y", 0, 7))
	assert.Equal(t, "x", e.Get("NAME", 7))
}

func TestDeclareReadonlyDoesNotBlockADifferentOwner(t *testing.T) {
	e := &Env_t{}
	assert.Equal(t, defs.Err_t(0), e.Declare("NAME", "x", 1, 7))
	assert.Equal(t, defs.Err_t(0), e.Declare("NAME", "y", 0, 9))
	assert.Equal(t, "x", e.Get("NAME", 7))
	assert.Equal(t, "y", e.Get("NAME", 9))
}

func TestDeclareUpgradesPermToStrongerValue(t *testing.T) {
	e := &Env_t{}
	assert.Equal(t, defs.Err_t(0), e.Declare("NAME", "x", 0, 7))
	assert.Equal(t, defs.Err_t(0), e.Declare("NAME", "y", 1, 7))
	assert.Equal(t, defs.PERM, e.Declare("NAME", "z", 0, 7))
}

func TestUnsetReadonlyFails(t *testing.T) {
	e := &Env_t{}
	assert.Equal(t, defs.Err_t(0), e.Declare("NAME", "x", 1, 0))
	assert.Equal(t, defs.PERM, e.Unset("NAME"))
}

func TestGetPrefersOwnerOverGlobal(t *testing.T) {
	e := &Env_t{}
	assert.Equal(t, defs.Err_t(0), e.Declare("NAME", "global", 0, 0))
	assert.Equal(t, defs.Err_t(0), e.Declare("NAME", "mine", 0, 7))
	assert.Equal(t, "mine", e.Get("NAME", 7))
	assert.Equal(t, "global", e.Get("NAME", 9))
}
