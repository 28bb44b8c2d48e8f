package mem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocZeroesAndStartsUnreferenced(t *testing.T) {
	p := Phys_init(4, 0x1000)
	pg, pa, ok := p.Refpg_new()
	require.True(t, ok)
	for _, w := range pg {
		assert.Equal(t, uint32(0), w)
	}
	assert.Equal(t, 0, p.Refcnt(pa))
}

func TestRefupRefdownConservation(t *testing.T) {
	p := Phys_init(2, 0x2000)
	_, pa, ok := p.Refpg_new_nozero()
	require.True(t, ok)
	p.Refup(pa)
	p.Refup(pa)
	p.Refup(pa)
	assert.Equal(t, 3, p.Refcnt(pa))

	assert.False(t, p.Refdown(pa))
	assert.False(t, p.Refdown(pa))
	assert.True(t, p.Refdown(pa), "last Refdown must report the frame freed")
	assert.Equal(t, 2, p.Nfree())
}

func TestExhaustionReturnsNotOK(t *testing.T) {
	p := Phys_init(1, 0x3000)
	_, _, ok := p.Refpg_new_nozero()
	require.True(t, ok)
	_, _, ok = p.Refpg_new_nozero()
	assert.False(t, ok, "second allocation must fail once the single frame is taken")
}

func TestFreedFrameIsReusable(t *testing.T) {
	p := Phys_init(1, 0x4000)
	_, pa1, _ := p.Refpg_new_nozero()
	p.Refup(pa1)
	p.Refdown(pa1)
	_, pa2, ok := p.Refpg_new_nozero()
	require.True(t, ok)
	assert.Equal(t, pa1, pa2)
}
