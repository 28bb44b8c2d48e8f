package elf32

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"defs"
)

// buildImage assembles a minimal ELF32 ET_EXEC image with one PT_LOAD
// segment whose file content is shorter than its memory size, so the
// loader must exercise its bss zero-fill tail.
func buildImage(t *testing.T, vaddr uint32, content []byte, memsz uint32) []byte {
	t.Helper()
	const phoff = ehdrSize
	img := make([]byte, phoff+phdrSize+len(content))

	copy(img[0:4], magic[:])
	binary.LittleEndian.PutUint16(img[16:18], ET_EXEC)
	binary.LittleEndian.PutUint32(img[24:28], vaddr) // entry == segment start, for this test
	binary.LittleEndian.PutUint32(img[28:32], phoff)
	binary.LittleEndian.PutUint16(img[44:46], 1)

	ph := img[phoff : phoff+phdrSize]
	binary.LittleEndian.PutUint32(ph[0:4], PT_LOAD)
	binary.LittleEndian.PutUint32(ph[4:8], uint32(phoff+phdrSize))
	binary.LittleEndian.PutUint32(ph[8:12], vaddr)
	binary.LittleEndian.PutUint32(ph[16:20], uint32(len(content)))
	binary.LittleEndian.PutUint32(ph[20:24], memsz)
	binary.LittleEndian.PutUint32(ph[24:28], PF_R|PF_W)

	copy(img[phoff+phdrSize:], content)
	return img
}

func TestFromRejectsBadMagic(t *testing.T) {
	_, err := From([]byte("not an elf"))
	assert.Error(t, err)
}

func TestFromAcceptsValidHeader(t *testing.T) {
	img := buildImage(t, 0x00400000, []byte("hello"), 16)
	ehdr, err := From(img)
	require.NoError(t, err)
	assert.Equal(t, uint16(ET_EXEC), ehdr.Type)
	assert.Equal(t, uint16(1), ehdr.Phnum)
}

func TestLoadSegmentsZeroFillsBssTail(t *testing.T) {
	const vaddr = uint32(0x00401000) // page-aligned, so no unaligned prefix path
	content := []byte("hello")
	img := buildImage(t, vaddr, content, defs.PGSIZE+uint32(len(content)))

	ehdr, err := From(img)
	require.NoError(t, err)

	type call struct {
		va   uint32
		off  uint32
		perm uint32
		n    uint32
		bss  bool
	}
	var calls []call
	mapPage := func(va uint32, off uint32, perm uint32, src []byte, n uint32) error {
		calls = append(calls, call{va, off, perm, n, src == nil})
		return nil
	}

	entry, err := LoadSegments(ehdr, img, mapPage)
	require.NoError(t, err)
	assert.Equal(t, vaddr, entry)

	require.Len(t, calls, 2, "one page of file content, one page of bss")
	assert.Equal(t, vaddr, calls[0].va)
	assert.False(t, calls[0].bss)
	assert.Equal(t, uint32(len(content)), calls[0].n)

	assert.Equal(t, vaddr+defs.PGSIZE, calls[1].va)
	assert.True(t, calls[1].bss)

	for _, c := range calls {
		assert.NotEqual(t, uint32(0), c.perm&defs.PTE_V)
		assert.NotEqual(t, uint32(0), c.perm&defs.PTE_D, "PF_W segment must map PTE_D")
	}
}

func TestLoadSegmentHandlesUnalignedPrefix(t *testing.T) {
	const vaddr = uint32(0x00401040) // not page-aligned
	content := make([]byte, 200)
	for i := range content {
		content[i] = byte(i)
	}
	img := buildImage(t, vaddr, content, uint32(len(content)))
	ehdr, err := From(img)
	require.NoError(t, err)

	var total uint32
	mapPage := func(va uint32, off uint32, perm uint32, src []byte, n uint32) error {
		total += n
		return nil
	}
	_, err = LoadSegments(ehdr, img, mapPage)
	require.NoError(t, err)
	assert.Equal(t, uint32(len(content)), total)
}
