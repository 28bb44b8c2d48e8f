package fd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mem"
)

func TestPipeWriteThenRead(t *testing.T) {
	phys := mem.Phys_init(4, 0x1000)
	p := NewPipe(phys)
	rend := NewPipeEnd(p, true)
	wend := NewPipeEnd(p, false)

	n, err := wend.Write([]byte("hello"))
	require.Equal(t, 0, int(err))
	assert.Equal(t, 5, n)

	buf := make([]byte, 16)
	n, err = rend.Read(buf)
	require.Equal(t, 0, int(err))
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestPipeReadReturnsZeroWhenEmptyNotEOF(t *testing.T) {
	phys := mem.Phys_init(4, 0x1000)
	p := NewPipe(phys)
	rend := NewPipeEnd(p, true)

	buf := make([]byte, 8)
	n, eof, err := p.Read(buf)
	require.Equal(t, 0, int(err))
	assert.Equal(t, 0, n)
	assert.False(t, eof, "write side is still open")
	_ = rend
}

func TestPipeEOFAfterWriteCloseAndDrain(t *testing.T) {
	phys := mem.Phys_init(4, 0x1000)
	p := NewPipe(phys)
	wend := NewPipeEnd(p, false)
	rend := NewPipeEnd(p, true)

	wend.Write([]byte("x"))
	wend.Close(phys)

	buf := make([]byte, 8)
	n, _ := rend.Read(buf)
	assert.Equal(t, 1, n)

	_, eof, err := p.Read(buf)
	require.Equal(t, 0, int(err))
	assert.True(t, eof)
}

func TestPipeWriteAfterReadCloseFails(t *testing.T) {
	phys := mem.Phys_init(4, 0x1000)
	p := NewPipe(phys)
	rend := NewPipeEnd(p, true)
	wend := NewPipeEnd(p, false)

	rend.Close(phys)
	_, err := wend.Write([]byte("x"))
	assert.NotEqual(t, 0, int(err))
}

func TestFileDescriptorReadWriteCursor(t *testing.T) {
	f := NewFile(nil)
	n, err := f.Write([]byte("abc"))
	require.Equal(t, 0, int(err))
	assert.Equal(t, 3, n)

	buf := make([]byte, 16)
	f2 := NewFile([]byte("abc"))
	n, err = f2.Read(buf)
	require.Equal(t, 0, int(err))
	assert.Equal(t, "abc", string(buf[:n]))
}

func TestTableAllocCloseReuseSlot(t *testing.T) {
	var tbl Table_t
	fdno1, err := tbl.Alloc(NewFile([]byte("a")))
	require.Equal(t, 0, int(err))

	require.Equal(t, 0, int(tbl.Close(fdno1, nil)))

	fdno2, err := tbl.Alloc(NewFile([]byte("b")))
	require.Equal(t, 0, int(err))
	assert.Equal(t, fdno1, fdno2, "freed slot must be reused")
}

func TestTableAllocExhaustion(t *testing.T) {
	var tbl Table_t
	for i := 0; i < 16; i++ {
		_, err := tbl.Alloc(NewFile(nil))
		require.Equal(t, 0, int(err))
	}
	_, err := tbl.Alloc(NewFile(nil))
	assert.NotEqual(t, 0, int(err))
}

func TestDupSharesUnderlyingState(t *testing.T) {
	var tbl Table_t
	f := NewFile(nil)
	fdno, _ := tbl.Alloc(f)
	dupno, err := tbl.Dup(fdno)
	require.Equal(t, 0, int(err))

	orig, _ := tbl.Get(fdno)
	dup, _ := tbl.Get(dupno)
	orig.Write([]byte("shared"))

	buf := make([]byte, 16)
	dup.file.pos = 0
	n, _ := dup.Read(buf)
	assert.Equal(t, "shared", string(buf[:n]))
}

func TestCwdChdirResolvesRelativePaths(t *testing.T) {
	c := NewCwd()
	assert.Equal(t, "/", c.Getwd())
	c.Chdir("usr/bin")
	assert.Equal(t, "/usr/bin", c.Getwd())
	c.Chdir("..")
	assert.Equal(t, "/usr", c.Getwd())
}
