package console

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleWriteReadRoundTrip(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	c := New(r, w)
	n := c.Write([]byte("hi"))
	assert.Equal(t, 2, n)

	buf := make([]byte, 8)
	n = c.Read(buf)
	require.Equal(t, 2, n)
	assert.Equal(t, "hi", string(buf[:n]))
}

func TestConsolePutcGetc(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	c := New(r, w)
	c.Putc('x')
	assert.Equal(t, byte('x'), c.Getc())
}

func TestConsoleGetcReturnsZeroOnClosedStream(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	w.Close()

	c := New(r, w)
	assert.Equal(t, byte(0), c.Getc())
	r.Close()
}
