package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFmemprintfSequence walks the original acceptance sequence: open
// a buffer already holding "abclo, " in append mode, print past its
// end, rewind and overwrite its head, then seek to the live content's
// end and append one more character.
func TestFmemprintfSequence(t *testing.T) {
	buf := make([]byte, 64)
	copy(buf, "abclo, ")

	s := Fmemopen(buf, "a")
	require.NotNil(t, s)

	n1 := s.Fmemprintf("%s %d", "MOS", 2025)
	assert.Equal(t, len("MOS 2025"), n1)

	require.Equal(t, 0, s.Fseek(0, SEEK_SET))
	n2 := s.Fmemprintf("%s", "Hel")
	assert.Equal(t, 3, n2)

	require.Equal(t, 0, s.Fseek(0, SEEK_END))
	n3 := s.Fmemprintf("%c", '!')
	assert.Equal(t, 1, n3)

	require.Equal(t, 0, s.Fclose())

	got := string(buf[:strlen(buf)])
	assert.Equal(t, "Hello, MOS 2025!", got)
}

func TestFmemprintfRejectsOverflow(t *testing.T) {
	buf := make([]byte, 4)
	s := Fmemopen(buf, "w")
	assert.Equal(t, -1, s.Fmemprintf("%s", "too long"))
}

func TestFseekRejectsPastContentEnd(t *testing.T) {
	buf := make([]byte, 16)
	copy(buf, "hi")
	s := Fmemopen(buf, "a")
	assert.Equal(t, -1, s.Fseek(100, SEEK_SET))
}

func TestFclosePreventsFurtherWrites(t *testing.T) {
	buf := make([]byte, 16)
	s := Fmemopen(buf, "w")
	s.Fclose()
	assert.Equal(t, -1, s.Fmemprintf("x"))
	assert.Equal(t, -1, s.Fseek(0, SEEK_SET))
}
