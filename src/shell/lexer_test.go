package shell

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func kindsOf(toks []Token) []Kind {
	out := make([]Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestTokenizeRecognizesTwoCharOperatorsBeforeOneChar(t *testing.T) {
	toks := Tokenize("a >> b && c || d", nil)
	assert.Equal(t, []Kind{Word, Append, Word, And, Word, Or, Word, EOF}, kindsOf(toks))
}

func TestTokenizeSplicesBacktickOutputIntoWord(t *testing.T) {
	toks := Tokenize("echo pre`name`post", func(cmd string) string {
		assert.Equal(t, "name", cmd)
		return "MID"
	})
	wordTok := toks[1]
	assert.Equal(t, "preMIDpost", wordTok.Text)
}

func TestTokenizeTruncatesBacktickOutputAt64Bytes(t *testing.T) {
	long := make([]byte, 100)
	for i := range long {
		long[i] = 'x'
	}
	toks := Tokenize("`cmd`", func(string) string { return string(long) })
	assert.Len(t, toks[0].Text, BacktickMaxBytes)
}

func TestTokenizeStopsAtHashComment(t *testing.T) {
	toks := Tokenize("echo hi # trailing comment", nil)
	assert.Equal(t, []Kind{Word, Word, EOF}, kindsOf(toks))
}

func TestTokenizePipeSemicolonRedirects(t *testing.T) {
	toks := Tokenize("a | b ; c < in > out", nil)
	assert.Equal(t, []Kind{Word, Pipe, Word, Semi, Word, RedirIn, Word, RedirOut, Word, EOF}, kindsOf(toks))
}
