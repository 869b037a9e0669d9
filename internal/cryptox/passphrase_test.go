package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashAndVerifyPassphrase(t *testing.T) {
	pass := []byte("correct horse battery staple river moon")

	stored := HashPassphrase(pass)
	assert.Equal(t, 1, strings.Count(stored, "$"))

	assert.True(t, VerifyPassphrase(stored, pass))
	assert.False(t, VerifyPassphrase(stored, []byte("wrong horse battery staple river moon")))
}

func TestHashPassphrase_Salted(t *testing.T) {
	pass := []byte("same words")
	assert.NotEqual(t, HashPassphrase(pass), HashPassphrase(pass))
}

func TestVerifyPassphrase_Malformed(t *testing.T) {
	for _, stored := range []string{"", "nodollar", "zz$00", "00$zz"} {
		assert.False(t, VerifyPassphrase(stored, []byte("x")), "stored %q", stored)
	}
}

func TestPassphraseLookup(t *testing.T) {
	pepper := []byte("server-secret")

	a := PassphraseLookup(pepper, []byte("one two three"))
	b := PassphraseLookup(pepper, []byte("one two three"))
	c := PassphraseLookup([]byte("other-secret"), []byte("one two three"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
