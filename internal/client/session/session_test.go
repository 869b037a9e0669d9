package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSession_Lifecycle(t *testing.T) {
	s := New()
	assert.False(t, s.IsAuthenticated())
	assert.Equal(t, "", s.Token())

	s.SetToken("jwt")
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, "jwt", s.Token())

	s.Clear()
	assert.False(t, s.IsAuthenticated())
}

func TestSession_ConcurrentAccess(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.SetToken("t")
		}()
		go func() {
			defer wg.Done()
			_ = s.IsAuthenticated()
		}()
	}
	wg.Wait()
	assert.Equal(t, "t", s.Token())
}
