package dedup

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckAndRememberReturnsTrueOnceInCleanupWindow(t *testing.T) {
	c := New(time.Minute, 100)
	assert.True(t, c.CheckAndRemember("0xabc"))
	assert.False(t, c.CheckAndRemember("0xabc"))
	assert.False(t, c.CheckAndRemember("0xabc"))
}

func TestCheckAndRememberReadmitsAfterTTL(t *testing.T) {
	c := New(10*time.Millisecond, 100)
	assert.True(t, c.CheckAndRemember("0xabc"))
	time.Sleep(20 * time.Millisecond)
	assert.True(t, c.CheckAndRemember("0xabc"))
}

func TestCacheEvictsOldestWhenFull(t *testing.T) {
	c := New(time.Hour, 3)
	assert.True(t, c.CheckAndRemember("k1"))
	assert.True(t, c.CheckAndRemember("k2"))
	assert.True(t, c.CheckAndRemember("k3"))
	assert.True(t, c.CheckAndRemember("k4")) // evicts k1

	assert.Equal(t, 3, c.Size())
	assert.True(t, c.CheckAndRemember("k1")) // re-admitted, was evicted
}

func TestCacheSizeReflectsExpiry(t *testing.T) {
	c := New(10*time.Millisecond, 100)
	for i := 0; i < 5; i++ {
		c.CheckAndRemember(fmt.Sprintf("k%d", i))
	}
	assert.Equal(t, 5, c.Size())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, c.Size())
}
