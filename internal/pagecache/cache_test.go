package pagecache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/golibos/libos/internal/blockdev"
	"github.com/golibos/libos/internal/rt"
)

type CacheTest struct {
	suite.Suite
}

func TestCacheTestSuite(t *testing.T) {
	suite.Run(t, new(CacheTest))
}

func (t *CacheTest) newCache(highWater, lowWater int) (*Cache, blockdev.Device) {
	dev := blockdev.NewMemDisk(1024, 64)
	cfg := DefaultConfig()
	cfg.HighWaterPages = highWater
	cfg.LowWaterPages = lowWater
	cfg.FlushInterval = 5 * time.Millisecond
	c := New(dev, cfg, nil)
	t.T().Cleanup(c.Close)
	return c, dev
}

func (t *CacheTest) TestFetchUninitPageGoesUpToDate() {
	c, _ := t.newCache(100, 90)

	h, err := rt.BlockOn(c.Fetch(Key{FD: 1, Offset: 0}, blockdev.BlockID(0)))
	require.NoError(t.T(), err)
	require.NotNil(t.T(), h)
	assert.Len(t.T(), h.Data(), PageSize)
	h.Release()
}

func (t *CacheTest) TestConcurrentFetchersCooperateOnSamePage() {
	c, _ := t.newCache(100, 90)
	key := Key{FD: 2, Offset: 0}

	type result struct {
		h   *Handle
		err error
	}
	results := make(chan result, 2)
	for i := 0; i < 2; i++ {
		go func() {
			h, err := rt.BlockOn(c.Fetch(key, blockdev.BlockID(1)))
			results <- result{h, err}
		}()
	}

	r1 := <-results
	r2 := <-results
	require.NoError(t.T(), r1.err)
	require.NoError(t.T(), r2.err)
	assert.Same(t.T(), r1.h.page, r2.h.page)
	r1.h.Release()
	r2.h.Release()
}

func (t *CacheTest) TestWriteMarksDirtyThenFlusherCleansIt() {
	c, _ := t.newCache(100, 90)
	key := Key{FD: 3, Offset: 0}

	h, err := rt.BlockOn(c.Fetch(key, blockdev.BlockID(2)))
	require.NoError(t.T(), err)
	_, err = rt.BlockOn(h.MarkDirty())
	require.NoError(t.T(), err)
	copy(h.Data(), []byte("hello"))
	h.Release()

	state, _ := h.page.snapshot()
	assert.Equal(t.T(), Dirty, state)

	require.Eventually(t.T(), func() bool {
		s, _ := h.page.snapshot()
		return s == UpToDate
	}, time.Second, 5*time.Millisecond)
}

func (t *CacheTest) TestDoubleReleasePanics() {
	c, _ := t.newCache(100, 90)
	h, err := rt.BlockOn(c.Fetch(Key{FD: 4, Offset: 0}, blockdev.BlockID(3)))
	require.NoError(t.T(), err)

	h.Release()
	assert.Panics(t.T(), func() { h.Release() })
}

func (t *CacheTest) TestLiveHandlesTracksFetchAndRelease() {
	c, _ := t.newCache(100, 90)
	assert.EqualValues(t.T(), 0, c.LiveHandles())

	h1, err := rt.BlockOn(c.Fetch(Key{FD: 7, Offset: 0}, blockdev.BlockID(4)))
	require.NoError(t.T(), err)
	assert.EqualValues(t.T(), 1, c.LiveHandles())

	h2, err := rt.BlockOn(c.Fetch(Key{FD: 7, Offset: int64(PageSize)}, blockdev.BlockID(5)))
	require.NoError(t.T(), err)
	assert.EqualValues(t.T(), 2, c.LiveHandles())

	h1.Release()
	assert.EqualValues(t.T(), 1, c.LiveHandles())
	h2.Release()
	assert.EqualValues(t.T(), 0, c.LiveHandles())
}

func (t *CacheTest) TestAsyncFileReadWriteRoundTrip() {
	c, _ := t.newCache(100, 90)
	f := NewAsyncFile(5, c)

	payload := []byte("round trip bytes")
	n, err := rt.BlockOn(f.WriteAt(payload, 0))
	require.NoError(t.T(), err)
	assert.Equal(t.T(), len(payload), n)

	buf := make([]byte, len(payload))
	n, err = rt.BlockOn(f.ReadAt(buf, 0))
	require.NoError(t.T(), err)
	assert.Equal(t.T(), len(payload), n)
	assert.Equal(t.T(), payload, buf)
}

func (t *CacheTest) TestEvictionRespectsLowWaterMark() {
	c, _ := t.newCache(4, 2)

	for i := 0; i < 10; i++ {
		h, err := rt.BlockOn(c.Fetch(Key{FD: 6, Offset: int64(i * PageSize)}, blockdev.BlockID(i)))
		require.NoError(t.T(), err)
		h.Release()
	}

	c.mu.RLock()
	n := len(c.pages)
	c.mu.RUnlock()
	assert.LessOrEqual(t.T(), n, 4)
}
