package devfs

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/events"
	"github.com/golibos/libos/internal/hostbridge"
	"github.com/golibos/libos/internal/vfs"
)

// maxRandomRetries bounds retries against a transiently failing entropy
// source, per spec.md §4.F: "up to 50 retries are attempted before
// surfacing the error." Grounded on original_source's
// src/fs/dev_fs/dev_random.rs, which retries sgx_read_rand in a loop
// before giving up with EAGAIN.
const maxRandomRetries = 50

// randomRetryRate caps how often fill re-enters the host bridge while an
// entropy source is failing, so a stuck bridge can't spin maxRandomRetries
// attempts back to back. 200/s leaves a 5ms floor between attempts, well
// under spec.md §4.F's retry budget (50 attempts) mattering to latency.
const randomRetryRate = 200

// RandomFile implements /dev/random and /dev/urandom. Both draw from the
// same host entropy source; the distinction is cosmetic here since the
// host bridge does not model blocking-pool exhaustion.
type RandomFile struct {
	vfs.UnimplementedSyncFile
	urandom bool
	bridge  hostbridge.Bridge
	limiter *rate.Limiter
}

// NewRandomFile builds a random-backed special file against bridge.
func NewRandomFile(bridge hostbridge.Bridge, urandom bool) RandomFile {
	return RandomFile{
		bridge:  bridge,
		urandom: urandom,
		limiter: rate.NewLimiter(randomRetryRate, 1),
	}
}

func (r RandomFile) Read(buf []byte) (int, error) {
	return r.fill(buf)
}

func (r RandomFile) ReadAt(_ int64, buf []byte) (int, error) {
	return r.fill(buf)
}

func (r RandomFile) fill(buf []byte) (int, error) {
	if r.bridge == nil {
		return 0, errutil.New(errutil.EAGAIN, "failed to get random number from host")
	}
	var lastErr error
	for attempt := 0; attempt < maxRandomRetries; attempt++ {
		if attempt > 0 {
			if err := r.limiter.Wait(context.Background()); err != nil {
				return 0, errutil.Wrap(errutil.EAGAIN, err, "failed to get random number from host")
			}
		}
		if err := r.bridge.ReadRandom(buf); err != nil {
			lastErr = err
			continue
		}
		return len(buf), nil
	}
	return 0, errutil.New(errutil.EAGAIN, "failed to get random number from host: %v", lastErr)
}

func (RandomFile) Write(buf []byte) (int, error) { return len(buf), nil }

func (RandomFile) WriteAt(_ int64, buf []byte) (int, error) { return len(buf), nil }

func (RandomFile) Poll(mask events.Mask, _ *events.Poller) events.Mask {
	return mask & (events.In | events.AlwaysPoll)
}
