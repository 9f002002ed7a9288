package hostbridge

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/golibos/libos/internal/errutil"
)

// Simulated is a Bridge implementation that talks to the real host OS
// directly (no enclave, no real io_uring ring) — useful for tests and for
// running the LibOS core outside actual trusted-execution hardware. The
// attestation evidence it produces is a self-signed stand-in: a nonce
// (via github.com/google/uuid, a direct teacher dependency) hashed together
// with the report data, not anything a verifier outside this process would
// trust.
type Simulated struct {
	mu        sync.Mutex
	untrusted map[uint64][]byte
	nextToken uint64

	parkMu sync.Mutex
	parked map[int]chan struct{}
}

// NewSimulated constructs a Simulated host bridge.
func NewSimulated() *Simulated {
	return &Simulated{
		untrusted: make(map[uint64][]byte),
		parked:    make(map[int]chan struct{}),
	}
}

func (s *Simulated) SubmitIO(ctx context.Context, path string, offset int64, buf []byte, isWrite bool) <-chan IOResult {
	out := make(chan IOResult, 1)
	go func() {
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
		if err != nil {
			out <- IOResult{Err: errutil.Wrap(errutil.EIO, err, "hostbridge: open %s", path)}
			return
		}
		defer f.Close()

		var n int
		if isWrite {
			n, err = f.WriteAt(buf, offset)
		} else {
			n, err = f.ReadAt(buf, offset)
			if err != nil && n > 0 {
				err = nil // short read with partial progress is not fatal here
			}
		}
		if err != nil {
			out <- IOResult{N: n, Err: errutil.Wrap(errutil.EIO, err, "hostbridge: io on %s", path)}
			return
		}
		out <- IOResult{N: n}
	}()
	return out
}

func (s *Simulated) AllocUntrusted(n int) (uint64, error) {
	if n <= 0 {
		return 0, errutil.New(errutil.EINVAL, "hostbridge: non-positive alloc size %d", n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextToken++
	token := s.nextToken
	s.untrusted[token] = make([]byte, n)
	return token, nil
}

func (s *Simulated) FreeUntrusted(token uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.untrusted[token]; !ok {
		return errutil.New(errutil.EINVAL, "hostbridge: free of unknown token %d", token)
	}
	delete(s.untrusted, token)
	return nil
}

func (s *Simulated) ReadUntrusted(token uint64, offset int, buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mem, ok := s.untrusted[token]
	if !ok {
		return errutil.New(errutil.EINVAL, "hostbridge: read of unknown token %d", token)
	}
	if offset < 0 || offset+len(buf) > len(mem) {
		return errutil.New(errutil.EFAULT, "hostbridge: read [%d,%d) out of bounds for token %d (%d bytes)", offset, offset+len(buf), token, len(mem))
	}
	copy(buf, mem[offset:offset+len(buf)])
	return nil
}

func (s *Simulated) WriteUntrusted(token uint64, offset int, buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mem, ok := s.untrusted[token]
	if !ok {
		return errutil.New(errutil.EINVAL, "hostbridge: write of unknown token %d", token)
	}
	if offset < 0 || offset+len(buf) > len(mem) {
		return errutil.New(errutil.EFAULT, "hostbridge: write [%d,%d) out of bounds for token %d (%d bytes)", offset, offset+len(buf), token, len(mem))
	}
	copy(mem[offset:offset+len(buf)], buf)
	return nil
}

func (s *Simulated) ReadRandom(buf []byte) error {
	_, err := rand.Read(buf)
	if err != nil {
		return errutil.Wrap(errutil.EAGAIN, err, "hostbridge: hardware random source unavailable")
	}
	return nil
}

func (s *Simulated) Now() time.Time { return time.Now() }

func (s *Simulated) Ticks() uint64 { return uint64(time.Now().UnixNano()) }

func (s *Simulated) Unlink(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errutil.Wrap(errutil.EIO, err, "hostbridge: unlink %s", path)
	}
	return nil
}

func (s *Simulated) Sleep(d time.Duration) { time.Sleep(d) }

func (s *Simulated) Park(vcpu int, timeout time.Duration) bool {
	s.parkMu.Lock()
	ch, ok := s.parked[vcpu]
	if !ok {
		ch = make(chan struct{}, 1)
		s.parked[vcpu] = ch
	}
	s.parkMu.Unlock()

	if timeout <= 0 {
		<-ch
		return true
	}
	select {
	case <-ch:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (s *Simulated) Unpark(vcpu int) {
	s.parkMu.Lock()
	ch, ok := s.parked[vcpu]
	if !ok {
		ch = make(chan struct{}, 1)
		s.parked[vcpu] = ch
	}
	s.parkMu.Unlock()

	select {
	case ch <- struct{}{}:
	default:
		// Already has a pending wakeup; double-unpark is a documented no-op.
	}
}

func (s *Simulated) HostCPUInfo() (string, error) {
	b, err := os.ReadFile("/proc/cpuinfo")
	if err != nil {
		return "model name\t: simulated\n", nil
	}
	return string(b), nil
}

func (s *Simulated) HostResolvConf() (string, error) {
	b, err := os.ReadFile("/etc/resolv.conf")
	if err != nil {
		return "nameserver 127.0.0.1\n", nil
	}
	return string(b), nil
}

func (s *Simulated) HostHosts() (string, error) {
	b, err := os.ReadFile("/etc/hosts")
	if err != nil {
		return "127.0.0.1 localhost\n", nil
	}
	return string(b), nil
}

func (s *Simulated) HostName() (string, error) {
	return os.Hostname()
}

func (s *Simulated) Attest(reportData []byte) ([]byte, error) {
	nonce := uuid.New()
	h := sha256.New()
	h.Write(nonce[:])
	h.Write(reportData)
	sum := h.Sum(nil)
	evidence := append(append([]byte{}, nonce[:]...), sum...)
	return evidence, nil
}

func (s *Simulated) VerifyAttest(evidence []byte) ([]byte, error) {
	if len(evidence) < 16+sha256.Size {
		return nil, errutil.New(errutil.EINVAL, "hostbridge: truncated evidence")
	}
	// The simulated verifier cannot recover reportData from the hash; it
	// only validates structural well-formedness. Real verification happens
	// against the trusted-execution hardware's attestation service, which
	// is out of scope per spec.md §1.
	return evidence[16+sha256.Size:], nil
}

func (s *Simulated) Getsockopt(fd int, level, optname int) ([]byte, error) {
	return nil, errutil.New(errutil.ENOSYS, "hostbridge: getsockopt(%d,%d) not forwarded by simulated bridge", level, optname)
}

func (s *Simulated) Setsockopt(fd int, level, optname int, val []byte) error {
	return errutil.New(errutil.ENOSYS, "hostbridge: setsockopt(%d,%d) not forwarded by simulated bridge", level, optname)
}

func (s *Simulated) Ioctl(fd int, req uint, arg []byte) ([]byte, error) {
	return nil, errutil.New(errutil.ENOSYS, fmt.Sprintf("hostbridge: ioctl(%d) not forwarded by simulated bridge", req))
}

var _ Bridge = (*Simulated)(nil)
