// Package blockdev implements the block-storage abstraction of spec.md
// §4/component B: a fixed 4 KiB block size, an opaque device handle that
// submits asynchronous I/O requests, and both an in-memory and a
// host-file-backed implementation. Grounded on original_source's
// block-device crate (block_device.rs, block_id.rs, block_buf.rs) and the
// teacher's internal/block package (the in-memory "block" shape, confirmed
// by internal/block/block_test.go's memoryBlock).
package blockdev

import "github.com/golibos/libos/internal/errutil"

// BlockSize is the fixed payload size of one block, per spec.md §3.
const BlockSize = 4096

// BlockID addresses one block. ToOffset converts it to a byte offset in the
// device, per spec.md's "id × 4096" rule.
type BlockID uint64

// ToOffset returns the byte offset of the block within its device.
func (id BlockID) ToOffset() int64 {
	return int64(id) * BlockSize
}

// FromOffset recovers the BlockID containing byte offset off. off must be
// block-aligned; callers that need mid-block addresses should split first.
func FromOffset(off int64) BlockID {
	return BlockID(off / BlockSize)
}

// Buf is a block-sized, block-aligned payload buffer.
type Buf []byte

// NewBuf allocates a zeroed buffer for n contiguous blocks.
func NewBuf(nBlocks int) Buf {
	return make(Buf, nBlocks*BlockSize)
}

// NumBlocks reports how many blocks this buffer spans.
func (b Buf) NumBlocks() int {
	return len(b) / BlockSize
}

// Op is the kind of one I/O request.
type Op int

const (
	OpRead Op = iota
	OpWrite
)

// Request is one owned I/O request: read or write of NumBlocks() contiguous
// blocks, starting at StartID, into/from Buf.
type Request struct {
	Op      Op
	StartID BlockID
	Buf     Buf
}

func validateRequest(req *Request, totalBlocks uint64) error {
	if req.Buf.NumBlocks() == 0 {
		return errutil.New(errutil.EINVAL, "request has zero blocks")
	}
	if len(req.Buf)%BlockSize != 0 {
		return errutil.New(errutil.EINVAL, "request buffer %d is not a multiple of block size", len(req.Buf))
	}
	end := uint64(req.StartID) + uint64(req.Buf.NumBlocks())
	if end > totalBlocks {
		return errutil.New(errutil.EINVAL, "request [%d,%d) exceeds device of %d blocks", req.StartID, end, totalBlocks)
	}
	return nil
}

// Submission is a handle to an in-flight request. Wait blocks (the caller's
// goroutine, not a vCPU — integration with internal/rt happens one layer up
// in internal/pagecache) until the device acknowledges completion.
type Submission struct {
	done chan struct{}
	err  error
}

func newSubmission() *Submission {
	return &Submission{done: make(chan struct{})}
}

func (s *Submission) complete(err error) {
	s.err = err
	close(s.done)
}

// Wait blocks until the submission completes and returns its result.
func (s *Submission) Wait() error {
	<-s.done
	return s.err
}

// Device is the block-device abstraction of spec.md §3: a total block
// count, and a Submit operation returning a completion handle.
type Device interface {
	// TotalBlocks reports the device's fixed size in blocks.
	TotalBlocks() uint64

	// Submit enqueues req and returns immediately with a Submission whose
	// Wait() resolves once the device acknowledges the operation.
	Submit(req *Request) (*Submission, error)

	// Close releases any resources backing the device (workers, open file).
	Close() error
}
