package devfs

import (
	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/events"
	"github.com/golibos/libos/internal/vfs"
)

// SgxFile is a placeholder for /dev/sgx: the enclave attestation driver
// entry point exists in the namespace, but driver-level ioctls (attestation
// quote generation, EPC management) are out of scope per spec.md §1's
// "hardware attestation and sealing mechanics are modeled only through
// interfaces, not reimplemented." Opens succeed; reads/writes fail.
type SgxFile struct {
	vfs.UnimplementedSyncFile
}

func (SgxFile) Read(_ []byte) (int, error) {
	return 0, errutil.New(errutil.ENOSYS, "sgx device ioctls not modeled")
}

func (SgxFile) Poll(mask events.Mask, _ *events.Poller) events.Mask {
	return mask & events.AlwaysPoll
}
