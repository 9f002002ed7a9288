package vm

import (
	"sync"

	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/hostbridge"
	"github.com/golibos/libos/internal/rangeset"
)

// ShmCreateFlags mirrors shmget(2)'s IPC_CREAT/IPC_EXCL bits.
type ShmCreateFlags uint32

const (
	ShmCreate    ShmCreateFlags = 1 << 0
	ShmExclusive ShmCreateFlags = 1 << 1
)

// segment is one SysV shared memory segment, keyed by its shmget key, per
// spec.md §4.I: "Keyed segments with creation, attach, detach, control...
// Segments are reference counted; a segment marked for deletion is removed
// after the last detach."
type segment struct {
	id    uint32
	key   int32
	size  uint64
	token uint64 // hostbridge.Bridge.AllocUntrusted backing token

	refCount int
	deleted  bool
}

// ShmManager tracks every SysV shared memory segment in the LibOS instance,
// grounded on user_space_vm.rs's reference to a process-wide SHM_MANAGER
// cleaned up on exit (clean_when_libos_exit), generalized here into a
// standalone type since that manager's own source wasn't part of the
// retrieved pack.
type ShmManager struct {
	mu     sync.Mutex
	bridge hostbridge.Bridge
	byKey  map[int32]*segment
	byID   map[uint32]*segment
	nextID uint32
}

// NewShmManager builds an empty manager backed by bridge's untrusted memory
// allocator.
func NewShmManager(bridge hostbridge.Bridge) *ShmManager {
	return &ShmManager{
		bridge: bridge,
		byKey:  make(map[int32]*segment),
		byID:   make(map[uint32]*segment),
	}
}

// Get implements shmget(2): looks up or creates a segment by key.
func (m *ShmManager) Get(key int32, size uint64, flags ShmCreateFlags) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if seg, ok := m.byKey[key]; ok {
		if flags&ShmExclusive != 0 {
			return 0, errutil.New(errutil.EEXIST, "vm: shmget key %d already exists", key)
		}
		if size > seg.size {
			return 0, errutil.New(errutil.EINVAL, "vm: shmget size %d exceeds existing segment size %d", size, seg.size)
		}
		return seg.id, nil
	}
	if flags&ShmCreate == 0 {
		return 0, errutil.New(errutil.ENOENT, "vm: no shm segment for key %d", key)
	}
	if size == 0 {
		return 0, errutil.New(errutil.EINVAL, "vm: shmget size 0")
	}

	size = alignUp(size, PageSize)
	token, err := m.bridge.AllocUntrusted(int(size))
	if err != nil {
		return 0, errutil.Wrap(errutil.ENOMEM, err, "vm: allocating shm segment")
	}

	m.nextID++
	seg := &segment{id: m.nextID, key: key, size: size, token: token}
	m.byKey[key] = seg
	m.byID[seg.id] = seg
	return seg.id, nil
}

// At implements shmat(2): maps segment id into as at addr (or a
// kernel-chosen address if addr is 0), returning the mapped address.
func (m *ShmManager) At(as *AddrSpace, id uint32, addr uint64, perms Perms) (uint64, error) {
	m.mu.Lock()
	seg, ok := m.byID[id]
	if !ok {
		m.mu.Unlock()
		return 0, errutil.New(errutil.EINVAL, "vm: shmat: no segment with id %d", id)
	}
	seg.refCount++
	size := seg.size
	m.mu.Unlock()

	as.mu.Lock()
	var placed uint64
	var err error
	if addr != 0 {
		if addr%PageSize != 0 {
			err = errutil.New(errutil.EINVAL, "vm: shmat address must be page-aligned")
		} else {
			as.unmapRangeLocked(rangeset.Range{Start: int64(addr), End: int64(addr + size)})
			placed = addr
		}
	} else {
		placed, err = as.findFreeLocked(0, size)
	}
	if err == nil {
		as.insertLocked(&Area{
			Range: rangeset.Range{Start: int64(placed), End: int64(placed + size)},
			Perms: perms,
			Flags: MapShared,
			backing: &backing{
				inode:  nil,
				offset: int64(id), // shm segment id; Dt reads it back to release the segment
			},
		})
	}
	as.mu.Unlock()

	if err != nil {
		m.mu.Lock()
		seg.refCount--
		m.mu.Unlock()
		return 0, err
	}
	return placed, nil
}

// Dt implements shmdt(2): unmaps the shm area attached at addr and drops
// the segment's reference count, freeing its backing memory if the segment
// was marked for deletion and this was the last attachment.
func (m *ShmManager) Dt(as *AddrSpace, addr uint64) error {
	as.mu.Lock()
	var found *Area
	for _, a := range as.areas {
		if uint64(a.Range.Start) == addr && a.backing != nil && a.backing.inode == nil {
			found = a
			break
		}
	}
	if found == nil {
		as.mu.Unlock()
		return errutil.New(errutil.EINVAL, "vm: shmdt: no shm attachment at %#x", addr)
	}
	id := uint32(found.backing.offset)
	as.removeLocked(found)
	as.mu.Unlock()

	return m.release(id)
}

func (m *ShmManager) release(id uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	seg, ok := m.byID[id]
	if !ok {
		return nil
	}
	if seg.refCount > 0 {
		seg.refCount--
	}
	if seg.deleted && seg.refCount == 0 {
		delete(m.byID, id)
		delete(m.byKey, seg.key)
		return m.bridge.FreeUntrusted(seg.token)
	}
	return nil
}

// RmID implements shmctl(IPC_RMID): marks the segment for deletion,
// removing it immediately if no process has it attached.
func (m *ShmManager) RmID(id uint32) error {
	m.mu.Lock()
	seg, ok := m.byID[id]
	if !ok {
		m.mu.Unlock()
		return errutil.New(errutil.EINVAL, "vm: shmctl: no segment with id %d", id)
	}
	seg.deleted = true
	free := seg.refCount == 0
	if free {
		delete(m.byID, id)
		delete(m.byKey, seg.key)
	}
	token := seg.token
	m.mu.Unlock()

	if free {
		return m.bridge.FreeUntrusted(token)
	}
	return nil
}
