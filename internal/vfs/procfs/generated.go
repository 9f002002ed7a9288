package procfs

import (
	"time"

	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/events"
	"github.com/golibos/libos/internal/vfs"
)

// generatedFile is a read-only regular file whose content is produced
// fresh on every read, per original_source's ProcINode::generate_data_in_bytes
// contract: nothing is cached between reads, so the content always
// reflects current process/system state. Writes fail with EACCES per
// spec.md §4.F ("writes fail with EACCES").
type generatedFile struct {
	generate func() ([]byte, error)
}

func newGeneratedFile(generate func() ([]byte, error)) *generatedFile {
	return &generatedFile{generate: generate}
}

func (g *generatedFile) GetAttr() (vfs.Attr, error) {
	data, err := g.generate()
	size := int64(0)
	if err == nil {
		size = int64(len(data))
	}
	return vfs.Attr{Type: vfs.TypeRegular, Mode: 0o444, Size: size, ModifyAt: time.Time{}}, nil
}
func (g *generatedFile) SetAttr(vfs.Attr, vfs.AttrMask) error {
	return errutil.New(errutil.EACCES, "procfs: read-only")
}
func (g *generatedFile) Lookup(string) (vfs.Inode, error) {
	return nil, errutil.New(errutil.ENOTDIR, "procfs: not a directory")
}
func (g *generatedFile) Readdir() ([]vfs.DirEntry, error) {
	return nil, errutil.New(errutil.ENOTDIR, "procfs: not a directory")
}
func (g *generatedFile) Create(string, uint32) (vfs.Inode, error) {
	return nil, errutil.New(errutil.ENOTDIR, "procfs: not a directory")
}
func (g *generatedFile) Mkdir(string, uint32) (vfs.Inode, error) {
	return nil, errutil.New(errutil.ENOTDIR, "procfs: not a directory")
}
func (g *generatedFile) Unlink(string) error { return errutil.New(errutil.ENOTDIR, "procfs: not a directory") }
func (g *generatedFile) Rmdir(string) error  { return errutil.New(errutil.ENOTDIR, "procfs: not a directory") }
func (g *generatedFile) Rename(string, vfs.Inode, string) error {
	return errutil.New(errutil.ENOTDIR, "procfs: not a directory")
}
func (g *generatedFile) Link(string, vfs.Inode) error {
	return errutil.New(errutil.ENOTDIR, "procfs: not a directory")
}
func (g *generatedFile) Symlink(string, string) (vfs.Inode, error) {
	return nil, errutil.New(errutil.ENOTDIR, "procfs: not a directory")
}
func (g *generatedFile) Readlink() (string, error) {
	return "", errutil.New(errutil.EINVAL, "procfs: not a symlink")
}

func (g *generatedFile) ReadAt(buf []byte, offset int64) (int, error) {
	data, err := g.generate()
	if err != nil {
		return 0, err
	}
	if offset >= int64(len(data)) {
		return 0, nil
	}
	return copy(buf, data[offset:]), nil
}

func (g *generatedFile) WriteAt([]byte, int64) (int, error) {
	return 0, errutil.New(errutil.EACCES, "permission denied")
}
func (g *generatedFile) Truncate(int64) error { return errutil.New(errutil.EACCES, "procfs: read-only") }
func (g *generatedFile) Sync() error          { return nil }
func (g *generatedFile) Poll(mask events.Mask, _ *events.Poller) events.Mask {
	return mask & (events.In | events.AlwaysPoll)
}

// symlinkInode is a read-only symlink whose target is recomputed on every
// Readlink, mirroring generatedFile's always-fresh contract for
// self/exe/root/cwd.
type symlinkInode struct {
	target func() (string, error)
}

func newSymlinkInode(target func() (string, error)) *symlinkInode {
	return &symlinkInode{target: target}
}

func (s *symlinkInode) GetAttr() (vfs.Attr, error) {
	return vfs.Attr{Type: vfs.TypeSymlink, Mode: 0o777, ModifyAt: time.Time{}}, nil
}
func (s *symlinkInode) SetAttr(vfs.Attr, vfs.AttrMask) error {
	return errutil.New(errutil.EACCES, "procfs: read-only")
}
func (s *symlinkInode) Lookup(string) (vfs.Inode, error) {
	return nil, errutil.New(errutil.ENOTDIR, "procfs: not a directory")
}
func (s *symlinkInode) Readdir() ([]vfs.DirEntry, error) {
	return nil, errutil.New(errutil.ENOTDIR, "procfs: not a directory")
}
func (s *symlinkInode) Create(string, uint32) (vfs.Inode, error) {
	return nil, errutil.New(errutil.ENOTDIR, "procfs: not a directory")
}
func (s *symlinkInode) Mkdir(string, uint32) (vfs.Inode, error) {
	return nil, errutil.New(errutil.ENOTDIR, "procfs: not a directory")
}
func (s *symlinkInode) Unlink(string) error { return errutil.New(errutil.ENOTDIR, "procfs: not a directory") }
func (s *symlinkInode) Rmdir(string) error  { return errutil.New(errutil.ENOTDIR, "procfs: not a directory") }
func (s *symlinkInode) Rename(string, vfs.Inode, string) error {
	return errutil.New(errutil.ENOTDIR, "procfs: not a directory")
}
func (s *symlinkInode) Link(string, vfs.Inode) error {
	return errutil.New(errutil.ENOTDIR, "procfs: not a directory")
}
func (s *symlinkInode) Symlink(string, string) (vfs.Inode, error) {
	return nil, errutil.New(errutil.ENOTDIR, "procfs: not a directory")
}
func (s *symlinkInode) Readlink() (string, error) { return s.target() }
func (s *symlinkInode) ReadAt([]byte, int64) (int, error) {
	return 0, errutil.New(errutil.EINVAL, "procfs: is a symlink")
}
func (s *symlinkInode) WriteAt([]byte, int64) (int, error) {
	return 0, errutil.New(errutil.EINVAL, "procfs: is a symlink")
}
func (s *symlinkInode) Truncate(int64) error { return errutil.New(errutil.EACCES, "procfs: read-only") }
func (s *symlinkInode) Sync() error          { return nil }
func (s *symlinkInode) Poll(mask events.Mask, _ *events.Poller) events.Mask {
	return mask & events.AlwaysPoll
}
