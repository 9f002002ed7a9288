package vfs

import "sync"

// Dentry is a cached binding between an absolute path prefix and an inode;
// it exists only to accelerate lookup and carries no authority of its own,
// per spec.md §3.
type Dentry struct {
	mu       sync.RWMutex
	name     string
	inode    Inode
	parent   *Dentry
	mount    *Mount // non-nil if this dentry is itself a mount point root
	children map[string]*Dentry
}

// NewRootDentry builds the dentry for a file system's root inode.
func NewRootDentry(inode Inode) *Dentry {
	return &Dentry{name: "/", inode: inode, children: make(map[string]*Dentry)}
}

// Child returns (creating if absent) the cached child dentry for name,
// binding it to inode the first time it's seen.
func (d *Dentry) Child(name string, inode Inode) *Dentry {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.children[name]; ok {
		return c
	}
	c := &Dentry{name: name, inode: inode, parent: d, children: make(map[string]*Dentry)}
	d.children[name] = c
	return c
}

// Invalidate drops a cached child entry, forcing the next lookup to go
// back to the file system.
func (d *Dentry) Invalidate(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.children, name)
}

func (d *Dentry) Inode() Inode { return d.inode }
func (d *Dentry) Name() string { return d.name }

// Parent returns the logical parent dentry: the host file system's parent
// if this dentry is a mount root (spec.md "lookups of '..' at a mount root
// return the parent in the host file system"), else the ordinary parent.
func (d *Dentry) Parent() *Dentry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.mount != nil && d.mount.hostParent != nil {
		return d.mount.hostParent
	}
	return d.parent
}
