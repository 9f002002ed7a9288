package sfs

import (
	"encoding/binary"

	"github.com/golibos/libos/internal/blockdev"
)

// extentsPerOverflowBlock packs as many (start,count) pairs as fit,
// reserving the last 8 bytes of the block for the next overflow pointer.
const extentsPerOverflowBlock = (blockdev.BlockSize - 8) / extentSize

type overflowBlock struct {
	extents []extent
	next    blockdev.BlockID
}

func (f *FS) readOverflow(id blockdev.BlockID) (*overflowBlock, error) {
	buf := blockdev.NewBuf(1)
	sub, err := f.dev.Submit(&blockdev.Request{Op: blockdev.OpRead, StartID: id, Buf: buf})
	if err != nil {
		return nil, err
	}
	if err := sub.Wait(); err != nil {
		return nil, err
	}
	ob := &overflowBlock{}
	off := 0
	for i := 0; i < extentsPerOverflowBlock; i++ {
		start := binary.LittleEndian.Uint64(buf[off : off+8])
		count := binary.LittleEndian.Uint32(buf[off+8 : off+12])
		if count == 0 {
			break
		}
		ob.extents = append(ob.extents, extent{Start: blockdev.BlockID(start), Count: count})
		off += extentSize
	}
	ob.next = blockdev.BlockID(binary.LittleEndian.Uint64(buf[blockdev.BlockSize-8:]))
	return ob, nil
}

func (f *FS) writeOverflow(id blockdev.BlockID, ob *overflowBlock) error {
	buf := blockdev.NewBuf(1)
	off := 0
	for _, e := range ob.extents {
		binary.LittleEndian.PutUint64(buf[off:off+8], uint64(e.Start))
		binary.LittleEndian.PutUint32(buf[off+8:off+12], e.Count)
		off += extentSize
	}
	binary.LittleEndian.PutUint64(buf[blockdev.BlockSize-8:], uint64(ob.next))
	sub, err := f.dev.Submit(&blockdev.Request{Op: blockdev.OpWrite, StartID: id, Buf: buf})
	if err != nil {
		return err
	}
	return sub.Wait()
}

// allExtents returns every data extent of rec, following the overflow
// chain if the inline extent list overflowed.
func (f *FS) allExtents(rec *inodeRecord) ([]extent, error) {
	out := make([]extent, 0, rec.NumExt)
	inline := int(rec.NumExt)
	if inline > maxExtents {
		inline = maxExtents
	}
	for i := 0; i < inline; i++ {
		out = append(out, rec.Extents[i])
	}
	next := rec.Overflow
	for next != 0 {
		ob, err := f.readOverflow(next)
		if err != nil {
			return nil, err
		}
		out = append(out, ob.extents...)
		next = ob.next
	}
	return out, nil
}

// appendExtent grows rec's data mapping by one contiguous extent,
// spilling into an overflow block once the inline slots are exhausted.
func (f *FS) appendExtent(rec *inodeRecord, e extent) error {
	if int(rec.NumExt) < maxExtents {
		rec.Extents[rec.NumExt] = e
		rec.NumExt++
		return nil
	}

	overflowIndex := int(rec.NumExt) - maxExtents
	blockIdx := overflowIndex / extentsPerOverflowBlock
	slot := overflowIndex % extentsPerOverflowBlock

	var blockID blockdev.BlockID
	cur := rec.Overflow
	for i := 0; i < blockIdx; i++ {
		ob, err := f.readOverflow(cur)
		if err != nil {
			return err
		}
		if ob.next == 0 {
			nb, err := f.allocBlocksLocked(1)
			if err != nil {
				return err
			}
			ob.next = nb
			if err := f.writeOverflow(cur, ob); err != nil {
				return err
			}
			if err := f.writeOverflow(nb, &overflowBlock{}); err != nil {
				return err
			}
		}
		cur = ob.next
	}
	blockID = cur
	if blockID == 0 {
		nb, err := f.allocBlocksLocked(1)
		if err != nil {
			return err
		}
		rec.Overflow = nb
		blockID = nb
		if err := f.writeOverflow(blockID, &overflowBlock{}); err != nil {
			return err
		}
	}

	ob, err := f.readOverflow(blockID)
	if err != nil {
		return err
	}
	for len(ob.extents) <= slot {
		ob.extents = append(ob.extents, extent{})
	}
	ob.extents[slot] = e
	rec.NumExt++
	return f.writeOverflow(blockID, ob)
}
