package jindisk

import (
	"encoding/binary"

	"github.com/golibos/libos/internal/blockdev"
	"github.com/golibos/libos/internal/errutil"
)

// regionMagic identifies a formatted jindisk volume's region-layout block,
// per spec.md §6: "JinDisk: region layout metadata followed by data
// region, index region, and journal region."
const regionMagic uint32 = 0x4a494e44 // "JIND"

// RegionLayout describes the three fixed regions of a jindisk volume:
// encrypted data blocks, the on-disk index (BIT levels), and a journal
// reserved for crash recovery (not populated by this implementation; see
// the Open Question note in compaction.go).
type RegionLayout struct {
	DataStart    blockdev.BlockID
	DataBlocks   uint64
	IndexStart   blockdev.BlockID
	IndexBlocks  uint64
	JournalStart blockdev.BlockID
	JournalBlocks uint64
}

// DefaultLayout partitions a dev of totalBlocks into data (75%), index
// (20%), and journal (5%) regions after one metadata block.
func DefaultLayout(totalBlocks uint64) RegionLayout {
	usable := totalBlocks - 1
	dataBlocks := usable * 75 / 100
	indexBlocks := usable * 20 / 100
	journalBlocks := usable - dataBlocks - indexBlocks

	return RegionLayout{
		DataStart:     1,
		DataBlocks:    dataBlocks,
		IndexStart:    blockdev.BlockID(1 + dataBlocks),
		IndexBlocks:   indexBlocks,
		JournalStart:  blockdev.BlockID(1 + dataBlocks + indexBlocks),
		JournalBlocks: journalBlocks,
	}
}

func (r RegionLayout) encode() blockdev.Buf {
	buf := blockdev.NewBuf(1)
	binary.LittleEndian.PutUint32(buf[0:4], regionMagic)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(r.DataStart))
	binary.LittleEndian.PutUint64(buf[16:24], r.DataBlocks)
	binary.LittleEndian.PutUint64(buf[24:32], uint64(r.IndexStart))
	binary.LittleEndian.PutUint64(buf[32:40], r.IndexBlocks)
	binary.LittleEndian.PutUint64(buf[40:48], uint64(r.JournalStart))
	binary.LittleEndian.PutUint64(buf[48:56], r.JournalBlocks)
	return buf
}

func decodeRegionLayout(buf blockdev.Buf) (RegionLayout, error) {
	if binary.LittleEndian.Uint32(buf[0:4]) != regionMagic {
		return RegionLayout{}, errutil.New(errutil.EINVAL, "jindisk: corrupt region layout block")
	}
	return RegionLayout{
		DataStart:     blockdev.BlockID(binary.LittleEndian.Uint64(buf[8:16])),
		DataBlocks:    binary.LittleEndian.Uint64(buf[16:24]),
		IndexStart:    blockdev.BlockID(binary.LittleEndian.Uint64(buf[24:32])),
		IndexBlocks:   binary.LittleEndian.Uint64(buf[32:40]),
		JournalStart:  blockdev.BlockID(binary.LittleEndian.Uint64(buf[40:48])),
		JournalBlocks: binary.LittleEndian.Uint64(buf[48:56]),
	}, nil
}

// WriteLayout persists layout to block 0 of dev.
func WriteLayout(dev blockdev.Device, layout RegionLayout) error {
	sub, err := dev.Submit(&blockdev.Request{Op: blockdev.OpWrite, StartID: 0, Buf: layout.encode()})
	if err != nil {
		return err
	}
	return sub.Wait()
}

// ReadLayout loads the region layout from block 0 of dev.
func ReadLayout(dev blockdev.Device) (RegionLayout, error) {
	buf := blockdev.NewBuf(1)
	sub, err := dev.Submit(&blockdev.Request{Op: blockdev.OpRead, StartID: 0, Buf: buf})
	if err != nil {
		return RegionLayout{}, err
	}
	if err := sub.Wait(); err != nil {
		return RegionLayout{}, err
	}
	return decodeRegionLayout(buf)
}
