package main

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"

	"github.com/google/uuid"
	"github.com/lunixbochs/struc"
)

const (
	sectorSize = 512

	// gptHeaderLBA and gptEntriesLBA are fixed by the GPT specification:
	// the protective MBR occupies LBA 0, the primary header LBA 1, and the
	// partition entry array starts immediately after it.
	gptHeaderLBA  = 1
	gptEntriesLBA = 2

	gptNumEntries     = 128
	gptEntrySize      = 128
	gptEntriesSectors = (gptNumEntries * gptEntrySize) / sectorSize

	// firstUsableLBA leaves room for the protective MBR, the primary
	// header, and the primary partition entry array.
	firstUsableLBA = gptEntriesLBA + gptEntriesSectors
)

var gptSignature = [8]byte{'E', 'F', 'I', ' ', 'P', 'A', 'R', 'T'}

// efiSystemPartitionType is the well-known GUID GPT uses to mark a
// partition as an EFI System Partition.
var efiSystemPartitionType = uuid.MustParse("C12A7328-F81F-11D2-BA4B-00A0C93EC93B")

// protectiveMBRPartition describes the single partition record a
// protective MBR carries, covering the whole disk with type 0xEE so
// MBR-only tooling leaves the disk alone instead of treating it as
// unpartitioned.
type protectiveMBRPartition struct {
	BootIndicator uint8
	StartCHS      [3]uint8
	PartitionType uint8
	EndCHS        [3]uint8
	StartLBA      uint32
	SizeLBA       uint32
}

// protectiveMBR is LBA 0 of a GPT disk: a single 0xEE partition record
// spanning the disk, a boot code region left zeroed since nothing ever
// boots from it, and the standard 0x55AA signature.
type protectiveMBR struct {
	BootCode   [440]byte
	DiskSig    uint32
	Reserved   uint16
	Partitions [4]protectiveMBRPartition
	Signature  uint16
}

func newProtectiveMBR(totalSectors uint32) protectiveMBR {
	var mbr protectiveMBR
	mbr.Signature = 0xAA55
	mbr.Partitions[0] = protectiveMBRPartition{
		BootIndicator: 0,
		StartCHS:      [3]uint8{0x00, 0x02, 0x00},
		PartitionType: 0xEE,
		EndCHS:        [3]uint8{0xFF, 0xFF, 0xFF},
		StartLBA:      1,
		SizeLBA:       totalSectors - 1,
	}
	return mbr
}

// gptHeader mirrors the on-disk GPT header layout exactly (92 defined
// bytes followed by zero padding out to one sector).
type gptHeader struct {
	Signature          [8]byte
	Revision           uint32
	HeaderSize         uint32
	HeaderCRC32        uint32
	Reserved           uint32
	CurrentLBA         uint64
	BackupLBA          uint64
	FirstUsableLBA     uint64
	LastUsableLBA      uint64
	DiskGUID           [16]byte
	PartitionEntryLBA  uint64
	NumPartitionEntries uint32
	PartitionEntrySize uint32
	PartitionEntriesCRC32 uint32
	Padding            [sectorSize - 92]byte
}

// gptPartitionEntry mirrors one 128-byte GPT partition entry. Name is
// UTF-16LE, 36 code units, matching the spec's fixed field width.
type gptPartitionEntry struct {
	TypeGUID    [16]byte
	UniqueGUID  [16]byte
	FirstLBA    uint64
	LastLBA     uint64
	Attributes  uint64
	Name        [36]uint16
}

// buildGPT lays out a single-partition GPT disk of totalSectors sectors,
// with one EFI System Partition spanning from firstUsableLBA to the last
// usable sector. It returns the protective MBR, primary header, backup
// header, and the (identical) primary/backup partition entry arrays,
// ready to be packed with struc in on-disk order.
func buildGPT(totalSectors uint32, partitionName string) (mbr protectiveMBR, primary, backup gptHeader, entries [gptNumEntries]gptPartitionEntry) {
	mbr = newProtectiveMBR(totalSectors)

	lastUsableLBA := uint64(totalSectors) - 1 - gptEntriesSectors - 1
	backupHeaderLBA := uint64(totalSectors) - 1
	backupEntriesLBA := backupHeaderLBA - gptEntriesSectors

	diskGUID := uuid.New()
	partitionGUID := uuid.New()

	entries[0] = gptPartitionEntry{
		TypeGUID:   guidBytes(efiSystemPartitionType),
		UniqueGUID: guidBytes(partitionGUID),
		FirstLBA:   firstUsableLBA,
		LastLBA:    lastUsableLBA,
		Attributes: 0,
		Name:       utf16Fixed(partitionName),
	}

	entriesCRC := crc32.ChecksumIEEE(packEntries(entries))

	primary = gptHeader{
		Signature:             gptSignature,
		Revision:              0x00010000,
		HeaderSize:            92,
		CurrentLBA:            gptHeaderLBA,
		BackupLBA:             backupHeaderLBA,
		FirstUsableLBA:        firstUsableLBA,
		LastUsableLBA:         lastUsableLBA,
		DiskGUID:              guidBytes(diskGUID),
		PartitionEntryLBA:     gptEntriesLBA,
		NumPartitionEntries:   gptNumEntries,
		PartitionEntrySize:    gptEntrySize,
		PartitionEntriesCRC32: entriesCRC,
	}
	primary.HeaderCRC32 = headerCRC(primary)

	backup = primary
	backup.CurrentLBA, backup.BackupLBA = backupHeaderLBA, gptHeaderLBA
	backup.PartitionEntryLBA = backupEntriesLBA
	backup.HeaderCRC32 = headerCRC(backup)

	return mbr, primary, backup, entries
}

// headerCRC computes a GPT header's CRC32 with the CRC field itself
// zeroed, per the specification.
func headerCRC(h gptHeader) uint32 {
	h.HeaderCRC32 = 0
	var buf bytes.Buffer
	if err := struc.PackWithOptions(&buf, &h, &struc.Options{Order: binary.LittleEndian}); err != nil {
		panic(err)
	}
	return crc32.ChecksumIEEE(buf.Bytes()[:92])
}

func packEntries(entries [gptNumEntries]gptPartitionEntry) []byte {
	var buf bytes.Buffer
	for i := range entries {
		if err := struc.PackWithOptions(&buf, &entries[i], &struc.Options{Order: binary.LittleEndian}); err != nil {
			panic(err)
		}
	}
	return buf.Bytes()
}

func guidBytes(id uuid.UUID) [16]byte {
	// GPT GUIDs store their first three fields little-endian (mixed-
	// endian "Microsoft" GUID encoding); google/uuid keeps the RFC 4122
	// big-endian wire format, so the first 8 bytes need reordering.
	var out [16]byte
	out[0], out[1], out[2], out[3] = id[3], id[2], id[1], id[0]
	out[4], out[5] = id[5], id[4]
	out[6], out[7] = id[7], id[6]
	copy(out[8:], id[8:])
	return out
}

// utf16Fixed encodes an ASCII partition name into a fixed 36-code-unit
// UTF-16LE array; struc packs each uint16 little-endian on its own.
func utf16Fixed(s string) [36]uint16 {
	var out [36]uint16
	for i := 0; i < len(s) && i < len(out); i++ {
		out[i] = uint16(s[i])
	}
	return out
}
