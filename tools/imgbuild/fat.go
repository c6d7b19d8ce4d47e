package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/lunixbochs/struc"
)

const (
	fatSectorsPerCluster = 8 // 4 KiB clusters
	fatClusterSize       = fatSectorsPerCluster * sectorSize
	fatReservedSectors   = 32
	fatNumFATs           = 2
	fatRootCluster       = 2

	attrReadOnly  = 0x01
	attrHidden    = 0x02
	attrSystem    = 0x04
	attrDirectory = 0x10
	attrArchive   = 0x20

	fatEOC = 0x0FFFFFFF
)

// fatFile is a single regular file placed in the image.
type fatFile struct {
	Name string
	Data []byte
}

// fatDir is a directory, holding files and nested directories. The
// bootloader and kernel images form a tree two levels deep at most:
//
//	/EFI/BOOT/BOOTX64.EFI
//	/KERNEL/KERNEL.ELF
//	/KERNEL/FONTS/ASCII.PSF
type fatDir struct {
	Name string
	Dirs []*fatDir
	Files []*fatFile
}

// bootSector mirrors the FAT32 BIOS Parameter Block, one sector wide.
type bootSector struct {
	JumpBoot        [3]byte
	OEMName         [8]byte
	BytesPerSector  uint16
	SectorsPerCluster uint8
	ReservedSectors uint16
	NumFATs         uint8
	RootEntryCount  uint16
	TotalSectors16  uint16
	Media           uint8
	FATSize16       uint16
	SectorsPerTrack uint16
	NumHeads        uint16
	HiddenSectors   uint32
	TotalSectors32  uint32
	FATSize32       uint32
	ExtFlags        uint16
	FSVersion       uint16
	RootCluster     uint32
	FSInfoSector    uint16
	BackupBootSector uint16
	Reserved        [12]byte
	DriveNumber     uint8
	Reserved1       uint8
	BootSignature   uint8
	VolumeID        uint32
	VolumeLabel     [11]byte
	FileSystemType  [8]byte
	BootCode        [420]byte
	Signature       uint16
}

// fsInfo mirrors the FAT32 FSInfo sector. Free-cluster tracking is
// informational only; nothing reads it back in this build pipeline, so
// FreeCount and NextFree are filled with the spec's "unknown" sentinel
// rather than computed precisely.
type fsInfo struct {
	LeadSignature  uint32
	Reserved1      [480]byte
	StructSignature uint32
	FreeCount      uint32
	NextFree       uint32
	Reserved2      [12]byte
	TrailSignature uint32
}

// fatBuilder accumulates FAT chain entries and per-cluster data while
// walking the directory tree, then serializes everything into a single
// contiguous ESP image.
type fatBuilder struct {
	fat     []uint32
	content map[uint32][]byte
}

func newFATBuilder() *fatBuilder {
	b := &fatBuilder{content: make(map[uint32][]byte)}
	// Clusters 0 and 1 are reserved; cluster 2 is conventionally the
	// root directory's first cluster.
	b.fat = append(b.fat, 0x0FFFFFF8, 0x0FFFFFFF)
	return b
}

func (b *fatBuilder) reserve(numClusters int) uint32 {
	first := uint32(len(b.fat))
	for i := 0; i < numClusters; i++ {
		b.fat = append(b.fat, 0)
	}
	for i := 0; i < numClusters; i++ {
		cluster := first + uint32(i)
		if i == numClusters-1 {
			b.fat[cluster] = fatEOC
		} else {
			b.fat[cluster] = cluster + 1
		}
	}
	return first
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

// addFile reserves clusters for a file's raw bytes and records them,
// returning the file's first cluster (0 for an empty file, matching the
// FAT32 convention that zero-length files have no allocation).
func (b *fatBuilder) addFile(f *fatFile) uint32 {
	if len(f.Data) == 0 {
		return 0
	}
	numClusters := ceilDiv(len(f.Data), fatClusterSize)
	first := b.reserve(numClusters)
	b.content[first] = f.Data
	return first
}

// addDir lays out a directory's own entry table and recurses into its
// children, returning the directory's first cluster. parentCluster is 0
// when dir's parent is the root directory, matching the FAT32 convention
// for ".." entries there; otherwise it is the parent's own first cluster.
func (b *fatBuilder) addDir(dir *fatDir, parentCluster uint32, isRoot bool) uint32 {
	entryCount := len(dir.Dirs) + len(dir.Files)
	if !isRoot {
		entryCount += 2 // "." and ".."
	}
	numClusters := ceilDiv(entryCount*32, fatClusterSize)
	if numClusters == 0 {
		numClusters = 1
	}
	self := b.reserve(numClusters)

	var buf bytes.Buffer
	if !isRoot {
		writeDirEntry(&buf, ".", self, attrDirectory, 0)
		writeDirEntry(&buf, "..", parentCluster, attrDirectory, 0)
	}
	for _, f := range dir.Files {
		cluster := b.addFile(f)
		writeDirEntry(&buf, f.Name, cluster, attrArchive, uint32(len(f.Data)))
	}
	for _, d := range dir.Dirs {
		cluster := b.addDir(d, self, false)
		writeDirEntry(&buf, d.Name, cluster, attrDirectory, 0)
	}

	b.content[self] = buf.Bytes()
	return self
}

// shortName8p3 renders name ("KERNEL.ELF", "FONTS", ...) into the
// space-padded 8+3 layout a FAT directory entry stores. Names are
// expected to already fit 8.3 (bootcfg's paths are deliberately chosen
// to); anything longer is truncated rather than given a long-filename
// entry, which this builder does not generate.
func shortName8p3(name string) [11]byte {
	var out [11]byte
	for i := range out {
		out[i] = ' '
	}
	base, ext, _ := strings.Cut(strings.ToUpper(name), ".")
	for i := 0; i < len(base) && i < 8; i++ {
		out[i] = base[i]
	}
	for i := 0; i < len(ext) && i < 3; i++ {
		out[8+i] = ext[i]
	}
	return out
}

// fatDirEntry mirrors one 32-byte FAT directory entry.
type fatDirEntry struct {
	Name        [11]byte
	Attr        uint8
	NTReserved  uint8
	CreateTimeTenth uint8
	CreateTime  uint16
	CreateDate  uint16
	AccessDate  uint16
	ClusterHi   uint16
	WriteTime   uint16
	WriteDate   uint16
	ClusterLo   uint16
	Size        uint32
}

func writeDirEntry(buf *bytes.Buffer, name string, cluster uint32, attr uint8, size uint32) {
	e := fatDirEntry{
		Name:      shortName8p3(name),
		Attr:      attr,
		ClusterHi: uint16(cluster >> 16),
		ClusterLo: uint16(cluster & 0xFFFF),
		Size:      size,
	}
	if err := struc.PackWithOptions(buf, &e, &struc.Options{Order: binary.LittleEndian}); err != nil {
		panic(err)
	}
}

// buildFAT32 serializes root into a complete FAT32 filesystem image:
// boot sector, backup boot sector, FSInfo, two FAT copies, and the data
// region, returning the image bytes and its size in sectors.
func buildFAT32(root *fatDir, volumeLabel string) ([]byte, uint32, error) {
	b := newFATBuilder()
	rootCluster := b.addDir(root, 0, true)
	if rootCluster != fatRootCluster {
		return nil, 0, fmt.Errorf("imgbuild: unexpected root cluster %d", rootCluster)
	}

	dataClusters := len(b.fat) - 2
	fatSizeSectors := uint32(ceilDiv(len(b.fat)*4, sectorSize))
	totalSectors := fatReservedSectors + fatNumFATs*fatSizeSectors + uint32(dataClusters*fatSectorsPerCluster)

	var label [11]byte
	for i := range label {
		label[i] = ' '
	}
	copy(label[:], strings.ToUpper(volumeLabel))

	boot := bootSector{
		JumpBoot:          [3]byte{0xEB, 0x58, 0x90},
		OEMName:           [8]byte{'I', 'M', 'G', 'B', 'L', 'D', ' ', ' '},
		BytesPerSector:    sectorSize,
		SectorsPerCluster: fatSectorsPerCluster,
		ReservedSectors:   fatReservedSectors,
		NumFATs:           fatNumFATs,
		Media:             0xF8,
		SectorsPerTrack:   32,
		NumHeads:          64,
		TotalSectors32:    totalSectors,
		FATSize32:         fatSizeSectors,
		RootCluster:       fatRootCluster,
		FSInfoSector:      1,
		BackupBootSector:  6,
		DriveNumber:       0x80,
		BootSignature:     0x29,
		VolumeID:          0x12345678,
		VolumeLabel:       label,
		FileSystemType:    [8]byte{'F', 'A', 'T', '3', '2', ' ', ' ', ' '},
		Signature:         0xAA55,
	}

	info := fsInfo{
		LeadSignature:   0x41615252,
		StructSignature: 0x61417272,
		FreeCount:       0xFFFFFFFF,
		NextFree:        0xFFFFFFFF,
		TrailSignature:  0xAA550000,
	}

	image := make([]byte, int(totalSectors)*sectorSize)
	w := sliceWriter{buf: image}

	if err := struc.PackWithOptions(&w, &boot, &struc.Options{Order: binary.LittleEndian}); err != nil {
		return nil, 0, err
	}
	w.seek(1 * sectorSize)
	if err := struc.PackWithOptions(&w, &info, &struc.Options{Order: binary.LittleEndian}); err != nil {
		return nil, 0, err
	}
	w.seek(6 * sectorSize)
	if err := struc.PackWithOptions(&w, &boot, &struc.Options{Order: binary.LittleEndian}); err != nil {
		return nil, 0, err
	}

	for fatCopy := 0; fatCopy < fatNumFATs; fatCopy++ {
		off := (fatReservedSectors + uint32(fatCopy)*fatSizeSectors) * sectorSize
		w.seek(int(off))
		for _, entry := range b.fat {
			var tmp [4]byte
			binary.LittleEndian.PutUint32(tmp[:], entry&0x0FFFFFFF)
			w.write(tmp[:])
		}
	}

	dataStart := (fatReservedSectors + fatNumFATs*fatSizeSectors) * sectorSize
	for cluster, data := range b.content {
		off := int(dataStart) + int(cluster-2)*fatClusterSize
		w.seek(off)
		w.write(data)
	}

	return image, totalSectors, nil
}

// sliceWriter is an io.Writer over a preallocated byte slice with a
// seekable cursor, letting struc.PackWithOptions (which only needs
// io.Writer) write each on-disk structure at its correct fixed offset.
type sliceWriter struct {
	buf []byte
	pos int
}

func (w *sliceWriter) seek(pos int) { w.pos = pos }

func (w *sliceWriter) write(p []byte) (int, error) {
	n := copy(w.buf[w.pos:], p)
	w.pos += n
	return n, nil
}

func (w *sliceWriter) Write(p []byte) (int, error) { return w.write(p) }
