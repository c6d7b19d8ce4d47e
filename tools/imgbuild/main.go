// Command imgbuild assembles a bootable UEFI disk image: a GPT-partitioned
// disk with a single FAT32 EFI System Partition holding the bootloader PE,
// the kernel ELF image, and the console font.
package main

import (
	"bytes"
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/lunixbochs/struc"
)

func init() {
	log.SetFlags(0)
}

func logf(format string, args ...interface{}) { log.Printf(format, args...) }

// espMebibytes is the EFI System Partition's size, chosen generously
// enough to hold the bootloader, kernel, and font with headroom, without
// needing dynamic disk sizing.
const espMebibytes = 64

func main() {
	var bootloaderPath, kernelPath, fontPath, outPath, manifestPath string
	flag.StringVar(&bootloaderPath, "bootloader", "", "path to the built bootloader PE binary")
	flag.StringVar(&kernelPath, "kernel", "", "path to the built kernel ELF binary")
	flag.StringVar(&fontPath, "font", "", "path to the PSF1 console font")
	flag.StringVar(&outPath, "o", "", "path to write the disk image")
	flag.StringVar(&manifestPath, "manifest", "", "optional key=value manifest overriding disk image layout")
	flag.Parse()

	if bootloaderPath == "" {
		log.Fatalf("-bootloader not specified")
	}
	if kernelPath == "" {
		log.Fatalf("-kernel not specified")
	}
	if fontPath == "" {
		log.Fatalf("-font not specified")
	}
	if outPath == "" {
		log.Fatalf("-o not specified")
	}

	manifest, err := loadManifest(manifestPath)
	if err != nil {
		log.Fatalf("%v", err)
	}

	bootloaderData, err := os.ReadFile(bootloaderPath)
	if err != nil {
		log.Fatalf("read bootloader: %v", err)
	}
	kernelData, err := os.ReadFile(kernelPath)
	if err != nil {
		log.Fatalf("read kernel: %v", err)
	}
	fontData, err := os.ReadFile(fontPath)
	if err != nil {
		log.Fatalf("read font: %v", err)
	}

	if err := reportKernelELF(kernelPath); err != nil {
		log.Fatalf("%v", err)
	}

	root := &fatDir{
		Name: "",
		Dirs: []*fatDir{
			{Name: "EFI", Dirs: []*fatDir{
				{Name: "BOOT", Files: []*fatFile{
					{Name: "BOOTX64.EFI", Data: bootloaderData},
				}},
			}},
			{Name: "KERNEL", Files: []*fatFile{
				{Name: "KERNEL.ELF", Data: kernelData},
			}, Dirs: []*fatDir{
				{Name: "FONTS", Files: []*fatFile{
					{Name: "ASCII.PSF", Data: fontData},
				}},
			}},
		},
	}

	espData, espSectors, err := buildFAT32(root, manifest.volumeLabel)
	if err != nil {
		log.Fatalf("build ESP filesystem: %v", err)
	}
	logf("ESP filesystem: %d sectors (%d bytes)", espSectors, len(espData))

	minEspSectors := uint32(manifest.espMebibytes * 1024 * 1024 / sectorSize)
	if espSectors < minEspSectors {
		padded := make([]byte, int(minEspSectors)*sectorSize)
		copy(padded, espData)
		espData = padded
		espSectors = minEspSectors
	}

	totalSectors := firstUsableLBA + uint32(espSectors) + gptEntriesSectors + 1
	mbr, primary, backup, entries := buildGPT(totalSectors, manifest.diskLabel)

	image, err := assembleDiskImage(totalSectors, mbr, primary, backup, entries, espData)
	if err != nil {
		log.Fatalf("assemble disk image: %v", err)
	}

	if err := os.WriteFile(outPath, image, 0o666); err != nil {
		log.Fatalf("write %s: %v", outPath, err)
	}
	logf("wrote %s: %d bytes (%d sectors)", outPath, len(image), totalSectors)
}

// assembleDiskImage writes the protective MBR, primary GPT header and
// entry array, ESP data, and backup entry array and header, in on-disk
// order, returning the complete disk image.
func assembleDiskImage(totalSectors uint32, mbr protectiveMBR, primary, backup gptHeader, entries [gptNumEntries]gptPartitionEntry, espData []byte) ([]byte, error) {
	image := make([]byte, int(totalSectors)*sectorSize)
	w := sliceWriter{buf: image}

	if err := struc.PackWithOptions(&w, &mbr, &struc.Options{Order: binary.LittleEndian}); err != nil {
		return nil, fmt.Errorf("pack protective MBR: %w", err)
	}

	w.seek(gptHeaderLBA * sectorSize)
	if err := struc.PackWithOptions(&w, &primary, &struc.Options{Order: binary.LittleEndian}); err != nil {
		return nil, fmt.Errorf("pack primary GPT header: %w", err)
	}

	w.seek(gptEntriesLBA * sectorSize)
	var entriesBuf bytes.Buffer
	for i := range entries {
		if err := struc.PackWithOptions(&entriesBuf, &entries[i], &struc.Options{Order: binary.LittleEndian}); err != nil {
			return nil, fmt.Errorf("pack partition entry %d: %w", i, err)
		}
	}
	w.write(entriesBuf.Bytes())

	w.seek(int(firstUsableLBA) * sectorSize)
	w.write(espData)

	backupEntriesLBA := int(primary.BackupLBA) - gptEntriesSectors
	w.seek(backupEntriesLBA * sectorSize)
	w.write(entriesBuf.Bytes())

	w.seek(int(backup.CurrentLBA) * sectorSize)
	if err := struc.PackWithOptions(&w, &backup, &struc.Options{Order: binary.LittleEndian}); err != nil {
		return nil, fmt.Errorf("pack backup GPT header: %w", err)
	}

	return image, nil
}
