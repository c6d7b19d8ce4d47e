package main

import (
	"hash/crc32"
	"testing"
)

func TestBuildGPTHeaderCRCsAreSelfConsistent(t *testing.T) {
	const totalSectors = 1 << 17 // 64 MiB at 512-byte sectors
	_, primary, backup, entries := buildGPT(totalSectors, "boot64")

	packed := primary
	wantCRC := headerCRC(packed)
	if primary.HeaderCRC32 != wantCRC {
		t.Errorf("primary header CRC32 not self-consistent: stored 0x%x, recomputed 0x%x", primary.HeaderCRC32, wantCRC)
	}

	packedBackup := backup
	wantBackupCRC := headerCRC(packedBackup)
	if backup.HeaderCRC32 != wantBackupCRC {
		t.Errorf("backup header CRC32 not self-consistent: stored 0x%x, recomputed 0x%x", backup.HeaderCRC32, wantBackupCRC)
	}

	if primary.PartitionEntriesCRC32 != backup.PartitionEntriesCRC32 {
		t.Error("primary and backup headers must agree on the partition entries CRC32")
	}

	wantEntriesCRC := crc32ChecksumEntries(entries)
	if primary.PartitionEntriesCRC32 != wantEntriesCRC {
		t.Errorf("partition entries CRC32 mismatch: stored 0x%x, recomputed 0x%x", primary.PartitionEntriesCRC32, wantEntriesCRC)
	}
}

func TestBuildGPTHeadersAreMirrored(t *testing.T) {
	const totalSectors = 1 << 17
	_, primary, backup, _ := buildGPT(totalSectors, "boot64")

	if primary.CurrentLBA != backup.BackupLBA {
		t.Errorf("primary CurrentLBA (%d) should equal backup BackupLBA (%d)", primary.CurrentLBA, backup.BackupLBA)
	}
	if backup.CurrentLBA != primary.BackupLBA {
		t.Errorf("backup CurrentLBA (%d) should equal primary BackupLBA (%d)", backup.CurrentLBA, primary.BackupLBA)
	}
	if primary.DiskGUID != backup.DiskGUID {
		t.Error("primary and backup headers must carry the same disk GUID")
	}
}

func TestBuildGPTSinglePartitionSpansUsableRange(t *testing.T) {
	const totalSectors = 1 << 17
	_, primary, _, entries := buildGPT(totalSectors, "boot64")

	if entries[0].FirstLBA != primary.FirstUsableLBA {
		t.Errorf("expected partition to start at first usable LBA %d; got %d", primary.FirstUsableLBA, entries[0].FirstLBA)
	}
	if entries[0].LastLBA != primary.LastUsableLBA {
		t.Errorf("expected partition to end at last usable LBA %d; got %d", primary.LastUsableLBA, entries[0].LastLBA)
	}
	if entries[0].TypeGUID != guidBytes(efiSystemPartitionType) {
		t.Error("expected the partition's type GUID to be the EFI System Partition GUID")
	}
}

func crc32ChecksumEntries(entries [gptNumEntries]gptPartitionEntry) uint32 {
	return crc32.ChecksumIEEE(packEntries(entries))
}
