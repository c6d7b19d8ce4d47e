package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// diskManifest holds the tunables that control the generated image's
// layout. Every field has a default matching the previous fixed-constant
// behavior; a manifest file only needs to set the fields it wants to
// override.
type diskManifest struct {
	espMebibytes int
	volumeLabel  string
	diskLabel    string
}

func defaultManifest() diskManifest {
	return diskManifest{
		espMebibytes: espMebibytes,
		volumeLabel:  "BOOT64ESP",
		diskLabel:    "boot64",
	}
}

// loadManifest reads a hand-rolled key=value manifest describing the disk
// image layout (esp_mebibytes, volume_label, disk_label). Blank lines and
// lines starting with "#" are skipped. Unset keys keep their default.
//
// A real config-file format (TOML, YAML) would be the usual hosted-Go
// choice here, but nothing in the retrieved example pack parses one, so
// this stays a plain key=value reader rather than reaching for a library
// the pack never demonstrates.
func loadManifest(path string) (diskManifest, error) {
	m := defaultManifest()
	if path == "" {
		return m, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return m, fmt.Errorf("imgbuild: open manifest: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return m, fmt.Errorf("imgbuild: manifest line %d: expected key=value, got %q", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "esp_mebibytes":
			n, err := strconv.Atoi(value)
			if err != nil {
				return m, fmt.Errorf("imgbuild: manifest line %d: esp_mebibytes: %w", lineNum, err)
			}
			m.espMebibytes = n
		case "volume_label":
			m.volumeLabel = value
		case "disk_label":
			m.diskLabel = value
		default:
			return m, fmt.Errorf("imgbuild: manifest line %d: unknown key %q", lineNum, key)
		}
	}
	if err := scanner.Err(); err != nil {
		return m, fmt.Errorf("imgbuild: read manifest: %w", err)
	}

	return m, nil
}
