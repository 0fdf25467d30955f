package fileset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"
)

const (
	// MetadataFile lists ownership and permissions to apply within its directory.
	MetadataFile = "fck_metadata.txt"

	// DeleteFile lists files to remove from the corresponding remote directory.
	DeleteFile = "fck_delete.txt"

	// TemplateExt marks files rendered before placement. It is stripped from the output name.
	TemplateExt = ".tmplt"

	unchangedField = "-"
)

// MetadataEntry is one line of a metadata manifest. Empty Owner or Group
// leave that attribute unchanged, as does Mode unless HasMode is set.
type MetadataEntry struct {
	Owner   string
	Group   string
	Mode    os.FileMode
	HasMode bool
	Path    string
}

// ParseMetadata reads a metadata manifest. Each non-blank, non-comment line
// has the form "<owner> <group> <mode> <relative-path>", where "-" leaves a
// field unchanged and a path of "." names the directory itself.
func ParseMetadata(r io.Reader) ([]MetadataEntry, error) {
	var entries []MetadataEntry
	err := scanLines(r, func(lineno int, line string) error {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			return fmt.Errorf("line %d: expected <owner> <group> <mode> <path>, got %q", lineno, line)
		}

		entry := MetadataEntry{
			Path: strings.Join(fields[3:], " "),
		}
		if fields[0] != unchangedField {
			entry.Owner = fields[0]
		}
		if fields[1] != unchangedField {
			entry.Group = fields[1]
		}
		if fields[2] != unchangedField {
			mode, err := strconv.ParseUint(fields[2], 8, 32)
			if err != nil || mode > 0o7777 {
				return fmt.Errorf("line %d: invalid mode %q", lineno, fields[2])
			}
			entry.Mode = os.FileMode(mode)
			entry.HasMode = true
		}
		if err := checkRelative(entry.Path); err != nil {
			return fmt.Errorf("line %d: %w", lineno, err)
		}

		entries = append(entries, entry)
		return nil
	})
	return entries, err
}

// ParseDeletions reads a deletion manifest: one relative file name per line.
func ParseDeletions(r io.Reader) ([]string, error) {
	var names []string
	err := scanLines(r, func(lineno int, line string) error {
		if err := checkRelative(line); err != nil {
			return fmt.Errorf("line %d: %w", lineno, err)
		}
		if line == "." {
			return fmt.Errorf("line %d: cannot delete the directory itself", lineno)
		}
		names = append(names, line)
		return nil
	})
	return names, err
}

func scanLines(r io.Reader, fn func(lineno int, line string) error) error {
	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := fn(lineno, line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// checkRelative rejects paths that would escape the manifest's directory.
func checkRelative(p string) error {
	if path.IsAbs(p) {
		return fmt.Errorf("path %q must be relative", p)
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return fmt.Errorf("path %q must not leave its directory", p)
		}
	}
	return nil
}
