package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const stampLayout = "20060102T150405.000Z"

type Meta struct {
	CreatedAt string   `json:"created_at"`
	Reason    string   `json:"reason"`
	Files     []string `json:"files"`
	Totems    int      `json:"totems"`
	Players   int      `json:"players"`
}

// ArchiveSnapshot copies the given snapshot files into
// `dataDir/archives/<stamp>/` next to a meta.json. Missing files are skipped;
// it returns the archive directory.
func ArchiveSnapshot(dataDir string, files []string, meta Meta, at time.Time) (string, error) {
	archiveDir := filepath.Join(dataDir, "archives", at.UTC().Format(stampLayout))
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", err
	}
	meta.Files = meta.Files[:0]
	for _, src := range files {
		dst := filepath.Join(archiveDir, filepath.Base(src))
		if err := copyFile(src, dst); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", fmt.Errorf("archive %s: %w", src, err)
		}
		meta.Files = append(meta.Files, filepath.Base(src))
	}
	meta.CreatedAt = at.UTC().Format(time.RFC3339Nano)
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644)
	}
	return archiveDir, nil
}

// List returns archive directory names, oldest first.
func List(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(dataDir, "archives"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

func ReadMeta(dataDir, name string) (Meta, error) {
	var m Meta
	b, err := os.ReadFile(filepath.Join(dataDir, "archives", name, "meta.json"))
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(b, &m)
	return m, err
}

// Prune deletes all but the newest keep archives. keep <= 0 keeps everything.
func Prune(dataDir string, keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	names, err := List(dataDir)
	if err != nil || len(names) <= keep {
		return nil, err
	}
	drop := names[:len(names)-keep]
	for _, name := range drop {
		if err := os.RemoveAll(filepath.Join(dataDir, "archives", name)); err != nil {
			return nil, err
		}
	}
	return drop, nil
}

// Restore copies the snapshot files of archive name back into dataDir. The
// server must be stopped; it returns the restored file names.
func Restore(dataDir, name string) ([]string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return nil, fmt.Errorf("bad archive name %q", name)
	}
	meta, err := ReadMeta(dataDir, name)
	if err != nil {
		return nil, err
	}
	src := filepath.Join(dataDir, "archives", name)
	var restored []string
	for _, f := range meta.Files {
		tmp := filepath.Join(dataDir, "."+f+".restore")
		if err := copyFile(filepath.Join(src, f), tmp); err != nil {
			_ = os.Remove(tmp)
			return restored, fmt.Errorf("restore %s: %w", f, err)
		}
		if err := os.Rename(tmp, filepath.Join(dataDir, f)); err != nil {
			_ = os.Remove(tmp)
			return restored, fmt.Errorf("restore %s: %w", f, err)
		}
		restored = append(restored, f)
	}
	return restored, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
