package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"

	"totemcraft.ai/internal/sim/service"
)

// ReadJSONL calls fn for every line of a .jsonl.zst file.
func ReadJSONL(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		if err := fn(sc.Bytes()); err != nil {
			return err
		}
	}
	return sc.Err()
}

// AuditFiles lists the hourly audit files under dir, oldest first.
func AuditFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "audit-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ReadAudit decodes every entry from the files in order.
func ReadAudit(files []string) ([]service.AuditEntry, error) {
	var out []service.AuditEntry
	for _, p := range files {
		err := ReadJSONL(p, func(line []byte) error {
			var e service.AuditEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return err
			}
			out = append(out, e)
			return nil
		})
		if err != nil {
			return out, err
		}
	}
	return out, nil
}
