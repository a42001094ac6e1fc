package storage

import (
	"io/fs"
	"os"
	"path/filepath"
)

// walSidecars are the SQLite write-ahead-log companions that live next to
// the database file and count toward its footprint.
var walSidecars = []string{"-wal", "-shm"}

// DiskUsageBytes sums the on-disk size of the given paths. A file brings
// its WAL sidecars along, a directory is walked recursively, and missing
// paths contribute nothing.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if info.IsDir() {
			n, err := dirSize(p)
			if err != nil {
				return 0, err
			}
			total += n
			continue
		}
		total += info.Size()
		for _, suffix := range walSidecars {
			if si, err := os.Stat(p + suffix); err == nil && !si.IsDir() {
				total += si.Size()
			}
		}
	}
	return total, nil
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}
