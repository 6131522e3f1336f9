package installer

import (
	"os"
	"path/filepath"
	"time"
)

// Janitor sweeps stale entries from the staging and trash roots. Anything
// last modified more than Config.JanitorMaxAge ago is deleted. Failures are
// logged and swallowed: this is hygiene, not correctness-critical.
func (ins *Installer) Janitor() {
	cutoff := time.Now().Add(-ins.Config.JanitorMaxAge)
	ins.sweepDir(ins.Config.StagingDir(), cutoff)
	ins.sweepDir(ins.Config.TrashDir(), cutoff)
}

func (ins *Installer) sweepDir(dir string, cutoff time.Time) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			ins.Logger.Warn("janitor: failed to read dir", "dir", dir, "error", err)
		}
		return
	}

	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			ins.Logger.Warn("janitor: failed to stat entry", "entry", entry.Name(), "error", err)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			ins.Logger.Warn("janitor: failed to remove stale entry", "path", path, "error", err)
			continue
		}
		ins.Logger.Info("janitor: removed stale entry", "path", path)
	}
}
