// Package vault tracks whether the sensitive data store is locked. The state
// is a sentinel file next to the database so that detached notification
// helper processes reach the same verdict as the daemon without any IPC.
package vault

import (
	"fmt"
	"os"
	"path/filepath"
)

const sentinelName = ".locked"

// Vault is the lock flag. The zero value is unusable; use New.
type Vault struct {
	path string
}

// New derives the sentinel location from the data directory.
func New(dataDir string) *Vault {
	return &Vault{path: filepath.Join(dataDir, sentinelName)}
}

// Locked reports the current lock state. A stat error other than not-exist
// counts as locked, erring on the side of not leaking task titles.
func (v *Vault) Locked() bool {
	_, err := os.Stat(v.path)
	if err == nil {
		return true
	}
	return !os.IsNotExist(err)
}

// SetLocked flips the lock state. Locking is idempotent, so is unlocking.
func (v *Vault) SetLocked(locked bool) error {
	if locked {
		f, err := os.OpenFile(v.path, os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("vault lock: %w", err)
		}
		return f.Close()
	}
	if err := os.Remove(v.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("vault unlock: %w", err)
	}
	return nil
}
