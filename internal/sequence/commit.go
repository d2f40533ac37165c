package sequence

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const artifactFilePermissions = 0o600

// Commit persists artifact data at livePath via write-to-temp plus atomic
// rename. The temp file lives next to the live path so the rename never
// crosses filesystems, and a unique suffix keeps concurrent violators of the
// caller's exclusivity contract from clobbering each other's temp files —
// the live path itself still only ever changes atomically.
func Commit(data []byte, livePath string) error {
	dir := filepath.Dir(livePath)

	mkdirErr := os.MkdirAll(dir, 0o750)
	if mkdirErr != nil {
		return fmt.Errorf("failed to create artifact directory: %w", mkdirErr)
	}

	tmpPath := livePath + ".tmp." + uuid.NewString()

	writeErr := os.WriteFile(tmpPath, data, artifactFilePermissions)
	if writeErr != nil {
		return fmt.Errorf("failed to write temp artifact: %w", writeErr)
	}

	renameErr := os.Rename(tmpPath, livePath)
	if renameErr != nil {
		// Leave nothing behind on failure; the live artifact is untouched.
		_ = os.Remove(tmpPath)

		return fmt.Errorf("failed to replace artifact atomically: %w", renameErr)
	}

	return nil
}
