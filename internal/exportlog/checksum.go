package exportlog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Checksum returns the hex SHA-256 digest of the artifact bytes.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VerifyFile recomputes the digest of the stored artifact and compares it
// against the logged value. A missing file and a mismatching digest are
// distinct failures: the first means the artifact is gone, the second that
// it was altered after logging.
func VerifyFile(path, want string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrArtifactMissing, path)
		}
		return fmt.Errorf("open artifact %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("read artifact %s: %w", path, err)
	}
	got := hex.EncodeToString(h.Sum(nil))
	if got != want {
		return fmt.Errorf("%w: logged %s, computed %s", ErrChecksumMismatch, want, got)
	}
	return nil
}
