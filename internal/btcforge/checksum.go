package btcforge

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"lukechampine.com/blake3"
)

const checksumManifest = "CHECKSUMS.b3"

// writeChecksumManifest records a BLAKE3 digest for every collected binary
// so a downloaded or archived artifact set can be verified later. Lines are
// "<hex>  <name>", b3sum-compatible.
func writeChecksumManifest(dir string, files []string) error {
	var sb strings.Builder
	for _, file := range files {
		digest, err := hashFile(file)
		if err != nil {
			return err
		}
		fmt.Fprintf(&sb, "%s  %s\n", digest, filepath.Base(file))
	}
	path := filepath.Join(dir, checksumManifest)
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return &FilesystemError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// hashFile returns the hex BLAKE3 (32-byte) digest of a file.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &FilesystemError{Op: "read", Path: path, Err: err}
	}
	defer f.Close()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", &FilesystemError{Op: "read", Path: path, Err: err}
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
