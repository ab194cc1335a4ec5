package btcforge

import (
	"io"
	"os"
	"path/filepath"
	"sort"
)

// scanExecutables returns every regular file in dir carrying an executable
// bit, sorted by name for deterministic collection order.
func scanExecutables(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &FilesystemError{Op: "read", Path: dir, Err: err}
	}
	var out []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if isExecutableFile(path) {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out, nil
}

// copyArtifacts copies each source file into destDir, chmodding each copy to
// 0755. A missing source is logged and skipped, not fatal; the caller
// decides what an empty result means.
func (p *Pipeline) copyArtifacts(destDir string, sources []string) ([]string, error) {
	isCriticalAtomic.Store(1)
	defer isCriticalAtomic.Store(0)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, &FilesystemError{Op: "create", Path: destDir, Err: err}
	}
	p.Sink.Logf("Copying binaries to: %s\n", destDir)

	var copied []string
	for _, src := range sources {
		if _, err := os.Stat(src); err != nil {
			p.Sink.Logf("Binary not found (skipping): %s\n", src)
			continue
		}
		dest := filepath.Join(destDir, filepath.Base(src))
		if err := copyFile(src, dest); err != nil {
			p.Sink.Logf("Failed to copy %s: %v\n", filepath.Base(src), err)
			continue
		}
		if err := os.Chmod(dest, 0o755); err != nil {
			return copied, &FilesystemError{Op: "chmod", Path: dest, Err: err}
		}
		p.Sink.Logf("Copied: %s -> %s\n", filepath.Base(src), dest)
		copied = append(copied, dest)
	}

	if len(copied) == 0 {
		p.Sink.Log("WARNING: no binaries were copied\n")
	}
	return copied, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
