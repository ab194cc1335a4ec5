package btcforge

import (
	"archive/tar"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"
)

// archiveArtifacts packs a collected binaries directory into a sibling
// .tar.xz and returns its path. Entry names are relative to the directory's
// parent so the archive unpacks into "<project>-<version>/".
func archiveArtifacts(outputDir string) (string, error) {
	destPath := outputDir + ".tar.xz"

	dest, err := os.Create(destPath)
	if err != nil {
		return "", &FilesystemError{Op: "create", Path: destPath, Err: err}
	}
	defer dest.Close()

	xzWriter, err := xz.NewWriter(dest)
	if err != nil {
		return "", err
	}
	tw := tar.NewWriter(xzWriter)

	base := filepath.Dir(outputDir)
	walkErr := filepath.WalkDir(outputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = rel
		if d.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if walkErr != nil {
		tw.Close()
		xzWriter.Close()
		return "", walkErr
	}

	if err := tw.Close(); err != nil {
		return "", err
	}
	if err := xzWriter.Close(); err != nil {
		return "", err
	}
	if err := dest.Close(); err != nil {
		return "", err
	}
	return destPath, nil
}
