package submission

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Unpack extracts a zipped results directory into a fresh temporary
// directory and returns its path. The caller owns the directory.
func Unpack(zipPath string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", fmt.Errorf("submission: open archive %q: %w", zipPath, err)
	}
	defer r.Close()

	dest, err := os.MkdirTemp("", "rice-eval-submission-*")
	if err != nil {
		return "", fmt.Errorf("submission: create temp dir: %w", err)
	}

	for _, f := range r.File {
		if err := extractFile(dest, f); err != nil {
			_ = os.RemoveAll(dest)
			return "", err
		}
	}
	return dest, nil
}

func extractFile(dest string, f *zip.File) error {
	name := filepath.Clean(f.Name)
	if name == "." || strings.HasPrefix(name, "..") || filepath.IsAbs(name) {
		return fmt.Errorf("submission: archive entry %q escapes destination", f.Name)
	}
	path := filepath.Join(dest, name)

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("submission: create dir %q: %w", name, err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("submission: create dir for %q: %w", name, err)
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("submission: open archive entry %q: %w", name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("submission: create %q: %w", name, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("submission: extract %q: %w", name, err)
	}
	return nil
}
