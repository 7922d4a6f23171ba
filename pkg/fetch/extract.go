package fetch

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/depscout/depscout/pkg/errors"
)

// extractArchive unpacks a GitHub zipball into dir. GitHub wraps the
// repository contents in a single "owner-repo-sha" folder; that leading
// component is stripped so descriptors appear at the workspace root.
func extractArchive(archive []byte, dir string) error {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return errors.Wrap(errors.ErrCodeTransfer, err, "archive is not a valid zip")
	}

	for _, f := range zr.File {
		rel := stripRoot(f.Name)
		if rel == "" {
			continue
		}

		target, err := securePath(dir, rel)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return errors.Wrap(errors.ErrCodeTransfer, err, "create directory %s", rel)
			}
			continue
		}

		if err := writeEntry(f, target, rel); err != nil {
			return err
		}
	}
	return nil
}

func writeEntry(f *zip.File, target, rel string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeTransfer, err, "create parent for %s", rel)
	}

	rc, err := f.Open()
	if err != nil {
		return errors.Wrap(errors.ErrCodeTransfer, err, "open archive entry %s", rel)
	}
	defer rc.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return errors.Wrap(errors.ErrCodeTransfer, err, "create file %s", rel)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return errors.Wrap(errors.ErrCodeTransfer, err, "write file %s", rel)
	}
	return nil
}

// stripRoot removes the archive's single top-level folder from an entry name.
func stripRoot(name string) string {
	name = strings.TrimPrefix(name, "/")
	_, rest, ok := strings.Cut(name, "/")
	if !ok {
		return ""
	}
	return rest
}

// securePath resolves rel inside dir, rejecting entries that escape it.
func securePath(dir, rel string) (string, error) {
	target := filepath.Join(dir, filepath.FromSlash(rel))
	if !strings.HasPrefix(target, filepath.Clean(dir)+string(os.PathSeparator)) {
		return "", errors.New(errors.ErrCodeTransfer, "archive entry escapes workspace: %q", rel)
	}
	return target, nil
}
