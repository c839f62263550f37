package frame

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/YuminosukeSato/craftcans/pkg/errors"
	"github.com/YuminosukeSato/craftcans/pkg/log"
)

// ExtractArchive unpacks every entry of a zip archive under destDir and
// returns the paths of the regular files written, in archive order.
// Entries that would land outside destDir are rejected with an ArchiveError.
func ExtractArchive(ctx context.Context, archive, destDir string) ([]string, error) {
	logger := log.Component("frame")

	zr, err := zip.OpenReader(archive)
	if errors.Is(err, zip.ErrInsecurePath) {
		zr.Close()
		return nil, errors.NewArchiveError(archive, "", "archive holds non-local paths")
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open archive %s", archive)
	}
	defer zr.Close()

	root, err := filepath.Abs(destDir)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", destDir)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create %s", root)
	}

	var written []string
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return written, errors.Wrap(err, "extract cancelled")
		}

		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return written, errors.NewArchiveError(archive, f.Name, "entry escapes the destination directory")
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return written, errors.Wrapf(err, "create %s", target)
			}
			continue
		}
		if !f.Mode().IsRegular() {
			return written, errors.NewArchiveError(archive, f.Name, "not a regular file")
		}

		if err := extractFile(f, target); err != nil {
			return written, err
		}
		written = append(written, target)
	}

	logger.Info("archive extracted",
		log.OperationKey, log.OperationExtract,
		log.PathKey, archive,
		"files", len(written),
	)
	return written, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(target))
	}
	rc, err := f.Open()
	if err != nil {
		return errors.Wrapf(err, "open entry %s", f.Name)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrapf(err, "create %s", target)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return errors.Wrapf(err, "write %s", target)
	}
	return errors.Wrapf(out.Close(), "close %s", target)
}
