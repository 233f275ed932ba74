package fetcher

import (
	"archive/zip"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// maxExtractBytes bounds the total uncompressed size of one archive.
const maxExtractBytes int64 = 4 << 30

// ExtractZIP extracts a dataset archive into destDir and returns the written
// file paths. macOS resource forks (__MACOSX/, ._*) are skipped, which keeps
// them from shadowing the real .shp when searching by extension.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	return extractZIPLimited(zipPath, destDir, maxExtractBytes)
}

func extractZIPLimited(zipPath, destDir string, budget int64) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	root := filepath.Clean(destDir) + string(os.PathSeparator)

	var written []string
	for _, f := range r.File {
		if isMacMetadata(f.Name) {
			continue
		}

		dest := filepath.Join(destDir, f.Name)
		if !strings.HasPrefix(filepath.Clean(dest), root) {
			return written, eris.Errorf("zip: illegal path %q (zip slip attempt)", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return written, eris.Wrap(err, "zip: create directory")
			}
			continue
		}

		n, err := extractFile(f, dest, budget)
		if err != nil {
			return written, err
		}
		budget -= n
		written = append(written, dest)
	}
	return written, nil
}

func isMacMetadata(name string) bool {
	return strings.HasPrefix(name, "__MACOSX/") || strings.HasPrefix(path.Base(name), "._")
}

// extractFile copies one entry to dest, failing once more than budget bytes
// would be written.
func extractFile(f *zip.File, dest string, budget int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, eris.Wrap(err, "zip: create parent directory")
	}

	rc, err := f.Open()
	if err != nil {
		return 0, eris.Wrapf(err, "zip: open %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(dest)
	if err != nil {
		return 0, eris.Wrap(err, "zip: create file")
	}
	defer out.Close() //nolint:errcheck

	n, err := io.Copy(out, io.LimitReader(rc, budget+1))
	if err != nil {
		return n, eris.Wrapf(err, "zip: write %s", f.Name)
	}
	if n > budget {
		return n, eris.Errorf("zip: %s exceeds the extraction limit", f.Name)
	}
	return n, nil
}

// FindFileByExt walks dir and returns the first file (in lexical order) with
// the given extension, e.g. ".shp".
func FindFileByExt(dir, ext string) (string, error) {
	var matches []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ext) {
			matches = append(matches, p)
		}
		return nil
	})
	if err != nil {
		return "", eris.Wrapf(err, "zip: walk %s", dir)
	}
	if len(matches) == 0 {
		return "", eris.Errorf("zip: no %s file under %s", ext, dir)
	}
	sort.Strings(matches)
	return matches[0], nil
}
