package extractor

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

// ErrUnsafePath is returned for archive entries that would land outside the
// destination directory.
var ErrUnsafePath = errors.New("archive entry escapes destination")

// ErrUnsupportedEntry is returned for entries other than directories,
// regular files, symlinks and hard links.
var ErrUnsupportedEntry = errors.New("unsupported archive entry")

// Extract unpacks a .tar.gz or .tar.xz archive into destDir and returns the
// path of the archive's top-level directory.
func Extract(archivePath, destDir string) (string, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("opening archive: %w", err)
	}
	defer file.Close()

	r, err := decompressor(archivePath, file)
	if err != nil {
		return "", fmt.Errorf("decompressing %s: %w", archivePath, err)
	}
	defer r.Close()

	rootDir, err := extractTar(tar.NewReader(r), destDir)
	if err != nil {
		return "", fmt.Errorf("extracting %s: %w", archivePath, err)
	}
	if rootDir == "" {
		return "", fmt.Errorf("extracting %s: archive is empty", archivePath)
	}
	return filepath.Join(destDir, rootDir), nil
}

func decompressor(name string, r io.Reader) (io.ReadCloser, error) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return gzip.NewReader(r)
	case strings.HasSuffix(lower, ".tar.xz"):
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(xr), nil
	case strings.HasSuffix(lower, ".tar"):
		return io.NopCloser(r), nil
	}
	return nil, fmt.Errorf("unsupported archive format")
}

func extractTar(tr *tar.Reader, destDir string) (string, error) {
	var rootDir string

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		name := strings.TrimPrefix(header.Name, "./")
		if name == "" || header.Typeflag == tar.TypeXGlobalHeader {
			continue
		}

		// Get the root directory name from the first entry
		if rootDir == "" {
			rootDir = strings.SplitN(name, "/", 2)[0]
		}

		target := filepath.Join(destDir, name)
		if !within(destDir, target) {
			return "", fmt.Errorf("%w: %s", ErrUnsafePath, header.Name)
		}
		if err := checkParents(destDir, target); err != nil {
			return "", fmt.Errorf("%w: %s", err, header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return "", err
			}
		case tar.TypeReg:
			// Never write through a link left by an earlier entry
			if err := removeExisting(target); err != nil {
				return "", err
			}
			if err := writeFile(target, tr, os.FileMode(header.Mode).Perm()); err != nil {
				return "", err
			}
			if err := os.Chtimes(target, header.ModTime, header.ModTime); err != nil {
				return "", err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return "", err
			}
			if err := removeExisting(target); err != nil {
				return "", err
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return "", err
			}
		case tar.TypeLink:
			source := filepath.Join(destDir, strings.TrimPrefix(header.Linkname, "./"))
			if !within(destDir, source) {
				return "", fmt.Errorf("%w: %s links to %s", ErrUnsafePath, header.Name, header.Linkname)
			}
			if err := checkParents(destDir, source); err != nil {
				return "", fmt.Errorf("%w: %s links to %s", err, header.Name, header.Linkname)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return "", err
			}
			if err := removeExisting(target); err != nil {
				return "", err
			}
			if err := os.Link(source, target); err != nil {
				return "", err
			}
		default:
			return "", fmt.Errorf("%w: %s has type %q", ErrUnsupportedEntry, header.Name, header.Typeflag)
		}
	}

	return rootDir, nil
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// checkParents fails when a directory between dir and target is a symlink,
// since writing below it could leave dir.
func checkParents(dir, target string) error {
	rel, err := filepath.Rel(dir, filepath.Dir(target))
	if err != nil || rel == "." {
		return err
	}

	path := dir
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		path = filepath.Join(path, part)
		info, err := os.Lstat(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			return ErrUnsafePath
		}
	}
	return nil
}

func removeExisting(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func within(dir, target string) bool {
	rel, err := filepath.Rel(dir, target)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Concatenate writes a gzip-compressed tarball at dest holding the entries
// of every uncompressed tar in parts, in order.
func Concatenate(dest string, parts ...string) error {
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	tw := tar.NewWriter(gw)

	for _, part := range parts {
		if err := appendTar(tw, part); err != nil {
			return fmt.Errorf("appending %s: %w", part, err)
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	return out.Close()
}

func appendTar(tw *tar.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	tr := tar.NewReader(file)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		// git archive emits a pax global header carrying the commit id
		if header.Typeflag == tar.TypeXGlobalHeader {
			continue
		}
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if _, err := io.Copy(tw, tr); err != nil {
			return err
		}
	}
}
