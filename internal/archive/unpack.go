// Package archive extracts source distributions and locates their source root.
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spachava753/granny/internal/models"
)

// DefaultMaxExtractedBytes bounds the total size written by one extraction.
const DefaultMaxExtractedBytes = 4 << 30

// Unpacker extracts archives in place.
type Unpacker struct {
	maxBytes int64
}

// NewUnpacker returns an Unpacker that refuses to write more than maxBytes.
// Zero or negative uses DefaultMaxExtractedBytes.
func NewUnpacker(maxBytes int64) *Unpacker {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxExtractedBytes
	}
	return &Unpacker{maxBytes: maxBytes}
}

// Unpack extracts a into the directory containing it and returns the absolute
// path of the single top-level entry the extraction created.
func (u *Unpacker) Unpack(a models.Archive) (string, error) {
	dir, err := filepath.Abs(filepath.Dir(a.Path))
	if err != nil {
		return "", fmt.Errorf("getting absolute path: %w", err)
	}

	before, err := listNames(dir)
	if err != nil {
		return "", err
	}

	x, err := newExtraction(dir, u.maxBytes)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = x.root.Close()
	}()

	slog.Debug("unpacking archive", "archive", a.Path, "kind", a.Kind)
	switch a.Kind {
	case models.ArchiveTarGz:
		err = x.extractTarGz(a.Path)
	case models.ArchiveZip:
		err = x.extractZip(a.Path)
	default:
		return "", models.NewError(models.ErrUnsupportedFormat, "cannot unpack %s: unsupported archive format", filepath.Base(a.Path))
	}
	if err != nil {
		return "", err
	}

	after, err := listNames(dir)
	if err != nil {
		return "", err
	}

	var created []string
	for name := range after {
		if _, ok := before[name]; !ok {
			created = append(created, name)
		}
	}
	sort.Strings(created)

	if len(created) != 1 {
		return "", models.NewError(models.ErrUnpackLayout,
			"%s must contain exactly one top-level directory, found %d (%s)",
			filepath.Base(a.Path), len(created), strings.Join(created, ", "))
	}
	root := filepath.Join(dir, created[0])
	if !after[created[0]].IsDir() {
		return "", models.NewError(models.ErrUnpackLayout, "%s: top-level entry %s is not a directory",
			filepath.Base(a.Path), created[0])
	}
	if err := x.checkLinks(root); err != nil {
		return "", err
	}
	return root, nil
}

func listNames(dir string) (map[string]fs.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	names := make(map[string]fs.DirEntry, len(entries))
	for _, e := range entries {
		names[e.Name()] = e
	}
	return names, nil
}

// extraction writes archive members beneath dir. Every write goes through
// root.
type extraction struct {
	dir     string
	realDir string
	root    *os.Root
	budget  int64
}

func newExtraction(dir string, budget int64) (*extraction, error) {
	realDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dir, err)
	}
	return &extraction{dir: dir, realDir: realDir, root: root, budget: budget}, nil
}

// memberPath returns an archive member name relative to the extraction
// directory, rejecting names that would escape it.
func memberPath(name string) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(name) || !filepath.IsLocal(rel) {
		return "", models.NewError(models.ErrUnpackLayout, "invalid path in archive: %s", name)
	}
	return rel, nil
}

// within reports whether path is dir or lies beneath it.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && (rel == "." || filepath.IsLocal(rel))
}

func (x *extraction) extractTarGz(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return models.WrapError(models.ErrUnsupportedFormat, err, "reading %s", filepath.Base(path))
	}
	defer func() {
		_ = gz.Close()
	}()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, tar.ErrInsecurePath) {
			return models.WrapError(models.ErrUnpackLayout, err, "invalid path in archive: %s", hdr.Name)
		}
		if err != nil {
			return models.WrapError(models.ErrUnsupportedFormat, err, "reading tar entry")
		}

		rel, err := memberPath(hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			err = x.mkdir(rel)
		case tar.TypeReg:
			err = x.writeFile(rel, tr, hdr.FileInfo().Mode().Perm())
		case tar.TypeSymlink:
			err = x.symlink(rel, hdr.Linkname)
		default:
			slog.Debug("skipping tar entry", "name", hdr.Name, "type", hdr.Typeflag)
		}
		if err != nil {
			return err
		}
	}
}

func (x *extraction) extractZip(path string) (err error) {
	zr, err := zip.OpenReader(path)
	if errors.Is(err, zip.ErrInsecurePath) {
		_ = zr.Close()
		return models.WrapError(models.ErrUnpackLayout, err, "reading %s", filepath.Base(path))
	}
	if err != nil {
		return models.WrapError(models.ErrUnsupportedFormat, err, "reading %s", filepath.Base(path))
	}
	defer func() {
		if closeErr := zr.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for _, file := range zr.File {
		rel, err := memberPath(file.Name)
		if err != nil {
			return err
		}

		if file.FileInfo().IsDir() {
			if err := x.mkdir(rel); err != nil {
				return err
			}
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return models.WrapError(models.ErrUnsupportedFormat, err, "opening zip entry %s", file.Name)
		}
		err = x.writeFile(rel, rc, file.Mode().Perm())
		_ = rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// noLinkedParents rejects rel when any directory on its path is a symlink.
func (x *extraction) noLinkedParents(rel string) error {
	parent := filepath.Dir(rel)
	if parent == "." {
		return nil
	}
	parts := strings.Split(parent, string(filepath.Separator))
	for i := range parts {
		p := filepath.Join(parts[:i+1]...)
		fi, err := x.root.Lstat(p)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("inspecting %s: %w", p, err)
		}
		if fi.Mode()&fs.ModeSymlink != 0 {
			return models.NewError(models.ErrUnpackLayout, "%s is below symlink %s",
				filepath.ToSlash(rel), filepath.ToSlash(p))
		}
	}
	return nil
}

func (x *extraction) mkdir(rel string) error {
	if rel == "." {
		return nil
	}
	if err := x.noLinkedParents(rel); err != nil {
		return err
	}
	if err := x.root.MkdirAll(rel, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", rel, err)
	}
	return nil
}

// writeFile writes r to rel, charging the bytes against the extraction budget.
// An existing link at rel is replaced, never followed.
func (x *extraction) writeFile(rel string, r io.Reader, perm fs.FileMode) (err error) {
	if err := x.noLinkedParents(rel); err != nil {
		return err
	}
	if err := x.root.MkdirAll(filepath.Dir(rel), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", rel, err)
	}
	if fi, err := x.root.Lstat(rel); err == nil && fi.Mode()&fs.ModeSymlink != 0 {
		if err := x.root.Remove(rel); err != nil {
			return fmt.Errorf("replacing symlink %s: %w", rel, err)
		}
	}
	if perm == 0 {
		perm = 0o644
	}
	out, err := x.root.OpenFile(rel, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm|0o200)
	if err != nil {
		return fmt.Errorf("creating %s: %w", rel, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	n, err := io.Copy(out, io.LimitReader(r, x.budget+1))
	if err != nil {
		return fmt.Errorf("extracting %s: %w", rel, err)
	}
	if n > x.budget {
		return models.NewError(models.ErrUnpackLayout, "archive expands beyond the extraction limit")
	}
	x.budget -= n
	return nil
}

// symlink creates a link at rel only when its target, resolved against what
// is already on disk, stays inside the extraction directory.
func (x *extraction) symlink(rel, linkname string) error {
	if err := x.noLinkedParents(rel); err != nil {
		return err
	}
	if filepath.IsAbs(linkname) {
		return models.NewError(models.ErrUnpackLayout, "symlink %s points outside the archive", linkname)
	}
	parent := filepath.Dir(rel)
	if err := x.root.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", rel, err)
	}
	realParent, err := filepath.EvalSymlinks(filepath.Join(x.dir, parent))
	if err != nil {
		return fmt.Errorf("resolving %s: %w", parent, err)
	}
	if !within(x.realDir, filepath.Join(realParent, filepath.FromSlash(linkname))) {
		return models.NewError(models.ErrUnpackLayout, "symlink %s points outside the archive", linkname)
	}
	if err := x.root.Symlink(linkname, rel); err != nil {
		return fmt.Errorf("creating symlink %s: %w", rel, err)
	}
	return nil
}

// checkLinks resolves every symlink under top and rejects any whose final
// target lies outside the extraction directory. It must run after the last
// member is written.
func (x *extraction) checkLinks(top string) error {
	return filepath.WalkDir(top, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&fs.ModeSymlink == 0 {
			return nil
		}
		resolved, err := filepath.EvalSymlinks(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return models.WrapError(models.ErrUnpackLayout, err, "resolving symlink %s", d.Name())
		}
		if !within(x.realDir, resolved) {
			rel, _ := filepath.Rel(x.dir, path)
			return models.NewError(models.ErrUnpackLayout, "symlink %s points outside the archive", filepath.ToSlash(rel))
		}
		return nil
	})
}
