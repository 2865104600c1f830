package models

import (
	"path/filepath"
	"strings"
)

// ArchiveKind is the format of a downloaded distribution, inferred from its
// file name.
type ArchiveKind string

const (
	ArchiveTarGz    ArchiveKind = "tar.gz"
	ArchiveZip      ArchiveKind = "zip"
	ArchivePrebuilt ArchiveKind = "prebuilt"
	ArchiveUnknown  ArchiveKind = "unknown"
)

// Artifact suffixes that are already installable binary packages.
const (
	WheelSuffix = ".whl"
	EggSuffix   = ".egg"
)

// KindOf infers the ArchiveKind of path from its suffix.
func KindOf(path string) ArchiveKind {
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return ArchiveTarGz
	case strings.HasSuffix(name, ".zip"):
		return ArchiveZip
	case strings.HasSuffix(name, WheelSuffix), strings.HasSuffix(name, EggSuffix):
		return ArchivePrebuilt
	default:
		return ArchiveUnknown
	}
}

// Archive is a downloaded distribution file.
type Archive struct {
	Path string
	Kind ArchiveKind
}

// NewArchive returns an Archive for path with its kind inferred.
func NewArchive(path string) Archive {
	return Archive{Path: path, Kind: KindOf(path)}
}

// IsPrebuilt reports whether the archive can be published without building.
func (a Archive) IsPrebuilt() bool {
	return a.Kind == ArchivePrebuilt
}
