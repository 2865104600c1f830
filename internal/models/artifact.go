package models

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ArtifactFormat is the binary distribution format of a BuiltArtifact.
type ArtifactFormat string

const (
	FormatWheel ArtifactFormat = "wheel"
	FormatEgg   ArtifactFormat = "egg"
)

// FileType returns the upload filetype the index protocol expects.
func (f ArtifactFormat) FileType() string {
	switch f {
	case FormatEgg:
		return "bdist_egg"
	default:
		return "bdist_wheel"
	}
}

// BuiltArtifact is the single binary distribution file about to be published.
type BuiltArtifact struct {
	Path   string // absolute
	Format ArtifactFormat
}

// NewBuiltArtifact returns the artifact backed by path. The format is taken
// from the suffix; anything other than a wheel or egg is rejected.
func NewBuiltArtifact(path string) (BuiltArtifact, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return BuiltArtifact{}, fmt.Errorf("getting absolute path: %w", err)
	}
	name := strings.ToLower(filepath.Base(abs))
	switch {
	case strings.HasSuffix(name, WheelSuffix):
		return BuiltArtifact{Path: abs, Format: FormatWheel}, nil
	case strings.HasSuffix(name, EggSuffix):
		return BuiltArtifact{Path: abs, Format: FormatEgg}, nil
	default:
		return BuiltArtifact{}, NewError(ErrUnsupportedFormat, "%s is not a wheel or egg", filepath.Base(abs))
	}
}

// Filename returns the base name of the artifact file.
func (a BuiltArtifact) Filename() string {
	return filepath.Base(a.Path)
}

// BuildTag identifies the interpreter, ABI and platform an artifact targets.
type BuildTag struct {
	Python   string
	ABI      string
	Platform string
}

func (t BuildTag) String() string {
	return t.Python + "-" + t.ABI + "-" + t.Platform
}
