package models

import "strings"

// PackageSpec names the release to promote: a direct URI, a project name, or a
// project name pinned to a version. Exactly one of URI and Name is set.
type PackageSpec struct {
	URI     string `yaml:"uri,omitempty" json:"uri,omitempty"`
	Name    string `yaml:"name,omitempty" json:"name,omitempty"`
	Version string `yaml:"version,omitempty" json:"version,omitempty"`
}

// NewURISpec returns a spec that fetches uri directly.
func NewURISpec(uri string) PackageSpec {
	return PackageSpec{URI: strings.TrimSpace(uri)}
}

// NewNameSpec returns a spec for name, pinned to version when it is not empty.
func NewNameSpec(name, version string) PackageSpec {
	return PackageSpec{Name: strings.TrimSpace(name), Version: strings.TrimSpace(version)}
}

// Validate checks that exactly one variant is active.
func (s PackageSpec) Validate() error {
	hasURI := s.URI != ""
	hasName := s.Name != ""
	switch {
	case !hasURI && !hasName:
		return NewError(ErrInvalidSpec, "please specify at least a package URI or name")
	case hasURI && hasName:
		return NewError(ErrInvalidSpec, "cannot specify both a package URI (%s) and a name (%s)", s.URI, s.Name)
	case hasURI && s.Version != "":
		return NewError(ErrInvalidSpec, "a version cannot be combined with a URI")
	}
	if hasName && strings.ContainsAny(s.Name, " =<>!~;") {
		return NewError(ErrInvalidSpec, "invalid package name %q", s.Name)
	}
	return nil
}

// IsURI reports whether s fetches a URI directly.
func (s PackageSpec) IsURI() bool {
	return s.URI != ""
}

// Requirement renders s in the form the source index resolves:
// the URI, "name" or "name==version".
func (s PackageSpec) Requirement() string {
	switch {
	case s.URI != "":
		return s.URI
	case s.Version != "":
		return s.Name + "==" + s.Version
	default:
		return s.Name
	}
}

func (s PackageSpec) String() string {
	return s.Requirement()
}
