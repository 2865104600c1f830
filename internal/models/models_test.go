package models

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
)

func TestPackageSpecValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    PackageSpec
		wantErr bool
		wantReq string
	}{
		{"name only", NewNameSpec("foo", ""), false, "foo"},
		{"name and version", NewNameSpec(" foo ", " 1.0 "), false, "foo==1.0"},
		{"uri", NewURISpec("https://example.com/foo-1.0.tar.gz"), false, "https://example.com/foo-1.0.tar.gz"},
		{"empty", PackageSpec{}, true, ""},
		{"version without name", PackageSpec{Version: "1.0"}, true, ""},
		{"uri and name", PackageSpec{URI: "https://example.com/x.zip", Name: "foo"}, true, ""},
		{"uri and version", PackageSpec{URI: "https://example.com/x.zip", Version: "1.0"}, true, ""},
		{"requirement in name", NewNameSpec("foo>=1.0", ""), true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSpec) {
					t.Fatalf("expected invalid spec error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := tt.spec.Requirement(); got != tt.wantReq {
				t.Errorf("Requirement() = %q, want %q", got, tt.wantReq)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		path string
		want ArchiveKind
	}{
		{"foo-1.0.tar.gz", ArchiveTarGz},
		{"/tmp/x/FOO-1.0.TGZ", ArchiveTarGz},
		{"foo-1.0.zip", ArchiveZip},
		{"foo-1.0-py3-none-any.whl", ArchivePrebuilt},
		{"foo-1.0-py2.7.egg", ArchivePrebuilt},
		{"foo-1.0.tar.bz2", ArchiveUnknown},
		{"foo", ArchiveUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := KindOf(tt.path); got != tt.want {
				t.Errorf("KindOf(%q) = %s, want %s", tt.path, got, tt.want)
			}
		})
	}
}

func TestNewBuiltArtifact(t *testing.T) {
	dir := t.TempDir()

	whl, err := NewBuiltArtifact(filepath.Join(dir, "foo-1.0-py3-none-any.whl"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if whl.Format != FormatWheel || whl.Format.FileType() != "bdist_wheel" {
		t.Errorf("expected wheel/bdist_wheel, got %s/%s", whl.Format, whl.Format.FileType())
	}
	if !filepath.IsAbs(whl.Path) {
		t.Errorf("expected absolute path, got %s", whl.Path)
	}

	egg, err := NewBuiltArtifact("foo-1.0-py2.7.egg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if egg.Format.FileType() != "bdist_egg" {
		t.Errorf("expected bdist_egg, got %s", egg.Format.FileType())
	}
	if egg.Filename() != "foo-1.0-py2.7.egg" {
		t.Errorf("unexpected filename %s", egg.Filename())
	}

	if _, err := NewBuiltArtifact("foo-1.0.tar.gz"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected unsupported format error, got %v", err)
	}
}

func TestErrorClassification(t *testing.T) {
	base := errors.New("connection refused")
	err := fmt.Errorf("fetching foo: %w", WrapError(ErrTransport, base, "GET %s", "https://pypi.org"))

	if !errors.Is(err, ErrTransport) {
		t.Error("expected errors.Is to match ErrTransport")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("did not expect errors.Is to match ErrNotFound")
	}
	if !errors.Is(err, base) {
		t.Error("expected wrapped cause to be reachable")
	}
	if got := TypeOf(err); got != ErrTransport {
		t.Errorf("TypeOf = %s, want %s", got, ErrTransport)
	}
	if got := TypeOf(base); got != ErrInternalError {
		t.Errorf("TypeOf(unclassified) = %s, want %s", got, ErrInternalError)
	}

	want := "fetching foo: GET https://pypi.org: connection refused"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestDistributionMetadataLookup(t *testing.T) {
	md := DistributionMetadata{
		Fields: []MetadataField{
			{Key: "Name", Value: "foo"},
			{Key: "Classifier", Value: "A"},
			{Key: "classifier", Value: "B"},
		},
	}

	if got := md.Get("name"); got != "foo" {
		t.Errorf("Get(name) = %q", got)
	}
	if got := md.Values("Classifier"); len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Errorf("Values(Classifier) = %v", got)
	}
	if got := md.Get("Summary"); got != "" {
		t.Errorf("Get(Summary) = %q, want empty", got)
	}
}
