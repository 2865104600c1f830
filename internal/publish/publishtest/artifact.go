package publishtest

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// WheelMetadata renders a minimal METADATA file for name and version.
func WheelMetadata(name, version string) string {
	return fmt.Sprintf("Metadata-Version: 2.1\nName: %s\nVersion: %s\nSummary: %s test package\n"+
		"Classifier: Programming Language :: Python :: 3\n\n%s long description\n", name, version, name, name)
}

// WriteWheel writes a pure-Python wheel for name and version into dir and
// returns its path.
func WriteWheel(t testing.TB, dir, name, version string) string {
	t.Helper()
	path := filepath.Join(dir, fmt.Sprintf("%s-%s-py3-none-any.whl", name, version))
	WriteZip(t, path, map[string]string{
		name + "/__init__.py": "",
		fmt.Sprintf("%s-%s.dist-info/METADATA", name, version): WheelMetadata(name, version),
	})
	return path
}

// WriteEgg writes an egg for name and version built for python pyVersion
// ("2.7") into dir and returns its path.
func WriteEgg(t testing.TB, dir, name, version, pyVersion string) string {
	t.Helper()
	path := filepath.Join(dir, fmt.Sprintf("%s-%s-py%s.egg", name, version, pyVersion))
	WriteZip(t, path, map[string]string{
		name + "/__init__.py": "",
		"EGG-INFO/PKG-INFO":   fmt.Sprintf("Metadata-Version: 1.0\nName: %s\nVersion: %s\n", name, version),
	})
	return path
}

// WriteZip writes a zip archive holding files at path.
func WriteZip(t testing.TB, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating %s: %v", path, err)
	}
	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("adding %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("closing %s: %v", path, err)
	}
}
