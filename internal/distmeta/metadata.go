// Package distmeta reads the core metadata embedded in built distributions.
package distmeta

import (
	"archive/zip"
	"bufio"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/spachava753/granny/internal/models"
)

const (
	wheelMetadataFile = "METADATA"
	eggMetadataPath   = "EGG-INFO/PKG-INFO"

	// maxMetadataBytes bounds the metadata member read from an artifact.
	maxMetadataBytes = 16 << 20
)

// Read returns the metadata embedded in artifact, opening only the metadata
// member of the archive.
func Read(artifact models.BuiltArtifact) (models.DistributionMetadata, error) {
	zr, err := zip.OpenReader(artifact.Path)
	if err != nil {
		return models.DistributionMetadata{}, models.WrapError(models.ErrMetadata, err, "opening %s", artifact.Filename())
	}
	defer func() {
		_ = zr.Close()
	}()

	file, err := metadataMember(&zr.Reader, artifact.Format)
	if err != nil {
		return models.DistributionMetadata{}, models.WrapError(models.ErrMetadata, err, "reading %s", artifact.Filename())
	}

	rc, err := file.Open()
	if err != nil {
		return models.DistributionMetadata{}, models.WrapError(models.ErrMetadata, err, "opening %s in %s", file.Name, artifact.Filename())
	}
	defer func() {
		_ = rc.Close()
	}()

	md, err := Parse(io.LimitReader(rc, maxMetadataBytes))
	if err != nil {
		return models.DistributionMetadata{}, models.WrapError(models.ErrMetadata, err, "parsing %s in %s", file.Name, artifact.Filename())
	}
	return md, nil
}

// metadataMember locates <name>.dist-info/METADATA in a wheel or
// EGG-INFO/PKG-INFO in an egg.
func metadataMember(zr *zip.Reader, format models.ArtifactFormat) (*zip.File, error) {
	var found []*zip.File
	for _, f := range zr.File {
		switch format {
		case models.FormatEgg:
			if f.Name == eggMetadataPath {
				found = append(found, f)
			}
		default:
			dir, name := path.Split(f.Name)
			dir = strings.TrimSuffix(dir, "/")
			if name == wheelMetadataFile && strings.HasSuffix(dir, ".dist-info") && !strings.Contains(dir, "/") {
				found = append(found, f)
			}
		}
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("no metadata file found")
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%d metadata files found", len(found))
	}
}

// Parse reads an RFC 822 style metadata file: headers in order, with
// continuation lines folded into the preceding value, then an optional body
// holding the long description.
func Parse(r io.Reader) (models.DistributionMetadata, error) {
	var md models.DistributionMetadata

	br := bufio.NewReader(r)
	inBody := false
	var body strings.Builder

	for {
		line, err := br.ReadString('\n')
		if line == "" && err != nil {
			if err == io.EOF {
				break
			}
			return md, fmt.Errorf("reading metadata: %w", err)
		}
		trimmed := strings.TrimRight(line, "\r\n")

		switch {
		case inBody:
			body.WriteString(strings.ReplaceAll(line, "\r\n", "\n"))
		case trimmed == "":
			inBody = true
		case trimmed[0] == ' ' || trimmed[0] == '\t':
			if len(md.Fields) == 0 {
				return md, fmt.Errorf("continuation line before any header: %q", trimmed)
			}
			last := &md.Fields[len(md.Fields)-1]
			last.Value += "\n" + unindent(trimmed)
		default:
			key, value, ok := strings.Cut(trimmed, ":")
			if !ok || strings.TrimSpace(key) == "" {
				return md, fmt.Errorf("malformed header line: %q", trimmed)
			}
			md.Fields = append(md.Fields, models.MetadataField{
				Key:   strings.TrimSpace(key),
				Value: strings.TrimSpace(value),
			})
		}

		if err == io.EOF {
			break
		}
	}

	md.MetadataVersion = md.Get("Metadata-Version")
	md.Name = md.Get("Name")
	md.Version = md.Get("Version")
	md.Description = strings.TrimRight(body.String(), "\n")

	if md.Name == "" || md.Version == "" {
		return md, fmt.Errorf("metadata lacks Name or Version")
	}
	return md, nil
}

// unindent strips the eight-space (optionally "|"-prefixed) indentation older
// metadata versions use for folded description lines.
func unindent(line string) string {
	for _, prefix := range []string{"        |", "       |", "        "} {
		if rest, ok := strings.CutPrefix(line, prefix); ok {
			return rest
		}
	}
	return strings.TrimLeft(line, " \t")
}

// formKeyOverrides maps header names whose upload form key is not simply the
// lowercased, underscored header name.
var formKeyOverrides = map[string]string{
	"classifier":  "classifiers",
	"project-url": "project_urls",
}

// FormKey returns the legacy upload form key for a metadata header name.
func FormKey(header string) string {
	lower := strings.ToLower(header)
	if key, ok := formKeyOverrides[lower]; ok {
		return key
	}
	return strings.ReplaceAll(lower, "-", "_")
}

// FormFields converts metadata into the fields the legacy register and upload
// actions expect. Multi-use headers keep every value in file order.
func FormFields(md models.DistributionMetadata) url.Values {
	form := url.Values{}
	for _, f := range md.Fields {
		form.Add(FormKey(f.Key), f.Value)
	}
	if form.Get("description") == "" && md.Description != "" {
		form.Set("description", md.Description)
	}
	return form
}
