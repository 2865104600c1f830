package models

import "strings"

// MetadataField is a single header of a core metadata file. Multi-use headers
// such as Classifier appear once per value.
type MetadataField struct {
	Key   string
	Value string
}

// DistributionMetadata is the core metadata embedded in a built artifact
// (METADATA in a wheel, PKG-INFO in an egg).
type DistributionMetadata struct {
	MetadataVersion string
	Name            string
	Version         string
	Fields          []MetadataField
	Description     string // message body, if any
}

// Get returns the first value of key, or "".
func (m DistributionMetadata) Get(key string) string {
	for _, f := range m.Fields {
		if strings.EqualFold(f.Key, key) {
			return f.Value
		}
	}
	return ""
}

// Values returns every value of key in file order.
func (m DistributionMetadata) Values(key string) []string {
	var out []string
	for _, f := range m.Fields {
		if strings.EqualFold(f.Key, key) {
			out = append(out, f.Value)
		}
	}
	return out
}
