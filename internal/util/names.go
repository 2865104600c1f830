package util

import (
	"regexp"
	"strings"
)

var separatorRun = regexp.MustCompile(`[-_.]+`)

// NormalizeProjectName returns the canonical form of a project name as used in
// index URLs: lowercased, with runs of "-", "_" and "." collapsed to "-".
func NormalizeProjectName(name string) string {
	return separatorRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}
