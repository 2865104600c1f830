package distmeta

import (
	"strings"

	"github.com/spachava753/granny/internal/models"
)

// ParseBuildTag extracts the python, ABI and platform tags from an artifact
// file name.
//
//	{name}-{version}(-{build})?-{python}-{abi}-{platform}.whl
//	{name}-{version}-py{X.Y}(-{platform})?.egg
func ParseBuildTag(filename string) (models.BuildTag, error) {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, models.WheelSuffix):
		parts := strings.Split(filename[:len(filename)-len(models.WheelSuffix)], "-")
		if len(parts) != 5 && len(parts) != 6 {
			return models.BuildTag{}, models.NewError(models.ErrMetadata, "invalid wheel file name %q", filename)
		}
		n := len(parts)
		return models.BuildTag{Python: parts[n-3], ABI: parts[n-2], Platform: parts[n-1]}, nil

	case strings.HasSuffix(lower, models.EggSuffix):
		parts := strings.Split(filename[:len(filename)-len(models.EggSuffix)], "-")
		if len(parts) < 3 || !strings.HasPrefix(parts[2], "py") {
			return models.BuildTag{}, models.NewError(models.ErrMetadata, "invalid egg file name %q", filename)
		}
		platform := "any"
		if len(parts) > 3 {
			platform = strings.Join(parts[3:], "-")
		}
		return models.BuildTag{Python: parts[2], ABI: "none", Platform: platform}, nil

	default:
		return models.BuildTag{}, models.NewError(models.ErrUnsupportedFormat, "%s is not a wheel or egg", filename)
	}
}

// PyVersion returns the pyversion upload field for artifact: the wheel's
// python tag, or the bare interpreter version of an egg ("2.7").
func PyVersion(artifact models.BuiltArtifact) (string, error) {
	tag, err := ParseBuildTag(artifact.Filename())
	if err != nil {
		return "", err
	}
	if artifact.Format == models.FormatEgg {
		return strings.TrimPrefix(tag.Python, "py"), nil
	}
	return tag.Python, nil
}
