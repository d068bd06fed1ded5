// Package updater resolves, downloads, and applies new releases of
// components (the daemon itself, modules, the CLI) published as GitHub
// releases carrying a manifest.json asset.
package updater

import (
	"fmt"
	"strconv"
	"strings"
)

// SemVer is a major.minor.patch version with an optional prerelease tag.
// A prerelease sorts below the release of the same major.minor.patch.
type SemVer struct {
	Major      uint64
	Minor      uint64
	Patch      uint64
	Prerelease string // empty means this is a release build
}

// ParseSemVer parses "v1.2.3" or "1.2.3-beta.1". The patch component may
// be omitted ("1.2" is treated as "1.2.0").
func ParseSemVer(s string) (SemVer, error) {
	s = strings.TrimPrefix(s, "v")

	versionPart, prerelease := s, ""
	if idx := strings.IndexByte(s, '-'); idx >= 0 {
		versionPart, prerelease = s[:idx], s[idx+1:]
	}

	parts := strings.Split(versionPart, ".")
	if len(parts) < 2 {
		return SemVer{}, fmt.Errorf("updater: invalid version %q", s)
	}

	major, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return SemVer{}, fmt.Errorf("updater: invalid major in %q: %w", s, err)
	}
	minor, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return SemVer{}, fmt.Errorf("updater: invalid minor in %q: %w", s, err)
	}
	var patch uint64
	if len(parts) > 2 {
		patch, err = strconv.ParseUint(parts[2], 10, 64)
		if err != nil {
			return SemVer{}, fmt.Errorf("updater: invalid patch in %q: %w", s, err)
		}
	}

	return SemVer{Major: major, Minor: minor, Patch: patch, Prerelease: prerelease}, nil
}

// String renders the canonical "major.minor.patch[-prerelease]" form.
func (v SemVer) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Prerelease != "" {
		s += "-" + v.Prerelease
	}
	return s
}

// IsPrerelease reports whether v carries a prerelease tag.
func (v SemVer) IsPrerelease() bool {
	return v.Prerelease != ""
}

// IsNewerThan reports whether v sorts strictly after other.
func (v SemVer) IsNewerThan(other SemVer) bool {
	return v.Compare(other) > 0
}

// Compare returns -1, 0, or 1 the way sort.Interface-style comparators do.
// A release (no prerelease tag) outranks a prerelease of the same
// major.minor.patch; two prereleases of the same triple compare
// lexically by their tag.
func (v SemVer) Compare(other SemVer) int {
	if c := compareUint(v.Major, other.Major); c != 0 {
		return c
	}
	if c := compareUint(v.Minor, other.Minor); c != 0 {
		return c
	}
	if c := compareUint(v.Patch, other.Patch); c != 0 {
		return c
	}
	switch {
	case v.Prerelease == "" && other.Prerelease == "":
		return 0
	case v.Prerelease == "" && other.Prerelease != "":
		return 1
	case v.Prerelease != "" && other.Prerelease == "":
		return -1
	default:
		return strings.Compare(v.Prerelease, other.Prerelease)
	}
}

func compareUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
