package conda

import (
	"fmt"
	"regexp"
	"strconv"
)

// PackageVersion is a best-effort parse of a conda version string. Conda
// packages are not required to carry semantic versions, so parsing can
// fail; an unparseable version is represented explicitly rather than
// aborting a whole listing, and it sorts above every parseable version so
// that naive "newest wins" comparisons keep the historical behavior.
type PackageVersion struct {
	// Raw is the version string exactly as the tool reported it.
	Raw string

	Major int
	Minor int
	Patch int

	// Unparseable is set when Raw did not start with a dotted numeric
	// version. Major, Minor and Patch are zero in that case.
	Unparseable bool
}

var versionPattern = regexp.MustCompile(`^v?([0-9]+)(?:\.([0-9]+))?(?:\.([0-9]+))?`)

// ParsePackageVersion parses the leading dotted numeric part of a version
// string. Trailing build or pre-release text is ignored, e.g.
// "1.26.4", "2021.05" and "1.2.3.post1" all parse, while "pypy-7.3" does
// not and yields the Unparseable variant.
func ParsePackageVersion(raw string) PackageVersion {
	match := versionPattern.FindStringSubmatch(raw)
	if match == nil {
		return PackageVersion{Raw: raw, Unparseable: true}
	}

	version := PackageVersion{Raw: raw}
	version.Major, _ = strconv.Atoi(match[1])
	if match[2] != "" {
		version.Minor, _ = strconv.Atoi(match[2])
	}
	if match[3] != "" {
		version.Patch, _ = strconv.Atoi(match[3])
	}

	return version
}

// Compare returns -1, 0 or 1 ordering v against other. Unparseable
// versions compare greater than any parsed version and equal to each other.
func (v PackageVersion) Compare(other PackageVersion) int {
	if v.Unparseable || other.Unparseable {
		switch {
		case v.Unparseable && other.Unparseable:
			return 0
		case v.Unparseable:
			return 1
		default:
			return -1
		}
	}

	for _, pair := range [][2]int{
		{v.Major, other.Major},
		{v.Minor, other.Minor},
		{v.Patch, other.Patch},
	} {
		if pair[0] > pair[1] {
			return 1
		}
		if pair[0] < pair[1] {
			return -1
		}
	}

	return 0
}

// Equal reports whether the two versions compare equal.
func (v PackageVersion) Equal(other PackageVersion) bool {
	return v.Compare(other) == 0
}

func (v PackageVersion) String() string {
	if v.Unparseable {
		return fmt.Sprintf("unparseable(%s)", v.Raw)
	}
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Package is one entry of an environment's package listing.
type Package struct {
	Name        string
	Version     PackageVersion
	BuildString string
	Channel     string
}
