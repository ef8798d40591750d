package spv

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Version is a SPIR-V version as encoded in the module header.
type Version struct {
	Major uint8
	Minor uint8
}

// Known SPIR-V versions.
var (
	V1_0 = Version{1, 0}
	V1_1 = Version{1, 1}
	V1_2 = Version{1, 2}
	V1_3 = Version{1, 3}
	V1_4 = Version{1, 4}
	V1_5 = Version{1, 5}
	V1_6 = Version{1, 6}
)

// Latest is the newest SPIR-V version this package knows about.
var Latest = V1_6

// ParseVersion parses a version such as "1.3". A patch component, if
// present, is ignored.
func ParseVersion(s string) (Version, error) {
	sv, err := semver.NewVersion(s)
	if err != nil {
		return Version{}, fmt.Errorf("spv: invalid version %q: %w", s, err)
	}
	if sv.Major() != 1 || sv.Minor() > 0xff {
		return Version{}, fmt.Errorf("spv: unsupported version %q", s)
	}
	return Version{Major: 1, Minor: uint8(sv.Minor())}, nil
}

// MustParseVersion is like ParseVersion but panics on error.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// VersionFromWord decodes the header version word (0x00MMmm00).
func VersionFromWord(w uint32) Version {
	return Version{Major: uint8(w >> 16), Minor: uint8(w >> 8)}
}

// Word encodes v as a header version word.
func (v Version) Word() uint32 {
	return uint32(v.Major)<<16 | uint32(v.Minor)<<8
}

// Compare returns -1, 0 or +1 depending on whether v is older than, equal
// to, or newer than o.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		if v.Major < o.Major {
			return -1
		}
		return 1
	case v.Minor != o.Minor:
		if v.Minor < o.Minor {
			return -1
		}
		return 1
	}
	return 0
}

// LessOrEqual reports whether v does not exceed o.
func (v Version) LessOrEqual(o Version) bool {
	return v.Compare(o) <= 0
}

// IsZero reports whether v is the zero Version.
func (v Version) IsZero() bool {
	return v == Version{}
}

// Known reports whether v is one of the published SPIR-V versions.
func (v Version) Known() bool {
	return v.Major == 1 && v.Minor <= Latest.Minor
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(b []byte) error {
	parsed, err := ParseVersion(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
