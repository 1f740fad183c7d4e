package standards

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultVersion is assigned when a document carries no version marker.
const DefaultVersion = "1.0.0"

// BumpKind selects which component of a dotted version to increment.
type BumpKind int

const (
	// BumpMajor is for breaking changes to a standard's requirements.
	BumpMajor BumpKind = iota
	// BumpMinor is for new sections or added guidance.
	BumpMinor
	// BumpPatch is for wording and example changes.
	BumpPatch
)

// ParseVersion splits a MAJOR.MINOR.PATCH string into its components.
func ParseVersion(v string) (major, minor, patch int, err error) {
	parts := strings.Split(strings.TrimSpace(v), ".")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("invalid version %q: want MAJOR.MINOR.PATCH", v)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, convErr := strconv.Atoi(p)
		if convErr != nil || n < 0 {
			return 0, 0, 0, fmt.Errorf("invalid version component %q in %q", p, v)
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2], nil
}

// BumpVersion increments the selected component, resetting lower ones.
// Invalid inputs restart from the default version.
func BumpVersion(v string, kind BumpKind) string {
	major, minor, patch, err := ParseVersion(v)
	if err != nil {
		return DefaultVersion
	}
	switch kind {
	case BumpMajor:
		return fmt.Sprintf("%d.0.0", major+1)
	case BumpMinor:
		return fmt.Sprintf("%d.%d.0", major, minor+1)
	default:
		return fmt.Sprintf("%d.%d.%d", major, minor, patch+1)
	}
}

// IsValidVersion reports whether v parses as a dotted triple.
func IsValidVersion(v string) bool {
	_, _, _, err := ParseVersion(v)
	return err == nil
}
