package plugin

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Wildcard is the component value of "*" and "SNAPSHOT" build parts.
const Wildcard = math.MaxInt32

// BuildNumber is an IDE build such as "IU-241.14494.240" or "233.*".
// The zero value means "unbounded" when used as an until-build.
type BuildNumber struct {
	// ProductCode is the optional product prefix, e.g. "IU".
	ProductCode string
	Components  []int
}

// ParseBuildNumber parses an IDE build number. The last component may be
// "*" or "SNAPSHOT", which compare greater than any number.
func ParseBuildNumber(s string) (BuildNumber, error) {
	var b BuildNumber
	raw := strings.TrimSpace(s)
	if raw == "" {
		return b, fmt.Errorf("empty build number")
	}

	if code, rest, ok := strings.Cut(raw, "-"); ok {
		if code == "" || !isLetters(code) {
			return b, fmt.Errorf("invalid product code in build number %q", s)
		}
		b.ProductCode = code
		raw = rest
	}

	parts := strings.Split(raw, ".")
	b.Components = make([]int, len(parts))
	for i, part := range parts {
		if part == "*" || part == "SNAPSHOT" {
			if i != len(parts)-1 || i == 0 {
				return BuildNumber{}, fmt.Errorf("wildcard must be the last component of build number %q", s)
			}
			b.Components[i] = Wildcard
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return BuildNumber{}, fmt.Errorf("invalid component %q in build number %q", part, s)
		}
		b.Components[i] = n
	}
	return b, nil
}

// MustParseBuildNumber is like ParseBuildNumber but panics on error.
func MustParseBuildNumber(s string) BuildNumber {
	b, err := ParseBuildNumber(s)
	if err != nil {
		panic(err)
	}
	return b
}

// IsZero reports whether b has no components.
func (b BuildNumber) IsZero() bool {
	return len(b.Components) == 0
}

// Baseline returns the first component, e.g. 241 for "241.14494".
func (b BuildNumber) Baseline() int {
	if b.IsZero() {
		return 0
	}
	return b.Components[0]
}

// Compare returns -1, 0 or +1 depending on whether b sorts before, equal
// to or after other. Product codes are ignored and missing trailing
// components count as zero.
func (b BuildNumber) Compare(other BuildNumber) int {
	n := max(len(b.Components), len(other.Components))
	for i := 0; i < n; i++ {
		x, y := component(b, i), component(other, i)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return 0
}

// String formats the build number the way it is written in descriptors.
func (b BuildNumber) String() string {
	parts := make([]string, len(b.Components))
	for i, c := range b.Components {
		if c == Wildcard {
			parts[i] = "*"
		} else {
			parts[i] = strconv.Itoa(c)
		}
	}
	s := strings.Join(parts, ".")
	if b.ProductCode != "" {
		s = b.ProductCode + "-" + s
	}
	return s
}

func component(b BuildNumber, i int) int {
	if i < len(b.Components) {
		return b.Components[i]
	}
	return 0
}

func isLetters(s string) bool {
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return true
}
