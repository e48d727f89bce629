package variant

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	canonicalPattern    = regexp.MustCompile(`^p\.[A-Z]\d+[A-Z*]$`)
	singleLetterPattern = regexp.MustCompile(`^([A-Z])(\d+)([A-Z*])$`)
	threeLetterPattern  = regexp.MustCompile(`^([A-Z][a-z]{2})(\d+)([A-Z][a-z]{2}|Stop|\*)$`)
	slashPattern        = regexp.MustCompile(`^(\d+)([A-Z])[/>]([A-Z*])$`)
	complexPattern      = regexp.MustCompile(`^([A-Z])(\d+)_([A-Z])(\d+)delins([A-Z*]+)$`)
	refPositionPattern  = regexp.MustCompile(`([A-Z][a-z]{2}|[A-Z]|\*)?(\d+)`)
	firstNumberPattern  = regexp.MustCompile(`\d+`)
)

// Special change classes, checked in this order. HGVS writes them in lower case.
var specialClasses = []string{"fs", "del", "ins", "dup"}

// Canonicalize rewrites a free-text protein change into "p.<Ref><Pos><Alt>" for
// substitutions or "p.<Ref><Pos><fs|del|ins|dup>" for the special classes.
//
// Input that matches no known notation is returned trimmed but otherwise unchanged.
// Canonicalize(Canonicalize(s)) == Canonicalize(s) for every s.
func Canonicalize(raw string) string {
	change := strings.TrimSpace(raw)
	if change == "" {
		return ""
	}
	if canonicalPattern.MatchString(change) {
		return change
	}

	body := strings.TrimPrefix(change, "p.")

	if m := singleLetterPattern.FindStringSubmatch(body); m != nil {
		return "p." + m[1] + m[2] + m[3]
	}

	if m := threeLetterPattern.FindStringSubmatch(body); m != nil {
		ref, okRef := aaSingle(m[1])
		alt, okAlt := aaSingle(m[3])
		if okRef && okAlt {
			return fmt.Sprintf("p.%c%s%c", ref, m[2], alt)
		}
	}

	if m := slashPattern.FindStringSubmatch(body); m != nil {
		return "p." + m[2] + m[1] + m[3]
	}

	// delins ranges are anchored and would otherwise be taken by the del marker.
	if m := complexPattern.FindStringSubmatch(body); m != nil {
		return "p." + m[1] + m[2] + m[5]
	}

	for _, class := range specialClasses {
		if !strings.Contains(body, class) {
			continue
		}
		m := refPositionPattern.FindStringSubmatch(body)
		if m == nil {
			break
		}
		ref := byte('X')
		if aa, ok := aaSingle(m[1]); ok && m[1] != "" {
			ref = aa
		}
		return fmt.Sprintf("p.%c%s%s", ref, m[2], class)
	}

	return change
}

// ExtractPosition returns the first run of digits in a protein change.
func ExtractPosition(change string) (int64, bool) {
	digits := firstNumberPattern.FindString(change)
	if digits == "" {
		return 0, false
	}
	pos, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return pos, true
}
