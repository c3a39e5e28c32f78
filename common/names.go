package common

import (
	"fmt"
	"strings"
)

// Words that can never be used as a container name. CSS reserves the
// condition keywords and the CSS-wide keywords in this position.
var reservedContainerNames = map[string]bool{
	"none": true, "and": true, "or": true, "not": true,
	"inherit": true, "initial": true, "unset": true, "revert": true, "default": true,
}

// NormalizeContainerName validates a single container-name ident.
//
// Container names are case-sensitive custom idents; comparison keywords and
// CSS-wide keywords are excluded so conditions stay unambiguous. An empty
// input normalizes to an empty name without error.
func NormalizeContainerName(in string) (string, error) {
	s := strings.TrimSpace(in)
	if s == "" {
		return "", nil
	}

	if reservedContainerNames[strings.ToLower(s)] {
		return "", fmt.Errorf("container name %q is a reserved word", s)
	}
	for i, r := range s {
		ok := r == '_' || r == '-' || r >= 0x80 ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(i > 0 && r >= '0' && r <= '9')
		if !ok {
			return "", fmt.Errorf("container name %q contains invalid character %q", s, r)
		}
	}
	// idents cannot look like numbers
	if s[0] == '-' && len(s) > 1 && s[1] >= '0' && s[1] <= '9' {
		return "", fmt.Errorf("container name %q cannot start with a digit", s)
	}
	return s, nil
}
