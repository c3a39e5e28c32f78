package config

import (
	"fmt"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// Specification of how rules inside @container blocks get scoped.
//
// "where" wraps the synthetic attribute match in :where() so author
// specificity stays intact; "none" targets platforms without :where() and
// leaves rules inside @container untransformed (reported, never corrupted).
type ScopingMode int

const (
	ScopingModeWhere ScopingMode = iota
	ScopingModeNone
)

var scopingModeNames = []string{"where", "none"}

func (s ScopingMode) String() string {
	if !s.IsValid() {
		return fmt.Sprintf("ScopingMode(%d)", int(s))
	}
	return scopingModeNames[s]
}

func (s ScopingMode) IsValid() bool {
	return s >= ScopingModeWhere && s <= ScopingModeNone
}

func ScopingModeNames() []string {
	return append([]string{}, scopingModeNames...)
}

func ParseScopingMode(name string) (ScopingMode, error) {
	for i, n := range scopingModeNames {
		if strings.EqualFold(name, n) {
			return ScopingMode(i), nil
		}
	}
	return ScopingMode(0), fmt.Errorf("%s is not a valid ScopingMode, try [%s]", name, strings.Join(scopingModeNames, ", "))
}

func (s ScopingMode) MarshalYAML() (any, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("cannot marshal invalid ScopingMode value %d", int(s))
	}
	return s.String(), nil
}

func (s *ScopingMode) UnmarshalYAML(node *yaml.Node) error {
	var name string
	if err := node.Decode(&name); err != nil {
		return err
	}
	v, err := ParseScopingMode(name)
	if err != nil {
		return err
	}
	*s = v
	return nil
}
