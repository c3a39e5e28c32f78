package layout

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/devknoll/container-query-polyfill/common"
	"github.com/devknoll/container-query-polyfill/css"
	"github.com/devknoll/container-query-polyfill/query"
)

// Class is an element's containment classification.
type Class int

const (
	// ClassUnclassified marks an adopted element before its first pass.
	ClassUnclassified Class = iota
	// ClassNormal elements are not containers; their condition results are
	// inherited from the parent.
	ClassNormal
	// ClassQueryContainer elements expose size features and evaluate
	// conditions against their own box.
	ClassQueryContainer
)

var classNames = []string{"unclassified", "normal", "query-container"}

func (c Class) String() string {
	if c < ClassUnclassified || c > ClassQueryContainer {
		return fmt.Sprintf("Class(%d)", int(c))
	}
	return classNames[c]
}

// CondState is one element's result for one descriptor.
type CondState struct {
	// Condition is the raw evaluation outcome; Unknown values have already
	// been replaced by the inherited parent result.
	Condition query.Tristate
	// Container reports whether the condition holds together with the whole
	// lexical parent-descriptor chain.
	Container bool
}

// State is one element's snapshot after a recomputation. Snapshots are
// exclusively owned and never mutated once stored.
type State struct {
	Class    Class
	Disabled bool
	Axis     common.WritingAxis
	FontSize float64
	Type     common.ContainerType
	Names    []string

	// Content-box dimensions in px; NaN when unknown this pass.
	Width, Height float64

	// Conditions holds one entry per live descriptor, keyed by UID.
	Conditions map[string]CondState
}

func (s *State) equal(o *State) bool {
	if s == o {
		return true
	}
	if s == nil || o == nil {
		return false
	}
	return s.Class == o.Class && s.Disabled == o.Disabled &&
		s.Axis == o.Axis && s.Type == o.Type &&
		floatEqual(s.FontSize, o.FontSize) &&
		floatEqual(s.Width, o.Width) && floatEqual(s.Height, o.Height) &&
		slices.Equal(s.Names, o.Names) &&
		maps.Equal(s.Conditions, o.Conditions)
}

// floatEqual treats NaN as equal to itself so "still unknown" does not read
// as a change.
func floatEqual(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

// displayEligible reports whether a display value permits size containment.
func displayEligible(display string) bool {
	d := strings.ToLower(strings.TrimSpace(display))
	if d == "none" || d == "contents" || d == "inline" {
		return false
	}
	if strings.Contains(d, "table") || strings.Contains(d, "ruby") {
		return false
	}
	return true
}

// containerTypeOf interprets the internal container-type custom property.
// Anything unrecognized reads as normal.
func containerTypeOf(v string) common.ContainerType {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, "initial") {
		return common.ContainerTypeNormal
	}
	t, err := common.ParseContainerType(v)
	if err != nil {
		return common.ContainerTypeNormal
	}
	return t
}

// containerNamesOf interprets the internal container-name custom property
// as a whitespace-separated ident list.
func containerNamesOf(v string) []string {
	var names []string
	for _, f := range strings.Fields(v) {
		if strings.EqualFold(f, "none") || strings.EqualFold(f, "initial") {
			continue
		}
		if name, err := common.NormalizeContainerName(f); err == nil && name != "" {
			names = append(names, name)
		}
	}
	return names
}

// namesMatch reports whether a container carrying have satisfies a
// descriptor requiring want. A descriptor without names matches any
// container.
func namesMatch(have, want []string) bool {
	for _, w := range want {
		if !slices.Contains(have, w) {
			return false
		}
	}
	return true
}

// pxValue parses a computed length. Pixel dimensions and bare numbers
// resolve; anything else is NaN, which downstream treats as absent rather
// than erroring.
func pxValue(s string) float64 {
	for t := range css.Tokenize(s) {
		switch t.Kind {
		case css.KindWhitespace:
			continue
		case css.KindDimension:
			if strings.EqualFold(t.Unit, "px") {
				return t.Value
			}
			return math.NaN()
		case css.KindNumber:
			return t.Value
		}
		return math.NaN()
	}
	return math.NaN()
}

func pxOrZero(s string) float64 {
	if v := pxValue(s); !math.IsNaN(v) {
		return v
	}
	return 0
}
