// Package common keeps enums shared between configuration and the engine
// packages. Config needs them for validation and the engine for classification,
// and I do not want those packages to import each other.
package common

import (
	"fmt"
	"strings"
)

// Specification of the container-type property value.
type ContainerType int

const (
	ContainerTypeNormal ContainerType = iota
	ContainerTypeSize
	ContainerTypeInlineSize
)

var containerTypeNames = []string{"normal", "size", "inline-size"}

func (c ContainerType) String() string {
	if !c.IsValid() {
		return fmt.Sprintf("ContainerType(%d)", int(c))
	}
	return containerTypeNames[c]
}

func (c ContainerType) IsValid() bool {
	return c >= ContainerTypeNormal && c <= ContainerTypeInlineSize
}

// IsContainer returns true when the type establishes a size query container.
func (c ContainerType) IsContainer() bool {
	return c == ContainerTypeSize || c == ContainerTypeInlineSize
}

func ContainerTypeNames() []string {
	return append([]string{}, containerTypeNames...)
}

func ParseContainerType(name string) (ContainerType, error) {
	for i, n := range containerTypeNames {
		if strings.EqualFold(name, n) {
			return ContainerType(i), nil
		}
	}
	return ContainerType(0), fmt.Errorf("%s is not a valid ContainerType, try [%s]", name, strings.Join(containerTypeNames, ", "))
}

func MustParseContainerType(name string) ContainerType {
	c, err := ParseContainerType(name)
	if err != nil {
		panic(err)
	}
	return c
}

func (c ContainerType) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ContainerType) UnmarshalText(text []byte) error {
	v, err := ParseContainerType(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Specification of the writing axis derived from writing-mode.
type WritingAxis int

const (
	WritingAxisHorizontal WritingAxis = iota
	WritingAxisVertical
)

var writingAxisNames = []string{"horizontal", "vertical"}

func (w WritingAxis) String() string {
	if !w.IsValid() {
		return fmt.Sprintf("WritingAxis(%d)", int(w))
	}
	return writingAxisNames[w]
}

func (w WritingAxis) IsValid() bool {
	return w == WritingAxisHorizontal || w == WritingAxisVertical
}

func ParseWritingAxis(name string) (WritingAxis, error) {
	for i, n := range writingAxisNames {
		if strings.EqualFold(name, n) {
			return WritingAxis(i), nil
		}
	}
	return WritingAxis(0), fmt.Errorf("%s is not a valid WritingAxis, try [%s]", name, strings.Join(writingAxisNames, ", "))
}

// AxisFromWritingMode maps a writing-mode property value to the axis text
// flows on. Unrecognized values behave as horizontal-tb.
func AxisFromWritingMode(mode string) WritingAxis {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "vertical-lr", "vertical-rl", "sideways-lr", "sideways-rl", "tb", "tb-lr", "tb-rl":
		return WritingAxisVertical
	default:
		return WritingAxisHorizontal
	}
}

// Specification of the orientation query feature value.
type Orientation int

const (
	OrientationPortrait Orientation = iota
	OrientationLandscape
)

var orientationNames = []string{"portrait", "landscape"}

func (o Orientation) String() string {
	if !o.IsValid() {
		return fmt.Sprintf("Orientation(%d)", int(o))
	}
	return orientationNames[o]
}

func (o Orientation) IsValid() bool {
	return o == OrientationPortrait || o == OrientationLandscape
}

func ParseOrientation(name string) (Orientation, error) {
	for i, n := range orientationNames {
		if strings.EqualFold(name, n) {
			return Orientation(i), nil
		}
	}
	return Orientation(0), fmt.Errorf("%s is not a valid Orientation, try [%s]", name, strings.Join(orientationNames, ", "))
}

// OrientationOf derives orientation from box dimensions. A square box is
// portrait, matching how media queries treat equal dimensions.
func OrientationOf(width, height float64) Orientation {
	if height >= width {
		return OrientationPortrait
	}
	return OrientationLandscape
}
