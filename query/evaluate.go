package query

import "github.com/devknoll/container-query-polyfill/common"

// Tristate is a Kleene truth value. A condition is definitely true,
// definitely false, or unknown when a feature it needs is absent this pass.
type Tristate int

const (
	False Tristate = iota
	True
	Unknown
)

var tristateNames = []string{"false", "true", "unknown"}

func (t Tristate) String() string {
	if t < False || t > Unknown {
		return "unknown"
	}
	return tristateNames[t]
}

// Bool collapses Unknown to false.
func (t Tristate) Bool() bool {
	return t == True
}

func (t Tristate) Not() Tristate {
	switch t {
	case True:
		return False
	case False:
		return True
	}
	return Unknown
}

func (t Tristate) And(o Tristate) Tristate {
	if t == False || o == False {
		return False
	}
	if t == Unknown || o == Unknown {
		return Unknown
	}
	return True
}

func (t Tristate) Or(o Tristate) Tristate {
	if t == True || o == True {
		return True
	}
	if t == Unknown || o == Unknown {
		return Unknown
	}
	return False
}

// Context carries the concrete inputs one evaluation runs against. It is
// built fresh per evaluation and never mutated. Features holds the physical
// dimensions the container exposes, in px; logical features resolve through
// WritingAxis, and only the axes implied by the container type are present.
type Context struct {
	FontSize     float64
	RootFontSize float64
	WritingAxis  common.WritingAxis
	Features     map[Feature]float64
}

// Evaluate resolves the condition against ctx. A comparison over an absent
// feature or an unknown value yields Unknown, which never satisfies the
// query; the caller decides whether Unknown inherits or collapses to false.
func (n *Node) Evaluate(ctx *Context) Tristate {
	switch {
	case n == nil:
		return Unknown
	case n.Not != nil:
		return n.Not.Evaluate(ctx).Not()
	case n.All != nil:
		out := True
		for _, p := range n.All {
			if out = out.And(p.Evaluate(ctx)); out == False {
				break
			}
		}
		return out
	case n.Any != nil:
		out := False
		for _, p := range n.Any {
			if out = out.Or(p.Evaluate(ctx)); out == True {
				break
			}
		}
		return out
	case n.Compare != nil:
		return n.Compare.evaluate(ctx)
	}
	return Unknown
}

type resolvedKind int

const (
	rUnknown resolvedKind = iota
	rNumber
	rLength
	rOrientation
)

// resolved is a comparison operand reduced to a comparable form: a plain
// number (ratios included), a length in px, or an orientation.
type resolved struct {
	kind   resolvedKind
	num    float64
	orient common.Orientation
}

func (c *Comparison) evaluate(ctx *Context) Tristate {
	l := c.Left.resolve(ctx)
	r := c.Right.resolve(ctx)

	// unitless zero is a valid length
	if l.kind == rLength && r.kind == rNumber && r.num == 0 {
		r.kind = rLength
	}
	if r.kind == rLength && l.kind == rNumber && l.num == 0 {
		l.kind = rLength
	}

	switch {
	case l.kind == rUnknown || r.kind == rUnknown:
		return Unknown
	case l.kind == rOrientation && r.kind == rOrientation:
		if c.Op != OpEq {
			return Unknown
		}
		if l.orient == r.orient {
			return True
		}
		return False
	case l.kind != r.kind || l.kind == rOrientation:
		return Unknown
	}
	return compareNumeric(c.Op, l.num, r.num)
}

func compareNumeric(op Op, a, b float64) Tristate {
	ok := false
	switch op {
	case OpEq:
		ok = a == b
	case OpLt:
		ok = a < b
	case OpLe:
		ok = a <= b
	case OpGt:
		ok = a > b
	case OpGe:
		ok = a >= b
	}
	if ok {
		return True
	}
	return False
}

func (o Operand) resolve(ctx *Context) resolved {
	if o.Feature != FeatureNone {
		return ctx.resolveFeature(o.Feature)
	}
	return o.Value.resolve(ctx)
}

func (v Value) resolve(ctx *Context) resolved {
	switch v.Kind {
	case ValueNumber:
		return resolved{kind: rNumber, num: v.Number}
	case ValueDimension:
		switch v.Unit {
		case "px":
			return resolved{kind: rLength, num: v.Number}
		case "em":
			return resolved{kind: rLength, num: v.Number * ctx.FontSize}
		case "rem":
			return resolved{kind: rLength, num: v.Number * ctx.RootFontSize}
		}
		return resolved{}
	case ValueRatio:
		if v.Den <= 0 {
			return resolved{}
		}
		return resolved{kind: rNumber, num: v.Num / v.Den}
	case ValueOrientation:
		return resolved{kind: rOrientation, orient: v.Orientation}
	}
	return resolved{}
}

func (ctx *Context) resolveFeature(f Feature) resolved {
	switch f {
	case FeatureInlineSize:
		f = FeatureWidth
		if ctx.WritingAxis == common.WritingAxisVertical {
			f = FeatureHeight
		}
	case FeatureBlockSize:
		f = FeatureHeight
		if ctx.WritingAxis == common.WritingAxisVertical {
			f = FeatureWidth
		}
	case FeatureAspectRatio:
		w, okw := ctx.Features[FeatureWidth]
		h, okh := ctx.Features[FeatureHeight]
		if !okw || !okh || h <= 0 {
			return resolved{}
		}
		return resolved{kind: rNumber, num: w / h}
	case FeatureOrientation:
		w, okw := ctx.Features[FeatureWidth]
		h, okh := ctx.Features[FeatureHeight]
		if !okw || !okh {
			return resolved{}
		}
		return resolved{kind: rOrientation, orient: common.OrientationOf(w, h)}
	}
	if v, ok := ctx.Features[f]; ok {
		return resolved{kind: rLength, num: v}
	}
	return resolved{}
}
