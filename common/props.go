package common

// DataAttr is the attribute the engine publishes matched descriptor UIDs
// through and the rewritten stylesheet keys on.
const DataAttr = "data-cq"

// Internal custom properties the transpiler rewrites the container
// declarations into. Custom properties inherit, which is why transformed
// blocks start with a reset rule for them.
const (
	PropContainerType = "--cq-container-type"
	PropContainerName = "--cq-container-name"
)

// ContainerUnits lists the container-relative length units in the order the
// engine publishes them.
var ContainerUnits = []string{"cqw", "cqh", "cqi", "cqb", "cqmin", "cqmax"}

var containerUnitFallbacks = map[string]string{
	"cqw":   "vw",
	"cqh":   "vh",
	"cqi":   "vi",
	"cqb":   "vb",
	"cqmin": "vmin",
	"cqmax": "vmax",
}

// ContainerUnitFallback returns the viewport unit substituted for a
// container-relative unit while no container is resolved, and whether the
// unit is container-relative at all.
func ContainerUnitFallback(unit string) (string, bool) {
	fb, ok := containerUnitFallbacks[unit]
	return fb, ok
}

// UnitVar is the custom property carrying one published container unit,
// expressed in px per unit step.
func UnitVar(unit string) string {
	return "--cq-" + unit
}
