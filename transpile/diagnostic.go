package transpile

import "fmt"

// Severity grades a diagnostic.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

var severityNames = []string{"info", "warning", "error"}

func (s Severity) String() string {
	if s < SeverityInfo || s > SeverityError {
		return fmt.Sprintf("Severity(%d)", int(s))
	}
	return severityNames[s]
}

// Diagnostic reports a construct the transpiler could not rewrite. The
// affected rule passes through verbatim; diagnostics never abort a sheet.
type Diagnostic struct {
	Severity Severity
	Message  string
	Where    string // prelude or selector text the diagnostic refers to
}

func (d Diagnostic) String() string {
	if d.Where == "" {
		return d.Severity.String() + ": " + d.Message
	}
	return d.Severity.String() + ": " + d.Message + ": " + d.Where
}
