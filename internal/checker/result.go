package checker

import "strings"

// Violation types reported by the checker.
const (
	ViolationDependency = "dependency"
	ViolationPrivacy    = "privacy"
)

// Violation is a single reported boundary break between two packs.
// Immutable once parsed.
type Violation struct {
	Message         string `json:"message"`
	File            string `json:"file"`
	Line            *int   `json:"line"`   // 1-based; nil when the tool reports no precise location
	Column          *int   `json:"column"` // 0-based; nil when the tool reports no precise location
	Type            string `json:"violation_type"`
	ConstantName    string `json:"constant_name"`
	ReferencingPack string `json:"referencing_pack_name"`
	DefiningPack    string `json:"defining_pack_name"`
	Strict          bool   `json:"strict"`
}

// HasPosition reports whether the violation carries a resolvable
// line/column. Violations without one cannot be rendered as positioned
// diagnostics and are dropped by the reconciler.
func (v *Violation) HasPosition() bool {
	return v.Line != nil && v.Column != nil && *v.Line >= 1 && *v.Column >= 0
}

// ShortConstantName returns the last segment of the constant path:
// "::Foo::Bar" -> "Bar".
func (v *Violation) ShortConstantName() string {
	name := strings.TrimPrefix(v.ConstantName, "::")
	if idx := strings.LastIndex(name, "::"); idx >= 0 {
		name = name[idx+2:]
	}
	return name
}

// CheckResult is the full decoded shape of one check invocation.
type CheckResult struct {
	Status               string      `json:"status"`
	Violations           []Violation `json:"violations"`
	StaleViolations      []Violation `json:"stale_violations"`
	StrictModeViolations []Violation `json:"strict_mode_violations"`
}

// CycleEdge is one edge of a dependency cycle reported by validate.
type CycleEdge struct {
	FromPack string `json:"from_pack"`
	ToPack   string `json:"to_pack"`
	File     string `json:"file"`
}

// ValidationError is a single validate finding.
type ValidationError struct {
	ErrorType  string      `json:"error_type"`
	Message    string      `json:"message"`
	CycleEdges []CycleEdge `json:"cycle_edges"`
}

// ValidateResult is the decoded shape of one validate invocation.
type ValidateResult struct {
	Status           string            `json:"status"`
	ValidationErrors []ValidationError `json:"validation_errors"`
}

// Definition maps a fully qualified constant to its defining file.
type Definition struct {
	Constant string // e.g. "::Billing::Invoice"
	Path     string // workspace-relative, e.g. "packs/billing/app/models/invoice.rb"
}
