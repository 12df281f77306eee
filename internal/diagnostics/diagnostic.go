// Package diagnostics converts parsed checker output into positioned,
// file-scoped diagnostic records and owns the live diagnostic collection.
package diagnostics

import "packls/internal/checker"

// Source tags distinguish the checker's two diagnostic families.
const (
	SourceCheck    = "packls"
	SourceValidate = "packls-validate"
)

// Severity mirrors the LSP DiagnosticSeverity scale.
type Severity int

const (
	SeverityError Severity = iota + 1
	SeverityWarning
	SeverityInformation
	SeverityHint
)

// Position is a zero-based line/character pair.
type Position struct {
	Line      int
	Character int
}

// Range is a half-open [Start, End) span within one file.
type Range struct {
	Start Position
	End   Position
}

// Diagnostic is one positioned finding in one file.
//
// Violation carries the originating structured metadata (type, constant,
// referencing/defining pack) for later quick-fix construction; code actions
// read it directly instead of re-parsing the message string.
type Diagnostic struct {
	File      string
	Range     Range
	Severity  Severity
	Source    string
	Code      string
	Message   string
	Violation *checker.Violation
}
