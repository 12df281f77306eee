package diagnostics

import "packls/internal/checker"

// Mode selects which violation buckets of a check result become
// diagnostics.
type Mode int

const (
	// ModeNew keeps only newly reported violations.
	ModeNew Mode = iota
	// ModeAll merges new, stale (already-acknowledged) and strict-mode
	// buckets ("highlight everything").
	ModeAll
)

// Flatten merges a result's violation buckets according to mode.
// Pure function; the merge policy is testable independently of process
// execution.
func Flatten(result *checker.CheckResult, mode Mode) []checker.Violation {
	if result == nil {
		return nil
	}

	violations := append([]checker.Violation{}, result.Violations...)
	if mode == ModeAll {
		violations = append(violations, result.StaleViolations...)
		violations = append(violations, result.StrictModeViolations...)
	}
	return violations
}

// Build converts violations into per-file diagnostic lists.
//
// Violations without a resolvable line/column are silently excluded: the
// tool reports some violations file-wide with no precise location, and
// those cannot be rendered as positioned markers.
//
// The range spans from the reported column to column plus the length of
// the reported constant name. This is a textual-match heuristic, not a
// semantic span: if the constant recurs earlier on the line the highlight
// can land on the wrong occurrence.
func Build(violations []checker.Violation) map[string][]Diagnostic {
	byFile := make(map[string][]Diagnostic)

	for i := range violations {
		v := violations[i]
		if !v.HasPosition() {
			continue
		}

		severity := SeverityWarning
		if v.Strict {
			severity = SeverityError
		}

		startCol := *v.Column
		byFile[v.File] = append(byFile[v.File], Diagnostic{
			File: v.File,
			Range: Range{
				Start: Position{Line: *v.Line - 1, Character: startCol},
				End:   Position{Line: *v.Line - 1, Character: startCol + len(v.ConstantName)},
			},
			Severity:  severity,
			Source:    SourceCheck,
			Code:      v.Type,
			Message:   v.Message,
			Violation: &v,
		})
	}

	return byFile
}

// Reconcile flattens and builds in one step.
func Reconcile(result *checker.CheckResult, mode Mode) map[string][]Diagnostic {
	return Build(Flatten(result, mode))
}

// BuildValidation converts validate findings into diagnostics anchored at
// the top of each cycle-participating file. Findings without file edges
// are skipped; they have nowhere to render.
func BuildValidation(result *checker.ValidateResult) map[string][]Diagnostic {
	if result == nil {
		return nil
	}

	byFile := make(map[string][]Diagnostic)
	for _, verr := range result.ValidationErrors {
		for _, edge := range verr.CycleEdges {
			if edge.File == "" {
				continue
			}
			byFile[edge.File] = append(byFile[edge.File], Diagnostic{
				File:     edge.File,
				Range:    Range{Start: Position{}, End: Position{}},
				Severity: SeverityError,
				Source:   SourceValidate,
				Code:     verr.ErrorType,
				Message:  verr.Message,
			})
		}
	}
	return byFile
}
