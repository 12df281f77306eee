package lsp

import (
	"encoding/json"
	"fmt"

	"packls/internal/checker"
	"packls/internal/commands"
	"packls/internal/diagnostics"
)

// handleCodeAction offers quick fixes for the diagnostics overlapping the
// requested range. Actions are resolved from the violation metadata the
// server itself attached; diagnostics from other sources get nothing.
func (s *Server) handleCodeAction(msg *rpcMessage) error {
	var params codeActionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, -32602, "invalid params")
	}

	rel, ok := s.relPath(params.TextDocument.URI)
	if !ok {
		return s.sendResponse(msg.ID, []codeAction{})
	}

	actions := []codeAction{}
	for _, d := range s.collection.Get(rel) {
		if d.Violation == nil || !overlaps(d.Range, params.Range) {
			continue
		}
		actions = append(actions, actionsForViolation(d)...)
	}
	return s.sendResponse(msg.ID, actions)
}

func actionsForViolation(d diagnostics.Diagnostic) []codeAction {
	v := d.Violation
	ld := toLSPDiagnostic(d)
	var actions []codeAction

	switch v.Type {
	case checker.ViolationDependency:
		if v.ReferencingPack != "" && v.DefiningPack != "" {
			title := fmt.Sprintf("Add %s as a dependency of %s", v.DefiningPack, v.ReferencingPack)
			actions = append(actions, codeAction{
				Title:       title,
				Kind:        "quickfix",
				Diagnostics: []lspDiagnostic{ld},
				Command: &commandRef{
					Title:     title,
					Command:   commands.CmdAddDependency,
					Arguments: []any{v.ReferencingPack, v.DefiningPack},
				},
			})
		}
	case checker.ViolationPrivacy:
		if v.ConstantName != "" {
			title := fmt.Sprintf("Make %s public", v.ConstantName)
			actions = append(actions, codeAction{
				Title:       title,
				Kind:        "quickfix",
				Diagnostics: []lspDiagnostic{ld},
				Command: &commandRef{
					Title:     title,
					Command:   commands.CmdMakePublic,
					Arguments: []any{v.ConstantName},
				},
			})
		}
	}

	// Recording in the todo file is offered for every violation type.
	if v.File != "" {
		title := fmt.Sprintf("Record %s violation in the todo file", v.Type)
		actions = append(actions, codeAction{
			Title:       title,
			Kind:        "quickfix",
			Diagnostics: []lspDiagnostic{ld},
			Command: &commandRef{
				Title:     title,
				Command:   commands.CmdUpdateTodo,
				Arguments: []any{v.File},
			},
		})
	}
	return actions
}

// overlaps reports whether a diagnostic's range intersects the requested
// one. Touching ranges count; the editor sends a zero-width range for a
// bare cursor.
func overlaps(d diagnostics.Range, r lspRange) bool {
	if d.End.Line < r.Start.Line ||
		(d.End.Line == r.Start.Line && d.End.Character < r.Start.Character) {
		return false
	}
	if r.End.Line < d.Start.Line ||
		(r.End.Line == d.Start.Line && r.End.Character < d.Start.Character) {
		return false
	}
	return true
}
