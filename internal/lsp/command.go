package lsp

import (
	"encoding/json"
	"fmt"

	"packls/internal/commands"
)

// handleExecuteCommand acknowledges immediately and runs the mutation in
// the background; failures reach the user through window/showMessage
// rather than a request error, because the editor has already moved on.
func (s *Server) handleExecuteCommand(msg *rpcMessage) error {
	var params executeCommandParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, -32602, "invalid params")
	}
	go s.runCommand(params)
	return s.sendResponse(msg.ID, nil)
}

func (s *Server) runCommand(params executeCommandParams) {
	ctx := s.baseCtx
	var err error

	switch params.Command {
	case commands.CmdAddDependency:
		var referencing, defining string
		if err = decodeStringArgs(params.Arguments, &referencing, &defining); err == nil {
			err = s.dispatcher.AddDependency(ctx, referencing, defining)
		}
	case commands.CmdMakePublic:
		var constant string
		if err = decodeStringArgs(params.Arguments, &constant); err == nil {
			err = s.dispatcher.MakePublic(ctx, constant)
		}
	case commands.CmdUpdateTodo:
		var files []string
		for i, raw := range params.Arguments {
			var f string
			if jerr := json.Unmarshal(raw, &f); jerr != nil {
				err = fmt.Errorf("argument %d: %w", i, jerr)
				break
			}
			files = append(files, f)
		}
		if err == nil {
			err = s.dispatcher.UpdateTodo(ctx, files)
		}
	case commands.CmdCheckWorkspace:
		s.TriggerWorkspaceCheck()
	default:
		err = fmt.Errorf("unknown command %q", params.Command)
	}

	if err != nil {
		s.logger.Error("command failed", "command", params.Command, "error", err)
		s.showMessage(messageError, fmt.Sprintf("%s failed: %v", params.Command, err))
	}
}

func decodeStringArgs(raw []json.RawMessage, dests ...*string) error {
	if len(raw) < len(dests) {
		return fmt.Errorf("expected %d arguments, got %d", len(dests), len(raw))
	}
	for i, dest := range dests {
		if err := json.Unmarshal(raw[i], dest); err != nil {
			return fmt.Errorf("argument %d: %w", i, err)
		}
	}
	return nil
}
