package lsp

import (
	"encoding/json"

	"packls/internal/checker"
	"packls/internal/config"
	"packls/internal/events"
	"packls/internal/queue"
)

func (s *Server) handleDidChangeConfiguration(msg *rpcMessage) error {
	var params didChangeConfigurationParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	if len(params.Settings) == 0 {
		return nil
	}
	s.applySettings(params.Settings)

	// Changed settings can change what counts as a violation; refresh the
	// whole picture.
	s.scheduleCheck(queue.WorkspaceIdentity, checker.CheckOptions{}, true)
	return nil
}

// applySettings merges client-supplied overrides into the overlay. Fields
// the client leaves unset keep their previous value; the file-loaded
// configuration underneath is never mutated.
func (s *Server) applySettings(raw json.RawMessage) {
	var wrapped lspSettings
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		s.logger.Warn("ignoring unparsable settings payload", "error", err)
		return
	}
	incoming := wrapped.Packls
	if incoming == (packlsSettings{}) {
		// Some clients send the section contents directly.
		var direct packlsSettings
		if err := json.Unmarshal(raw, &direct); err == nil {
			incoming = direct
		}
	}

	s.mu.Lock()
	if incoming.Executable != nil {
		s.overlay.Executable = incoming.Executable
	}
	if incoming.CheckOnSave != nil {
		s.overlay.CheckOnSave = incoming.CheckOnSave
	}
	if incoming.ShowAll != nil {
		s.overlay.ShowAll = incoming.ShowAll
	}
	if incoming.Trace != nil {
		s.overlay.Trace = incoming.Trace
		s.trace = *incoming.Trace
	}
	eff := s.effectiveConfigLocked()
	s.mu.Unlock()

	s.logger.Info("settings applied",
		"executable", eff.Executable,
		"checkOnSave", eff.CheckOnSave,
		"showAll", eff.ShowAll)

	s.bus.Publish(events.TopicConfig, events.ConfigChanged{})
}

// CurrentConfig returns the effective configuration: the loaded file
// configuration with client overrides applied. Wired in as the checker's
// ConfigFunc so every invocation sees the latest settings.
func (s *Server) CurrentConfig() *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.effectiveConfigLocked()
}

// effectiveConfigLocked computes the effective configuration. Caller holds
// s.mu.
func (s *Server) effectiveConfigLocked() *config.Config {
	eff := *s.cfg
	if s.overlay.Executable != nil {
		eff.Executable = *s.overlay.Executable
	}
	if s.overlay.CheckOnSave != nil {
		eff.CheckOnSave = *s.overlay.CheckOnSave
	}
	if s.overlay.ShowAll != nil {
		eff.ShowAll = *s.overlay.ShowAll
	}
	return &eff
}
