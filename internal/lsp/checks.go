package lsp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"packls/internal/checker"
	"packls/internal/config"
	"packls/internal/diagnostics"
	"packls/internal/events"
	"packls/internal/queue"
)

// pumpEvents forwards bus traffic to the client: diagnostic changes become
// publishDiagnostics pushes, pack layout changes re-prime the definitions
// cache and re-check the workspace.
func (s *Server) pumpEvents(ctx context.Context) {
	diagCh := s.bus.Subscribe(events.TopicDiagnostics, 0)
	packCh := s.bus.Subscribe(events.TopicPacks, 0)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-diagCh:
			if !ok {
				return
			}
			if upd, ok := ev.Payload.(events.DiagnosticsUpdated); ok {
				s.publishFiles(upd.Files)
			}
		case ev, ok := <-packCh:
			if !ok {
				return
			}
			if _, ok := ev.Payload.(events.PacksChanged); ok {
				go func() {
					if err := s.refresher.Refresh(ctx); err != nil {
						s.logger.Warn("definitions refresh failed", "error", err)
					}
				}()
				s.runValidate()
				s.scheduleCheck(queue.WorkspaceIdentity, checker.CheckOptions{}, true)
			}
		}
	}
}

// publishFiles pushes the collection's current entries for each file.
// Files cleared by a replace are pushed with empty lists, which is how the
// protocol retracts markers.
func (s *Server) publishFiles(files []string) {
	for _, file := range files {
		diags := s.collection.Get(file)
		s.mu.Lock()
		diags = append(diags, s.validation[file]...)
		s.mu.Unlock()

		out := make([]lspDiagnostic, 0, len(diags))
		for _, d := range diags {
			out = append(out, toLSPDiagnostic(d))
		}
		params := publishDiagnosticsParams{
			URI:         pathToURI(s.absPath(file)),
			Diagnostics: out,
		}
		if err := s.sendNotification("textDocument/publishDiagnostics", params); err != nil {
			s.logger.Warn("failed to publish diagnostics", "file", file, "error", err)
		}
	}
}

// diagnosticData is the metadata attached to each published diagnostic.
// Code actions resolve their commands from it instead of re-parsing
// messages.
type diagnosticData struct {
	ViolationType   string `json:"violationType"`
	ConstantName    string `json:"constantName"`
	ReferencingPack string `json:"referencingPackName"`
	DefiningPack    string `json:"definingPackName"`
	File            string `json:"file"`
}

func toLSPDiagnostic(d diagnostics.Diagnostic) lspDiagnostic {
	out := lspDiagnostic{
		Range: lspRange{
			Start: position{Line: d.Range.Start.Line, Character: d.Range.Start.Character},
			End:   position{Line: d.Range.End.Line, Character: d.Range.End.Character},
		},
		Severity: int(d.Severity),
		Code:     d.Code,
		Source:   d.Source,
		Message:  d.Message,
	}
	if v := d.Violation; v != nil {
		data, err := json.Marshal(diagnosticData{
			ViolationType:   v.Type,
			ConstantName:    v.ConstantName,
			ReferencingPack: v.ReferencingPack,
			DefiningPack:    v.DefiningPack,
			File:            v.File,
		})
		if err == nil {
			out.Data = data
		}
	}
	return out
}

// runValidate refreshes configuration-level diagnostics (dependency
// cycles, malformed manifests) from the checker's validate command. Its
// findings live next to the check collection and are merged at publish
// time; a check run replacing the collection never erases them.
func (s *Server) runValidate() {
	go func() {
		result, err := s.checker.Validate(s.baseCtx)
		if err != nil {
			s.logger.Warn("validate failed", "error", err)
			return
		}
		byFile := diagnostics.BuildValidation(result)

		s.mu.Lock()
		changed := make([]string, 0, len(s.validation)+len(byFile))
		for file := range s.validation {
			if _, ok := byFile[file]; !ok {
				changed = append(changed, file)
			}
		}
		for file := range byFile {
			changed = append(changed, file)
		}
		s.validation = byFile
		s.mu.Unlock()

		s.publishFiles(changed)
	}()
}

// TriggerWorkspaceCheck enqueues a whole-workspace check immediately,
// bypassing debounce and the automatic-trigger breaker. Used for explicit
// user commands and post-mutation rechecks.
func (s *Server) TriggerWorkspaceCheck() {
	s.enqueueCheck(queue.WorkspaceIdentity, checker.CheckOptions{}, false)
}

// scheduleCheck debounces automatic checks per identity so keystroke and
// save storms collapse into one run. Explicit triggers skip the delay.
func (s *Server) scheduleCheck(identity queue.Identity, opts checker.CheckOptions, auto bool) {
	s.mu.Lock()
	delay := time.Duration(s.effectiveConfigLocked().DebounceMS) * time.Millisecond
	if !auto {
		delay = 0
	}
	if t, ok := s.timers[identity]; ok {
		t.Stop()
		delete(s.timers, identity)
	}
	if delay <= 0 {
		s.mu.Unlock()
		s.enqueueCheck(identity, opts, auto)
		return
	}
	s.timers[identity] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, identity)
		s.mu.Unlock()
		s.enqueueCheck(identity, opts, auto)
	})
	s.mu.Unlock()
}

func (s *Server) enqueueCheck(identity queue.Identity, opts checker.CheckOptions, auto bool) {
	var report func(bool)
	if auto {
		done, err := s.breaker.Allow()
		if err != nil {
			s.logger.Warn("skipping automatic check, checker is failing repeatedly",
				"identity", identity)
			return
		}
		report = done
	}

	cfg := s.CurrentConfig()
	if cfg.ShowAll {
		opts.IgnoreRecorded = true
	}

	task := queue.NewTask(identity, s.checkBody(identity, opts, cfg, report))
	if err := s.queue.Enqueue(task); err != nil {
		s.logger.Warn("enqueue failed", "identity", identity, "error", err)
		if report != nil {
			report(true)
		}
	}
}

// checkBody builds the queue task body for one check run. The body starts
// the process and hands its Kill back as the cancel hook; a completion
// goroutine waits, then applies the output unless the task was canceled in
// the meantime.
func (s *Server) checkBody(identity queue.Identity, opts checker.CheckOptions, cfg *config.Config, report func(bool)) queue.Body {
	return func(tok *queue.Token) queue.CancelFunc {
		proc, err := s.checker.StartCheck(s.baseCtx, opts)
		if err != nil {
			go func() {
				defer tok.Finish()
				s.reportStartFailure(err, report)
			}()
			return nil
		}

		go func() {
			defer tok.Finish()
			out, runErr := proc.Wait()
			if tok.Canceled() {
				return
			}
			s.applyCheckOutput(identity, opts, cfg, out, runErr, report)
		}()

		return proc.Kill
	}
}

func (s *Server) reportStartFailure(err error, report func(bool)) {
	var notFound *checker.NotFoundError
	if errors.As(err, &notFound) {
		s.showMessage(messageWarning, notFound.Error()+"; set the executable in your settings")
	} else {
		s.logger.Error("failed to start check", "error", err)
	}
	if report != nil {
		report(false)
	}
}

// applyCheckOutput turns one finished run into collection state. The error
// taxonomy decides what the user sees: killed runs vanish silently, crashes
// surface the tool's own stderr, garbage output surfaces a sample, empty
// output is only logged.
func (s *Server) applyCheckOutput(identity queue.Identity, opts checker.CheckOptions, cfg *config.Config, out checker.Output, runErr error, report func(bool)) {
	if errors.Is(runErr, checker.ErrKilled) {
		// Superseded by a newer run; the kill was ours, not a failure.
		if report != nil {
			report(true)
		}
		return
	}

	var exitErr *checker.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) {
		s.logger.Error("check run failed", "identity", identity, "error", runErr)
		if report != nil {
			report(false)
		}
		return
	}

	// A non-zero exit with a JSON report is the normal "violations found"
	// outcome, so parse stdout before judging the exit code.
	result, parseErr := checker.ParseCheckOutput(out.Stdout)
	if parseErr != nil {
		ok := s.reportParseFailure(identity, parseErr, exitErr)
		if report != nil {
			report(ok)
		}
		return
	}

	mode := diagnostics.ModeNew
	if cfg.ShowAll {
		mode = diagnostics.ModeAll
	}
	byFile := diagnostics.Reconcile(result, mode)

	if identity == queue.WorkspaceIdentity {
		s.collection.ReplaceAll(byFile)
	} else {
		s.collection.ReplaceFile(opts.File, byFile[opts.File])
	}

	s.logger.Debug("check applied",
		"identity", identity,
		"files", len(byFile),
		"total", s.collection.Count())
	if report != nil {
		report(true)
	}
}

func (s *Server) reportParseFailure(identity queue.Identity, parseErr error, exitErr *checker.ExitError) bool {
	if errors.Is(parseErr, checker.ErrNoOutput) {
		if exitErr != nil && len(exitErr.Stderr) > 0 {
			// The tool crashed before producing a report; relay its own
			// message verbatim.
			s.showMessage(messageWarning, string(bytes.TrimSpace(exitErr.Stderr)))
			return false
		}
		s.logger.Info("checker produced no output", "identity", identity)
		return true
	}

	var malformed *checker.MalformedOutputError
	if errors.As(parseErr, &malformed) {
		s.showMessage(messageWarning, malformed.Error())
	} else {
		s.logger.Error("unexpected parse failure", "identity", identity, "error", parseErr)
	}
	return false
}
