// Package lsp serves the editor protocol over stdio: document sync,
// published diagnostics, quick-fix code actions, command execution and
// cross-file navigation for pack configuration files.
package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"packls/internal/checker"
	"packls/internal/commands"
	"packls/internal/config"
	"packls/internal/diagnostics"
	"packls/internal/events"
	"packls/internal/pack"
	"packls/internal/queue"
	"packls/internal/store"
)

var (
	// ErrExit signals a graceful shutdown after receiving "exit".
	ErrExit = errors.New("lsp exit")
	// ErrExitWithoutShutdown signals an "exit" without a preceding "shutdown".
	ErrExitWithoutShutdown = errors.New("lsp exit without shutdown")
)

// ServerOptions wires the server's collaborators. All state containers are
// injected so tests can substitute fakes and assert replace semantics.
type ServerOptions struct {
	WorkspaceRoot string
	Config        *config.Config
	Logger        *slog.Logger

	Queue       *queue.Queue
	Checker     *checker.Checker
	Collection  *diagnostics.Collection
	Bus         *events.Bus
	Graph       *pack.Graph
	Definitions store.Store
	Refresher   *store.Refresher
}

// Server handles stdio JSON-RPC for packls.
type Server struct {
	in     *bufio.Reader
	out    *bufio.Writer
	sendMu sync.Mutex

	logger *slog.Logger

	queue       *queue.Queue
	checker     *checker.Checker
	collection  *diagnostics.Collection
	bus         *events.Bus
	graph       *pack.Graph
	definitions store.Store
	refresher   *store.Refresher
	dispatcher  *commands.Dispatcher

	// breaker guards automatic check triggers (save, watcher events)
	// against a crash-looping checker. Explicit user commands bypass it.
	breaker *gobreaker.TwoStepCircuitBreaker

	mu                sync.Mutex
	workspaceRoot     string
	cfg               *config.Config
	overlay           packlsSettings
	trace             bool
	openDocs          map[string]string
	versions          map[string]int
	shutdownRequested bool
	timers            map[queue.Identity]*time.Timer

	// validation holds configuration-level findings from the checker's
	// validate command, merged into published diagnostics alongside the
	// check collection.
	validation map[string][]diagnostics.Diagnostic

	baseCtx context.Context
}

// NewServer constructs a server reading from in and writing to out.
func NewServer(in io.Reader, out io.Writer, opts ServerOptions) *Server {
	s := &Server{
		in:            bufio.NewReader(in),
		out:           bufio.NewWriter(out),
		logger:        opts.Logger,
		queue:         opts.Queue,
		checker:       opts.Checker,
		collection:    opts.Collection,
		bus:           opts.Bus,
		graph:         opts.Graph,
		definitions:   opts.Definitions,
		refresher:     opts.Refresher,
		workspaceRoot: opts.WorkspaceRoot,
		cfg:           opts.Config,
		openDocs:      make(map[string]string),
		versions:      make(map[string]int),
		timers:        make(map[queue.Identity]*time.Timer),
		validation:    make(map[string][]diagnostics.Diagnostic),
	}

	s.breaker = gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:        "checker",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			opts.Logger.Warn("checker circuit breaker state change",
				"from", from.String(), "to", to.String())
		},
	})

	return s
}

// SetDispatcher injects the command dispatcher. Done after construction
// because the dispatcher's recheck hook points back at this server.
func (s *Server) SetDispatcher(d *commands.Dispatcher) {
	s.dispatcher = d
}

// Run serves LSP requests until shutdown or EOF.
func (s *Server) Run(ctx context.Context) error {
	s.baseCtx = ctx
	go s.pumpEvents(ctx)

	for {
		payload, err := readMessage(s.in)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var msg rpcMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.logger.Warn("failed to parse message", "error", err)
			continue
		}
		if msg.Method == "" {
			continue
		}
		s.mu.Lock()
		trace := s.trace
		s.mu.Unlock()
		if trace {
			s.logger.Debug("lsp: received", "method", msg.Method)
		}
		if err := s.handleMessage(&msg); err != nil {
			return err
		}
	}
}

func (s *Server) handleMessage(msg *rpcMessage) error {
	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		return s.handleInitialized()
	case "shutdown":
		return s.handleShutdown(msg)
	case "exit":
		if s.isShutdownRequested() {
			return ErrExit
		}
		return ErrExitWithoutShutdown
	case "workspace/didChangeConfiguration":
		return s.handleDidChangeConfiguration(msg)
	case "workspace/executeCommand":
		return s.handleExecuteCommand(msg)
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didSave":
		return s.handleDidSave(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/codeAction":
		return s.handleCodeAction(msg)
	case "textDocument/definition":
		return s.handleDefinition(msg)
	case "textDocument/documentLink":
		return s.handleDocumentLink(msg)
	default:
		if len(msg.ID) > 0 {
			return s.sendError(msg.ID, -32601, "method not found")
		}
		return nil
	}
}

func (s *Server) handleInitialize(msg *rpcMessage) error {
	var params initializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, -32602, "invalid params")
		}
	}

	root := ""
	if params.RootURI != "" {
		root = uriToPath(params.RootURI)
	}
	if root == "" && params.RootPath != "" {
		root = params.RootPath
	}
	if root == "" && len(params.WorkspaceFolders) > 0 {
		root = uriToPath(params.WorkspaceFolders[0].URI)
	}
	if root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			s.mu.Lock()
			s.workspaceRoot = abs
			s.mu.Unlock()
		}
	}

	if len(params.InitializationOptions) > 0 {
		s.applySettings(params.InitializationOptions)
	}

	result := initializeResult{
		Capabilities: serverCapabilities{
			TextDocumentSync: textDocumentSyncOptions{
				OpenClose: true,
				Change:    1, // full content sync; the checker needs whole buffers anyway
				Save: saveOptions{
					IncludeText: true,
				},
			},
			DefinitionProvider: true,
			CodeActionProvider: &codeActionOptions{
				CodeActionKinds: []string{"quickfix"},
			},
			ExecuteCommandProvider: &executeCommandOptions{
				Commands: []string{
					commands.CmdAddDependency,
					commands.CmdMakePublic,
					commands.CmdUpdateTodo,
					commands.CmdCheckWorkspace,
				},
			},
			DocumentLinkProvider: &documentLinkOptions{},
		},
	}
	return s.sendResponse(msg.ID, result)
}

// handleInitialized starts the background work that needs a live client:
// the initial workspace check and the definitions cache refresh.
func (s *Server) handleInitialized() error {
	s.scheduleCheck(queue.WorkspaceIdentity, checker.CheckOptions{}, false)
	s.runValidate()

	go func() {
		if err := s.refresher.Refresh(s.baseCtx); err != nil {
			s.logger.Warn("definitions refresh failed", "error", err)
		}
	}()
	return nil
}

func (s *Server) handleShutdown(msg *rpcMessage) error {
	s.mu.Lock()
	s.shutdownRequested = true
	s.mu.Unlock()
	s.queue.Cancel(queue.WorkspaceIdentity)
	s.collection.Clear()
	return s.sendResponse(msg.ID, nil)
}

func (s *Server) isShutdownRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdownRequested
}

func (s *Server) handleDidOpen(msg *rpcMessage) error {
	var params didOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := params.TextDocument.URI
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	s.openDocs[uri] = params.TextDocument.Text
	s.versions[uri] = params.TextDocument.Version
	s.mu.Unlock()

	if rel, ok := s.relPath(uri); ok && isRubyPath(rel) && s.inPack(rel) {
		s.scheduleCheck(queue.Identity(rel), checker.CheckOptions{
			File:   rel,
			Buffer: []byte(params.TextDocument.Text),
		}, true)
	}
	return nil
}

func (s *Server) handleDidChange(msg *rpcMessage) error {
	var params didChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := params.TextDocument.URI
	if uri == "" || len(params.ContentChanges) == 0 {
		return nil
	}
	// Full sync: the last change carries the whole document.
	text := params.ContentChanges[len(params.ContentChanges)-1].Text
	s.mu.Lock()
	s.openDocs[uri] = text
	s.versions[uri] = params.TextDocument.Version
	s.mu.Unlock()
	return nil
}

func (s *Server) handleDidSave(msg *rpcMessage) error {
	var params didSaveTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := params.TextDocument.URI
	if uri == "" {
		return nil
	}

	var text string
	s.mu.Lock()
	if params.Text != nil {
		s.openDocs[uri] = *params.Text
	}
	text = s.openDocs[uri]
	checkOnSave := s.effectiveConfigLocked().CheckOnSave
	s.mu.Unlock()

	if !checkOnSave {
		return nil
	}
	rel, ok := s.relPath(uri)
	if !ok || !isRubyPath(rel) || !s.inPack(rel) {
		return nil
	}
	s.scheduleCheck(queue.Identity(rel), checker.CheckOptions{
		File:   rel,
		Buffer: []byte(text),
	}, true)
	return nil
}

func (s *Server) handleDidClose(msg *rpcMessage) error {
	var params didCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := params.TextDocument.URI
	s.mu.Lock()
	delete(s.openDocs, uri)
	delete(s.versions, uri)
	s.mu.Unlock()
	return nil
}

// relPath converts a document URI into a workspace-relative slash path.
func (s *Server) relPath(uri string) (string, bool) {
	path := uriToPath(uri)
	if path == "" {
		return "", false
	}
	s.mu.Lock()
	root := s.workspaceRoot
	s.mu.Unlock()

	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || filepath.IsAbs(rel) {
		return "", false
	}
	if len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (s *Server) absPath(rel string) string {
	s.mu.Lock()
	root := s.workspaceRoot
	s.mu.Unlock()
	return filepath.Join(root, filepath.FromSlash(rel))
}

func isRubyPath(rel string) bool {
	return filepath.Ext(rel) == ".rb"
}

// inPack reports whether the file belongs to a scanned pack. Files outside
// every pack cannot have boundary violations, so no check is spawned for
// them. An empty graph (failed or pending scan) gates nothing.
func (s *Server) inPack(rel string) bool {
	if len(s.graph.Packs()) == 0 {
		return true
	}
	_, ok := s.graph.PackFor(rel)
	return ok
}

func (s *Server) sendResponse(id json.RawMessage, result any) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      json.RawMessage(id),
		"result":  result,
	}
	return s.send(msg)
}

func (s *Server) sendError(id json.RawMessage, code int, message string) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      json.RawMessage(id),
		"error": rpcError{
			Code:    code,
			Message: message,
		},
	}
	return s.send(msg)
}

func (s *Server) sendNotification(method string, params any) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
	}
	return s.send(msg)
}

func (s *Server) showMessage(kind int, text string) {
	if err := s.sendNotification("window/showMessage", showMessageParams{
		Type:    kind,
		Message: text,
	}); err != nil {
		s.logger.Warn("failed to send showMessage", "error", err)
	}
}

func (s *Server) send(msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := writeMessage(s.out, payload); err != nil {
		return err
	}
	return s.out.Flush()
}
