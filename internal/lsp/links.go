package lsp

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"packls/internal/pack"
)

// handleDefinition jumps from a constant reference in Ruby code to its
// defining file, resolved through the definitions cache. Misses return an
// empty result rather than an error; the cache may simply not be primed
// yet.
func (s *Server) handleDefinition(msg *rpcMessage) error {
	var params definitionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, -32602, "invalid params")
	}

	path := uriToPath(params.TextDocument.URI)
	text := s.documentText(params.TextDocument.URI, path)
	lines := strings.Split(text, "\n")
	if params.Position.Line < 0 || params.Position.Line >= len(lines) {
		return s.sendResponse(msg.ID, nil)
	}

	name := constantAt(lines[params.Position.Line], params.Position.Character)
	if name == "" {
		return s.sendResponse(msg.ID, nil)
	}

	rel, ok, err := s.definitions.Lookup(s.baseCtx, name)
	if err != nil {
		s.logger.Warn("definition lookup failed", "constant", name, "error", err)
		return s.sendResponse(msg.ID, nil)
	}
	if !ok {
		return s.sendResponse(msg.ID, nil)
	}

	return s.sendResponse(msg.ID, location{
		URI:   pathToURI(s.absPath(rel)),
		Range: lspRange{},
	})
}

var constantRe = regexp.MustCompile(`(::)?[A-Z][A-Za-z0-9_]*(::[A-Z][A-Za-z0-9_]*)*`)

// constantAt returns the Ruby constant path covering the character index,
// or "" when the cursor is not on one.
func constantAt(line string, char int) string {
	for _, idx := range constantRe.FindAllStringIndex(line, -1) {
		if char >= idx[0] && char <= idx[1] {
			return line[idx[0]:idx[1]]
		}
	}
	return ""
}

// handleDocumentLink turns pack references in package.yml and
// package_todo.yml into clickable links: dependency entries and todo pack
// keys link to the target pack's manifest, todo file entries link to the
// file itself.
func (s *Server) handleDocumentLink(msg *rpcMessage) error {
	var params documentLinkParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, -32602, "invalid params")
	}

	path := uriToPath(params.TextDocument.URI)
	base := filepath.Base(path)
	if base != pack.ManifestFile && base != pack.TodoFile {
		return s.sendResponse(msg.ID, []documentLink{})
	}

	text := s.documentText(params.TextDocument.URI, path)
	links := []documentLink{}
	for i, line := range strings.Split(text, "\n") {
		if link, ok := s.linkForLine(i, line, base); ok {
			links = append(links, link)
		}
	}
	return s.sendResponse(msg.ID, links)
}

func (s *Server) linkForLine(lineIdx int, line, base string) (documentLink, bool) {
	trimmed := strings.TrimSpace(line)

	var entry string
	switch {
	case strings.HasPrefix(trimmed, "- "):
		entry = strings.Trim(strings.TrimPrefix(trimmed, "- "), `"'`)
	case base == pack.TodoFile && strings.HasSuffix(trimmed, ":") && !strings.Contains(trimmed, " "):
		entry = strings.Trim(strings.TrimSuffix(trimmed, ":"), `"'`)
	default:
		return documentLink{}, false
	}
	if entry == "" || strings.HasPrefix(entry, "#") {
		return documentLink{}, false
	}

	var target string
	if p, ok := s.graph.Get(entry); ok {
		target = pathToURI(p.ManifestPath())
	} else if strings.HasSuffix(entry, ".rb") {
		target = pathToURI(s.absPath(entry))
	}
	if target == "" {
		return documentLink{}, false
	}

	start := strings.Index(line, entry)
	if start < 0 {
		return documentLink{}, false
	}
	return documentLink{
		Range: lspRange{
			Start: position{Line: lineIdx, Character: start},
			End:   position{Line: lineIdx, Character: start + len(entry)},
		},
		Target: target,
	}, true
}

// documentText prefers the open-document overlay so links and definitions
// track unsaved edits, falling back to disk.
func (s *Server) documentText(uri, path string) string {
	s.mu.Lock()
	text, ok := s.openDocs[uri]
	s.mu.Unlock()
	if ok {
		return text
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}
