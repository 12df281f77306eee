package lsp

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
)

func TestMessageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte(`{"jsonrpc":"2.0","method":"initialized","params":{}}`)

	if err := writeMessage(&buf, payload); err != nil {
		t.Fatalf("writeMessage: %v", err)
	}
	got, err := readMessage(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("readMessage: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload = %q, want %q", got, payload)
	}
}

func TestReadMessageExtraHeaders(t *testing.T) {
	raw := "Content-Type: application/vscode-jsonrpc\r\nContent-Length: 2\r\n\r\n{}"
	got, err := readMessage(bufio.NewReader(strings.NewReader(raw)))
	if err != nil {
		t.Fatalf("readMessage: %v", err)
	}
	if string(got) != "{}" {
		t.Errorf("payload = %q", got)
	}
}

func TestReadMessageMissingContentLength(t *testing.T) {
	raw := "Content-Type: application/vscode-jsonrpc\r\n\r\n{}"
	if _, err := readMessage(bufio.NewReader(strings.NewReader(raw))); err == nil {
		t.Error("missing Content-Length must be an error")
	}
}

func TestReadMessageInvalidContentLength(t *testing.T) {
	raw := "Content-Length: banana\r\n\r\n{}"
	if _, err := readMessage(bufio.NewReader(strings.NewReader(raw))); err == nil {
		t.Error("non-numeric Content-Length must be an error")
	}
}
