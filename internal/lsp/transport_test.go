package lsp

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
)

func TestMessageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	req := Request{JSONRPC: "2.0", ID: 7, Method: "textDocument/references"}
	if err := WriteMessage(&buf, req); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	if !strings.HasPrefix(buf.String(), "Content-Length: ") {
		t.Fatalf("missing framing header: %q", buf.String())
	}

	body, err := ReadMessage(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if !bytes.Contains(body, []byte(`"textDocument/references"`)) {
		t.Errorf("body = %s", body)
	}
}

func TestReadMessageExtraHeaders(t *testing.T) {
	raw := "Content-Type: application/vscode-jsonrpc\r\nContent-Length: 2\r\n\r\n{}"
	body, err := ReadMessage(bufio.NewReader(strings.NewReader(raw)))
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if string(body) != "{}" {
		t.Errorf("body = %q", body)
	}
}

func TestReadMessageMissingLength(t *testing.T) {
	raw := "X-Whatever: 1\r\n\r\n{}"
	if _, err := ReadMessage(bufio.NewReader(strings.NewReader(raw))); err == nil {
		t.Error("expected error for missing Content-Length")
	}
}

func TestURIRoundTrip(t *testing.T) {
	path := "/home/user/project/main.go"
	uri := PathToURI(path)
	if !strings.HasPrefix(uri, "file://") {
		t.Fatalf("uri = %q", uri)
	}
	if got := URIToPath(uri); got != path {
		t.Errorf("URIToPath(%q) = %q, want %q", uri, got, path)
	}
}
