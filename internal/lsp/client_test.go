package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"
)

// fakeServer answers JSON-RPC requests in-process over pipes.
type fakeServer struct {
	in  *bufio.Reader
	out io.Writer
	// handle returns the result for a request, or nil to stay silent.
	handle func(method string, id int) any
}

func (s *fakeServer) run() {
	for {
		body, err := ReadMessage(s.in)
		if err != nil {
			return
		}
		var req Request
		if err := json.Unmarshal(body, &req); err != nil {
			continue
		}
		if req.ID == 0 {
			continue // notification
		}
		if req.Method == "shutdown" {
			id := req.ID
			_ = WriteMessage(s.out, Response{JSONRPC: "2.0", ID: &id, Result: json.RawMessage("null")})
			continue
		}
		result := s.handle(req.Method, req.ID)
		if result == nil {
			continue
		}
		raw, _ := json.Marshal(result)
		id := req.ID
		_ = WriteMessage(s.out, Response{JSONRPC: "2.0", ID: &id, Result: raw})
	}
}

// startFake wires a client to a fake server over in-memory pipes.
func startFake(t *testing.T, handle func(method string, id int) any) *Client {
	t.Helper()
	clientToServer := newPipe()
	serverToClient := newPipe()

	server := &fakeServer{
		in:     bufio.NewReader(clientToServer.r),
		out:    serverToClient.w,
		handle: handle,
	}
	go server.run()

	c := NewClient(clientToServer.w, serverToClient.r, "/tmp/project")
	t.Cleanup(func() { _ = c.Shutdown(context.Background()) })
	return c
}

type pipe struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func newPipe() pipe {
	r, w := io.Pipe()
	return pipe{r: r, w: w}
}

func TestInitializeHandshake(t *testing.T) {
	var sawInitialize bool
	c := startFake(t, func(method string, id int) any {
		if method == "initialize" {
			sawInitialize = true
			return InitializeResult{}
		}
		return nil
	})

	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !sawInitialize {
		t.Error("server never saw initialize")
	}
}

func TestReferences(t *testing.T) {
	c := startFake(t, func(method string, id int) any {
		switch method {
		case "initialize":
			return InitializeResult{}
		case "textDocument/references":
			return []Location{
				{URI: "file:///tmp/project/other.go", Range: Range{Start: Position{Line: 4, Character: 1}}},
			}
		}
		return nil
	})
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.DidOpen("/tmp/project/main.go", "go", "package main"); err != nil {
		t.Fatal(err)
	}

	locs, err := c.References(context.Background(), "/tmp/project/main.go", Position{Line: 2, Character: 5})
	if err != nil {
		t.Fatalf("References: %v", err)
	}
	if len(locs) != 1 || locs[0].URI != "file:///tmp/project/other.go" {
		t.Errorf("locations = %+v", locs)
	}
	if locs[0].Range.Start.Line != 4 {
		t.Errorf("line = %d", locs[0].Range.Start.Line)
	}
}

func TestRequestTimeout(t *testing.T) {
	c := startFake(t, func(method string, id int) any {
		return nil // never answer
	})
	c.SetTimeout(50 * time.Millisecond)

	err := c.Initialize(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestRequestCancellation(t *testing.T) {
	c := startFake(t, func(method string, id int) any {
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := c.Initialize(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestClosedStream(t *testing.T) {
	clientToServer := newPipe()
	serverToClient := newPipe()
	c := NewClient(clientToServer.w, serverToClient.r, "/tmp/project")

	// Server hangs up immediately.
	_ = serverToClient.w.Close()
	go io.Copy(io.Discard, clientToServer.r)

	time.Sleep(20 * time.Millisecond)
	if !c.Closed() {
		t.Fatal("client should observe the closed stream")
	}
	err := c.Initialize(context.Background())
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}

func TestDidOpenOnce(t *testing.T) {
	c := startFake(t, func(method string, id int) any {
		if method == "initialize" {
			return InitializeResult{}
		}
		return nil
	})
	if err := c.DidOpen("/tmp/project/a.go", "go", "x"); err != nil {
		t.Fatal(err)
	}
	if err := c.DidOpen("/tmp/project/a.go", "go", "x"); err != nil {
		t.Fatal(err)
	}
	if len(c.opened) != 1 {
		t.Errorf("opened %d documents, want 1", len(c.opened))
	}
}
