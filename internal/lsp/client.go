package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// ErrTimeout is returned when the server does not answer a request within
// the client's timeout.
var ErrTimeout = errors.New("lsp: request timed out")

// ErrClosed is returned for requests issued after the server's stream ended
// or the client was shut down.
var ErrClosed = errors.New("lsp: session closed")

// DefaultTimeout bounds a single request.
const DefaultTimeout = 5 * time.Second

// Client is one live language-server session. Requests are serialized by an
// internal mutex: a single server process must never see concurrent
// requests. A background goroutine reads server output and routes responses
// to their callers by request id.
type Client struct {
	cmd    *exec.Cmd // nil when attached to raw streams (tests)
	stdin  io.WriteCloser
	reader *bufio.Reader

	timeout time.Duration
	rootURI string

	reqMu  sync.Mutex // serializes request issuing per session
	nextID int

	mu      sync.Mutex
	pending map[int]chan *Response
	closed  bool
	readErr error

	opened map[string]bool
}

// Start launches a language server process and attaches a client to it.
// The server's stderr is discarded.
func Start(command []string, rootPath string) (*Client, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("empty server command")
	}
	path, err := exec.LookPath(command[0])
	if err != nil {
		return nil, fmt.Errorf("server %q not found: %w", command[0], err)
	}

	cmd := exec.Command(path, command[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", command[0], err)
	}

	c := attach(stdin, stdout, rootPath)
	c.cmd = cmd
	return c, nil
}

// NewClient attaches a client to arbitrary streams. Used by tests to talk
// to an in-process fake server over pipes.
func NewClient(stdin io.WriteCloser, stdout io.Reader, rootPath string) *Client {
	return attach(stdin, stdout, rootPath)
}

func attach(stdin io.WriteCloser, stdout io.Reader, rootPath string) *Client {
	c := &Client{
		stdin:   stdin,
		reader:  bufio.NewReader(stdout),
		timeout: DefaultTimeout,
		rootURI: PathToURI(rootPath),
		pending: make(map[int]chan *Response),
		opened:  make(map[string]bool),
	}
	go c.readLoop()
	return c
}

// SetTimeout overrides the per-request timeout.
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.timeout = d
	}
}

// readLoop routes server messages to pending calls until the stream ends.
func (c *Client) readLoop() {
	for {
		body, err := ReadMessage(c.reader)
		if err != nil {
			c.failAll(err)
			return
		}
		var resp Response
		if err := json.Unmarshal(body, &resp); err != nil {
			continue
		}
		if resp.ID == nil {
			continue // server notification (diagnostics, logs), ignored
		}
		c.mu.Lock()
		ch := c.pending[*resp.ID]
		delete(c.pending, *resp.ID)
		c.mu.Unlock()
		if ch != nil {
			ch <- &resp
		}
	}
}

func (c *Client) failAll(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.readErr = err
	for id, ch := range c.pending {
		delete(c.pending, id)
		close(ch)
	}
}

// call issues one request and waits for its response, the timeout, or
// context cancellation, whichever comes first.
func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.nextID++
	id := c.nextID
	ch := make(chan *Response, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	req := Request{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	if err := WriteMessage(c.stdin, req); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return fmt.Errorf("write %s: %w", method, err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return ErrClosed
		}
		if resp.Error != nil {
			return fmt.Errorf("%s: %w", method, resp.Error)
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("decode %s result: %w", method, err)
			}
		}
		return nil
	case <-time.After(c.timeout):
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", method, ErrTimeout)
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return ctx.Err()
	}
}

func (c *Client) notify(method string, params any) error {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()
	return WriteMessage(c.stdin, Notification{JSONRPC: "2.0", Method: method, Params: params})
}

// Initialize performs the initialize handshake for the session's root.
func (c *Client) Initialize(ctx context.Context) error {
	var result InitializeResult
	params := InitializeParams{
		ProcessID:    os.Getpid(),
		RootURI:      c.rootURI,
		Capabilities: ClientCapabilities{},
	}
	if err := c.call(ctx, "initialize", params, &result); err != nil {
		return err
	}
	return c.notify("initialized", struct{}{})
}

// DidOpen announces a document to the server, once per path.
func (c *Client) DidOpen(path, languageID, text string) error {
	uri := PathToURI(path)
	if c.opened[uri] {
		return nil
	}
	c.opened[uri] = true
	return c.notify("textDocument/didOpen", DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{
			URI:        uri,
			LanguageID: languageID,
			Version:    1,
			Text:       text,
		},
	})
}

// References asks where the symbol at the given position is used.
// The declaration itself is excluded.
func (c *Client) References(ctx context.Context, path string, pos Position) ([]Location, error) {
	var locations []Location
	params := ReferenceParams{
		TextDocument: TextDocumentIdentifier{URI: PathToURI(path)},
		Position:     pos,
		Context:      ReferenceContext{IncludeDeclaration: false},
	}
	if err := c.call(ctx, "textDocument/references", params, &locations); err != nil {
		return nil, err
	}
	return locations, nil
}

// Closed reports whether the session's stream has ended.
func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Shutdown performs the shutdown/exit sequence and reaps the process.
// Safe to call on an already-dead session.
func (c *Client) Shutdown(ctx context.Context) error {
	if !c.Closed() {
		_ = c.call(ctx, "shutdown", nil, nil)
		_ = c.notify("exit", nil)
	}
	_ = c.stdin.Close()
	if c.cmd != nil {
		done := make(chan error, 1)
		go func() { done <- c.cmd.Wait() }()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			_ = c.cmd.Process.Kill()
			<-done
		}
	}
	c.failAll(ErrClosed)
	return nil
}
