// Package lsp implements a Language Server Protocol server for decklists.
//
// It provides card-name completion, search-query completion, hover cards,
// inline card summaries, unknown-card diagnostics with quick fixes, code
// lenses on search lines, and comment-section folding.
package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mtgcode/mtgls/internal/fuzzy"
	"github.com/mtgcode/mtgls/internal/model"
	"github.com/mtgcode/mtgls/internal/searchquery"
)

// CardDB is the card database the server reads from. *carddb.DB satisfies it.
type CardDB interface {
	Ready(ctx context.Context) error
	Card(ctx context.Context, name string) (*model.Card, error)
	Known(name string) bool
	SearchNames(text string) []fuzzy.Match
	ClosestName(name string) (string, bool)
	Vocabularies() searchquery.Vocabularies
	SearchCardsAdvanced(ctx context.Context, query string) ([]string, error)
}

// Options configures a Server.
type Options struct {
	DB       CardDB
	Registry *searchquery.Registry
	Logger   zerolog.Logger
	Version  string

	Input  io.Reader
	Output io.Writer

	// MaxCompletions caps a completion list; the list is then marked
	// incomplete. Default 200.
	MaxCompletions int
	// Concurrency bounds card lookups per request. Default 8.
	Concurrency int
}

// Server is the mtgls LSP server.
type Server struct {
	db             CardDB
	registry       *searchquery.Registry
	log            zerolog.Logger
	version        string
	maxCompletions int
	concurrency    int

	// Document management
	documents *DocumentManager

	// LSP communication
	input  *bufio.Reader
	output io.Writer
	mu     sync.Mutex // Protects output writes

	// Diagnostic scans and requests answered off the message loop
	ctx       context.Context
	scanMu    sync.Mutex
	scans     map[string]*scan
	pending   map[string]map[*pendingRequest]struct{}
	published map[string]uint64
	wg        sync.WaitGroup

	// Shutdown
	shutdown bool
	exited   bool
}

// NewServer creates a new LSP server.
func NewServer(opts Options) *Server {
	if opts.MaxCompletions <= 0 {
		opts.MaxCompletions = 200
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	return &Server{
		db:             opts.DB,
		registry:       opts.Registry,
		log:            opts.Logger.With().Str("component", "lsp").Logger(),
		version:        opts.Version,
		maxCompletions: opts.MaxCompletions,
		concurrency:    opts.Concurrency,
		documents:      NewDocumentManager(),
		input:          bufio.NewReader(opts.Input),
		output:         opts.Output,
		ctx:            context.Background(),
		scans:          make(map[string]*scan),
		pending:        make(map[string]map[*pendingRequest]struct{}),
		published:      make(map[string]uint64),
	}
}

// Run processes messages until the client sends exit, the input ends, or
// ctx is cancelled. Outstanding scans and requests are cancelled and waited
// for before it returns.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		s.wg.Wait()
	}()
	s.ctx = ctx

	s.log.Info().Msg("language server started")

	for !s.exited {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := s.handleNextMessage(); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			if errors.Is(err, errFraming) {
				s.log.Warn().Err(err).Msg("dropping malformed message")
				continue
			}
			return err
		}
	}
	if !s.shutdown {
		return errors.New("exit received before shutdown")
	}
	return nil
}

var errFraming = errors.New("malformed message header")

// readHeader reads header lines up to the blank separator and returns the
// Content-Length.
func (s *Server) readHeader() (int, error) {
	contentLength := -1
	for {
		line, err := s.input.ReadString('\n')
		if err != nil {
			if line != "" && errors.Is(err, io.EOF) {
				return 0, io.ErrUnexpectedEOF
			}
			return 0, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break // Empty line separates header from content
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return 0, fmt.Errorf("%w: %q", errFraming, line)
		}
		if strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || n < 0 {
				return 0, fmt.Errorf("%w: bad Content-Length %q", errFraming, value)
			}
			contentLength = n
		}
	}
	if contentLength < 0 {
		return 0, fmt.Errorf("%w: no Content-Length header", errFraming)
	}
	return contentLength, nil
}

// handleNextMessage reads and processes a single LSP message.
func (s *Server) handleNextMessage() error {
	contentLength, err := s.readHeader()
	if err != nil {
		return err
	}

	// Read content
	content := make([]byte, contentLength)
	if _, err := io.ReadFull(s.input, content); err != nil {
		return err
	}

	// Parse JSON-RPC message
	var msg jsonRPCMessage
	if err := json.Unmarshal(content, &msg); err != nil {
		s.log.Warn().Err(err).Msg("failed to parse message")
		return s.sendError(nil, codeParseError, "Parse error")
	}

	s.log.Debug().Str("method", msg.Method).Msg("received")

	if err := s.dispatch(msg); err != nil {
		s.log.Debug().Err(err).Str("method", msg.Method).Msg("error handling message")
	}
	return nil
}

// dispatch routes a message to the appropriate handler.
func (s *Server) dispatch(msg jsonRPCMessage) error {
	if s.shutdown && msg.Method != "exit" {
		if msg.isRequest() {
			return s.sendError(msg.ID, codeInvalidRequest, "Server is shutting down")
		}
		return nil
	}

	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		// Client acknowledgment, nothing to do
		return nil
	case "shutdown":
		s.shutdown = true
		s.cancelScans()
		return s.sendResult(msg.ID, nil)
	case "exit":
		s.exited = true
		return nil
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didSave":
		return nil
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/completion":
		return s.handleCompletion(msg)
	case "textDocument/hover":
		return s.handleHover(msg)
	case "textDocument/codeAction":
		return s.handleCodeAction(msg)
	case "textDocument/codeLens":
		return s.handleCodeLens(msg)
	case "textDocument/foldingRange":
		return s.handleFoldingRange(msg)
	case "textDocument/inlayHint":
		return s.handleInlayHint(msg)
	case "workspace/executeCommand":
		return s.handleExecuteCommand(msg)
	default:
		s.log.Debug().Str("method", msg.Method).Msg("unhandled method")
		if msg.isRequest() {
			return s.sendError(msg.ID, codeMethodNotFound, "Method not found: "+msg.Method)
		}
		return nil
	}
}

// sendResult sends a successful response.
func (s *Server) sendResult(id json.RawMessage, result any) error {
	response := jsonRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  mustMarshal(result),
	}
	return s.send(response)
}

// sendError sends an error response.
func (s *Server) sendError(id json.RawMessage, code int, message string) error {
	response := jsonRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &jsonRPCError{
			Code:    code,
			Message: message,
		},
	}
	return s.send(response)
}

// sendNotification sends a notification (no response expected).
func (s *Server) sendNotification(method string, params any) error {
	notification := jsonRPCMessage{
		JSONRPC: "2.0",
		Method:  method,
		Params:  mustMarshal(params),
	}
	return s.send(notification)
}

// send writes a JSON-RPC message to the output.
func (s *Server) send(msg any) error {
	content, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(content))
	if _, err := io.WriteString(s.output, header); err != nil {
		return err
	}
	_, err = s.output.Write(content)
	return err
}

func mustMarshal(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}

// JSON-RPC types

type jsonRPCMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

func (m jsonRPCMessage) isRequest() bool {
	return len(m.ID) > 0 && string(m.ID) != "null"
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"` // "null" on success without a value
	Error   *jsonRPCError   `json:"error,omitempty"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
