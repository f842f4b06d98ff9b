package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mtgcode/mtgls/internal/carddb"
	"github.com/mtgcode/mtgls/internal/fuzzy"
	"github.com/mtgcode/mtgls/internal/model"
	"github.com/mtgcode/mtgls/internal/searchquery"
)

// stubDB is an in-memory CardDB.
type stubDB struct {
	cards    map[string]*model.Card
	searches map[string][]string
	vocab    searchquery.Vocabularies
	readyErr error
	gate     chan struct{} // when set, Ready blocks until it is closed
}

func newStubDB(t *testing.T, docs ...string) *stubDB {
	t.Helper()
	db := &stubDB{
		cards:    make(map[string]*model.Card),
		searches: make(map[string][]string),
		vocab:    searchquery.Vocabularies{"types": {"Goblin", "Elf", "Wizard"}},
	}
	for _, doc := range docs {
		card, err := model.DecodeCard([]byte(doc))
		require.NoError(t, err)
		db.cards[card.Name] = card
	}
	return db
}

func (d *stubDB) Ready(ctx context.Context) error {
	if d.gate != nil {
		select {
		case <-d.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return d.readyErr
}

func (d *stubDB) Card(ctx context.Context, name string) (*model.Card, error) {
	if err := d.Ready(ctx); err != nil {
		return nil, err
	}
	card, ok := d.cards[name]
	if !ok {
		return nil, &carddb.NotFoundError{Name: name}
	}
	return card, nil
}

func (d *stubDB) Known(name string) bool {
	_, ok := d.cards[name]
	return ok
}

func (d *stubDB) names() []string {
	names := make([]string, 0, len(d.cards))
	for name := range d.cards {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (d *stubDB) SearchNames(text string) []fuzzy.Match {
	return fuzzy.Filter(text, d.names())
}

func (d *stubDB) ClosestName(name string) (string, bool) {
	if matches := fuzzy.Filter(name, d.names()); len(matches) > 0 && name != "" {
		return matches[0].Value, true
	}
	return fuzzy.Closest(name, d.names(), 0.8)
}

func (d *stubDB) Vocabularies() searchquery.Vocabularies { return d.vocab }

func (d *stubDB) SearchCardsAdvanced(ctx context.Context, query string) ([]string, error) {
	names, ok := d.searches[query]
	if !ok {
		return nil, fmt.Errorf("fetch search %q: status 503", query)
	}
	return names, nil
}

// testClient drives a Server over in-memory pipes.
type testClient struct {
	t      *testing.T
	toSrv  *io.PipeWriter
	nextID int

	responses     chan rpcReply
	notifications chan rpcReply
	done          chan error
	readerDone    chan struct{}
}

type rpcReply struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *jsonRPCError   `json:"error"`
}

func startServer(t *testing.T, db CardDB) *testClient {
	t.Helper()
	reg, err := searchquery.DefaultRegistry()
	require.NoError(t, err)

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	srv := NewServer(Options{
		DB:       db,
		Registry: reg,
		Logger:   zerolog.Nop(),
		Version:  "test",
		Input:    inR,
		Output:   outW,
	})

	c := &testClient{
		t:             t,
		toSrv:         inW,
		responses:     make(chan rpcReply, 64),
		notifications: make(chan rpcReply, 64),
		done:          make(chan error, 1),
		readerDone:    make(chan struct{}),
	}
	go func() {
		err := srv.Run(context.Background())
		outW.Close()
		c.done <- err
	}()
	go c.readLoop(outR)

	t.Cleanup(func() {
		inW.Close()
		<-c.readerDone
	})
	return c
}

func (c *testClient) readLoop(r io.Reader) {
	defer close(c.readerDone)
	br := bufio.NewReader(r)
	for {
		length := -1
		for {
			line, err := br.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				break
			}
			if v, ok := strings.CutPrefix(line, "Content-Length: "); ok {
				length, _ = strconv.Atoi(v)
			}
		}
		body := make([]byte, length)
		if _, err := io.ReadFull(br, body); err != nil {
			return
		}
		var msg rpcReply
		if err := json.Unmarshal(body, &msg); err != nil {
			return
		}
		if msg.Method != "" {
			c.notifications <- msg
		} else {
			c.responses <- msg
		}
	}
}

func (c *testClient) write(msg any) {
	c.t.Helper()
	body, err := json.Marshal(msg)
	require.NoError(c.t, err)
	_, err = fmt.Fprintf(c.toSrv, "Content-Length: %d\r\n\r\n%s", len(body), body)
	require.NoError(c.t, err)
}

func (c *testClient) notify(method string, params any) {
	c.t.Helper()
	c.write(map[string]any{"jsonrpc": "2.0", "method": method, "params": params})
}

// call sends a request and waits for its reply.
func (c *testClient) call(method string, params any) rpcReply {
	c.t.Helper()
	c.nextID++
	id := c.nextID
	c.write(map[string]any{"jsonrpc": "2.0", "id": id, "method": method, "params": params})
	select {
	case reply := <-c.responses:
		require.JSONEq(c.t, strconv.Itoa(id), string(reply.ID))
		return reply
	case <-time.After(5 * time.Second):
		c.t.Fatalf("no reply to %s", method)
		return rpcReply{}
	}
}

// send writes a request without waiting for its reply and returns its id.
func (c *testClient) send(method string, params any) int {
	c.t.Helper()
	c.nextID++
	c.write(map[string]any{"jsonrpc": "2.0", "id": c.nextID, "method": method, "params": params})
	return c.nextID
}

// await collects the replies to ids in whatever order they arrive.
func (c *testClient) await(ids ...int) map[int]rpcReply {
	c.t.Helper()
	replies := make(map[int]rpcReply, len(ids))
	deadline := time.After(5 * time.Second)
	for len(replies) < len(ids) {
		select {
		case reply := <-c.responses:
			id, err := strconv.Atoi(string(reply.ID))
			require.NoError(c.t, err)
			replies[id] = reply
		case <-deadline:
			c.t.Fatalf("got %d of %d replies", len(replies), len(ids))
		}
	}
	return replies
}

// result calls method and decodes a successful result into out.
func (c *testClient) result(method string, params, out any) {
	c.t.Helper()
	reply := c.call(method, params)
	require.Nil(c.t, reply.Error, "%s failed", method)
	require.NoError(c.t, json.Unmarshal(reply.Result, out))
}

func (c *testClient) open(uri, text string) {
	c.t.Helper()
	c.notify("textDocument/didOpen", DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{URI: uri, LanguageID: "mtg", Version: 1, Text: text},
	})
}

func (c *testClient) change(uri string, version int, text string) {
	c.t.Helper()
	c.notify("textDocument/didChange", DidChangeTextDocumentParams{
		TextDocument:   VersionedTextDocumentIdentifier{URI: uri, Version: version},
		ContentChanges: []TextDocumentContentChangeEvent{{Text: text}},
	})
}

func (c *testClient) diagnostics() PublishDiagnosticsParams {
	c.t.Helper()
	select {
	case msg := <-c.notifications:
		require.Equal(c.t, "textDocument/publishDiagnostics", msg.Method)
		var params PublishDiagnosticsParams
		require.NoError(c.t, json.Unmarshal(msg.Params, &params))
		return params
	case <-time.After(5 * time.Second):
		c.t.Fatal("no diagnostics published")
		return PublishDiagnosticsParams{}
	}
}

func (c *testClient) noDiagnostics(wait time.Duration) {
	c.t.Helper()
	select {
	case msg := <-c.notifications:
		c.t.Fatalf("unexpected notification %s: %s", msg.Method, msg.Params)
	case <-time.After(wait):
	}
}

// stop performs the shutdown handshake and returns Run's result.
func (c *testClient) stop() error {
	c.t.Helper()
	c.call("shutdown", nil)
	c.notify("exit", nil)
	select {
	case err := <-c.done:
		return err
	case <-time.After(5 * time.Second):
		c.t.Fatal("server did not exit")
		return nil
	}
}

func pos(line, char int) TextDocumentPositionParams {
	return TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: deckURI},
		Position:     Position{Line: line, Character: char},
	}
}

const deckURI = "file:///decks/burn.deck"
