package lsp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mtgcode/mtgls/internal/deck"
	"github.com/mtgcode/mtgls/internal/model"
	"github.com/mtgcode/mtgls/internal/render"
	"github.com/mtgcode/mtgls/internal/searchquery"
)

// SearchCardsCommand runs a search and returns its cards as markdown. Code
// lenses on search lines carry it.
const SearchCardsCommand = "mtgls.searchCards"

// SearchResult is the result of SearchCardsCommand.
type SearchResult struct {
	Query    string   `json:"query"`
	Names    []string `json:"names"`
	Markdown string   `json:"markdown"`
}

// Handler implementations

func (s *Server) handleInitialize(msg jsonRPCMessage) error {
	var params InitializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, codeInvalidParams, "Invalid params")
		}
	}
	s.log.Debug().Str("root", params.RootURI).Msg("initialize")

	result := InitializeResult{
		Capabilities: ServerCapabilities{
			TextDocumentSync: 1, // Full sync
			CompletionProvider: &CompletionOptions{
				TriggerCharacters: []string{" ", ":", "=", "<", ">", "\""},
			},
			HoverProvider:        true,
			CodeActionProvider:   &CodeActionOptions{CodeActionKinds: []string{"quickfix"}},
			CodeLensProvider:     &CodeLensOptions{},
			FoldingRangeProvider: true,
			InlayHintProvider:    true,
			ExecuteCommandProvider: &ExecuteCommandOptions{
				Commands: []string{SearchCardsCommand},
			},
		},
		ServerInfo: &ServerInfo{Name: "mtgls", Version: s.version},
	}

	return s.sendResult(msg.ID, result)
}

func (s *Server) handleDidOpen(msg jsonRPCMessage) error {
	var params DidOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	doc := s.documents.Open(
		params.TextDocument.URI,
		params.TextDocument.Text,
		params.TextDocument.Version,
	)
	s.log.Debug().Str("uri", doc.URI).Int("version", doc.Version).Msg("opened")

	s.scheduleScan(doc)
	return nil
}

func (s *Server) handleDidChange(msg jsonRPCMessage) error {
	var params DidChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	// We use full sync, so take the last content change
	if len(params.ContentChanges) == 0 {
		return nil
	}
	content := params.ContentChanges[len(params.ContentChanges)-1].Text
	doc, changed := s.documents.Update(
		params.TextDocument.URI,
		content,
		params.TextDocument.Version,
	)
	if changed {
		s.cancelRequests(doc.URI)
		s.scheduleScan(doc)
	}
	return nil
}

func (s *Server) handleDidClose(msg jsonRPCMessage) error {
	var params DidCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	s.documents.Close(params.TextDocument.URI)
	s.cancelRequests(params.TextDocument.URI)
	s.log.Debug().Str("uri", params.TextDocument.URI).Msg("closed")
	return s.clearDiagnostics(params.TextDocument.URI)
}

func (s *Server) handleCompletion(msg jsonRPCMessage) error {
	var params CompletionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "Invalid params")
	}

	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil {
		return s.sendResult(msg.ID, nil)
	}

	lineNum := params.Position.Line
	line := doc.Line(lineNum)
	cursor := toRunes(line, params.Position.Character)

	var list CompletionList
	if _, ok := searchquery.QuerySpan(line); ok {
		list = s.completeSearch(lineNum, line, cursor)
	} else if start, ok := deck.NameStart(line); ok && cursor >= start {
		list = s.completeCardName(lineNum, line, start)
	}
	if list.Items == nil {
		list.Items = []CompletionItem{}
	}
	return s.sendResult(msg.ID, list)
}

// completeCardName offers known names ranked against everything after the
// quantity, replacing it up to the end of the line.
func (s *Server) completeCardName(lineNum int, line string, start int) CompletionList {
	runes := []rune(line)
	matches := s.db.SearchNames(string(runes[start:]))
	rng := lineRange(lineNum, line, start, len(runes))

	var list CompletionList
	if len(matches) > s.maxCompletions {
		matches = matches[:s.maxCompletions]
		list.IsIncomplete = true
	}
	for i, m := range matches {
		list.Items = append(list.Items, CompletionItem{
			Label:    m.Value,
			Kind:     CompletionKindValue,
			SortText: fmt.Sprintf("%05d", i),
			TextEdit: &TextEdit{Range: rng, NewText: m.Value},
		})
	}
	return list
}

func (s *Server) completeSearch(lineNum int, line string, cursor int) CompletionList {
	completer := searchquery.NewCompleter(s.registry, s.db.Vocabularies())
	cands := completer.CompleteLine(line, cursor)

	var list CompletionList
	if len(cands) > s.maxCompletions {
		cands = cands[:s.maxCompletions]
		list.IsIncomplete = true
	}
	for i, c := range cands {
		kind := CompletionKindValue
		if c.Kind == searchquery.KindParameter {
			kind = CompletionKindProperty
		}
		list.Items = append(list.Items, CompletionItem{
			Label:    c.Label,
			Kind:     kind,
			Detail:   c.Detail,
			SortText: fmt.Sprintf("%05d", i),
			TextEdit: &TextEdit{Range: spanRange(lineNum, line, c.Range), NewText: c.InsertText},
		})
	}
	return list
}

func (s *Server) handleHover(msg jsonRPCMessage) error {
	var params TextDocumentPositionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "Invalid params")
	}

	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil {
		return s.sendResult(msg.ID, nil)
	}

	lineNum := params.Position.Line
	line := doc.Line(lineNum)

	if cl, ok := deck.Match(line); ok {
		rng := lineRange(lineNum, line, cl.NameStart, cl.NameEnd())
		s.goReply(msg.ID, doc, func(ctx context.Context) (any, *jsonRPCError) {
			card, err := s.db.Card(ctx, cl.Name)
			if err != nil {
				return markdownHover(fmt.Sprintf("failed to get card from card database: %v", err), &rng), nil
			}
			return markdownHover(render.CardMarkdown(card), &rng), nil
		})
		return nil
	}

	if sl, ok := deck.MatchSearch(line); ok && sl.Terms() != "" {
		s.goReply(msg.ID, doc, func(ctx context.Context) (any, *jsonRPCError) {
			cards, err := s.searchCards(ctx, sl.Terms())
			if err != nil {
				return markdownHover(fmt.Sprintf("searching cards failed: %v", err), nil), nil
			}
			return markdownHover(render.SearchMarkdown(cards), nil), nil
		})
		return nil
	}

	return s.sendResult(msg.ID, nil)
}

func markdownHover(value string, rng *Range) Hover {
	return Hover{Contents: MarkupContent{Kind: "markdown", Value: value}, Range: rng}
}

// searchCards runs query and resolves every named result. Results that fail
// to resolve are left out.
func (s *Server) searchCards(ctx context.Context, query string) ([]*model.Card, error) {
	names, err := s.db.SearchCardsAdvanced(ctx, query)
	if err != nil {
		return nil, err
	}
	lines := make([]deck.CardLine, 0, len(names))
	for _, name := range names {
		if name != "" {
			lines = append(lines, deck.CardLine{Name: name})
		}
	}
	resolved, err := deck.Resolve(ctx, s.db.Card, lines, s.concurrency)
	if err != nil {
		return nil, err
	}
	cards := make([]*model.Card, 0, len(resolved))
	for _, r := range resolved {
		if r.Err != nil {
			s.log.Debug().Err(r.Err).Str("card", r.Name).Msg("search result not resolved")
			continue
		}
		cards = append(cards, r.Card)
	}
	return cards, nil
}

func (s *Server) handleCodeAction(msg jsonRPCMessage) error {
	var params CodeActionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "Invalid params")
	}

	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil {
		return s.sendResult(msg.ID, []CodeAction{})
	}

	actions := []CodeAction{}
	for _, diag := range params.Context.Diagnostics {
		if diag.Code != UnknownCardCode {
			continue
		}
		actions = append(actions, s.fixCardName(doc, diag))
	}
	return s.sendResult(msg.ID, actions)
}

// fixCardName proposes replacing the diagnosed name with the closest known
// name, or a disabled action when nothing is close.
func (s *Server) fixCardName(doc *Document, diag Diagnostic) CodeAction {
	line := []rune(doc.Line(diag.Range.Start.Line))
	start := toRunes(string(line), diag.Range.Start.Character)
	end := toRunes(string(line), diag.Range.End.Character)
	if diag.Range.End.Line != diag.Range.Start.Line || end < start {
		end = len(line)
	}

	best, ok := s.db.ClosestName(string(line[start:end]))
	if !ok {
		const title = "No closely matching cards."
		return CodeAction{
			Title:       title,
			Kind:        "quickfix",
			Diagnostics: []Diagnostic{diag},
			Disabled:    &CodeActionDisabled{Reason: title},
		}
	}
	return CodeAction{
		Title:       fmt.Sprintf("Change to '%s'.", best),
		Kind:        "quickfix",
		Diagnostics: []Diagnostic{diag},
		IsPreferred: true,
		Edit: &WorkspaceEdit{Changes: map[string][]TextEdit{
			doc.URI: {{Range: diag.Range, NewText: best}},
		}},
	}
}

func (s *Server) handleCodeLens(msg jsonRPCMessage) error {
	var params CodeLensParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "Invalid params")
	}

	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil {
		return s.sendResult(msg.ID, []CodeLens{})
	}

	lenses := []CodeLens{}
	for _, sl := range deck.SearchLines(doc.Content) {
		line := doc.Line(sl.Line)
		lenses = append(lenses, CodeLens{
			Range: lineRange(sl.Line, line, 0, lineEnd(line)),
			Command: &Command{
				Title:     "Search Cards",
				Command:   SearchCardsCommand,
				Arguments: []any{sl.Terms()},
			},
		})
	}
	return s.sendResult(msg.ID, lenses)
}

func (s *Server) handleFoldingRange(msg jsonRPCMessage) error {
	var params FoldingRangeParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "Invalid params")
	}

	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil {
		return s.sendResult(msg.ID, []FoldingRange{})
	}

	ranges := []FoldingRange{}
	for _, fr := range deck.FoldingRanges(doc.Content) {
		ranges = append(ranges, FoldingRange{StartLine: fr.StartLine, EndLine: fr.EndLine, Kind: "region"})
	}
	return s.sendResult(msg.ID, ranges)
}

func (s *Server) handleInlayHint(msg jsonRPCMessage) error {
	var params InlayHintParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "Invalid params")
	}

	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil {
		return s.sendResult(msg.ID, []InlayHint{})
	}

	var lines []deck.CardLine
	for _, cl := range deck.CardLines(doc.Content) {
		if cl.Line >= params.Range.Start.Line && cl.Line <= params.Range.End.Line {
			lines = append(lines, cl)
		}
	}
	s.goReply(msg.ID, doc, func(ctx context.Context) (any, *jsonRPCError) {
		return s.inlayHints(ctx, doc, lines)
	})
	return nil
}

// inlayHints resolves lines and labels each resolved card at the end of
// its line. Lines that fail to resolve get no hint.
func (s *Server) inlayHints(ctx context.Context, doc *Document, lines []deck.CardLine) (any, *jsonRPCError) {
	resolved, err := deck.Resolve(ctx, s.db.Card, lines, s.concurrency)
	if err != nil {
		return nil, &jsonRPCError{Code: codeRequestFailed, Message: err.Error()}
	}

	hints := []InlayHint{}
	for _, r := range resolved {
		if r.Err != nil {
			continue
		}
		label := render.DecorationText(r.Card)
		if label == "" {
			continue
		}
		line := doc.Line(r.Line)
		hints = append(hints, InlayHint{
			Position:    Position{Line: r.Line, Character: toUTF16(line, lineEnd(line))},
			Label:       label,
			PaddingLeft: true,
		})
	}
	return hints, nil
}

func (s *Server) handleExecuteCommand(msg jsonRPCMessage) error {
	var params ExecuteCommandParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "Invalid params")
	}
	if params.Command != SearchCardsCommand {
		return s.sendError(msg.ID, codeInvalidParams, "Unknown command: "+params.Command)
	}

	var query string
	if len(params.Arguments) != 1 || json.Unmarshal(params.Arguments[0], &query) != nil {
		return s.sendError(msg.ID, codeInvalidParams, SearchCardsCommand+" takes one query string")
	}

	s.goReply(msg.ID, nil, func(ctx context.Context) (any, *jsonRPCError) {
		cards, err := s.searchCards(ctx, query)
		if err != nil {
			return nil, &jsonRPCError{Code: codeRequestFailed, Message: fmt.Sprintf("search failed: %v", err)}
		}
		result := SearchResult{Query: query, Names: make([]string, 0, len(cards)), Markdown: render.SearchMarkdown(cards)}
		for _, card := range cards {
			result.Names = append(result.Names, card.Name)
		}
		return result, nil
	})
	return nil
}
