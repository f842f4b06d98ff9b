package lsp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/mtgcode/mtgls/internal/deck"
)

// UnknownCardCode marks diagnostics for card lines whose name is not in the
// card database.
const UnknownCardCode = "unknown_card"

type scan struct {
	cancel context.CancelFunc
}

// scheduleScan starts a diagnostic scan of doc, cancelling any earlier scan
// of the same document. A scan publishes only if its document is still the
// current snapshot when it finishes.
func (s *Server) scheduleScan(doc *Document) {
	ctx, cancel := context.WithCancel(s.ctx)
	sc := &scan{cancel: cancel}

	s.scanMu.Lock()
	if prev, ok := s.scans[doc.URI]; ok {
		prev.cancel()
	}
	s.scans[doc.URI] = sc
	s.scanMu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.finishScan(doc.URI, sc)

		diags, err := s.diagnose(ctx, doc)
		if err != nil {
			if ctx.Err() == nil {
				s.log.Warn().Err(err).Str("uri", doc.URI).Msg("diagnostics skipped")
			}
			return
		}
		if err := s.publish(ctx, doc, diags); err != nil {
			s.log.Debug().Err(err).Str("uri", doc.URI).Msg("publish diagnostics failed")
		}
	}()
}

func (s *Server) finishScan(uri string, sc *scan) {
	sc.cancel()
	s.scanMu.Lock()
	defer s.scanMu.Unlock()
	if s.scans[uri] == sc {
		delete(s.scans, uri)
	}
}

// cancelScans cancels every diagnostic scan and in-flight request.
func (s *Server) cancelScans() {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()
	for _, sc := range s.scans {
		sc.cancel()
	}
	for _, reqs := range s.pending {
		for req := range reqs {
			req.cancel()
		}
	}
}

// diagnose flags every card line whose name the database does not know.
func (s *Server) diagnose(ctx context.Context, doc *Document) ([]Diagnostic, error) {
	if err := s.db.Ready(ctx); err != nil {
		return nil, err
	}

	lines := doc.Lines()
	diags := []Diagnostic{}
	for _, cl := range deck.UnknownCards(doc.Content, s.db.Known) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := lines[cl.Line]
		diags = append(diags, Diagnostic{
			Range:    lineRange(cl.Line, line, cl.NameStart, lineEnd(line)),
			Severity: DiagnosticSeverityWarning,
			Code:     UnknownCardCode,
			Source:   "mtgls",
			Message:  fmt.Sprintf("Unknown card '%s'.", cl.Name),
		})
	}
	return diags, nil
}

// publish sends diags for doc unless the scan was superseded or the client
// already has exactly these diagnostics.
func (s *Server) publish(ctx context.Context, doc *Document, diags []Diagnostic) error {
	payload, err := json.Marshal(diags)
	if err != nil {
		return err
	}
	digest := xxhash.Sum64(payload)

	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	if ctx.Err() != nil || !s.documents.IsCurrent(doc) {
		return nil
	}
	if prev, ok := s.published[doc.URI]; ok && prev == digest {
		return nil
	}
	s.published[doc.URI] = digest
	return s.sendNotification("textDocument/publishDiagnostics", PublishDiagnosticsParams{
		URI:         doc.URI,
		Diagnostics: diags,
	})
}

// clearDiagnostics withdraws everything published for uri.
func (s *Server) clearDiagnostics(uri string) error {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	if sc, ok := s.scans[uri]; ok {
		sc.cancel()
		delete(s.scans, uri)
	}
	if _, ok := s.published[uri]; !ok {
		return nil
	}
	delete(s.published, uri)
	return s.sendNotification("textDocument/publishDiagnostics", PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []Diagnostic{},
	})
}
