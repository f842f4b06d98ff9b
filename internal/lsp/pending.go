package lsp

import (
	"context"
	"encoding/json"
)

// pendingRequest is a request answered off the message loop.
type pendingRequest struct {
	cancel context.CancelFunc
}

// replyFunc computes a response. A non-nil *jsonRPCError is sent as the
// error reply.
type replyFunc func(ctx context.Context) (any, *jsonRPCError)

// goReply answers request id on its own goroutine so card lookups never
// stall the message loop. When doc is set, the work is tied to that
// snapshot: a newer version or a close cancels it, and the client gets
// ContentModified instead of a reply computed from stale text.
func (s *Server) goReply(id json.RawMessage, doc *Document, work replyFunc) {
	ctx, cancel := context.WithCancel(s.ctx)
	req := &pendingRequest{cancel: cancel}
	uri := ""
	if doc != nil {
		uri = doc.URI
	}

	s.scanMu.Lock()
	if s.pending[uri] == nil {
		s.pending[uri] = make(map[*pendingRequest]struct{})
	}
	s.pending[uri][req] = struct{}{}
	s.scanMu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.finishRequest(uri, req)

		result, rpcErr := work(ctx)

		superseded := ctx.Err() != nil || (doc != nil && !s.documents.IsCurrent(doc))

		var err error
		switch {
		case superseded:
			err = s.sendError(id, codeContentModified, "document changed or request cancelled")
		case rpcErr != nil:
			err = s.sendError(id, rpcErr.Code, rpcErr.Message)
		default:
			err = s.sendResult(id, result)
		}
		if err != nil {
			s.log.Debug().Err(err).Str("uri", uri).Msg("reply failed")
		}
	}()
}

func (s *Server) finishRequest(uri string, req *pendingRequest) {
	req.cancel()
	s.scanMu.Lock()
	defer s.scanMu.Unlock()
	delete(s.pending[uri], req)
	if len(s.pending[uri]) == 0 {
		delete(s.pending, uri)
	}
}

// cancelRequests cancels every in-flight request tied to uri.
func (s *Server) cancelRequests(uri string) {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()
	for req := range s.pending[uri] {
		req.cancel()
	}
}
