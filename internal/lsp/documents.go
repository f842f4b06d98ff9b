package lsp

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/mtgcode/mtgls/internal/deck"
)

// DocumentManager tracks open documents and their content.
type DocumentManager struct {
	mu        sync.RWMutex
	documents map[string]*Document
}

// Document is a snapshot of an open document. Update replaces the snapshot
// rather than mutating it, so a scan can keep reading the one it started on.
type Document struct {
	URI     string
	Content string
	Version int
	Hash    uint64 // xxhash of Content
	lines   []string
}

// Lines returns the document split on LF or CRLF.
func (d *Document) Lines() []string {
	return d.lines
}

// Line returns line n, or "" when it does not exist.
func (d *Document) Line(n int) string {
	if n < 0 || n >= len(d.lines) {
		return ""
	}
	return d.lines[n]
}

func newDocument(uri, content string, version int) *Document {
	return &Document{
		URI:     uri,
		Content: content,
		Version: version,
		Hash:    xxhash.Sum64String(content),
		lines:   deck.SplitLines(content),
	}
}

// NewDocumentManager creates a new document manager.
func NewDocumentManager() *DocumentManager {
	return &DocumentManager{
		documents: make(map[string]*Document),
	}
}

// Open registers a newly opened document.
func (dm *DocumentManager) Open(uri, content string, version int) *Document {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	doc := newDocument(uri, content, version)
	dm.documents[uri] = doc
	return doc
}

// Update replaces the content of an open document. When the new content
// hashes the same as the current snapshot, that snapshot is kept and changed
// is false. Updating a document that is not open opens it.
func (dm *DocumentManager) Update(uri, content string, version int) (doc *Document, changed bool) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if old, ok := dm.documents[uri]; ok && old.Hash == xxhash.Sum64String(content) {
		return old, false
	}
	doc = newDocument(uri, content, version)
	dm.documents[uri] = doc
	return doc, true
}

// Close removes a document from tracking.
func (dm *DocumentManager) Close(uri string) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	delete(dm.documents, uri)
}

// Get retrieves a document by URI.
func (dm *DocumentManager) Get(uri string) *Document {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	return dm.documents[uri]
}

// IsCurrent reports whether doc is still the latest snapshot for its URI.
func (dm *DocumentManager) IsCurrent(doc *Document) bool {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	return dm.documents[doc.URI] == doc
}

// All returns all open documents.
func (dm *DocumentManager) All() []*Document {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	docs := make([]*Document, 0, len(dm.documents))
	for _, doc := range dm.documents {
		docs = append(docs, doc)
	}
	return docs
}
