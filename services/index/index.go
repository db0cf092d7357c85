package index

import (
	"github.com/docmirror/docmirror/db/indexdb"
	"github.com/docmirror/docmirror/logger"
	"github.com/docmirror/docmirror/services/docstore"
)

// Service rebuilds the inverted index from the document store. The index is
// derived state: every rebuild starts from scratch, publishes the result
// atomically, and then persists it. Rebuild cost is linear in indexed text
// and is paid after every document mutation.
type Service struct {
	logger logger.Logger
	docs   *docstore.Store
	store  *indexdb.Store
}

type Stats struct {
	Tokens    int `json:"tokens"`
	Documents int `json:"documents"`
}

func New(logger logger.Logger, docs *docstore.Store, store *indexdb.Store) *Service {
	return &Service{
		logger: logger,
		docs:   docs,
		store:  store,
	}
}

// Rebuild tokenizes every text-bearing document and publishes a fresh index.
// Spreadsheet content is deliberately not tokenized; only text variants feed
// the index. A failure to persist the rebuilt index is logged and swallowed:
// the in-memory index is already current and the next successful save
// catches the disk copy up.
func (s *Service) Rebuild() Stats {
	idx := indexdb.NewIndex()

	documents := s.docs.All()
	for _, doc := range documents {
		if !doc.Content.HasText() {
			continue
		}
		for _, token := range tokenize(doc.Content.Text) {
			idx.Add(token, doc.ID)
		}
	}

	s.store.Swap(idx)
	if err := s.store.Save(idx); err != nil {
		s.logger.Warn("failed to persist index, continuing with in-memory copy", "err", err.Error())
	}

	s.logger.Info("index rebuilt", "tokens", idx.TokenCount(), "documents", len(documents))

	return Stats{Tokens: idx.TokenCount(), Documents: s.docs.Count()}
}

// LoadFromDisk restores a previously persisted index to avoid a cold-start
// rebuild. Only postings are restored, never document content, so the loaded
// index is provisional until the next sync pass repopulates the document
// store.
func (s *Service) LoadFromDisk() {
	if err := s.store.Load(); err != nil {
		s.logger.Warn("failed to load persisted index", "err", err.Error())
		return
	}
	s.logger.Info("index loaded from disk", "tokens", s.store.Current().TokenCount())
}
