package docstore

import "sync"

// Store is the in-memory document corpus, keyed by remote file id. Documents
// are replaced wholesale on re-sync of the same id and iterated in insertion
// order. Safe for concurrent readers; the sync orchestrator is the only
// writer.
type Store struct {
	mu    sync.RWMutex
	order []string
	docs  map[string]Document
}

func New() *Store {
	return &Store{
		docs: make(map[string]Document),
	}
}

func (s *Store) Upsert(doc Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[doc.ID]; !ok {
		s.order = append(s.order, doc.ID)
	}
	s.docs[doc.ID] = doc
}

func (s *Store) Get(id string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	return doc, ok
}

func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return false
	}
	delete(s.docs, id)
	for i, existingID := range s.order {
		if existingID == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *Store) All() []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]Document, 0, len(s.order))
	for _, id := range s.order {
		docs = append(docs, s.docs[id])
	}
	return docs
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.docs)
}
