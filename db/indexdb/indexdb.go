package indexdb

import "sort"

// Index maps a token to its posting set of document ids. An Index is built
// once by a rebuild pass and treated as immutable after it is published, so
// readers never need a lock on the postings themselves.
type Index struct {
	postings map[string]map[string]struct{}
}

func NewIndex() *Index {
	return &Index{
		postings: make(map[string]map[string]struct{}),
	}
}

func (i *Index) Add(token string, docID string) {
	set, ok := i.postings[token]
	if !ok {
		set = make(map[string]struct{})
		i.postings[token] = set
	}
	set[docID] = struct{}{}
}

// Postings returns the posting set for a token, or nil when the token is not
// indexed. The returned map must not be mutated.
func (i *Index) Postings(token string) map[string]struct{} {
	return i.postings[token]
}

func (i *Index) TokenCount() int {
	return len(i.postings)
}

// HasDocument reports whether any posting set references the given id.
func (i *Index) HasDocument(docID string) bool {
	for _, set := range i.postings {
		if _, ok := set[docID]; ok {
			return true
		}
	}
	return false
}

// serializable flattens posting sets to sorted id lists for the on-disk JSON
// document.
func (i *Index) serializable() map[string][]string {
	out := make(map[string][]string, len(i.postings))
	for token, set := range i.postings {
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		out[token] = ids
	}
	return out
}

func fromSerializable(raw map[string][]string) *Index {
	idx := NewIndex()
	for token, ids := range raw {
		for _, id := range ids {
			idx.Add(token, id)
		}
	}
	return idx
}
