package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexChapter indexes a chapter (fire-and-forget to Meilisearch).
func (s *Service) IndexChapter(c ChapterRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexChapter(c); err != nil {
			log.Printf("search: index chapter %s: %v", c.ID, err)
		}
	}()
}

// IndexCharacter indexes a character (fire-and-forget to Meilisearch).
func (s *Service) IndexCharacter(c CharacterRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexCharacter(c); err != nil {
			log.Printf("search: index character %s: %v", c.ID, err)
		}
	}()
}

// IndexTerm indexes a glossary term (fire-and-forget to Meilisearch).
func (s *Service) IndexTerm(t TermRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexTerm(t); err != nil {
			log.Printf("search: index term %s: %v", t.ID, err)
		}
	}()
}

// DeleteChapter removes a chapter from the search index (fire-and-forget).
func (s *Service) DeleteChapter(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteChapter(id); err != nil {
			log.Printf("search: delete chapter %s: %v", id, err)
		}
	}()
}

// DeleteCharacter removes a character from the search index (fire-and-forget).
func (s *Service) DeleteCharacter(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteCharacter(id); err != nil {
			log.Printf("search: delete character %s: %v", id, err)
		}
	}()
}

// DeleteTerm removes a term from the search index (fire-and-forget).
func (s *Service) DeleteTerm(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteTerm(id); err != nil {
			log.Printf("search: delete term %s: %v", id, err)
		}
	}()
}

// ReindexAll pushes loaded records to Meilisearch.
func (s *Service) ReindexAll(chapters []ChapterRecord, characters []CharacterRecord, terms []TermRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}

	if len(chapters) > 0 {
		if err := s.meili.IndexChapters(chapters); err != nil {
			log.Printf("search: reindex chapters: %v", err)
		}
	}
	if len(characters) > 0 {
		if err := s.meili.IndexCharacters(characters); err != nil {
			log.Printf("search: reindex characters: %v", err)
		}
	}
	if len(terms) > 0 {
		if err := s.meili.IndexTerms(terms); err != nil {
			log.Printf("search: reindex terms: %v", err)
		}
	}
}

// ReindexAllFromPG reindexes all searchable entities from PostgreSQL into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	chapters, characters, terms, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	s.ReindexAll(chapters, characters, terms)
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
