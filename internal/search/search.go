package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultChapter   ResultType = "chapter"
	ResultCharacter ResultType = "character"
	ResultTerm      ResultType = "term"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type      ResultType `json:"type"`
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Snippet   string     `json:"snippet"`
	ProjectID string     `json:"projectId"`
}

// Query describes a search request. OwnerID scopes every hit to projects the
// caller owns; hits from other owners never surface.
type Query struct {
	Text            string
	OwnerID         string
	FilterType      ResultType // empty = all types
	FilterProjectID string
	Limit           int
	Offset          int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexChapter(c ChapterRecord) error
	IndexCharacter(c CharacterRecord) error
	IndexTerm(t TermRecord) error
	DeleteChapter(id string) error
	DeleteCharacter(id string) error
	DeleteTerm(id string) error
}

// ChapterRecord is the data we index for a chapter.
type ChapterRecord struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Content       string `json:"content"`
	ProjectID     string `json:"projectId"`
	OwnerID       string `json:"ownerId"`
	Status        string `json:"status"`
	ChapterNumber int    `json:"chapterNumber"`
}

// CharacterRecord is the data we index for a character.
type CharacterRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ProjectID   string `json:"projectId"`
	OwnerID     string `json:"ownerId"`
}

// TermRecord is the data we index for a glossary term.
type TermRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ProjectID   string `json:"projectId"`
	OwnerID     string `json:"ownerId"`
}
