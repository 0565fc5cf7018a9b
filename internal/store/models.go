package store

import "time"

type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Project struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	Genre       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Chapter struct {
	ID            string
	ProjectID     string
	ChapterNumber int
	Title         string
	Content       string
	WordCount     int
	Status        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type ChapterVersion struct {
	ID            string
	ChapterID     string
	VersionNumber int
	Title         string
	Content       string
	WordCount     int
	Source        string
	CreatedBy     string
	CreatedAt     time.Time
}

type Character struct {
	ID          string
	ProjectID   string
	Name        string
	Aliases     []string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Outline struct {
	ID          string
	ProjectID   string
	Position    int
	Title       string
	Summary     string
	FromChapter *int
	ToChapter   *int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Term struct {
	ID          string
	ProjectID   string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EntitySnapshot is one typed property assertion about a narrative entity,
// anchored to the chapter it was observed in.
type EntitySnapshot struct {
	ID                string
	ProjectID         string
	EntityType        string
	EntityID          string
	EntityName        string
	PropertyName      string
	PropertyValue     string
	PropertyType      string
	Layer             string
	SourceType        string
	SourceChapterID   string
	SourceQuote       string
	SourceContext     string
	Confidence        float64
	AIModel           string
	ExtractionVersion string
	IsConfirmed       bool
	Tags              []string
	CreatedAt         time.Time
}

// Conflict records a pairwise contradiction between two snapshots of the same
// entity property. PairKey is the unordered snapshot-pair key that enforces
// save dedupe.
type Conflict struct {
	ID                 string
	ProjectID          string
	EntityType         string
	EntityID           string
	EntityName         string
	PropertyName       string
	SnapshotAID        string
	SnapshotAValue     string
	SnapshotAChapterID string
	SnapshotBID        string
	SnapshotBValue     string
	SnapshotBChapterID string
	ConflictType       string
	Severity           string
	Status             string
	Resolution         *string
	ResolvedBy         *string
	ResolvedAt         *time.Time
	Confidence         float64
	AISuggestion       *string
	PairKey            string
	CreatedAt          time.Time
}

// ConflictDetail joins a conflict with the source quotes and chapter numbers
// of both snapshots.
type ConflictDetail struct {
	Conflict
	SnapshotAQuote     string
	SnapshotAContext   string
	SnapshotAChapterNo int
	SnapshotBQuote     string
	SnapshotBContext   string
	SnapshotBChapterNo int
}

type ChapterLink struct {
	ID               string
	ProjectID        string
	FromChapterID    string
	FromChapterTitle string
	ToChapterID      string
	ToChapterTitle   string
	LinkType         string
	Description      string
	FromElement      string
	ToElement        string
	ReasoningChain   []byte
	Strength         float64
	ImportanceScore  int
	Confidence       float64
	TimeGap          *int
	IsConfirmed      bool
	CreatedAt        time.Time
}

type ThinkingChain struct {
	ID               string
	ProjectID        string
	ChapterID        string
	ChainType        string
	ReasoningSteps   []byte
	Conclusion       string
	Evidence         string
	SnapshotIDs      []string
	ConflictIDs      []string
	LinkIDs          []string
	AIModel          string
	Temperature      float64
	PromptTokens     int
	CompletionTokens int
	CreatedAt        time.Time
}

type VocabularyWord struct {
	ID           string
	Word         string
	Category     string
	Severity     string
	Alternatives []string
	UsageCount   int
	IsSystem     bool
	CreatedAt    time.Time
}

// ToneAnalysis is the persisted per-chapter vocabulary analysis, upserted on
// chapter_id.
type ToneAnalysis struct {
	ID         string
	ChapterID  string
	ProjectID  string
	Score      int
	Level      string
	Issues     []byte
	WordHits   []byte
	AnalyzedAt time.Time
}

// PatternCache holds one chapter's pattern analysis keyed by a content hash so
// unchanged chapters are not re-analyzed.
type PatternCache struct {
	ID              string
	ChapterID       string
	ProjectID       string
	ContentHash     string
	AnalysisVersion string
	Payload         []byte
	AnalyzedAt      time.Time
}
