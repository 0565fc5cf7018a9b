package app

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"inkwell/api/internal/archive"
	"inkwell/api/internal/config"
	"inkwell/api/internal/store"
)

// fakeStore implements dataStore with overridable functions. Unset lookups
// report sql.ErrNoRows, unset lists are empty, unset writes succeed.
type fakeStore struct {
	PingFn func(ctx context.Context) error

	CreateUserFn     func(ctx context.Context, email, displayName, passwordHash string) (store.User, error)
	GetUserByEmailFn func(ctx context.Context, email string) (store.User, error)
	GetUserByIDFn    func(ctx context.Context, userID string) (store.User, error)

	CreateProjectFn func(ctx context.Context, project store.Project) error
	GetProjectFn    func(ctx context.Context, projectID, ownerID string) (store.Project, error)
	ListProjectsFn  func(ctx context.Context, ownerID string) ([]store.Project, error)
	UpdateProjectFn func(ctx context.Context, project store.Project) error
	DeleteProjectFn func(ctx context.Context, projectID, ownerID string) error

	CreateChapterFn  func(ctx context.Context, chapter store.Chapter) error
	GetChapterFn     func(ctx context.Context, chapterID string) (store.Chapter, error)
	ListChaptersFn   func(ctx context.Context, projectID string) ([]store.Chapter, error)
	UpdateChapterFn  func(ctx context.Context, chapter store.Chapter) error
	DeleteChapterFn  func(ctx context.Context, chapterID string) error
	ChapterNumbersFn func(ctx context.Context, projectID string) (map[string]int, error)

	CountChapterVersionsFn func(ctx context.Context, chapterID string) (int, error)
	InsertChapterVersionFn func(ctx context.Context, version store.ChapterVersion) error
	GetChapterVersionFn    func(ctx context.Context, chapterID string, versionNumber int) (store.ChapterVersion, error)
	ListChapterVersionsFn  func(ctx context.Context, chapterID string) ([]store.ChapterVersion, error)

	CreateCharacterFn func(ctx context.Context, character store.Character) error
	GetCharacterFn    func(ctx context.Context, characterID string) (store.Character, error)
	ListCharactersFn  func(ctx context.Context, projectID string) ([]store.Character, error)
	UpdateCharacterFn func(ctx context.Context, character store.Character) error
	DeleteCharacterFn func(ctx context.Context, characterID string) error

	CreateOutlineFn func(ctx context.Context, outline store.Outline) error
	ListOutlinesFn  func(ctx context.Context, projectID string) ([]store.Outline, error)
	UpdateOutlineFn func(ctx context.Context, outline store.Outline) error
	DeleteOutlineFn func(ctx context.Context, outlineID string) error

	CreateTermFn func(ctx context.Context, term store.Term) error
	ListTermsFn  func(ctx context.Context, projectID string) ([]store.Term, error)
	UpdateTermFn func(ctx context.Context, term store.Term) error
	DeleteTermFn func(ctx context.Context, termID string) error

	InsertSnapshotFn          func(ctx context.Context, snapshot store.EntitySnapshot) error
	ListSnapshotsFn           func(ctx context.Context, projectID string) ([]store.EntitySnapshot, error)
	ListEntitySnapshotsFn     func(ctx context.Context, projectID, entityID string) ([]store.EntitySnapshot, error)
	ChapterIDsWithSnapshotsFn func(ctx context.Context, projectID string) (map[string]bool, error)
	DeleteProjectSnapshotsFn  func(ctx context.Context, projectID string) error

	InsertConflictFn         func(ctx context.Context, conflict store.Conflict) (bool, error)
	ListConflictsFn          func(ctx context.Context, projectID string, filter store.ConflictFilter) ([]store.Conflict, error)
	GetConflictFn            func(ctx context.Context, conflictID string) (store.Conflict, error)
	GetConflictDetailFn      func(ctx context.Context, conflictID string) (store.ConflictDetail, error)
	ResolveConflictFn        func(ctx context.Context, conflictID, resolution, resolvedBy string, resolvedAt time.Time) error
	IgnoreConflictFn         func(ctx context.Context, conflictID string) error
	DeleteProjectConflictsFn func(ctx context.Context, projectID string) error
	ConflictedSnapshotIDsFn  func(ctx context.Context, projectID, entityID string) (map[string]bool, error)

	InsertLinkFn          func(ctx context.Context, link store.ChapterLink) (bool, error)
	ListLinksFn           func(ctx context.Context, projectID string, filter store.LinkFilter) ([]store.ChapterLink, error)
	DeleteProjectLinksFn  func(ctx context.Context, projectID string) error
	InsertThinkingChainFn func(ctx context.Context, chain store.ThinkingChain) error
	ListThinkingChainsFn  func(ctx context.Context, projectID, chapterID, chainType string) ([]store.ThinkingChain, error)

	InsertVocabularyWordFn func(ctx context.Context, word store.VocabularyWord) error
	ListVocabularyWordsFn  func(ctx context.Context) ([]store.VocabularyWord, error)
	UpdateVocabularyWordFn func(ctx context.Context, word store.VocabularyWord) error
	DeleteVocabularyWordFn func(ctx context.Context, wordID string) error
	BumpVocabularyUsageFn  func(ctx context.Context, words []string) error
	UpsertToneAnalysisFn   func(ctx context.Context, analysis store.ToneAnalysis) error
	GetToneAnalysisFn      func(ctx context.Context, chapterID string) (store.ToneAnalysis, error)
	UpsertPatternCacheFn   func(ctx context.Context, patternCache store.PatternCache) error
	ListPatternCachesFn    func(ctx context.Context, projectID string) ([]store.PatternCache, error)
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.PingFn != nil {
		return f.PingFn(ctx)
	}
	return nil
}

func (f *fakeStore) CreateUser(ctx context.Context, email, displayName, passwordHash string) (store.User, error) {
	if f.CreateUserFn != nil {
		return f.CreateUserFn(ctx, email, displayName, passwordHash)
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if f.GetUserByEmailFn != nil {
		return f.GetUserByEmailFn(ctx, email)
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) GetUserByID(ctx context.Context, userID string) (store.User, error) {
	if f.GetUserByIDFn != nil {
		return f.GetUserByIDFn(ctx, userID)
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) CreateProject(ctx context.Context, project store.Project) error {
	if f.CreateProjectFn != nil {
		return f.CreateProjectFn(ctx, project)
	}
	return nil
}

func (f *fakeStore) GetProject(ctx context.Context, projectID, ownerID string) (store.Project, error) {
	if f.GetProjectFn != nil {
		return f.GetProjectFn(ctx, projectID, ownerID)
	}
	return store.Project{}, sql.ErrNoRows
}

func (f *fakeStore) ListProjects(ctx context.Context, ownerID string) ([]store.Project, error) {
	if f.ListProjectsFn != nil {
		return f.ListProjectsFn(ctx, ownerID)
	}
	return nil, nil
}

func (f *fakeStore) UpdateProject(ctx context.Context, project store.Project) error {
	if f.UpdateProjectFn != nil {
		return f.UpdateProjectFn(ctx, project)
	}
	return nil
}

func (f *fakeStore) DeleteProject(ctx context.Context, projectID, ownerID string) error {
	if f.DeleteProjectFn != nil {
		return f.DeleteProjectFn(ctx, projectID, ownerID)
	}
	return nil
}

func (f *fakeStore) CreateChapter(ctx context.Context, chapter store.Chapter) error {
	if f.CreateChapterFn != nil {
		return f.CreateChapterFn(ctx, chapter)
	}
	return nil
}

func (f *fakeStore) GetChapter(ctx context.Context, chapterID string) (store.Chapter, error) {
	if f.GetChapterFn != nil {
		return f.GetChapterFn(ctx, chapterID)
	}
	return store.Chapter{}, sql.ErrNoRows
}

func (f *fakeStore) ListChapters(ctx context.Context, projectID string) ([]store.Chapter, error) {
	if f.ListChaptersFn != nil {
		return f.ListChaptersFn(ctx, projectID)
	}
	return nil, nil
}

func (f *fakeStore) UpdateChapter(ctx context.Context, chapter store.Chapter) error {
	if f.UpdateChapterFn != nil {
		return f.UpdateChapterFn(ctx, chapter)
	}
	return nil
}

func (f *fakeStore) DeleteChapter(ctx context.Context, chapterID string) error {
	if f.DeleteChapterFn != nil {
		return f.DeleteChapterFn(ctx, chapterID)
	}
	return nil
}

func (f *fakeStore) ChapterNumbers(ctx context.Context, projectID string) (map[string]int, error) {
	if f.ChapterNumbersFn != nil {
		return f.ChapterNumbersFn(ctx, projectID)
	}
	return map[string]int{}, nil
}

func (f *fakeStore) CountChapterVersions(ctx context.Context, chapterID string) (int, error) {
	if f.CountChapterVersionsFn != nil {
		return f.CountChapterVersionsFn(ctx, chapterID)
	}
	return 0, nil
}

func (f *fakeStore) InsertChapterVersion(ctx context.Context, version store.ChapterVersion) error {
	if f.InsertChapterVersionFn != nil {
		return f.InsertChapterVersionFn(ctx, version)
	}
	return nil
}

func (f *fakeStore) GetChapterVersion(ctx context.Context, chapterID string, versionNumber int) (store.ChapterVersion, error) {
	if f.GetChapterVersionFn != nil {
		return f.GetChapterVersionFn(ctx, chapterID, versionNumber)
	}
	return store.ChapterVersion{}, sql.ErrNoRows
}

func (f *fakeStore) ListChapterVersions(ctx context.Context, chapterID string) ([]store.ChapterVersion, error) {
	if f.ListChapterVersionsFn != nil {
		return f.ListChapterVersionsFn(ctx, chapterID)
	}
	return nil, nil
}

func (f *fakeStore) CreateCharacter(ctx context.Context, character store.Character) error {
	if f.CreateCharacterFn != nil {
		return f.CreateCharacterFn(ctx, character)
	}
	return nil
}

func (f *fakeStore) GetCharacter(ctx context.Context, characterID string) (store.Character, error) {
	if f.GetCharacterFn != nil {
		return f.GetCharacterFn(ctx, characterID)
	}
	return store.Character{}, sql.ErrNoRows
}

func (f *fakeStore) ListCharacters(ctx context.Context, projectID string) ([]store.Character, error) {
	if f.ListCharactersFn != nil {
		return f.ListCharactersFn(ctx, projectID)
	}
	return nil, nil
}

func (f *fakeStore) UpdateCharacter(ctx context.Context, character store.Character) error {
	if f.UpdateCharacterFn != nil {
		return f.UpdateCharacterFn(ctx, character)
	}
	return nil
}

func (f *fakeStore) DeleteCharacter(ctx context.Context, characterID string) error {
	if f.DeleteCharacterFn != nil {
		return f.DeleteCharacterFn(ctx, characterID)
	}
	return nil
}

func (f *fakeStore) CreateOutline(ctx context.Context, outline store.Outline) error {
	if f.CreateOutlineFn != nil {
		return f.CreateOutlineFn(ctx, outline)
	}
	return nil
}

func (f *fakeStore) ListOutlines(ctx context.Context, projectID string) ([]store.Outline, error) {
	if f.ListOutlinesFn != nil {
		return f.ListOutlinesFn(ctx, projectID)
	}
	return nil, nil
}

func (f *fakeStore) UpdateOutline(ctx context.Context, outline store.Outline) error {
	if f.UpdateOutlineFn != nil {
		return f.UpdateOutlineFn(ctx, outline)
	}
	return nil
}

func (f *fakeStore) DeleteOutline(ctx context.Context, outlineID string) error {
	if f.DeleteOutlineFn != nil {
		return f.DeleteOutlineFn(ctx, outlineID)
	}
	return nil
}

func (f *fakeStore) CreateTerm(ctx context.Context, term store.Term) error {
	if f.CreateTermFn != nil {
		return f.CreateTermFn(ctx, term)
	}
	return nil
}

func (f *fakeStore) ListTerms(ctx context.Context, projectID string) ([]store.Term, error) {
	if f.ListTermsFn != nil {
		return f.ListTermsFn(ctx, projectID)
	}
	return nil, nil
}

func (f *fakeStore) UpdateTerm(ctx context.Context, term store.Term) error {
	if f.UpdateTermFn != nil {
		return f.UpdateTermFn(ctx, term)
	}
	return nil
}

func (f *fakeStore) DeleteTerm(ctx context.Context, termID string) error {
	if f.DeleteTermFn != nil {
		return f.DeleteTermFn(ctx, termID)
	}
	return nil
}

func (f *fakeStore) InsertSnapshot(ctx context.Context, snapshot store.EntitySnapshot) error {
	if f.InsertSnapshotFn != nil {
		return f.InsertSnapshotFn(ctx, snapshot)
	}
	return nil
}

func (f *fakeStore) ListSnapshots(ctx context.Context, projectID string) ([]store.EntitySnapshot, error) {
	if f.ListSnapshotsFn != nil {
		return f.ListSnapshotsFn(ctx, projectID)
	}
	return nil, nil
}

func (f *fakeStore) ListEntitySnapshots(ctx context.Context, projectID, entityID string) ([]store.EntitySnapshot, error) {
	if f.ListEntitySnapshotsFn != nil {
		return f.ListEntitySnapshotsFn(ctx, projectID, entityID)
	}
	return nil, nil
}

func (f *fakeStore) ChapterIDsWithSnapshots(ctx context.Context, projectID string) (map[string]bool, error) {
	if f.ChapterIDsWithSnapshotsFn != nil {
		return f.ChapterIDsWithSnapshotsFn(ctx, projectID)
	}
	return map[string]bool{}, nil
}

func (f *fakeStore) DeleteProjectSnapshots(ctx context.Context, projectID string) error {
	if f.DeleteProjectSnapshotsFn != nil {
		return f.DeleteProjectSnapshotsFn(ctx, projectID)
	}
	return nil
}

func (f *fakeStore) InsertConflict(ctx context.Context, conflict store.Conflict) (bool, error) {
	if f.InsertConflictFn != nil {
		return f.InsertConflictFn(ctx, conflict)
	}
	return true, nil
}

func (f *fakeStore) ListConflicts(ctx context.Context, projectID string, filter store.ConflictFilter) ([]store.Conflict, error) {
	if f.ListConflictsFn != nil {
		return f.ListConflictsFn(ctx, projectID, filter)
	}
	return nil, nil
}

func (f *fakeStore) GetConflict(ctx context.Context, conflictID string) (store.Conflict, error) {
	if f.GetConflictFn != nil {
		return f.GetConflictFn(ctx, conflictID)
	}
	return store.Conflict{}, sql.ErrNoRows
}

func (f *fakeStore) GetConflictDetail(ctx context.Context, conflictID string) (store.ConflictDetail, error) {
	if f.GetConflictDetailFn != nil {
		return f.GetConflictDetailFn(ctx, conflictID)
	}
	return store.ConflictDetail{}, sql.ErrNoRows
}

func (f *fakeStore) ResolveConflict(ctx context.Context, conflictID, resolution, resolvedBy string, resolvedAt time.Time) error {
	if f.ResolveConflictFn != nil {
		return f.ResolveConflictFn(ctx, conflictID, resolution, resolvedBy, resolvedAt)
	}
	return nil
}

func (f *fakeStore) IgnoreConflict(ctx context.Context, conflictID string) error {
	if f.IgnoreConflictFn != nil {
		return f.IgnoreConflictFn(ctx, conflictID)
	}
	return nil
}

func (f *fakeStore) DeleteProjectConflicts(ctx context.Context, projectID string) error {
	if f.DeleteProjectConflictsFn != nil {
		return f.DeleteProjectConflictsFn(ctx, projectID)
	}
	return nil
}

func (f *fakeStore) ConflictedSnapshotIDs(ctx context.Context, projectID, entityID string) (map[string]bool, error) {
	if f.ConflictedSnapshotIDsFn != nil {
		return f.ConflictedSnapshotIDsFn(ctx, projectID, entityID)
	}
	return map[string]bool{}, nil
}

func (f *fakeStore) InsertLink(ctx context.Context, link store.ChapterLink) (bool, error) {
	if f.InsertLinkFn != nil {
		return f.InsertLinkFn(ctx, link)
	}
	return true, nil
}

func (f *fakeStore) ListLinks(ctx context.Context, projectID string, filter store.LinkFilter) ([]store.ChapterLink, error) {
	if f.ListLinksFn != nil {
		return f.ListLinksFn(ctx, projectID, filter)
	}
	return nil, nil
}

func (f *fakeStore) DeleteProjectLinks(ctx context.Context, projectID string) error {
	if f.DeleteProjectLinksFn != nil {
		return f.DeleteProjectLinksFn(ctx, projectID)
	}
	return nil
}

func (f *fakeStore) InsertThinkingChain(ctx context.Context, chain store.ThinkingChain) error {
	if f.InsertThinkingChainFn != nil {
		return f.InsertThinkingChainFn(ctx, chain)
	}
	return nil
}

func (f *fakeStore) ListThinkingChains(ctx context.Context, projectID, chapterID, chainType string) ([]store.ThinkingChain, error) {
	if f.ListThinkingChainsFn != nil {
		return f.ListThinkingChainsFn(ctx, projectID, chapterID, chainType)
	}
	return nil, nil
}

func (f *fakeStore) InsertVocabularyWord(ctx context.Context, word store.VocabularyWord) error {
	if f.InsertVocabularyWordFn != nil {
		return f.InsertVocabularyWordFn(ctx, word)
	}
	return nil
}

func (f *fakeStore) ListVocabularyWords(ctx context.Context) ([]store.VocabularyWord, error) {
	if f.ListVocabularyWordsFn != nil {
		return f.ListVocabularyWordsFn(ctx)
	}
	return nil, nil
}

func (f *fakeStore) UpdateVocabularyWord(ctx context.Context, word store.VocabularyWord) error {
	if f.UpdateVocabularyWordFn != nil {
		return f.UpdateVocabularyWordFn(ctx, word)
	}
	return nil
}

func (f *fakeStore) DeleteVocabularyWord(ctx context.Context, wordID string) error {
	if f.DeleteVocabularyWordFn != nil {
		return f.DeleteVocabularyWordFn(ctx, wordID)
	}
	return nil
}

func (f *fakeStore) BumpVocabularyUsage(ctx context.Context, words []string) error {
	if f.BumpVocabularyUsageFn != nil {
		return f.BumpVocabularyUsageFn(ctx, words)
	}
	return nil
}

func (f *fakeStore) UpsertToneAnalysis(ctx context.Context, analysis store.ToneAnalysis) error {
	if f.UpsertToneAnalysisFn != nil {
		return f.UpsertToneAnalysisFn(ctx, analysis)
	}
	return nil
}

func (f *fakeStore) GetToneAnalysis(ctx context.Context, chapterID string) (store.ToneAnalysis, error) {
	if f.GetToneAnalysisFn != nil {
		return f.GetToneAnalysisFn(ctx, chapterID)
	}
	return store.ToneAnalysis{}, sql.ErrNoRows
}

func (f *fakeStore) UpsertPatternCache(ctx context.Context, patternCache store.PatternCache) error {
	if f.UpsertPatternCacheFn != nil {
		return f.UpsertPatternCacheFn(ctx, patternCache)
	}
	return nil
}

func (f *fakeStore) ListPatternCaches(ctx context.Context, projectID string) ([]store.PatternCache, error) {
	if f.ListPatternCachesFn != nil {
		return f.ListPatternCachesFn(ctx, projectID)
	}
	return nil, nil
}

// memorySessions keeps refresh sessions in a map.
type memorySessions struct {
	mu       sync.Mutex
	sessions map[string]store.User
}

func newMemorySessions() *memorySessions {
	return &memorySessions{sessions: make(map[string]store.User)}
}

func (m *memorySessions) SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[tokenHash] = user
	return nil
}

func (m *memorySessions) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.sessions[tokenHash]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (m *memorySessions) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, tokenHash)
	return nil
}

// fakeArchive records commits without touching disk.
type fakeArchive struct {
	mu      sync.Mutex
	commits []string
	history []archive.CommitInfo
	content string
}

func (a *fakeArchive) EnsureProjectRepo(projectID, title, author string) error { return nil }

func (a *fakeArchive) CommitChapter(projectID string, chapter store.Chapter, author, message string) (archive.CommitInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.commits = append(a.commits, message)
	return archive.CommitInfo{Hash: "abc123", Message: message, Author: author}, nil
}

func (a *fakeArchive) RemoveChapter(projectID, chapterID, author string) error { return nil }

func (a *fakeArchive) History(projectID, chapterID string, limit int) ([]archive.CommitInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history, nil
}

func (a *fakeArchive) ChapterAtCommit(projectID, chapterID, hash string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.content, nil
}

func testConfig() config.Config {
	return config.Config{
		Addr:       ":0",
		AuthSecret: "test-secret",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
		CORSOrigin: "*",
	}
}

func newTestService(fs *fakeStore) (*Service, *fakeArchive) {
	arch := &fakeArchive{}
	svc := NewWithSessionStore(testConfig(), fs, newMemorySessions(), arch, nil)
	return svc, arch
}
