package app

import (
	"context"
	"time"

	"inkwell/api/internal/ai"
	"inkwell/api/internal/archive"
	"inkwell/api/internal/auth"
	"inkwell/api/internal/authpw"
	"inkwell/api/internal/cache"
	"inkwell/api/internal/config"
	"inkwell/api/internal/detect"
	"inkwell/api/internal/email"
	"inkwell/api/internal/export"
	"inkwell/api/internal/extract"
	"inkwell/api/internal/links"
	"inkwell/api/internal/search"
	"inkwell/api/internal/store"
	"inkwell/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, email, displayName, passwordHash string) (store.User, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, userID string) (store.User, error)

	CreateProject(ctx context.Context, project store.Project) error
	GetProject(ctx context.Context, projectID, ownerID string) (store.Project, error)
	ListProjects(ctx context.Context, ownerID string) ([]store.Project, error)
	UpdateProject(ctx context.Context, project store.Project) error
	DeleteProject(ctx context.Context, projectID, ownerID string) error

	CreateChapter(ctx context.Context, chapter store.Chapter) error
	GetChapter(ctx context.Context, chapterID string) (store.Chapter, error)
	ListChapters(ctx context.Context, projectID string) ([]store.Chapter, error)
	UpdateChapter(ctx context.Context, chapter store.Chapter) error
	DeleteChapter(ctx context.Context, chapterID string) error
	ChapterNumbers(ctx context.Context, projectID string) (map[string]int, error)

	CountChapterVersions(ctx context.Context, chapterID string) (int, error)
	InsertChapterVersion(ctx context.Context, version store.ChapterVersion) error
	GetChapterVersion(ctx context.Context, chapterID string, versionNumber int) (store.ChapterVersion, error)
	ListChapterVersions(ctx context.Context, chapterID string) ([]store.ChapterVersion, error)

	CreateCharacter(ctx context.Context, character store.Character) error
	GetCharacter(ctx context.Context, characterID string) (store.Character, error)
	ListCharacters(ctx context.Context, projectID string) ([]store.Character, error)
	UpdateCharacter(ctx context.Context, character store.Character) error
	DeleteCharacter(ctx context.Context, characterID string) error

	CreateOutline(ctx context.Context, outline store.Outline) error
	ListOutlines(ctx context.Context, projectID string) ([]store.Outline, error)
	UpdateOutline(ctx context.Context, outline store.Outline) error
	DeleteOutline(ctx context.Context, outlineID string) error

	CreateTerm(ctx context.Context, term store.Term) error
	ListTerms(ctx context.Context, projectID string) ([]store.Term, error)
	UpdateTerm(ctx context.Context, term store.Term) error
	DeleteTerm(ctx context.Context, termID string) error

	InsertSnapshot(ctx context.Context, snapshot store.EntitySnapshot) error
	ListSnapshots(ctx context.Context, projectID string) ([]store.EntitySnapshot, error)
	ListEntitySnapshots(ctx context.Context, projectID, entityID string) ([]store.EntitySnapshot, error)
	ChapterIDsWithSnapshots(ctx context.Context, projectID string) (map[string]bool, error)
	DeleteProjectSnapshots(ctx context.Context, projectID string) error

	InsertConflict(ctx context.Context, conflict store.Conflict) (bool, error)
	ListConflicts(ctx context.Context, projectID string, filter store.ConflictFilter) ([]store.Conflict, error)
	GetConflict(ctx context.Context, conflictID string) (store.Conflict, error)
	GetConflictDetail(ctx context.Context, conflictID string) (store.ConflictDetail, error)
	ResolveConflict(ctx context.Context, conflictID, resolution, resolvedBy string, resolvedAt time.Time) error
	IgnoreConflict(ctx context.Context, conflictID string) error
	DeleteProjectConflicts(ctx context.Context, projectID string) error
	ConflictedSnapshotIDs(ctx context.Context, projectID, entityID string) (map[string]bool, error)

	InsertLink(ctx context.Context, link store.ChapterLink) (bool, error)
	ListLinks(ctx context.Context, projectID string, filter store.LinkFilter) ([]store.ChapterLink, error)
	DeleteProjectLinks(ctx context.Context, projectID string) error
	InsertThinkingChain(ctx context.Context, chain store.ThinkingChain) error
	ListThinkingChains(ctx context.Context, projectID, chapterID, chainType string) ([]store.ThinkingChain, error)

	InsertVocabularyWord(ctx context.Context, word store.VocabularyWord) error
	ListVocabularyWords(ctx context.Context) ([]store.VocabularyWord, error)
	UpdateVocabularyWord(ctx context.Context, word store.VocabularyWord) error
	DeleteVocabularyWord(ctx context.Context, wordID string) error
	BumpVocabularyUsage(ctx context.Context, words []string) error
	UpsertToneAnalysis(ctx context.Context, analysis store.ToneAnalysis) error
	GetToneAnalysis(ctx context.Context, chapterID string) (store.ToneAnalysis, error)
	UpsertPatternCache(ctx context.Context, patternCache store.PatternCache) error
	ListPatternCaches(ctx context.Context, projectID string) ([]store.PatternCache, error)
}

type refreshStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type archiveStore interface {
	EnsureProjectRepo(projectID, title, author string) error
	CommitChapter(projectID string, chapter store.Chapter, author, message string) (archive.CommitInfo, error)
	RemoveChapter(projectID, chapterID, author string) error
	History(projectID, chapterID string, limit int) ([]archive.CommitInfo, error)
	ChapterAtCommit(projectID, chapterID, hash string) (string, error)
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  refreshStore
	passwords *authpw.Service
	archive   archiveStore
	search    *search.Service
	storage   *export.Storage
	email     *email.Service
	ai        ai.Client
	extractor *extract.Extractor
	detector  *detect.Detector
	linker    *links.Analyzer
	cache     *cache.Cache
}

// New wires a service that keeps refresh sessions in Postgres.
func New(cfg config.Config, dataStore *store.PostgresStore, archiveSvc *archive.Service, searchSvc *search.Service) *Service {
	return NewWithSessionStore(cfg, dataStore, dataStore, archiveSvc, searchSvc)
}

// NewWithSessionStore wires a service with an explicit refresh session store,
// typically Redis.
func NewWithSessionStore(cfg config.Config, ds dataStore, sessions refreshStore, archiveSvc archiveStore, searchSvc *search.Service) *Service {
	s := &Service{
		cfg:       cfg,
		store:     ds,
		sessions:  sessions,
		passwords: authpw.NewService(ds),
		archive:   archiveSvc,
		search:    searchSvc,
	}
	s.extractor = extract.New(nil)
	s.detector = detect.New(nil)
	s.linker = links.New(nil)
	return s
}

// WithAI routes extraction, link analysis and conflict verification through
// the given client. nil keeps the rule-based paths.
func (s *Service) WithAI(client ai.Client) *Service {
	s.ai = client
	s.extractor = extract.New(client)
	s.linker = links.New(client)
	if client != nil {
		s.detector = detect.New(&aiVerifier{client: client})
	}
	return s
}

func (s *Service) WithEmail(svc *email.Service) *Service {
	s.email = svc
	return s
}

func (s *Service) WithExportStorage(storage *export.Storage) *Service {
	s.storage = storage
	return s
}

func (s *Service) WithCache(c *cache.Cache) *Service {
	s.cache = c
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) SMTPConfigured() bool {
	return s.email != nil && s.email.IsConfigured()
}

// Bootstrap seeds the system vocabulary on first start.
func (s *Service) Bootstrap(ctx context.Context) error {
	words, err := s.store.ListVocabularyWords(ctx)
	if err != nil {
		return err
	}
	if len(words) > 0 {
		return nil
	}
	for _, seed := range systemVocabulary {
		word := seed
		word.ID = util.NewID("voc")
		word.IsSystem = true
		if err := s.store.InsertVocabularyWord(ctx, word); err != nil {
			return err
		}
	}
	return nil
}

var systemVocabulary = []store.VocabularyWord{
	{Word: "very", Category: "critical", Severity: "high", Alternatives: []string{"deeply", "sharply", "utterly"}},
	{Word: "really", Category: "critical", Severity: "high", Alternatives: []string{"truly", "genuinely"}},
	{Word: "suddenly", Category: "warning", Severity: "medium", Alternatives: []string{"without warning", "at once"}},
	{Word: "just", Category: "warning", Severity: "medium", Alternatives: []string{"merely", "simply"}},
	{Word: "felt", Category: "emotional", Severity: "medium", Alternatives: []string{"sensed", "noticed"}},
	{Word: "beautiful", Category: "scene", Severity: "low", Alternatives: []string{"luminous", "striking"}},
	{Word: "however", Category: "transition", Severity: "low", Alternatives: []string{"yet", "still"}},
	{Word: "meanwhile", Category: "transition", Severity: "low", Alternatives: []string{"elsewhere", "at the same time"}},
}

func (s *Service) SignUp(ctx context.Context, emailAddr, password, displayName string) (Session, error) {
	user, err := s.passwords.SignUp(ctx, authpw.SignUpRequest{
		Email:       emailAddr,
		Password:    password,
		DisplayName: displayName,
	})
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, emailAddr, password string) (Session, error) {
	user, err := s.passwords.SignIn(ctx, authpw.SignInRequest{
		Email:    emailAddr,
		Password: password,
	})
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

// Refresh rotates the refresh token and issues a fresh access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.AuthSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user, now.Add(s.cfg.RefreshTTL)); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.AuthSecret), token)
	if err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

// Logout revokes the refresh token. Access tokens are short-lived and expire
// on their own.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
}
