package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"boardquiz-service/internal/deck"
	"boardquiz-service/internal/domain"
	"boardquiz-service/internal/quizgen"
)

var (
	// ErrGenerationInProgress rejects a second generation while one is running.
	ErrGenerationInProgress = errors.New("deck generation already in progress")
	// ErrNoAPIKey means neither the session nor the server has a provider key.
	ErrNoAPIKey = errors.New("no API key configured")
	// ErrNoDeck is returned when exporting or saving before any deck was applied.
	ErrNoDeck = errors.New("no deck applied")
	// ErrNoLibrary is returned when the deck library is not configured.
	ErrNoLibrary = errors.New("deck library not configured")
)

const DefaultModel = "gemini-2.0-flash"

// DefaultGenerationSettings are used until a session saves its own.
func DefaultGenerationSettings() domain.GenerationSettings {
	return domain.GenerationSettings{
		Model:           DefaultModel,
		TargetCount:     40,
		QuestionMode:    domain.ModeMultipleChoiceOnly,
		ShowAnswer:      true,
		ActivityMinutes: deck.DefaultActivityMinutes,
		LearnerLevel:    quizgen.LevelElementaryHigh,
	}
}

// NormalizeSettings clamps counts and minutes and fills unset fields.
func NormalizeSettings(s domain.GenerationSettings) domain.GenerationSettings {
	def := DefaultGenerationSettings()
	if strings.TrimSpace(s.Model) == "" {
		s.Model = def.Model
	}
	if s.TargetCount == 0 {
		s.TargetCount = def.TargetCount
	}
	s.TargetCount = quizgen.ClampTarget(s.TargetCount)
	if s.QuestionMode != domain.ModeMixed {
		s.QuestionMode = domain.ModeMultipleChoiceOnly
	}
	s.ActivityMinutes = deck.ClampMinutes(s.ActivityMinutes)
	switch s.LearnerLevel {
	case quizgen.LevelElementaryLow, quizgen.LevelElementaryHigh, quizgen.LevelMiddle, quizgen.LevelHigh:
	default:
		s.LearnerLevel = def.LearnerLevel
	}
	return s
}

// Options wires a GameService.
type Options struct {
	Sessions   SessionRepository
	State      StateStore
	Library    DeckLibrary // optional
	Completers CompleterSource
	Logger     *zap.Logger
	Session    SessionConfig
	Generator  quizgen.Config
	DefaultKey string
	Clock      quizgen.Clock // optional, for tests
}

// GameService contains the board game use cases.
type GameService struct {
	sessions   SessionRepository
	state      StateStore
	library    DeckLibrary
	completers CompleterSource
	log        *zap.Logger
	sessionCfg SessionConfig
	genCfg     quizgen.Config
	defaultKey string
	clock      quizgen.Clock
}

func NewGameService(opts Options) *GameService {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	genCfg := opts.Generator
	if genCfg.MaxIterations == 0 {
		genCfg = quizgen.DefaultConfig()
	}
	clock := opts.Clock
	if clock == nil {
		clock = quizgen.SystemClock()
	}
	return &GameService{
		sessions:   opts.Sessions,
		state:      opts.State,
		library:    opts.Library,
		completers: opts.Completers,
		log:        log.Named("game"),
		sessionCfg: opts.Session,
		genCfg:     genCfg,
		defaultKey: opts.DefaultKey,
		clock:      clock,
	}
}

// Open returns the session, creating it and restoring its last deck on first use.
func (s *GameService) Open(ctx context.Context, sessionID string) (*GameSession, error) {
	session, created := s.sessions.GetOrCreate(sessionID, func() *GameSession {
		return NewGameSession(sessionID, s.sessionCfg, s.log)
	})
	if !created {
		return session, nil
	}
	d, ok, err := s.state.LoadDeck(ctx, sessionID)
	if err != nil {
		s.log.Warn("restore deck failed", zap.String("session", sessionID), zap.Error(err))
		return session, nil
	}
	if ok {
		if err := deck.Validate(d); err != nil {
			s.log.Warn("stored deck is invalid, clearing", zap.String("session", sessionID), zap.Error(err))
			_ = s.state.ClearDeck(ctx, sessionID)
			return session, nil
		}
		session.applyDeck(d, false)
		s.log.Info("deck restored", zap.String("session", sessionID), zap.String("topic", d.Topic), zap.Int("items", len(d.Items)))
	}
	return session, nil
}

func (s *GameService) session(sessionID string) (*GameSession, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Subscribe returns a channel that receives session updates.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *GameService) Subscribe(_ context.Context, sessionID string) (<-chan Update, func(), error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// Leave drops the session once nobody is subscribed and nothing is generating.
func (s *GameService) Leave(_ context.Context, sessionID string) {
	s.sessions.DeleteIfIdle(sessionID)
}

func (s *GameService) StartGame(_ context.Context, sessionID string) (SessionState, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return SessionState{}, err
	}
	return session.Start(), nil
}

func (s *GameService) ResetGame(_ context.Context, sessionID string) (SessionState, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return SessionState{}, err
	}
	return session.Reset(), nil
}

func (s *GameService) Roll(_ context.Context, sessionID string) (SessionState, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return SessionState{}, err
	}
	return session.Roll()
}

func (s *GameService) SubmitAnswer(_ context.Context, sessionID string, selected int) (SessionState, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return SessionState{}, err
	}
	return session.SubmitAnswer(selected)
}

func (s *GameService) Acknowledge(_ context.Context, sessionID string) (SessionState, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return SessionState{}, err
	}
	return session.Acknowledge()
}

// ApplyDeck validates a deck, persists it as the session's last deck and then installs it.
// A deck that cannot be stored never reaches the board.
func (s *GameService) ApplyDeck(ctx context.Context, sessionID string, d domain.Deck, keepCursors bool) error {
	if err := deck.Validate(d); err != nil {
		return err
	}
	d.Settings.ActivityMinutes = deck.ClampMinutes(d.Settings.ActivityMinutes)
	session, err := s.session(sessionID)
	if err != nil {
		return err
	}
	if err := s.state.SaveDeck(ctx, sessionID, d); err != nil {
		return fmt.Errorf("persist deck: %w", err)
	}
	session.applyDeck(d, keepCursors)
	s.log.Info("deck applied", zap.String("session", sessionID), zap.String("topic", d.Topic), zap.Int("items", len(d.Items)))
	return nil
}

// ImportDeck decodes a deck file and applies it. Invalid files are rejected whole.
func (s *GameService) ImportDeck(ctx context.Context, sessionID string, data []byte) (domain.Deck, error) {
	d, err := deck.DecodePack(data)
	if err != nil {
		return domain.Deck{}, err
	}
	if err := s.ApplyDeck(ctx, sessionID, d, false); err != nil {
		return domain.Deck{}, err
	}
	return d, nil
}

// ExportDeck renders the applied deck as a deck file with its download name.
func (s *GameService) ExportDeck(_ context.Context, sessionID string) (string, []byte, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return "", nil, err
	}
	d, ok := session.Deck()
	if !ok {
		return "", nil, ErrNoDeck
	}
	data, err := deck.EncodePack(d)
	if err != nil {
		return "", nil, err
	}
	return deck.ExportFilename(d.Topic, s.clock.Now()), data, nil
}

// Settings returns the stored generation settings or the defaults.
func (s *GameService) Settings(ctx context.Context, sessionID string) (domain.GenerationSettings, error) {
	st, ok, err := s.state.LoadSettings(ctx, sessionID)
	if err != nil {
		return domain.GenerationSettings{}, err
	}
	if !ok {
		return DefaultGenerationSettings(), nil
	}
	return NormalizeSettings(st), nil
}

func (s *GameService) SaveSettings(ctx context.Context, sessionID string, st domain.GenerationSettings) (domain.GenerationSettings, error) {
	st = NormalizeSettings(st)
	if err := s.state.SaveSettings(ctx, sessionID, st); err != nil {
		return domain.GenerationSettings{}, err
	}
	return st, nil
}

func (s *GameService) ClearSettings(ctx context.Context, sessionID string) error {
	return s.state.ClearSettings(ctx, sessionID)
}

func (s *GameService) SaveSecret(ctx context.Context, sessionID, secret string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return ErrNoAPIKey
	}
	return s.state.SaveSecret(ctx, sessionID, secret)
}

func (s *GameService) ClearSecret(ctx context.Context, sessionID string) error {
	return s.state.ClearSecret(ctx, sessionID)
}

// HasSecret reports whether the session stored its own key.
func (s *GameService) HasSecret(ctx context.Context, sessionID string) (bool, error) {
	_, err := s.state.LoadSecret(ctx, sessionID)
	if errors.Is(err, domain.ErrNoSecret) {
		return false, nil
	}
	return err == nil, err
}

func (s *GameService) apiKey(ctx context.Context, sessionID string) (string, error) {
	key, err := s.state.LoadSecret(ctx, sessionID)
	switch {
	case err == nil && key != "":
		return key, nil
	case err != nil && !errors.Is(err, domain.ErrNoSecret):
		return "", err
	}
	if s.defaultKey == "" {
		return "", ErrNoAPIKey
	}
	return s.defaultKey, nil
}

// GenerateRequest is a synchronous deck generation.
type GenerateRequest struct {
	Topic    string
	APIKey   string
	Settings domain.GenerationSettings
	Progress func(quizgen.Progress)
}

// GenerateDeck runs the batched generator and packages the result as a deck.
func (s *GameService) GenerateDeck(ctx context.Context, req GenerateRequest) (domain.Deck, error) {
	if s.completers == nil {
		return domain.Deck{}, ErrNoAPIKey
	}
	settings := NormalizeSettings(req.Settings)
	completer, release, err := s.completers(ctx, req.APIKey)
	if err != nil {
		return domain.Deck{}, err
	}
	defer release()

	gen := quizgen.NewGeneratorWithClock(completer, s.log, s.genCfg, s.clock)
	items, err := gen.Generate(ctx, quizgen.Request{
		Topic:        strings.TrimSpace(req.Topic),
		Target:       settings.TargetCount,
		Model:        settings.Model,
		Mode:         settings.QuestionMode,
		LearnerLevel: settings.LearnerLevel,
		Progress:     req.Progress,
	})
	if err != nil {
		return domain.Deck{}, err
	}
	return domain.Deck{
		Version:   deck.PackVersion,
		Topic:     strings.TrimSpace(req.Topic),
		CreatedAt: s.clock.Now().UTC().Format(time.RFC3339),
		Model:     settings.Model,
		Settings: domain.DeckSettings{
			ShowAnswer:      settings.ShowAnswer,
			QuestionMode:    settings.QuestionMode,
			ActivityMinutes: settings.ActivityMinutes,
			LearnerLevel:    settings.LearnerLevel,
		},
		Items: items,
	}, nil
}

// StartGeneration generates a deck for the session in the background and applies it
// when done. Progress and the result reach subscribers as updates. Only one generation
// runs per session; a second call gets ErrGenerationInProgress.
func (s *GameService) StartGeneration(ctx context.Context, sessionID, topic string) error {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return quizgen.ErrEmptyTopic
	}
	session, err := s.session(sessionID)
	if err != nil {
		return err
	}
	key, err := s.apiKey(ctx, sessionID)
	if err != nil {
		return err
	}
	settings, err := s.Settings(ctx, sessionID)
	if err != nil {
		return err
	}

	genCtx, ok := session.beginGeneration(context.WithoutCancel(ctx))
	if !ok {
		return ErrGenerationInProgress
	}
	log := s.log.With(zap.String("session", sessionID), zap.String("topic", topic))
	go func() {
		// everyone may have left while generating; the deck is persisted either way
		defer s.sessions.DeleteIfIdle(sessionID)
		d, err := s.GenerateDeck(genCtx, GenerateRequest{
			Topic:    topic,
			APIKey:   key,
			Settings: settings,
			Progress: session.reportProgress,
		})
		if err != nil {
			log.Warn("generation failed", zap.Error(err))
			session.endGeneration(UpdateGenFailed, generationMessage(err))
			return
		}
		if err := s.ApplyDeck(genCtx, sessionID, d, false); err != nil {
			log.Warn("apply generated deck failed", zap.Error(err))
			session.endGeneration(UpdateGenFailed, err.Error())
			return
		}
		session.endGeneration(UpdateGenerated, fmt.Sprintf("%d questions ready", len(d.Items)))
	}()
	return nil
}

// CancelGeneration stops the session's running generation, if any.
func (s *GameService) CancelGeneration(_ context.Context, sessionID string) (bool, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return false, err
	}
	return session.CancelGeneration(), nil
}

func generationMessage(err error) string {
	switch {
	case errors.Is(err, quizgen.ErrRateLimitExhausted):
		return "The AI service is busy. Wait a few minutes or request fewer questions."
	case errors.Is(err, quizgen.ErrNoUsableItems):
		return "The AI returned no usable questions. Try again or change the topic."
	case errors.Is(err, context.Canceled):
		return "Generation cancelled."
	default:
		return err.Error()
	}
}

// CheckAI sends a tiny generation request to confirm the key and model work.
func (s *GameService) CheckAI(ctx context.Context, sessionID, model string) (int, error) {
	key, err := s.apiKey(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if s.completers == nil {
		return 0, ErrNoAPIKey
	}
	completer, release, err := s.completers(ctx, key)
	if err != nil {
		return 0, err
	}
	defer release()
	if model == "" {
		model = DefaultModel
	}
	return quizgen.Probe(ctx, completer, s.clock, model, s.log)
}

// SaveToLibrary stores the applied deck under a new id.
func (s *GameService) SaveToLibrary(ctx context.Context, sessionID string) (string, error) {
	if s.library == nil {
		return "", ErrNoLibrary
	}
	session, err := s.session(sessionID)
	if err != nil {
		return "", err
	}
	d, ok := session.Deck()
	if !ok {
		return "", ErrNoDeck
	}
	id := uuid.NewString()
	if err := s.library.SaveDeck(ctx, id, d); err != nil {
		return "", err
	}
	return id, nil
}

// LoadFromLibrary applies a library deck to the session.
func (s *GameService) LoadFromLibrary(ctx context.Context, sessionID, deckID string) (domain.Deck, error) {
	if s.library == nil {
		return domain.Deck{}, ErrNoLibrary
	}
	d, err := s.library.GetDeck(ctx, deckID)
	if err != nil {
		return domain.Deck{}, err
	}
	if err := s.ApplyDeck(ctx, sessionID, d, false); err != nil {
		return domain.Deck{}, err
	}
	return d, nil
}
