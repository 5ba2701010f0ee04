package cli

import (
	"errors"
	"io/fs"
	"time"

	"go.uber.org/zap"

	"boardquiz-service/internal/app"
	"boardquiz-service/internal/config"
	"boardquiz-service/internal/deck"
	"boardquiz-service/internal/game"
	"boardquiz-service/internal/logging"
	"boardquiz-service/internal/quizgen"
)

// loadConfig reads the YAML file, falling back to the in-memory defaults when it does not exist.
func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

func newLogger(cfg config.Config) *zap.Logger {
	return logging.Must(cfg.Log.Mode, cfg.Log.Level)
}

func generatorConfig(cfg config.Config) quizgen.Config {
	gc := quizgen.DefaultConfig()
	g := cfg.Generation
	if g.Language != "" {
		gc.Language = g.Language
	}
	if g.Temperature > 0 {
		gc.Temperature = g.Temperature
	}
	if g.MaxOutputTokens > 0 {
		gc.MaxOutputTokens = g.MaxOutputTokens
	}
	if g.MaxIterations > 0 {
		gc.MaxIterations = g.MaxIterations
	}
	gc.Budget = config.TTLDuration(g.Budget, gc.Budget)
	gc.Pacing = config.TTLDuration(g.Pacing, gc.Pacing)
	gc.InitialBackoff = config.TTLDuration(g.InitialBackoff, gc.InitialBackoff)
	gc.MaxBackoff = config.TTLDuration(g.MaxBackoff, gc.MaxBackoff)
	return gc
}

func sessionConfig(cfg config.Config) app.SessionConfig {
	sc := app.DefaultSessionConfig()
	if cfg.Game.Cols > 1 && cfg.Game.Rows > 2 {
		sc.Tiles = game.DefaultLayout(game.PerimeterLength(cfg.Game.Cols, cfg.Game.Rows))
	}
	if cfg.Game.ActivityMinutes > 0 {
		sc.DefaultMinutes = deck.ClampMinutes(cfg.Game.ActivityMinutes)
	}
	sc.DiceAnimation = config.TTLDuration(cfg.Game.DiceAnimation, sc.DiceAnimation)
	sc.SkipNotice = config.TTLDuration(cfg.Game.SkipNotice, sc.SkipNotice)
	return sc
}

func geminiTimeout(cfg config.Config) time.Duration {
	return config.TTLDuration(cfg.Gemini.Timeout, 90*time.Second)
}
