package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"boardquiz-service/internal/app"
	"boardquiz-service/internal/config"
	"boardquiz-service/internal/deck"
	"boardquiz-service/internal/domain"
	"boardquiz-service/internal/infra/gemini"
	"boardquiz-service/internal/infra/memory"
	"boardquiz-service/internal/quizgen"
)

type generateFlags struct {
	topic      string
	count      int
	model      string
	mode       string
	level      string
	minutes    float64
	hideAnswer bool
	out        string
}

// NewGenerateCmd generates a deck file from the command line.
func NewGenerateCmd(configPath *string) *cobra.Command {
	f := &generateFlags{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a deck file for a topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, *configPath, f)
		},
	}
	cmd.Flags().StringVar(&f.topic, "topic", "", "lesson topic (required)")
	cmd.Flags().IntVar(&f.count, "count", 40, "number of questions")
	cmd.Flags().StringVar(&f.model, "model", "", "model name (defaults to the config file)")
	cmd.Flags().StringVar(&f.mode, "mode", string(domain.ModeMultipleChoiceOnly), "question mode: mcq or mcq_ox")
	cmd.Flags().StringVar(&f.level, "level", quizgen.LevelElementaryHigh, "learner level")
	cmd.Flags().Float64Var(&f.minutes, "minutes", deck.DefaultActivityMinutes, "activity time in minutes")
	cmd.Flags().BoolVar(&f.hideAnswer, "hide-answer", false, "do not reveal answers after grading")
	cmd.Flags().StringVar(&f.out, "out", "", "output file (defaults to the export file name)")
	_ = cmd.MarkFlagRequired("topic")
	return cmd
}

func runGenerate(cmd *cobra.Command, configPath string, f *generateFlags) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	defer func() { _ = log.Sync() }()
	if cfg.Gemini.APIKey == "" {
		return app.ErrNoAPIKey
	}

	model := f.model
	if model == "" {
		model = cfg.Gemini.Model
	}
	service := offlineService(cfg, log)
	d, err := service.GenerateDeck(cmd.Context(), app.GenerateRequest{
		Topic:  f.topic,
		APIKey: cfg.Gemini.APIKey,
		Settings: domain.GenerationSettings{
			Model:           model,
			TargetCount:     f.count,
			QuestionMode:    domain.QuestionMode(f.mode),
			ShowAnswer:      !f.hideAnswer,
			ActivityMinutes: f.minutes,
			LearnerLevel:    f.level,
		},
		Progress: func(p quizgen.Progress) {
			log.Info("generating", zap.Int("batch", p.Batch), zap.Int("produced", p.Produced), zap.Int("target", p.Target))
		},
	})
	if err != nil {
		return err
	}

	data, err := deck.EncodePack(d)
	if err != nil {
		return err
	}
	out := f.out
	if out == "" {
		out = deck.ExportFilename(d.Topic, time.Now())
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d questions written to %s\n", len(d.Items), out)
	return nil
}

// NewValidateCmd checks a deck file without starting anything.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <deck.json>",
		Short: "Validate a deck file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			d, err := deck.DecodePack(data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d questions (%d mcq, %d ox), %.0f minutes\n",
				d.Topic, len(d.Items), d.Count(domain.KindMultipleChoice), d.Count(domain.KindTrueFalse),
				deck.ClampMinutes(d.Settings.ActivityMinutes))
			return nil
		},
	}
}

// NewCheckAICmd sends a two-question probe to confirm the key and model work.
func NewCheckAICmd(configPath *string) *cobra.Command {
	var model string
	cmd := &cobra.Command{
		Use:   "check-ai",
		Short: "Check that the configured API key can generate questions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			log := newLogger(cfg)
			defer func() { _ = log.Sync() }()
			if model == "" {
				model = cfg.Gemini.Model
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()
			n, err := offlineService(cfg, log).CheckAI(ctx, "cli", model)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "AI check passed: %d questions returned\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "model name (defaults to the config file)")
	return cmd
}

// offlineService is a game service with in-memory stores, enough for generation and probing.
func offlineService(cfg config.Config, log *zap.Logger) *app.GameService {
	return app.NewGameService(app.Options{
		Sessions:   memory.NewSessionStore(),
		State:      memory.NewStateStore(),
		Completers: gemini.Source(log, geminiTimeout(cfg)),
		Logger:     log,
		Generator:  generatorConfig(cfg),
		DefaultKey: cfg.Gemini.APIKey,
	})
}
