package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"boardquiz-service/internal/config"
)

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deck.json")
	data := `{"topic":"Plants","settings":{"activityMinutes":400},"deck":[
		{"kind":"mcq","question":"Where does photosynthesis happen?","choices":["Leaves","Roots","Soil","Air"],"answerIndex":0},
		{"kind":"ox","question":"Plants need light.","choices":["O","X"],"answerIndex":0}]}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"validate", path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "Plants: 2 questions (1 mcq, 1 ox), 180 minutes") {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestValidateCommandRejectsBadDeck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.json")
	if err := os.WriteFile(path, []byte(`{"topic":"","deck":[]}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"validate", path})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Fatalf("expected default port, got %q", cfg.Server.Port)
	}
}

func TestConfigMapping(t *testing.T) {
	var cfg config.Config
	cfg.Game.Cols, cfg.Game.Rows = 8, 5
	cfg.Game.ActivityMinutes = 3
	cfg.Game.DiceAnimation = "500ms"
	cfg.Generation.Pacing = "2s"
	cfg.Generation.MaxIterations = 10

	sc := sessionConfig(cfg)
	if len(sc.Tiles) != 22 {
		t.Fatalf("tiles = %d, want 22", len(sc.Tiles))
	}
	if sc.DefaultMinutes != 3 || sc.DiceAnimation != 500*time.Millisecond {
		t.Fatalf("unexpected session config %+v", sc)
	}
	if sc.SkipNotice != 1400*time.Millisecond {
		t.Fatalf("skip notice should keep its default, got %v", sc.SkipNotice)
	}

	gc := generatorConfig(cfg)
	if gc.Pacing != 2*time.Second || gc.MaxIterations != 10 {
		t.Fatalf("unexpected generator config %+v", gc)
	}
	if gc.InitialBackoff != 5*time.Second {
		t.Fatalf("initial backoff should keep its default, got %v", gc.InitialBackoff)
	}
}
