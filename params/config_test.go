package params

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPresetsValidate(t *testing.T) {
	for _, name := range []string{"tiny", "simple"} {
		cfg, err := Preset(name)
		if err != nil {
			t.Fatalf("Preset(%q): %v", name, err)
		}
		if err := cfg.Validate(); err != nil {
			t.Fatalf("%s preset invalid: %v", name, err)
		}
	}
	if _, err := Preset("huge"); err == nil {
		t.Fatal("expected error for unknown preset")
	}
}

func TestDerivedSizes(t *testing.T) {
	cfg := Tiny()
	if cfg.HeadDim() != 48 {
		t.Fatalf("HeadDim = %d, want 48", cfg.HeadDim())
	}
	if cfg.HiddenSize() != 384 {
		t.Fatalf("HiddenSize = %d, want 384", cfg.HiddenSize())
	}
}

func TestValidateRejectsBadHeads(t *testing.T) {
	cfg := Tiny()
	cfg.NHead = 5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected divisibility error")
	}
	cfg = Tiny()
	cfg.Dropout = 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected dropout range error")
	}
	cfg = Tiny()
	cfg.BlockSize = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected BlockSize error")
	}
}

func TestLoadConfigOverlay(t *testing.T) {
	p := filepath.Join(t.TempDir(), "cfg.json")
	if err := os.WriteFile(p, []byte(`{"NLayer": 2, "LR": 0.01}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(p, Simple())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.NLayer != 2 || cfg.LR != 0.01 {
		t.Fatalf("overlay not applied: %+v", cfg)
	}
	if cfg.NEmbd != Simple().NEmbd {
		t.Fatalf("NEmbd changed: %d", cfg.NEmbd)
	}
}
