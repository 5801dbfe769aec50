package password

import (
	"errors"
	"testing"
)

func TestCheck_Defaults(t *testing.T) {
	if err := DefaultConfig().Check(); err != nil {
		t.Fatalf("DefaultConfig invalid: %v", err)
	}
	if err := FastConfig().Check(); err != nil {
		t.Fatalf("FastConfig invalid: %v", err)
	}
}

func TestCheck_Rejects(t *testing.T) {
	cases := map[string]func(*Config){
		"low memory":     func(c *Config) { c.Params.MemoryKiB = 1024 },
		"zero iter":      func(c *Config) { c.Params.Iterations = 0 },
		"zero parallel":  func(c *Config) { c.Params.Parallelism = 0 },
		"short salt":     func(c *Config) { c.Params.SaltLength = 4 },
		"long key":       func(c *Config) { c.Params.KeyLength = 128 },
		"min over max":   func(c *Config) { c.Policy.MinLength = 200 },
		"zero minlength": func(c *Config) { c.Policy.MinLength = 0 },
	}

	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Check(); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}
}
