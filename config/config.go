// Package config holds the engine configuration loaded from JSON.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nucleus-emu/nucleus/cache"
	"github.com/nucleus-emu/nucleus/emu"
	"github.com/nucleus-emu/nucleus/ppu"
	"github.com/nucleus-emu/nucleus/recompiler"
)

// DecodeCacheConfig sets the geometry of the interpreter's decode cache.
// A zero size disables the cache.
type DecodeCacheConfig struct {
	Size          int `json:"size"`
	Associativity int `json:"associativity"`
}

// Config holds the engine settings.
type Config struct {
	// Translator selects the execution mode: "interpreter" or "recompiler".
	// Default: "interpreter".
	Translator string `json:"translator"`

	// PageSize is the malloc page size passed to threads in r12.
	// Default: 1 MiB.
	PageSize uint32 `json:"page_size"`

	// MaxInstructions bounds interpreter execution. 0 means no limit.
	MaxInstructions uint64 `json:"max_instructions"`

	// MaxFunctionLength bounds the instructions scanned when translating a
	// function. Default: 0x4000.
	MaxFunctionLength int `json:"max_function_length"`

	// DecodeCache configures the interpreter decode cache.
	DecodeCache DecodeCacheConfig `json:"decode_cache"`

	// Verbosity is the logging V-level.
	Verbosity int `json:"verbosity"`
}

// Default returns a Config with default values.
func Default() *Config {
	dc := cache.DefaultConfig()
	return &Config{
		Translator:        ppu.ModeInterpreter.String(),
		PageSize:          ppu.DefaultPageSize,
		MaxFunctionLength: recompiler.DefaultMaxFunctionLength,
		DecodeCache: DecodeCacheConfig{
			Size:          dc.Size,
			Associativity: dc.Associativity,
		},
	}
}

// Load loads a Config from a JSON file. Missing keys keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// Save writes the Config to a JSON file.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that all values are usable.
func (c *Config) Validate() error {
	if _, err := ppu.ParseMode(c.Translator); err != nil {
		return fmt.Errorf("translator: %w", err)
	}
	if c.PageSize == 0 || c.PageSize&(c.PageSize-1) != 0 {
		return fmt.Errorf("page_size must be a power of two")
	}
	if c.MaxFunctionLength <= 0 {
		return fmt.Errorf("max_function_length must be > 0")
	}
	if c.Verbosity < 0 {
		return fmt.Errorf("verbosity must be >= 0")
	}

	dc := c.DecodeCache
	if dc.Size < 0 {
		return fmt.Errorf("decode_cache.size must be >= 0")
	}
	if dc.Size > 0 {
		if dc.Associativity <= 0 {
			return fmt.Errorf("decode_cache.associativity must be > 0")
		}
		if dc.Size%(cache.LineSize*dc.Associativity) != 0 {
			return fmt.Errorf("decode_cache.size must be a multiple of %d * associativity", cache.LineSize)
		}
	}

	return nil
}

// Mode returns the parsed translator mode. Call Validate first.
func (c *Config) Mode() ppu.Mode {
	m, _ := ppu.ParseMode(c.Translator)
	return m
}

// InterpreterOptions returns the interpreter options the config implies.
func (c *Config) InterpreterOptions() []emu.InterpreterOption {
	var opts []emu.InterpreterOption
	if c.MaxInstructions > 0 {
		opts = append(opts, emu.WithMaxInstructions(c.MaxInstructions))
	}
	if c.DecodeCache.Size > 0 {
		opts = append(opts, emu.WithDecodeCache(cache.Config{
			Size:          c.DecodeCache.Size,
			Associativity: c.DecodeCache.Associativity,
		}))
	}
	return opts
}

// TranslatorOptions returns the translator options the config implies.
func (c *Config) TranslatorOptions() []recompiler.Option {
	return []recompiler.Option{recompiler.WithMaxFunctionLength(c.MaxFunctionLength)}
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
