// Package config loads daemon configuration from the environment, with
// sensible defaults for every setting (§6 "Environment variables").
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/oho/chunking-daemon/internal/chunk"
)

// Config holds every environment-tunable setting for the daemon.
type Config struct {
	Port                int    `json:"port"`
	ChunkSize           int    `json:"chunk_size"`
	ChunkOverlap        int    `json:"chunk_overlap"`
	MinCharsPerSentence int    `json:"min_chars_per_sentence"`
	EmbeddingServiceURL string `json:"embedding_service_url"`
	MaxConcurrentJobs   int    `json:"max_concurrent_jobs"`
	ActiveProfile       string `json:"active_profile"`
	ProfilesFile        string `json:"profiles_file"`
	LogLevel            string `json:"log_level"`

	MaxContentSize   int64 `json:"-"`
	SinkBatchSize    int   `json:"-"`
	SinkTimeoutSecs  int   `json:"-"`
	ParseTimeoutSecs int   `json:"-"`
}

func DefaultConfig() Config {
	return Config{
		Port:                3017,
		ChunkSize:           512,
		ChunkOverlap:        50,
		MinCharsPerSentence: 12,
		EmbeddingServiceURL: "",
		MaxConcurrentJobs:   4,
		ActiveProfile:       "default",
		LogLevel:            "info",
		MaxContentSize:      10 * 1024 * 1024,
		SinkBatchSize:       50,
		SinkTimeoutSecs:     30,
		ParseTimeoutSecs:    60,
	}
}

// Load builds a Config from DefaultConfig overridden by environment
// variables (§6). Malformed numeric values fall back to the default rather
// than failing startup.
func Load() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
	if v := os.Getenv("CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ChunkSize = n
		}
	}
	if v := os.Getenv("CHUNK_OVERLAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ChunkOverlap = n
		}
	}
	if v := os.Getenv("MIN_CHARS_PER_SENTENCE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MinCharsPerSentence = n
		}
	}
	if v := os.Getenv("EMBEDDING_SERVICE_URL"); v != "" {
		cfg.EmbeddingServiceURL = v
	}
	if v := os.Getenv("MAX_CONCURRENT_JOBS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxConcurrentJobs = n
		}
	}
	if v := os.Getenv("ACTIVE_PROFILE"); v != "" {
		cfg.ActiveProfile = v
	}
	if v := os.Getenv("PROFILES_FILE"); v != "" {
		cfg.ProfilesFile = v
	}
	if v := os.Getenv("RUST_LOG"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	return cfg
}

// ChunkConfig projects the daemon-wide defaults into a chunk.Config, used
// to seed the "default" profile.
func (c Config) ChunkConfig() chunk.Config {
	return chunk.Config{
		ChunkSize:           c.ChunkSize,
		ChunkOverlap:        c.ChunkOverlap,
		MinCharsPerSentence: c.MinCharsPerSentence,
	}
}

// profileFile is the on-disk shape of an optional profiles config file
// (§4.6, §6 "no persisted state on disk beyond an optional profile config
// file read at startup").
type profileFile struct {
	Profiles []chunk.Profile `json:"profiles"`
}

// LoadProfiles reads the optional profiles file named by ProfilesFile. An
// empty path is not an error; it simply means no extra profiles.
func (c Config) LoadProfiles() ([]chunk.Profile, error) {
	if c.ProfilesFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.ProfilesFile)
	if err != nil {
		return nil, fmt.Errorf("reading profiles file %s: %w", c.ProfilesFile, err)
	}
	var pf profileFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing profiles file %s: %w", c.ProfilesFile, err)
	}
	return pf.Profiles, nil
}
