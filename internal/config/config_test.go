package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Port != 3017 {
		t.Errorf("expected port 3017, got %d", cfg.Port)
	}
	if cfg.ChunkSize != 512 {
		t.Errorf("expected chunk size 512, got %d", cfg.ChunkSize)
	}
	if cfg.ChunkOverlap != 50 {
		t.Errorf("expected chunk overlap 50, got %d", cfg.ChunkOverlap)
	}
	if cfg.MaxConcurrentJobs != 4 {
		t.Errorf("expected 4 max concurrent jobs, got %d", cfg.MaxConcurrentJobs)
	}
	if cfg.EmbeddingServiceURL != "" {
		t.Errorf("expected no embedding service url by default, got %s", cfg.EmbeddingServiceURL)
	}
}

func TestLoadEnvVars(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("CHUNK_SIZE", "256")
	t.Setenv("CHUNK_OVERLAP", "25")
	t.Setenv("MAX_CONCURRENT_JOBS", "8")
	t.Setenv("EMBEDDING_SERVICE_URL", "http://localhost:5555")

	cfg := Load()

	if cfg.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Port)
	}
	if cfg.ChunkSize != 256 {
		t.Errorf("expected chunk size 256, got %d", cfg.ChunkSize)
	}
	if cfg.ChunkOverlap != 25 {
		t.Errorf("expected chunk overlap 25, got %d", cfg.ChunkOverlap)
	}
	if cfg.MaxConcurrentJobs != 8 {
		t.Errorf("expected 8 max concurrent jobs, got %d", cfg.MaxConcurrentJobs)
	}
	if cfg.EmbeddingServiceURL != "http://localhost:5555" {
		t.Errorf("expected embedding service url override, got %s", cfg.EmbeddingServiceURL)
	}
}

func TestLoadMalformedEnvVarFallsBackToDefault(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "not-a-number")
	cfg := Load()
	if cfg.ChunkSize != 512 {
		t.Errorf("expected malformed CHUNK_SIZE to fall back to default 512, got %d", cfg.ChunkSize)
	}
}

func TestLoadProfilesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profiles.json")
	data := `{"profiles":[{"name":"custom","description":"custom profile","config":{"chunk_size":333,"chunk_overlap":10,"min_chars_per_sentence":12}}]}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("writing profiles file: %v", err)
	}

	cfg := DefaultConfig()
	cfg.ProfilesFile = path

	profiles, err := cfg.LoadProfiles()
	if err != nil {
		t.Fatalf("LoadProfiles: %v", err)
	}
	if len(profiles) != 1 || profiles[0].Name != "custom" {
		t.Fatalf("expected one profile named custom, got %+v", profiles)
	}
	if profiles[0].Config.ChunkSize != 333 {
		t.Errorf("expected chunk size 333, got %d", profiles[0].Config.ChunkSize)
	}
}

func TestLoadProfilesNoFileConfigured(t *testing.T) {
	cfg := DefaultConfig()
	profiles, err := cfg.LoadProfiles()
	if err != nil {
		t.Fatalf("LoadProfiles: %v", err)
	}
	if profiles != nil {
		t.Errorf("expected no profiles when ProfilesFile is unset, got %+v", profiles)
	}
}
