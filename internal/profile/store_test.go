package profile

import (
	"testing"

	"github.com/oho/chunking-daemon/internal/chunk"
)

func TestNewStoreDefaultsToDefaultProfile(t *testing.T) {
	s, err := NewStore(nil, "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if s.Active().Name != "default" {
		t.Errorf("expected active=default, got %s", s.Active().Name)
	}
}

func TestNewStoreUnknownActiveProfile(t *testing.T) {
	_, err := NewStore(nil, "does-not-exist")
	if err == nil {
		t.Fatal("expected an error for an unknown initial active profile")
	}
}

func TestNewStoreExtraProfilesOverrideBuiltins(t *testing.T) {
	extra := []chunk.Profile{{Name: "default", Description: "overridden", Config: chunk.Config{ChunkSize: 999}}}
	s, err := NewStore(extra, "default")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if s.Active().Config.ChunkSize != 999 {
		t.Errorf("expected the extra profile to override the built-in default, got %+v", s.Active())
	}
}

func TestSetActiveSwitchesProfile(t *testing.T) {
	s, _ := NewStore(nil, "default")
	p, err := s.SetActive("large")
	if err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if p.Name != "large" || s.Active().Name != "large" {
		t.Errorf("expected the active profile to become large, got %+v", s.Active())
	}
}

func TestSetActiveUnknownProfile(t *testing.T) {
	s, _ := NewStore(nil, "default")
	if _, err := s.SetActive("does-not-exist"); err == nil {
		t.Fatal("expected an error for an unknown profile name")
	}
	if s.Active().Name != "default" {
		t.Error("expected the active profile to remain unchanged after a failed SetActive")
	}
}

func TestUpsertAddsNewProfile(t *testing.T) {
	s, _ := NewStore(nil, "default")
	s.Upsert(chunk.Profile{Name: "custom", Config: chunk.Config{ChunkSize: 333}})

	p, ok := s.Get("custom")
	if !ok {
		t.Fatal("expected the upserted profile to be retrievable")
	}
	if p.Config.ChunkSize != 333 {
		t.Errorf("expected ChunkSize=333, got %d", p.Config.ChunkSize)
	}
	if s.Active().Name != "default" {
		t.Error("expected Upsert to not change which profile is active")
	}
}

func TestListIncludesBuiltinsAndExtras(t *testing.T) {
	s, _ := NewStore([]chunk.Profile{{Name: "custom"}}, "default")
	names := map[string]bool{}
	for _, p := range s.List() {
		names[p.Name] = true
	}
	for _, want := range []string{"default", "small", "large", "code", "custom"} {
		if !names[want] {
			t.Errorf("expected profile %q in List(), got %v", want, names)
		}
	}
}
