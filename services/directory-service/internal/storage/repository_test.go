package storage

import (
	"context"
	"errors"
	"testing"
)

func TestParseSeed(t *testing.T) {
	got := ParseSeed(" L1:Ada Counsel:family , L2 ,,:nameless")
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %+v", got)
	}
	if got[0].ID != "L1" || got[0].Name != "Ada Counsel" || got[0].Specialization != "family" || !got[0].Active {
		t.Fatalf("unexpected first entry %+v", got[0])
	}
	if got[1].ID != "L2" || got[1].Name != "" {
		t.Fatalf("unexpected second entry %+v", got[1])
	}
}

func TestMemoryUpsert(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if _, err := m.Get(ctx, "L1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	saved, err := m.Upsert(ctx, Lawyer{ID: "L1", Name: "Ada"})
	if err != nil || saved.UpdatedAt.IsZero() {
		t.Fatalf("Upsert: %+v %v", saved, err)
	}
	if got, _ := m.Get(ctx, "L1"); got.Name != "Ada" {
		t.Fatalf("unexpected %+v", got)
	}
}
