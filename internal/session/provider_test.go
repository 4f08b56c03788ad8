package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewStore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		provider string
		wantErr  bool
	}{
		{name: "default provider", provider: "", wantErr: false},
		{name: "memory provider", provider: "memory", wantErr: false},
		{name: "unsupported provider", provider: "unsupported", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store, err := NewStore(context.Background(), Config{Provider: tt.provider})
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if store == nil {
				t.Fatalf("expected store, got nil")
			}
			if err := store.Close(); err != nil {
				t.Fatalf("expected close without error, got %v", err)
			}
		})
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()
	data := &Data{UserID: uuid.New(), Guest: true}

	store.Set(ctx, "live", data, time.Minute)
	store.Set(ctx, "dead", data, -time.Second)

	if _, ok := store.Get(ctx, "live"); !ok {
		t.Fatal("expected live session to be found")
	}
	if _, ok := store.Get(ctx, "dead"); ok {
		t.Fatal("expected expired session to be gone")
	}
}

func TestMemoryStoreClonesData(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()
	data := &Data{UserID: uuid.New(), Name: "before"}

	store.Set(ctx, "k", data, time.Minute)
	data.Name = "after"

	got, ok := store.Get(ctx, "k")
	if !ok {
		t.Fatal("expected session to be found")
	}
	if got.Name != "before" {
		t.Fatalf("stored session mutated through caller reference: %q", got.Name)
	}
}
