package embed

import (
	"context"
	"testing"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestEmbed_RejectsEmptyText(t *testing.T) {
	svc, err := New("sk-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Embed(context.Background(), "   "); err == nil {
		t.Error("expected error for blank text, got nil")
	}
}

func TestBatchEmbed_EmptyInput(t *testing.T) {
	svc, err := New("sk-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := svc.BatchEmbed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected 0 results, got %d", len(out))
	}
}
