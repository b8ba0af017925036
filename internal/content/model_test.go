package content

import (
	"errors"
	"testing"
)

func TestNewSlugNormalizesInput(t *testing.T) {
	slug, err := NewSlug("  My-First-Post-2 ")
	if err != nil {
		t.Fatalf("unexpected slug error: %v", err)
	}
	if slug.String() != "my-first-post-2" {
		t.Fatalf("expected normalized slug, got %q", slug.String())
	}
}

func TestNewSlugRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: "   "},
		{name: "spaces-inside", input: "my post"},
		{name: "underscore", input: "my_post"},
		{name: "slash", input: "a/b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSlug(tt.input); !errors.Is(err, ErrInvalidSlug) {
				t.Fatalf("expected ErrInvalidSlug, got %v", err)
			}
		})
	}
}

func TestNewPostIDRejectsEmpty(t *testing.T) {
	if _, err := NewPostID(" "); !errors.Is(err, ErrInvalidPostID) {
		t.Fatalf("expected ErrInvalidPostID, got %v", err)
	}
}

func TestNewUnixTimestampRejectsNonPositive(t *testing.T) {
	if _, err := NewUnixTimestamp(0); !errors.Is(err, ErrInvalidTimestamp) {
		t.Fatalf("expected ErrInvalidTimestamp, got %v", err)
	}
	if _, err := NewUnixTimestamp(-5); !errors.Is(err, ErrInvalidTimestamp) {
		t.Fatalf("expected ErrInvalidTimestamp, got %v", err)
	}
}

func TestFormatReadTimeFloorsAtOneMinute(t *testing.T) {
	if got := FormatReadTime(0); got != "1 min read" {
		t.Fatalf("expected floor at one minute, got %q", got)
	}
	if got := FormatReadTime(7); got != "7 min read" {
		t.Fatalf("unexpected read time %q", got)
	}
}
