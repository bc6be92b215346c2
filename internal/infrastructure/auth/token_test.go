package auth_test

import (
	"testing"

	"github.com/retailsync/ledger/internal/infrastructure/auth"
)

func TestTokenSourceNewToken(t *testing.T) {
	t.Parallel()

	source := auth.NewTokenSource()

	raw, hash, err := source.NewToken()
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	if raw == "" || hash == "" {
		t.Fatalf("expected non-empty token and hash, got raw=%q hash=%q", raw, hash)
	}

	if raw == hash {
		t.Fatalf("expected hash to differ from raw token")
	}

	if source.Hash(raw) != hash {
		t.Fatalf("expected hash of raw token to match issued hash")
	}
}

func TestTokenSourceTokensAreUnique(t *testing.T) {
	t.Parallel()

	source := auth.NewTokenSource()

	first, _, err := source.NewToken()
	if err != nil {
		t.Fatalf("failed to generate first token: %v", err)
	}

	second, _, err := source.NewToken()
	if err != nil {
		t.Fatalf("failed to generate second token: %v", err)
	}

	if first == second {
		t.Fatalf("expected distinct tokens, got %q twice", first)
	}
}

func TestTokenSourceHashIsStable(t *testing.T) {
	t.Parallel()

	source := auth.NewTokenSource()

	if source.Hash("credential") != source.Hash("credential") {
		t.Fatalf("expected hashing to be deterministic")
	}

	if source.Hash("credential") == source.Hash("other") {
		t.Fatalf("expected different inputs to hash differently")
	}
}
