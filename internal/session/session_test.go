package session

import (
	"errors"
	"testing"

	"channel-metrics-alerts/internal/fetcher"
)

func TestHappyPathTransitions(t *testing.T) {
	s := New("UC123")
	if s.State() != Unauthenticated {
		t.Fatalf("new session should be unauthenticated, got %s", s.State())
	}

	if err := s.Authorize(); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if err := s.Verify([]fetcher.Channel{{ID: "UC123", Title: "mine"}}); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := s.BeginRun(); err != nil {
		t.Fatalf("begin run: %v", err)
	}
	if s.State() != Ready {
		t.Fatalf("session should be ready, got %s", s.State())
	}
}

func TestOutOfOrderTransitions(t *testing.T) {
	s := New("UC123")

	var trErr *TransitionError
	if err := s.Verify(nil); !errors.As(err, &trErr) {
		t.Fatalf("verify before authorize must fail with TransitionError, got %v", err)
	}
	if err := s.BeginRun(); !errors.As(err, &trErr) {
		t.Fatalf("run before verification must fail with TransitionError, got %v", err)
	}

	if err := s.Authorize(); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if err := s.Authorize(); !errors.As(err, &trErr) {
		t.Fatalf("double authorize must fail, got %v", err)
	}
}

func TestVerifyRejectsInaccessibleChannel(t *testing.T) {
	s := New("UC123")
	if err := s.Authorize(); err != nil {
		t.Fatalf("authorize: %v", err)
	}

	err := s.Verify([]fetcher.Channel{{ID: "UC456", Title: "other"}})
	var vErr *VerificationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected VerificationError, got %v", err)
	}
	if vErr.ChannelID != "UC123" {
		t.Fatalf("error should carry the target channel, got %q", vErr.ChannelID)
	}
	if s.State() != AuthorizedUnverified {
		t.Fatalf("failed verification must not advance the session, got %s", s.State())
	}
}

func TestSkipVerification(t *testing.T) {
	s := New("UC123")
	if err := s.Authorize(); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if err := s.SkipVerification(); err != nil {
		t.Fatalf("skip verification: %v", err)
	}
	if err := s.BeginRun(); err != nil {
		t.Fatalf("begin run after skip: %v", err)
	}
}

func TestBeginRunIdempotent(t *testing.T) {
	s := New("UC123")
	_ = s.Authorize()
	_ = s.SkipVerification()

	if err := s.BeginRun(); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := s.BeginRun(); err != nil {
		t.Fatalf("subsequent runs on a ready session must be allowed: %v", err)
	}
}
