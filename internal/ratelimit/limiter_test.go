package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestNewLimiter(t *testing.T) {
	l := NewLimiter(nil)
	if l == nil {
		t.Fatal("NewLimiter should return non-nil Limiter")
	}
}

func TestAllow_NilClientFailsOpen(t *testing.T) {
	l := NewLimiter(nil)

	allowed, err := l.Allow(context.Background(), "user-1", RuleMessage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Error("nil client must fail open")
	}
}

func TestRules_SaneBounds(t *testing.T) {
	rules := []Rule{RuleMessage, RuleFindChat}
	for _, r := range rules {
		if r.Key == "" {
			t.Errorf("rule %+v has empty key prefix", r)
		}
		if r.Limit <= 0 {
			t.Errorf("rule %+v has non-positive limit", r)
		}
		if r.Window < time.Second {
			t.Errorf("rule %+v has window below 1s", r)
		}
	}
}
