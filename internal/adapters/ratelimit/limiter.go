// Package ratelimit implements sliding-window request limits keyed by client.
package ratelimit

import (
	"context"
	"time"
)

// Rule caps a named action at Limit requests per Window.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
}

var (
	LoginRule          = Rule{Name: "login", Limit: 5, Window: 15 * time.Minute}
	RegisterRule       = Rule{Name: "register", Limit: 3, Window: time.Hour}
	ForgotPasswordRule = Rule{Name: "forgot-password", Limit: 3, Window: time.Hour}
	ResetPasswordRule  = Rule{Name: "reset-password", Limit: 3, Window: time.Hour}
	UserSearchRule     = Rule{Name: "user-search", Limit: 20, Window: time.Minute}
)

// Decision is the outcome of one Allow call. RetryAfter is set when the
// request was refused.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, rule Rule, key string) (Decision, error)
}

type noopLimiter struct{}

// NewNoop returns a limiter that allows everything. It is only wired when
// rate limiting is disabled outside production.
func NewNoop() Limiter {
	return noopLimiter{}
}

func (noopLimiter) Allow(context.Context, Rule, string) (Decision, error) {
	return Decision{Allowed: true}, nil
}

func bucketKey(rule Rule, key string) string {
	return "ratelimit:" + rule.Name + ":" + key
}
