// Package domain contains types for the signup orchestration service.
package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	// Signup provisions a user, their organization, and a logged-in
	// session in one flow.
	Signup(ctx context.Context, req Request) (*Result, error)
}

type Request struct {
	Email     string
	Password  string
	Name      string
	OrgName   string
	UserAgent string
	IPAddress string
}

type Result struct {
	UserID    string
	OrgID     string
	RawToken  string
	ExpiresAt time.Time
}

var ErrInvalidRequest = errors.New("invalid_request")
