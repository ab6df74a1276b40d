package auth

import (
	"context"
	"errors"

	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/storage"
)

// ErrUnauthorized means the credential resolved to a valid principal that
// lacks the requested privilege on the whiteboard.
var ErrUnauthorized = errors.New("unauthorized to this whiteboard")

// Level is the privilege required on a whiteboard.
type Level int

const (
	// LevelOwner requires the principal to own the whiteboard.
	LevelOwner Level = iota
	// LevelMember requires the principal to be on the access list.
	LevelMember
)

// Authorizer decides whether a principal may act on a whiteboard at a
// given privilege level. Token validation answers "who", the store answers
// "may they".
type Authorizer struct {
	tokens *JWTManager
	store  storage.Store
}

// NewAuthorizer creates an Authorizer over the given token verifier and store.
func NewAuthorizer(tokens *JWTManager, store storage.Store) *Authorizer {
	return &Authorizer{tokens: tokens, store: store}
}

// CheckToken validates an access credential and returns its claims.
// Fails with ErrInvalidToken/ErrExpiredToken for missing, malformed or
// stale credentials.
func (a *Authorizer) CheckToken(accessToken string) (*Claims, error) {
	if accessToken == "" {
		return nil, ErrInvalidToken
	}
	return a.tokens.ValidateAccessToken(accessToken)
}

// Authorize resolves the credential and checks the principal's privilege
// on the whiteboard. On success it returns the principal's username.
func (a *Authorizer) Authorize(ctx context.Context, level Level, accessToken, whiteboardID string) (string, error) {
	if accessToken == "" || whiteboardID == "" {
		return "", ErrInvalidToken
	}
	claims, err := a.tokens.ValidateAccessToken(accessToken)
	if err != nil {
		return "", err
	}

	var authorized bool
	switch level {
	case LevelOwner:
		authorized, err = a.store.IsOwner(ctx, claims.Username, whiteboardID)
	default:
		authorized, err = a.store.IsMember(ctx, claims.Username, whiteboardID)
	}
	if err != nil {
		return "", err
	}
	if !authorized {
		return "", ErrUnauthorized
	}
	return claims.Username, nil
}

// AuthorizeMember authorizes generic member access to a whiteboard.
func (a *Authorizer) AuthorizeMember(ctx context.Context, accessToken, whiteboardID string) (string, error) {
	return a.Authorize(ctx, LevelMember, accessToken, whiteboardID)
}

// AuthorizeOwner authorizes owner-only access to a whiteboard.
func (a *Authorizer) AuthorizeOwner(ctx context.Context, accessToken, whiteboardID string) (string, error) {
	return a.Authorize(ctx, LevelOwner, accessToken, whiteboardID)
}

// Stroke operations are uniformly member-gated: who authored a stroke does
// not matter, any member may end or delete any stroke.

// AuthorizeStrokeStart authorizes starting a new stroke.
func (a *Authorizer) AuthorizeStrokeStart(ctx context.Context, accessToken, whiteboardID string) (string, error) {
	return a.AuthorizeMember(ctx, accessToken, whiteboardID)
}

// AuthorizeStrokeEnd authorizes finalizing a stroke.
func (a *Authorizer) AuthorizeStrokeEnd(ctx context.Context, accessToken, strokeID, whiteboardID string) (string, error) {
	return a.AuthorizeMember(ctx, accessToken, whiteboardID)
}

// AuthorizeStrokeDelete authorizes deleting a stroke.
func (a *Authorizer) AuthorizeStrokeDelete(ctx context.Context, accessToken, strokeID, whiteboardID string) (string, error) {
	return a.AuthorizeMember(ctx, accessToken, whiteboardID)
}
