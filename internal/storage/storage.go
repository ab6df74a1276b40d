package storage

import (
	"context"
	"errors"

	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/model"
)

var (
	// ErrNotFound is returned when a referenced user, whiteboard or
	// notification does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a unique constraint would be
	// violated, e.g. registering a taken username.
	ErrAlreadyExists = errors.New("already exists")
)

// UserFilter narrows a user search. Excludes drops an exact first name and
// WhiteboardID marks results already on that board's access list.
type UserFilter struct {
	Username     string
	Excludes     string
	WhiteboardID string
}

// UserMatch is one search result, annotated with board membership.
type UserMatch struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	AlreadyIn bool   `json:"alreadyIn"`
}

// Store is the durable persistence capability consumed by the rest of the
// system. Implementations must translate their backend errors into the
// sentinel errors above; anything else is treated as a storage failure.
type Store interface {
	// Users
	FindUser(ctx context.Context, username string) (*model.User, error)
	CreateUser(ctx context.Context, user *model.User) (*model.User, error)
	UpdateUserInfo(ctx context.Context, username, newUsername, firstName, lastName string) (*model.User, error)
	UpdateUserPassword(ctx context.Context, username, hashedPassword string) error
	SearchUsers(ctx context.Context, filter UserFilter) ([]UserMatch, error)

	// Whiteboards
	FindWhiteboard(ctx context.Context, whiteboardID string) (*model.Whiteboard, error)
	CreateWhiteboard(ctx context.Context, name, ownerUsername string) (*model.Whiteboard, error)
	UpdateWhiteboard(ctx context.Context, whiteboardID, newName string) error
	DeleteWhiteboard(ctx context.Context, whiteboardID string) error
	ListWhiteboards(ctx context.Context, username string) ([]model.Whiteboard, error)
	InviteUserToWhiteboard(ctx context.Context, username, whiteboardID string) error
	IsOwner(ctx context.Context, username, whiteboardID string) (bool, error)
	IsMember(ctx context.Context, username, whiteboardID string) (bool, error)

	// Strokes
	GenerateStrokeID(ctx context.Context, whiteboardID string) (string, error)
	UpsertStroke(ctx context.Context, whiteboardID, strokeID string, line model.Line) error
	RemoveStroke(ctx context.Context, whiteboardID, strokeID string) error

	// Notifications
	Notifications(ctx context.Context, username string) ([]model.Notification, error)
	AddNotification(ctx context.Context, username string, notification model.Notification) error
	DeleteNotification(ctx context.Context, notificationID string) error
	MarkNotificationRead(ctx context.Context, notificationID string) error
	UnreadNotificationCount(ctx context.Context, username string) (int64, error)

	Close(ctx context.Context) error
}
