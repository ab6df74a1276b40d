package storage

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/model"
)

// MemoryStore is an in-process Store with the same semantics as MongoStore.
// It backs the test suite and lets the server run without a database.
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[string]*model.User       // keyed by username
	whiteboards   map[string]*model.Whiteboard // keyed by id
	notifications map[string]*model.Notification
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]*model.User),
		whiteboards:   make(map[string]*model.Whiteboard),
		notifications: make(map[string]*model.Notification),
	}
}

func (s *MemoryStore) Close(ctx context.Context) error { return nil }

func (s *MemoryStore) FindUser(ctx context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *MemoryStore) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Username]; ok {
		return nil, ErrAlreadyExists
	}
	user.ID = uuid.New().String()
	user.CreatedAt = time.Now()
	copied := *user
	s.users[user.Username] = &copied
	return user, nil
}

func (s *MemoryStore) UpdateUserInfo(ctx context.Context, username, newUsername, firstName, lastName string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	if newUsername != username {
		if _, taken := s.users[newUsername]; taken {
			return nil, ErrAlreadyExists
		}
		delete(s.users, username)
	}
	user.Username = newUsername
	user.FirstName = firstName
	user.LastName = lastName
	s.users[newUsername] = user
	copied := *user
	return &copied, nil
}

func (s *MemoryStore) UpdateUserPassword(ctx context.Context, username, hashedPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if !ok {
		return ErrNotFound
	}
	user.Password = hashedPassword
	return nil
}

func (s *MemoryStore) SearchUsers(ctx context.Context, filter UserFilter) ([]UserMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var memberIDs []string
	if filter.WhiteboardID != "" {
		if whiteboard, ok := s.whiteboards[filter.WhiteboardID]; ok {
			memberIDs = whiteboard.Users
		}
	}

	matches := make([]UserMatch, 0)
	needle := strings.ToLower(filter.Username)
	for _, user := range s.users {
		if filter.Excludes != "" && user.FirstName == filter.Excludes {
			continue
		}
		if !strings.Contains(strings.ToLower(user.FirstName), needle) {
			continue
		}
		matches = append(matches, UserMatch{
			ID:        user.ID,
			Username:  user.Username,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			AlreadyIn: containsString(memberIDs, user.ID),
		})
		if len(matches) == searchLimit {
			break
		}
	}
	return matches, nil
}

func (s *MemoryStore) FindWhiteboard(ctx context.Context, whiteboardID string) (*model.Whiteboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	whiteboard, ok := s.whiteboards[whiteboardID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *whiteboard
	copied.Users = append([]string(nil), whiteboard.Users...)
	copied.Traits = make(map[string]model.Line, len(whiteboard.Traits))
	for id, line := range whiteboard.Traits {
		copied.Traits[id] = line
	}
	return &copied, nil
}

func (s *MemoryStore) CreateWhiteboard(ctx context.Context, name, ownerUsername string) (*model.Whiteboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.users[ownerUsername]
	if !ok {
		return nil, ErrNotFound
	}
	whiteboard := &model.Whiteboard{
		ID:      uuid.New().String(),
		Name:    name,
		OwnerID: owner.ID,
		Users:   []string{owner.ID},
		Traits:  map[string]model.Line{},
	}
	s.whiteboards[whiteboard.ID] = whiteboard
	copied := *whiteboard
	return &copied, nil
}

func (s *MemoryStore) UpdateWhiteboard(ctx context.Context, whiteboardID, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	whiteboard, ok := s.whiteboards[whiteboardID]
	if !ok {
		return ErrNotFound
	}
	whiteboard.Name = newName
	return nil
}

func (s *MemoryStore) DeleteWhiteboard(ctx context.Context, whiteboardID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.whiteboards[whiteboardID]; !ok {
		return ErrNotFound
	}
	delete(s.whiteboards, whiteboardID)
	return nil
}

func (s *MemoryStore) ListWhiteboards(ctx context.Context, username string) ([]model.Whiteboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	var whiteboards []model.Whiteboard
	for _, whiteboard := range s.whiteboards {
		if containsString(whiteboard.Users, user.ID) {
			whiteboards = append(whiteboards, *whiteboard)
		}
	}
	return whiteboards, nil
}

func (s *MemoryStore) InviteUserToWhiteboard(ctx context.Context, username, whiteboardID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if !ok {
		return ErrNotFound
	}
	whiteboard, ok := s.whiteboards[whiteboardID]
	if !ok {
		return ErrNotFound
	}
	if !containsString(whiteboard.Users, user.ID) {
		whiteboard.Users = append(whiteboard.Users, user.ID)
	}
	return nil
}

func (s *MemoryStore) IsOwner(ctx context.Context, username, whiteboardID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[username]
	if !ok {
		return false, ErrNotFound
	}
	whiteboard, ok := s.whiteboards[whiteboardID]
	if !ok {
		return false, ErrNotFound
	}
	return whiteboard.OwnerID == user.ID, nil
}

func (s *MemoryStore) IsMember(ctx context.Context, username, whiteboardID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[username]
	if !ok {
		return false, ErrNotFound
	}
	whiteboard, ok := s.whiteboards[whiteboardID]
	if !ok {
		return false, ErrNotFound
	}
	return containsString(whiteboard.Users, user.ID), nil
}

func (s *MemoryStore) GenerateStrokeID(ctx context.Context, whiteboardID string) (string, error) {
	return uuid.New().String(), nil
}

func (s *MemoryStore) UpsertStroke(ctx context.Context, whiteboardID, strokeID string, line model.Line) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	whiteboard, ok := s.whiteboards[whiteboardID]
	if !ok {
		return ErrNotFound
	}
	whiteboard.Traits[strokeID] = line
	return nil
}

func (s *MemoryStore) RemoveStroke(ctx context.Context, whiteboardID, strokeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	whiteboard, ok := s.whiteboards[whiteboardID]
	if !ok {
		return ErrNotFound
	}
	delete(whiteboard.Traits, strokeID)
	return nil
}

func (s *MemoryStore) Notifications(ctx context.Context, username string) ([]model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	var notifications []model.Notification
	for _, notification := range s.notifications {
		if notification.UserID == user.ID {
			notifications = append(notifications, *notification)
		}
	}
	return notifications, nil
}

func (s *MemoryStore) AddNotification(ctx context.Context, username string, notification model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if !ok {
		return ErrNotFound
	}
	notification.ID = uuid.New().String()
	notification.UserID = user.ID
	notification.Visualized = false
	notification.CreatedAt = time.Now()
	s.notifications[notification.ID] = &notification
	return nil
}

func (s *MemoryStore) DeleteNotification(ctx context.Context, notificationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[notificationID]; !ok {
		return ErrNotFound
	}
	delete(s.notifications, notificationID)
	return nil
}

func (s *MemoryStore) MarkNotificationRead(ctx context.Context, notificationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	notification, ok := s.notifications[notificationID]
	if !ok {
		return ErrNotFound
	}
	notification.Visualized = true
	return nil
}

func (s *MemoryStore) UnreadNotificationCount(ctx context.Context, username string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[username]
	if !ok {
		return 0, ErrNotFound
	}
	var count int64
	for _, notification := range s.notifications {
		if notification.UserID == user.ID && !notification.Visualized {
			count++
		}
	}
	return count, nil
}
