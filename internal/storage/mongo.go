package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/model"
)

const (
	collUsers         = "users"
	collWhiteboards   = "whiteboards"
	collNotifications = "notifications"

	searchLimit = 20
)

// MongoStore is the document-store backed implementation of Store.
// Documents use hex string ids so the rest of the system never touches
// driver types.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	log    zerolog.Logger
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(ctx context.Context, uri, dbName string, logger zerolog.Logger) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info().Str("uri", uri).Str("db", dbName).Msg("connected to MongoDB")
	return &MongoStore{
		client: client,
		db:     client.Database(dbName),
		log:    logger,
	}, nil
}

// Close disconnects the underlying client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func newID() string {
	return primitive.NewObjectID().Hex()
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

func (s *MongoStore) FindUser(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := s.db.Collection(collUsers).FindOne(ctx, bson.M{"username": username}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *MongoStore) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	if _, err := s.FindUser(ctx, user.Username); err == nil {
		return nil, ErrAlreadyExists
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	user.ID = newID()
	user.CreatedAt = time.Now()
	if _, err := s.db.Collection(collUsers).InsertOne(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *MongoStore) UpdateUserInfo(ctx context.Context, username, newUsername, firstName, lastName string) (*model.User, error) {
	user, err := s.FindUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if newUsername != username {
		if _, err := s.FindUser(ctx, newUsername); err == nil {
			return nil, ErrAlreadyExists
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	update := bson.M{"$set": bson.M{
		"username":   newUsername,
		"first_name": firstName,
		"last_name":  lastName,
	}}
	if _, err := s.db.Collection(collUsers).UpdateByID(ctx, user.ID, update); err != nil {
		return nil, err
	}
	user.Username = newUsername
	user.FirstName = firstName
	user.LastName = lastName
	return user, nil
}

func (s *MongoStore) UpdateUserPassword(ctx context.Context, username, hashedPassword string) error {
	user, err := s.FindUser(ctx, username)
	if err != nil {
		return err
	}
	_, err = s.db.Collection(collUsers).UpdateByID(ctx, user.ID,
		bson.M{"$set": bson.M{"password": hashedPassword}})
	return err
}

func (s *MongoStore) SearchUsers(ctx context.Context, filter UserFilter) ([]UserMatch, error) {
	query := bson.M{"$and": bson.A{
		bson.M{"first_name": bson.M{"$regex": primitive.Regex{Pattern: filter.Username, Options: "i"}}},
		bson.M{"first_name": bson.M{"$ne": filter.Excludes}},
	}}

	cursor, err := s.db.Collection(collUsers).Find(ctx, query, options.Find().SetLimit(searchLimit))
	if err != nil {
		return nil, err
	}
	var users []model.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}

	var memberIDs []string
	if filter.WhiteboardID != "" {
		if whiteboard, err := s.FindWhiteboard(ctx, filter.WhiteboardID); err == nil {
			memberIDs = whiteboard.Users
		}
	}

	matches := make([]UserMatch, 0, len(users))
	for _, user := range users {
		matches = append(matches, UserMatch{
			ID:        user.ID,
			Username:  user.Username,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			AlreadyIn: containsString(memberIDs, user.ID),
		})
	}
	return matches, nil
}

// ---------------------------------------------------------------------------
// Whiteboards
// ---------------------------------------------------------------------------

func (s *MongoStore) FindWhiteboard(ctx context.Context, whiteboardID string) (*model.Whiteboard, error) {
	var whiteboard model.Whiteboard
	err := s.db.Collection(collWhiteboards).FindOne(ctx, bson.M{"_id": whiteboardID}).Decode(&whiteboard)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &whiteboard, nil
}

func (s *MongoStore) CreateWhiteboard(ctx context.Context, name, ownerUsername string) (*model.Whiteboard, error) {
	owner, err := s.FindUser(ctx, ownerUsername)
	if err != nil {
		return nil, err
	}
	whiteboard := &model.Whiteboard{
		ID:      newID(),
		Name:    name,
		OwnerID: owner.ID,
		Users:   []string{owner.ID},
		Traits:  map[string]model.Line{},
	}
	if _, err := s.db.Collection(collWhiteboards).InsertOne(ctx, whiteboard); err != nil {
		return nil, err
	}
	return whiteboard, nil
}

func (s *MongoStore) UpdateWhiteboard(ctx context.Context, whiteboardID, newName string) error {
	result, err := s.db.Collection(collWhiteboards).UpdateByID(ctx, whiteboardID,
		bson.M{"$set": bson.M{"name": newName}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteWhiteboard(ctx context.Context, whiteboardID string) error {
	result, err := s.db.Collection(collWhiteboards).DeleteOne(ctx, bson.M{"_id": whiteboardID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) ListWhiteboards(ctx context.Context, username string) ([]model.Whiteboard, error) {
	user, err := s.FindUser(ctx, username)
	if err != nil {
		return nil, err
	}
	cursor, err := s.db.Collection(collWhiteboards).Find(ctx, bson.M{"users": bson.M{"$in": bson.A{user.ID}}})
	if err != nil {
		return nil, err
	}
	var whiteboards []model.Whiteboard
	if err := cursor.All(ctx, &whiteboards); err != nil {
		return nil, err
	}
	return whiteboards, nil
}

func (s *MongoStore) InviteUserToWhiteboard(ctx context.Context, username, whiteboardID string) error {
	user, err := s.FindUser(ctx, username)
	if err != nil {
		return err
	}
	if _, err := s.FindWhiteboard(ctx, whiteboardID); err != nil {
		return err
	}
	// $addToSet keeps re-invites idempotent
	_, err = s.db.Collection(collWhiteboards).UpdateByID(ctx, whiteboardID,
		bson.M{"$addToSet": bson.M{"users": user.ID}})
	return err
}

func (s *MongoStore) IsOwner(ctx context.Context, username, whiteboardID string) (bool, error) {
	user, err := s.FindUser(ctx, username)
	if err != nil {
		return false, err
	}
	whiteboard, err := s.FindWhiteboard(ctx, whiteboardID)
	if err != nil {
		return false, err
	}
	return whiteboard.OwnerID == user.ID, nil
}

func (s *MongoStore) IsMember(ctx context.Context, username, whiteboardID string) (bool, error) {
	user, err := s.FindUser(ctx, username)
	if err != nil {
		return false, err
	}
	whiteboard, err := s.FindWhiteboard(ctx, whiteboardID)
	if err != nil {
		return false, err
	}
	return containsString(whiteboard.Users, user.ID), nil
}

// ---------------------------------------------------------------------------
// Strokes
// ---------------------------------------------------------------------------

func (s *MongoStore) GenerateStrokeID(ctx context.Context, whiteboardID string) (string, error) {
	return newID(), nil
}

func (s *MongoStore) UpsertStroke(ctx context.Context, whiteboardID, strokeID string, line model.Line) error {
	result, err := s.db.Collection(collWhiteboards).UpdateByID(ctx, whiteboardID,
		bson.M{"$set": bson.M{"traits." + strokeID: line}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) RemoveStroke(ctx context.Context, whiteboardID, strokeID string) error {
	result, err := s.db.Collection(collWhiteboards).UpdateByID(ctx, whiteboardID,
		bson.M{"$unset": bson.M{"traits." + strokeID: 1}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Notifications
// ---------------------------------------------------------------------------

func (s *MongoStore) Notifications(ctx context.Context, username string) ([]model.Notification, error) {
	user, err := s.FindUser(ctx, username)
	if err != nil {
		return nil, err
	}
	cursor, err := s.db.Collection(collNotifications).Find(ctx, bson.M{"user": user.ID})
	if err != nil {
		return nil, err
	}
	var notifications []model.Notification
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

func (s *MongoStore) AddNotification(ctx context.Context, username string, notification model.Notification) error {
	user, err := s.FindUser(ctx, username)
	if err != nil {
		return err
	}
	notification.ID = newID()
	notification.UserID = user.ID
	notification.Visualized = false
	notification.CreatedAt = time.Now()
	_, err = s.db.Collection(collNotifications).InsertOne(ctx, notification)
	return err
}

func (s *MongoStore) DeleteNotification(ctx context.Context, notificationID string) error {
	result, err := s.db.Collection(collNotifications).DeleteOne(ctx, bson.M{"_id": notificationID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) MarkNotificationRead(ctx context.Context, notificationID string) error {
	result, err := s.db.Collection(collNotifications).UpdateByID(ctx, notificationID,
		bson.M{"$set": bson.M{"visualized": true}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) UnreadNotificationCount(ctx context.Context, username string) (int64, error) {
	user, err := s.FindUser(ctx, username)
	if err != nil {
		return 0, err
	}
	return s.db.Collection(collNotifications).CountDocuments(ctx,
		bson.M{"user": user.ID, "visualized": false})
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
