package model

import "time"

// User is a registered account. Passwords are bcrypt hashes and never
// serialized to JSON.
type User struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	Username  string    `bson:"username" json:"username"`
	Password  string    `bson:"password" json:"-"`
	FirstName string    `bson:"first_name" json:"first_name"`
	LastName  string    `bson:"last_name" json:"last_name"`
	CreatedAt time.Time `bson:"created_at,omitempty" json:"created_at,omitempty"`
}

// Point is a single coordinate of a drawn line.
type Point struct {
	X float64 `bson:"x" json:"x"`
	Y float64 `bson:"y" json:"y"`
}

// Line is one continuous stroke: an ordered point sequence plus style.
type Line struct {
	Points []Point `bson:"points" json:"points"`
	Color  string  `bson:"color" json:"color"`
	Stroke float64 `bson:"stroke" json:"stroke"`
}

// Whiteboard is the durable drawing surface. Users holds the ids of every
// account allowed on the board (the owner included); Traits maps stroke id
// to the finalized line.
type Whiteboard struct {
	ID      string          `bson:"_id,omitempty" json:"id"`
	Name    string          `bson:"name" json:"name"`
	OwnerID string          `bson:"ownerId" json:"ownerId"`
	Users   []string        `bson:"users" json:"users"`
	Traits  map[string]Line `bson:"traits" json:"traits"`
}

// Notification types.
const (
	NotificationInvite = "invite"
	NotificationInfo   = "info"
)

// Notification is a persisted message for a user.
type Notification struct {
	ID         string    `bson:"_id,omitempty" json:"id"`
	Type       string    `bson:"type" json:"type"`
	Body       string    `bson:"body" json:"body"`
	Visualized bool      `bson:"visualized" json:"visualized"`
	UserID     string    `bson:"user" json:"user"`
	CreatedAt  time.Time `bson:"created_at,omitempty" json:"created_at,omitempty"`
}
