package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID    primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Email string             `bson:"email" json:"email"`
	Name  string             `bson:"name" json:"name"`

	// Empty for accounts that have only ever signed in with Google.
	PasswordHash string `bson:"password,omitempty" json:"-"`
	GoogleID     string `bson:"googleId,omitempty" json:"googleId,omitempty"`

	PasswordResetToken   string     `bson:"passwordResetToken,omitempty" json:"-"`
	PasswordResetExpires *time.Time `bson:"passwordResetExpires,omitempty" json:"-"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// Profile is the public shape returned next to a session token.
type Profile struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	GoogleID string `json:"googleId,omitempty"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:       u.ID.Hex(),
		Name:     u.Name,
		Email:    u.Email,
		GoogleID: u.GoogleID,
	}
}
