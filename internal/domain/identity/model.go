package identity

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// User is the storage representation of an account. PasswordHash and
// NationalID never leave this package; API responses use Profile.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	Phone        string    `db:"phone" json:"phone"`
	NationalID   string    `db:"national_id" json:"-"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	MedTrackID   string    `db:"med_track_id" json:"medTrackId"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// Profile is the safe projection of a user returned by every API surface.
type Profile struct {
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	Role       string    `json:"role"`
	MedTrackID string    `json:"medTrackId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Profile projects the user onto its safe field set.
func (u *User) Profile() Profile {
	return Profile{
		Name:       u.Name,
		Email:      u.Email,
		Phone:      u.Phone,
		Role:       u.Role,
		MedTrackID: u.MedTrackID,
		CreatedAt:  u.CreatedAt,
	}
}

// SignupRequest carries the registration payload.
type SignupRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	NationalID string `json:"nationalId"`
	Password   string `json:"password"`
	Role       string `json:"role"`
}

// LoginRequest carries the login payload. Identifier is an email or a phone
// number; presence of '@' selects the lookup.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// AuthResult pairs a signed token with the authenticated user's profile.
type AuthResult struct {
	Token string  `json:"token"`
	User  Profile `json:"user"`
}

const medTrackAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewMedTrackID generates a tracking id of the form MT-YYYYMMDD-XXXXXX with
// a random 6-character uppercase alphanumeric suffix. There is no collision
// retry; the unique index surfaces a duplicate as a conflict.
func NewMedTrackID(now time.Time) string {
	var buf [6]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	for i := range buf {
		buf[i] = medTrackAlphabet[int(buf[i])%len(medTrackAlphabet)]
	}
	return fmt.Sprintf("MT-%s-%s", now.UTC().Format("20060102"), buf[:])
}
