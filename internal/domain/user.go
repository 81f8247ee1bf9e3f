package domain

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	DocumentID   string     `json:"document_id"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	AccountType  string     `json:"type"`
	IsStaff      bool       `json:"is_staff"`
	IsSuperuser  bool       `json:"is_superuser"`
	IsActive     bool       `json:"is_active"`
	DateJoined   time.Time  `json:"date_joined"`
	LastLogin    *time.Time `json:"last_login"`
}

// Profile is the user-facing subset of a User record.
type Profile struct {
	Email      string `json:"email"`
	Username   string `json:"username"`
	DocumentID string `json:"document_id"`
	Type       string `json:"type"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
}

// OTPDevice is the email channel through which verification codes are
// delivered. Exactly one confirmed device is provisioned per user at
// registration. Email, when set, overrides the user's registered address.
type OTPDevice struct {
	ID        uuid.UUID `json:"id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	Confirmed bool      `json:"confirmed"`
	Email     *string   `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// OTPChallenge is the live code state for a device. Issuing a new challenge
// replaces any unconsumed one; a consumed or expired challenge never
// verifies again.
type OTPChallenge struct {
	ID        int64      `json:"id"`
	DeviceID  uuid.UUID  `json:"device_id"`
	CodeHash  string     `json:"-"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	Attempts  int        `json:"attempts"`
}

// Account classifications
const (
	AccountPersonal = "personal"
	AccountBusiness = "business"
)

var validAccountTypes = map[string]bool{
	AccountPersonal: true,
	AccountBusiness: true,
}

func IsValidAccountType(t string) bool {
	return validAccountTypes[t]
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

func (u *User) ToProfile() *Profile {
	return &Profile{
		Email:      u.Email,
		Username:   u.Username,
		DocumentID: u.DocumentID,
		Type:       u.AccountType,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
	}
}

// DeliveryAddress is where OTP codes for this device go.
func (d *OTPDevice) DeliveryAddress(owner *User) string {
	if d.Email != nil && *d.Email != "" {
		return *d.Email
	}
	return owner.Email
}

func (c *OTPChallenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

func (c *OTPChallenge) Consumed() bool {
	return c.UsedAt != nil
}
