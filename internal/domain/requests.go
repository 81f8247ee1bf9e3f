package domain

import (
	"regexp"
	"strings"
)

// FieldErrors carries validation failures keyed by the offending field,
// matching the 400 envelope the API returns.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	parts := make([]string, 0, len(e))
	for field, msg := range e {
		parts = append(parts, field+": "+msg)
	}
	return strings.Join(parts, "; ")
}

func (e FieldErrors) Add(field, msg string) {
	if _, dup := e[field]; !dup {
		e[field] = msg
	}
}

type RegisterRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	DocumentID string `json:"document_id"`
	Type       string `json:"type"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Password1  string `json:"password1"`
	Password2  string `json:"password2"`
}

type TokenObtainRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenPairResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type PasswordResetRequest struct {
	Email string `json:"email"`
}

type SetPasswordRequest struct {
	NewPassword1 string `json:"new_password1"`
	NewPassword2 string `json:"new_password2"`
}

type OTPRequest struct {
	Email string `json:"email,omitempty"`
}

type OTPChallengeRequest struct {
	Device string `json:"device"`
	Token  string `json:"token"`
}

type ChangePasswordRequest struct {
	OTPChallengeRequest
	OldPassword  string `json:"old_password"`
	NewPassword1 string `json:"new_password1"`
	NewPassword2 string `json:"new_password2"`
}

type ChangeEmailRequest struct {
	OTPChallengeRequest
	Email string `json:"email"`
}

type UpdateUserRequest struct {
	FirstName  *string `json:"first_name,omitempty"`
	LastName   *string `json:"last_name,omitempty"`
	DocumentID *string `json:"document_id,omitempty"`
	Type       *string `json:"type,omitempty"`
	IsStaff    *bool   `json:"is_staff,omitempty"`
	IsActive   *bool   `json:"is_active,omitempty"`
}

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	documentRegex = regexp.MustCompile(`^[eEvVjJ]\d+$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.@+-]+$`)
	numericRegex  = regexp.MustCompile(`^\d+$`)
)

func isValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// IsValidDocumentID reports whether a document id (cedula/rif) is one
// letter prefix E/V/J followed by digits.
func IsValidDocumentID(doc string) bool {
	return len(doc) <= 15 && documentRegex.MatchString(doc)
}

// ValidatePassword applies the password policy: at least 8 characters and
// not entirely numeric.
func ValidatePassword(password string) string {
	if len(password) < 8 {
		return "password must be at least 8 characters"
	}
	if numericRegex.MatchString(password) {
		return "password cannot be entirely numeric"
	}
	return ""
}

func (r *RegisterRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.DocumentID = strings.TrimSpace(r.DocumentID)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	if r.Type == "" {
		r.Type = AccountPersonal
	}
}

func (r *RegisterRequest) Validate() error {
	errs := FieldErrors{}
	if r.Username == "" {
		errs.Add("username", "username is required")
	} else if !usernameRegex.MatchString(r.Username) || len(r.Username) > 150 {
		errs.Add("username", "enter a valid username")
	}
	if r.Email == "" {
		errs.Add("email", "email is required")
	} else if !isValidEmail(r.Email) {
		errs.Add("email", "invalid email format")
	}
	if !IsValidDocumentID(r.DocumentID) {
		errs.Add("document_id", "your document id is not well formatted")
	}
	if !IsValidAccountType(r.Type) {
		errs.Add("type", "invalid account type")
	}
	if r.FirstName == "" {
		errs.Add("first_name", "first name is required")
	}
	if r.LastName == "" {
		errs.Add("last_name", "last name is required")
	}
	if r.Password1 != r.Password2 {
		errs.Add("password2", "the two password fields didn't match")
	} else if msg := ValidatePassword(r.Password1); msg != "" {
		errs.Add("password1", msg)
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (r *TokenObtainRequest) Validate() error {
	errs := FieldErrors{}
	if r.Username == "" {
		errs.Add("username", "username is required")
	}
	if r.Password == "" {
		errs.Add("password", "password is required")
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (r *PasswordResetRequest) Normalize() {
	r.Email = strings.TrimSpace(r.Email)
}

func (r *PasswordResetRequest) Validate() error {
	if r.Email == "" || !isValidEmail(r.Email) {
		return FieldErrors{"email": "enter a valid email address"}
	}
	return nil
}

func (r *SetPasswordRequest) Validate() error {
	errs := FieldErrors{}
	if r.NewPassword1 != r.NewPassword2 {
		errs.Add("new_password2", "the two password fields didn't match")
	} else if msg := ValidatePassword(r.NewPassword1); msg != "" {
		errs.Add("new_password1", msg)
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (r *OTPRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r *OTPRequest) Validate() error {
	if r.Email != "" && !isValidEmail(r.Email) {
		return FieldErrors{"email": "invalid email format"}
	}
	return nil
}

func (r *OTPChallengeRequest) Validate() error {
	errs := FieldErrors{}
	if r.Device == "" {
		errs.Add("device", "device is required")
	}
	if r.Token == "" {
		errs.Add("token", "token is required")
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (r *ChangePasswordRequest) Validate() error {
	if err := r.OTPChallengeRequest.Validate(); err != nil {
		return err
	}
	errs := FieldErrors{}
	if r.OldPassword == "" {
		errs.Add("old_password", "old password is required")
	}
	if r.NewPassword1 != r.NewPassword2 {
		errs.Add("new_password2", "the two password fields didn't match")
	} else if msg := ValidatePassword(r.NewPassword1); msg != "" {
		errs.Add("new_password1", msg)
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (r *ChangeEmailRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r *ChangeEmailRequest) Validate() error {
	if err := r.OTPChallengeRequest.Validate(); err != nil {
		return err
	}
	if r.Email == "" || !isValidEmail(r.Email) {
		return FieldErrors{"email": "invalid email format"}
	}
	return nil
}

func (r *UpdateUserRequest) Validate() error {
	errs := FieldErrors{}
	if r.DocumentID != nil && !IsValidDocumentID(*r.DocumentID) {
		errs.Add("document_id", "your document id is not well formatted")
	}
	if r.Type != nil && !IsValidAccountType(*r.Type) {
		errs.Add("type", "invalid account type")
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
