package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRegister() RegisterRequest {
	return RegisterRequest{
		Username:   "alice",
		Email:      "alice@example.com",
		DocumentID: "V12345678",
		Type:       AccountPersonal,
		FirstName:  "Alice",
		LastName:   "Liddell",
		Password1:  "s3cure-password",
		Password2:  "s3cure-password",
	}
}

func TestRegisterRequestValid(t *testing.T) {
	req := validRegister()
	req.Normalize()
	assert.NoError(t, req.Validate())
}

func TestRegisterRequestNormalize(t *testing.T) {
	req := validRegister()
	req.Email = "  ALICE@Example.COM "
	req.Type = ""
	req.Normalize()

	assert.Equal(t, "alice@example.com", req.Email)
	assert.Equal(t, AccountPersonal, req.Type)
}

func TestRegisterRequestFieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RegisterRequest)
		field  string
	}{
		{"missing username", func(r *RegisterRequest) { r.Username = "" }, "username"},
		{"bad email", func(r *RegisterRequest) { r.Email = "not-an-email" }, "email"},
		{"bad document prefix", func(r *RegisterRequest) { r.DocumentID = "X12345678" }, "document_id"},
		{"document letters after prefix", func(r *RegisterRequest) { r.DocumentID = "V1234abc" }, "document_id"},
		{"document too long", func(r *RegisterRequest) { r.DocumentID = "V123456789012345678" }, "document_id"},
		{"bad type", func(r *RegisterRequest) { r.Type = "alien" }, "type"},
		{"missing first name", func(r *RegisterRequest) { r.FirstName = "" }, "first_name"},
		{"missing last name", func(r *RegisterRequest) { r.LastName = "" }, "last_name"},
		{"password mismatch", func(r *RegisterRequest) { r.Password2 = "different-pass" }, "password2"},
		{"short password", func(r *RegisterRequest) { r.Password1 = "short"; r.Password2 = "short" }, "password1"},
		{"numeric password", func(r *RegisterRequest) { r.Password1 = "12345678901"; r.Password2 = "12345678901" }, "password1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRegister()
			tt.mutate(&req)

			err := req.Validate()
			require.Error(t, err)

			fieldErrs, ok := err.(FieldErrors)
			require.True(t, ok, "expected FieldErrors, got %T", err)
			assert.Contains(t, fieldErrs, tt.field)
		})
	}
}

func TestDocumentIDAcceptsAllPrefixes(t *testing.T) {
	for _, doc := range []string{"V123", "v123", "E99", "e1", "J20881231", "j7"} {
		assert.True(t, IsValidDocumentID(doc), "document %q must be valid", doc)
	}
}

func TestValidatePassword(t *testing.T) {
	assert.Empty(t, ValidatePassword("long-enough-1"))
	assert.NotEmpty(t, ValidatePassword("2short"))
	assert.NotEmpty(t, ValidatePassword("123456789"))
}

func TestSetPasswordRequestValidate(t *testing.T) {
	ok := SetPasswordRequest{NewPassword1: "brand-new-pass", NewPassword2: "brand-new-pass"}
	assert.NoError(t, ok.Validate())

	mismatch := SetPasswordRequest{NewPassword1: "brand-new-pass", NewPassword2: "other"}
	err := mismatch.Validate()
	require.Error(t, err)
	assert.Contains(t, err.(FieldErrors), "new_password2")
}

func TestChangePasswordRequestValidate(t *testing.T) {
	base := ChangePasswordRequest{
		OTPChallengeRequest: OTPChallengeRequest{Device: "dev-1", Token: "123456"},
		OldPassword:         "old-password",
		NewPassword1:        "new-password-1",
		NewPassword2:        "new-password-1",
	}
	assert.NoError(t, base.Validate())

	missingDevice := base
	missingDevice.Device = ""
	err := missingDevice.Validate()
	require.Error(t, err)
	assert.Contains(t, err.(FieldErrors), "device")

	missingOld := base
	missingOld.OldPassword = ""
	err = missingOld.Validate()
	require.Error(t, err)
	assert.Contains(t, err.(FieldErrors), "old_password")
}

func TestChangeEmailRequestValidate(t *testing.T) {
	base := ChangeEmailRequest{
		OTPChallengeRequest: OTPChallengeRequest{Device: "dev-1", Token: "123456"},
		Email:               "new@example.com",
	}
	assert.NoError(t, base.Validate())

	bad := base
	bad.Email = "nope"
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.(FieldErrors), "email")
}

func TestPasswordResetRequestValidate(t *testing.T) {
	ok := PasswordResetRequest{Email: "someone@example.com"}
	assert.NoError(t, ok.Validate())

	assert.Error(t, (&PasswordResetRequest{}).Validate())
	assert.Error(t, (&PasswordResetRequest{Email: "bad"}).Validate())
}

func TestDeviceDeliveryAddress(t *testing.T) {
	owner := &User{Email: "owner@example.com"}

	plain := &OTPDevice{}
	assert.Equal(t, "owner@example.com", plain.DeliveryAddress(owner))

	override := "alt@example.com"
	withOverride := &OTPDevice{Email: &override}
	assert.Equal(t, "alt@example.com", withOverride.DeliveryAddress(owner))
}

func TestUserToProfile(t *testing.T) {
	u := &User{
		Username:    "alice",
		Email:       "alice@example.com",
		DocumentID:  "V12345678",
		AccountType: AccountPersonal,
		FirstName:   "Alice",
		LastName:    "Liddell",
	}
	p := u.ToProfile()
	assert.Equal(t, "alice@example.com", p.Email)
	assert.Equal(t, AccountPersonal, p.Type)
	assert.Equal(t, "Alice", p.FirstName)
}
