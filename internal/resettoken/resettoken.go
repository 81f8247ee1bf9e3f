// Package resettoken issues and checks password-reset tokens. A token is
// bound to the user's mutable state (password hash, last login) so that a
// successful reset, or any later login, invalidates every outstanding token
// without server-side storage.
package resettoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vadesso/account-service/internal/domain"
)

type Generator struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

func New(secret string, maxAge time.Duration) *Generator {
	return &Generator{
		secret: []byte(secret),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Make produces a token of the form "<base36 timestamp>-<hex signature>".
func (g *Generator) Make(user *domain.User) string {
	ts := g.now().Unix()
	return strconv.FormatInt(ts, 36) + "-" + g.signature(user, ts)
}

// Check reports whether token was issued for the user's current state and
// is still inside the max-age window. It fails closed: malformed input is
// simply invalid.
func (g *Generator) Check(user *domain.User, token string) bool {
	if user == nil || token == "" {
		return false
	}

	tsPart, sigPart, ok := strings.Cut(token, "-")
	if !ok {
		return false
	}

	ts, err := strconv.ParseInt(tsPart, 36, 64)
	if err != nil {
		return false
	}

	expected := g.signature(user, ts)
	if !hmac.Equal([]byte(expected), []byte(sigPart)) {
		return false
	}

	issued := time.Unix(ts, 0)
	age := g.now().Sub(issued)
	return age >= 0 && age <= g.maxAge
}

func (g *Generator) signature(user *domain.User, ts int64) string {
	var lastLogin int64
	if user.LastLogin != nil {
		lastLogin = user.LastLogin.Unix()
	}

	mac := hmac.New(sha256.New, g.secret)
	fmt.Fprintf(mac, "%d|%s|%d|%d", user.ID, user.PasswordHash, lastLogin, ts)
	return hex.EncodeToString(mac.Sum(nil))
}

// EncodeUID encodes a user id for use in reset URLs.
func EncodeUID(id int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(id, 10)))
}

// DecodeUID is the inverse of EncodeUID.
func DecodeUID(uidb64 string) (int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(uidb64)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(raw), 10, 64)
}
