package session

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	"github.com/trezcool/barakah/core"
)

// Storage keys
const (
	KeyToken = "token"
	KeyUser  = "user"
)

// Roles
const (
	RoleAdmin        = "admin"
	RoleTeacher      = "teacher"
	RoleOrganization = "organization"
	RoleEmployee     = "employee"
)

// User is the cached profile of the logged in user.
type User struct {
	ID    core.ID `json:"id"`
	Role  string  `json:"role"`
	Email string  `json:"email"`
}

func (u *User) IsAdmin() bool        { return u != nil && u.Role == RoleAdmin }
func (u *User) IsTeacher() bool      { return u != nil && u.Role == RoleTeacher }
func (u *User) IsOrganization() bool { return u != nil && u.Role == RoleOrganization }
func (u *User) IsEmployee() bool     { return u != nil && u.Role == RoleEmployee }

// Session is the current authentication state. The token is the source of truth:
// User is only ever set when Token is not empty.
type Session struct {
	Token string `json:"token,omitempty"`
	User  *User  `json:"user,omitempty"`
}

func (s Session) State() State {
	if s.Token == "" {
		return Anonymous
	}
	return Authenticated
}

func (s Session) IsAuthenticated() bool { return s.State() == Authenticated }

type State int

const (
	Anonymous State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

// Claims holds what can be read from a JWT session token without verifying it.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token has a known expiry before `now`.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// ParseClaims decodes the claims of a JWT token. The signature is NOT verified;
// the result is informational only, the upstream API remains the judge of validity.
func ParseClaims(token string) (Claims, error) {
	var std jwt.StandardClaims
	if _, _, err := new(jwt.Parser).ParseUnverified(token, &std); err != nil {
		return Claims{}, errors.Wrap(err, "parsing token")
	}
	claims := Claims{Subject: std.Subject}
	if std.IssuedAt > 0 {
		claims.IssuedAt = time.Unix(std.IssuedAt, 0).UTC()
	}
	if std.ExpiresAt > 0 {
		claims.ExpiresAt = time.Unix(std.ExpiresAt, 0).UTC()
	}
	return claims, nil
}
