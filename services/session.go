package services

import (
	"strconv"

	"github.com/kendall-kelly/servicepro-api/models"
)

// Session is the acting user as resolved by the auth layer. UserID is the
// local user id in decimal form; anything else is treated as anonymous.
type Session struct {
	UserID string
	Role   models.Role
}

// ActorID returns the numeric user id, or false when the session is not usable
func (s Session) ActorID() (uint, bool) {
	if s.UserID == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(s.UserID, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// IsAdmin reports whether the session carries the ADMIN role
func (s Session) IsAdmin() bool {
	return s.Role == models.RoleAdmin
}

// SessionFor builds a session for a stored user
func SessionFor(user models.User) Session {
	return Session{UserID: strconv.FormatUint(uint64(user.ID), 10), Role: user.Role}
}

// requireActor is the first check of every session-scoped operation
func requireActor(s Session) (uint, error) {
	id, ok := s.ActorID()
	if !ok {
		return 0, notAuthenticated()
	}
	return id, nil
}

func requireAdmin(s Session) (uint, error) {
	id, err := requireActor(s)
	if err != nil {
		return 0, err
	}
	if !s.IsAdmin() {
		return 0, forbidden("Administrator access required.")
	}
	return id, nil
}
