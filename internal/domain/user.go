// Package domain contains entity without logic, just meta-data
package domain

const (
	MaxUserIDLen   = 36
	MaxUsernameLen = 36
)

type UserID string

type User struct {
	ID       UserID `json:"id"`
	Username string `json:"name"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
// Connection ids are used as user ids, so the id is given, not generated.
func NewUser(id UserID, username string) (*User, error) {
	u := &User{ID: id}
	if username == "" {
		username = DefaultUsername(id)
	}
	if err := u.SetUsername(username); err != nil {
		return nil, err
	}
	return u, nil
}

// DefaultUsername derives "User-xxxxxxxx" from the connection id.
func DefaultUsername(id UserID) string {
	s := string(id)
	if len(s) > 8 {
		s = s[:8]
	}
	return "User-" + s
}

func (u *User) SetUsername(username string) error {
	if len(username) == 0 {
		return ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	u.Username = username
	return nil
}
