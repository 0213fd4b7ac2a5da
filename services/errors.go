package services

import (
	"fmt"

	"github.com/google/uuid"
)

// UserNotFoundError is returned by read operations for a user id that cannot identify
// any user. Known users with no activity get a zeroed view instead.
type UserNotFoundError struct {
	UserID string
}

func (e *UserNotFoundError) Error() string {
	return fmt.Sprintf("user %q not found", e.UserID)
}

// ParseUserID accepts only well-formed, non-nil UUIDs.
func ParseUserID(userID string) (uuid.UUID, error) {
	id, err := uuid.Parse(userID)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, &UserNotFoundError{UserID: userID}
	}
	return id, nil
}
