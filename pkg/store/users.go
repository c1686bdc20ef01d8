package store

import (
	"encoding/json"
	"fmt"

	"glimpse/pkg/models"
)

// SaveUser upserts a directory profile.
func SaveUser(u models.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	return setRaw(userKey(u.ID), data)
}

// GetUser loads a directory profile by id.
func GetUser(id string) (models.User, error) {
	var u models.User
	v, err := getRaw(userKey(id))
	if err != nil {
		return u, err
	}
	if err := json.Unmarshal(v, &u); err != nil {
		return u, fmt.Errorf("invalid user record: %w", err)
	}
	return u, nil
}
