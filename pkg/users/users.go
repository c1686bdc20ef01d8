// Package users is a read-mostly mirror of account profiles. Account
// state is owned elsewhere; the mirror exists so display names and
// avatars resolve without a cross-service call per message.
package users

import (
	"glimpse/pkg/models"
	"glimpse/pkg/store"
)

// Directory resolves user profiles from the local mirror.
type Directory struct{}

func NewDirectory() *Directory { return &Directory{} }

// GetUser returns the mirrored profile for id.
func (d *Directory) GetUser(id string) (models.User, error) {
	return store.GetUser(id)
}

// Upsert replaces the mirrored profile. Called by the backend sync
// endpoint.
func (d *Directory) Upsert(u models.User) error {
	return store.SaveUser(u)
}
