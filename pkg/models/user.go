package models

// User is a directory profile. Accounts and auth live elsewhere; this
// service only needs id -> display data for participant resolution.
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}
