package model

import "time"

// User represents an account resolved through the external identity provider.
// Users are created on first resolution and never deleted.
type User struct {
	ID          string    `json:"id"`
	ExternalID  string    `json:"external_id"` // identity provider user id, unique
	DisplayName string    `json:"display_name"`
	PictureURL  *string   `json:"picture_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Profile is the subset of identity-provider data the core consumes.
type Profile struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	PictureURL  string `json:"pictureUrl,omitempty"`
}
