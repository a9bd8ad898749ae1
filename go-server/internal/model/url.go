package model

import (
	"time"

	"github.com/google/uuid"
)

// URL represents a shortened URL entry in the system.
// SecretKey is only ever serialized back to the URL's owner.
type URL struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	Key       string     `json:"key" db:"key"`
	SecretKey string     `json:"secret_key" db:"secret_key"`
	TargetURL string     `json:"target_url" db:"target_url"`
	IsActive  bool       `json:"is_active" db:"is_active"`
	Clicks    int64      `json:"clicks" db:"clicks"`
	OwnerID   *uuid.UUID `json:"owner_id" db:"owner_id"`
	CreatedAt time.Time  `json:"date_created" db:"date_created"`
}

// OwnedBy reports whether the URL belongs to userID. Anonymous URLs belong to nobody.
func (u *URL) OwnedBy(userID uuid.UUID) bool {
	return u.OwnerID != nil && *u.OwnerID == userID
}

// PublicURL is the view of a URL that can be shown to anyone holding the short key.
type PublicURL struct {
	Key       string    `json:"key"`
	TargetURL string    `json:"target_url"`
	IsActive  bool      `json:"is_active"`
	Clicks    int64     `json:"clicks"`
	CreatedAt time.Time `json:"date_created"`
}

func (u *URL) Public() PublicURL {
	return PublicURL{
		Key:       u.Key,
		TargetURL: u.TargetURL,
		IsActive:  u.IsActive,
		Clicks:    u.Clicks,
		CreatedAt: u.CreatedAt,
	}
}
