package model

import "time"

// PushSubscription is one browser push registration. Rows are created by
// the registration flow; this engine only reads them and deletes entries
// the push service reports as gone.
type PushSubscription struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Endpoint  string    `json:"endpoint"`
	P256dhKey string    `json:"p256dh_key"`
	AuthKey   string    `json:"auth_key"`
	CreatedAt time.Time `json:"created_at"`
}
