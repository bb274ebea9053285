package models

import (
	"time"

	"github.com/google/uuid"
)

// User identifies the submitter of an analysis, keyed by email. Users are
// created lazily on first submission; attaching one to a job is optional.
type User struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	Email     string    `db:"email"      json:"email"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
