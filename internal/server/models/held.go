package models

import "time"

// HeldArticle is an article parked by the moderation filter: not stored in
// the public spool, retained until a moderator approves it (by reposting
// with a signed Approved header) or until it expires.
type HeldArticle struct {
	MessageID string
	Article   *Article
	Reason    string
	HeldAt    time.Time
	ExpiresAt time.Time
}
