package models

import "time"

type Newsgroup struct {
	Name      string
	Moderated bool
	CreatedAt time.Time
}
