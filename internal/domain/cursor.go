package domain

import "time"

// Cursor models the pagination token for unlock listings.
type Cursor struct {
	UnlockedAt time.Time
	Key        string
}
