package types

import "time"

// Backup is a repository CAR export stored in object storage
type Backup struct {
	DID     string    `json:"did"`
	Key     string    `json:"key"`
	Size    int64     `json:"size"`
	Created time.Time `json:"created"`
}
