package model

import "github.com/oklog/ulid/v2"

// NewTaskID generates a new ULID string identifying one job run.
func NewTaskID() string {
	return ulid.Make().String()
}
