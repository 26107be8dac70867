package models

import "github.com/google/uuid"

// assignID fills a nil primary key so inserts work on dialects without
// gen_random_uuid() (sqlite in tests and local runs).
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
