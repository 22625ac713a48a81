package storage

import "errors"

// ErrConflict is returned by InsertRecord when the (device, person) identity already exists.
var ErrConflict = errors.New("record already exists")
