package repository

import "errors"

// ErrNoRowsAffected signals that a scoped write matched no rows, which the
// service layer surfaces as not-found.
var ErrNoRowsAffected = errors.New("no rows affected")
