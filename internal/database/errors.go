package database

import "errors"

var (
	// ErrNotFound is returned when a requested run does not exist.
	ErrNotFound = errors.New("not found in archive")

	// ErrNilReport is returned when SaveRun is called without a report.
	ErrNilReport = errors.New("report is nil")

	// ErrDatabaseMissing is returned by Open when the database file does not
	// exist and creation was not requested.
	ErrDatabaseMissing = errors.New("database not found")
)
