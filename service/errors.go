package service

import "errors"

var (
	// ErrCaseNotFound is returned when a case id does not exist
	ErrCaseNotFound = errors.New("case not found")

	// ErrIngestionRunNotFound is returned when an ingestion run id does not exist
	ErrIngestionRunNotFound = errors.New("ingestion run not found")

	// ErrInvalidFilter is returned for out-of-range pagination or filter values
	ErrInvalidFilter = errors.New("invalid filter")
)
