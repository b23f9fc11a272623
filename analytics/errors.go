package analytics

import "errors"

var (
	ErrRunInProgress     = errors.New("analytics run already in progress for franchise")
	ErrFranchiseRequired = errors.New("franchise id is required")
	ErrUnknownJob        = errors.New("unknown analytics job")
)
