package repository

import "errors"

var (
	ErrNavigationTimeout = errors.New("navigation timed out")
	ErrNavigationFailed  = errors.New("navigation failed")
	ErrSnapshotFailed    = errors.New("could not read page DOM")
	ErrRunInProgress     = errors.New("another reconciliation run is in progress")
	ErrNotFound          = errors.New("not found")
	ErrLockLost          = errors.New("run lock is no longer held")
)
