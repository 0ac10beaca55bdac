package peer

import "errors"

var (
	ErrLockTimeout  = errors.New("peer list read lock was not acquired in time")
	ErrNoStat       = errors.New("statistics are not available")
	ErrUnknownQueue = errors.New("unknown queue family")
	ErrNotFound     = errors.New("peer not found")
	ErrDuplicate    = errors.New("peer already exists")
)
