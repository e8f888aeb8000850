package repository

import "context"

// JobLocker serializes work on a single job. Distinct keys never contend.
type JobLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
