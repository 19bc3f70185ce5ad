// Package lock serialises work per key, in process or across processes via redis.
package lock

import (
	"context"
	"errors"
)

var ErrEmptyKey = errors.New("lock key is empty")

// Locker grants exclusive use of a key until release is called.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
