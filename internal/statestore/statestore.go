// Package statestore persists the client-held state of the storefront (the
// cart and the order history) under string keys. Values are opaque JSON
// documents; the cart and orderhistory packages own their encoding.
package statestore

import (
	"context"
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

// Keys used by the storefront client.
const (
	CartKey   = "chilirig-cart"
	OrdersKey = "chilirig-orders"
)

// ErrNotFound is returned by Load when nothing is stored under the key.
var ErrNotFound = errors.New("state not found")

// Store is a key-value persistence port.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// Open returns the store for dsn:
//
//	redis://[:password@]host:port/db  Redis
//	memory:                           process memory
//	file:///path, /path or path       JSON files in a directory
func Open(dsn string) (Store, error) {
	switch {
	case dsn == "memory:" || dsn == "memory":
		return NewMemory(), nil
	case strings.HasPrefix(dsn, "redis://"), strings.HasPrefix(dsn, "rediss://"):
		opts, err := redis.ParseURL(dsn)
		if err != nil {
			return nil, errors.Wrap(err, "parse redis url")
		}
		return NewRedis(redis.NewClient(opts), DefaultRedisPrefix, 0), nil
	case strings.HasPrefix(dsn, "file://"):
		u, err := url.Parse(dsn)
		if err != nil {
			return nil, errors.Wrap(err, "parse file url")
		}
		return NewFile(u.Path)
	case dsn == "":
		return nil, errors.New("empty state store location")
	default:
		return NewFile(dsn)
	}
}
