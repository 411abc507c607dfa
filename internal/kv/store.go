// Package kv provides the key-value persistence the cart and the local order fallback write to.
package kv

import (
	"context"
	"strings"
)

// Store is a string key-value store. Get reports found=false for a missing key.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

type namespaced struct {
	store  Store
	prefix string
}

// Namespace scopes every key of store under prefix, e.g. one shopping session.
func Namespace(store Store, prefix string) Store {
	if !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &namespaced{store: store, prefix: prefix}
}

func (n *namespaced) Get(ctx context.Context, key string) (string, bool, error) {
	return n.store.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key, value string) error {
	return n.store.Set(ctx, n.prefix+key, value)
}

func (n *namespaced) Remove(ctx context.Context, key string) error {
	return n.store.Remove(ctx, n.prefix+key)
}
