package store

import "context"

type scopedStore struct {
	parent Store
	prefix string
}

// Scoped returns a view of parent whose keys live under namespace. It is how
// one visitor's storage is kept apart from another's. Closing the view is a
// no-op; the parent owns the connection.
func Scoped(parent Store, namespace string) Store {
	return &scopedStore{parent: parent, prefix: namespace + ":"}
}

func (s *scopedStore) Get(ctx context.Context, key string) (string, bool, error) {
	return s.parent.Get(ctx, s.prefix+key)
}

func (s *scopedStore) Set(ctx context.Context, key, value string) error {
	return s.parent.Set(ctx, s.prefix+key, value)
}

func (s *scopedStore) Delete(ctx context.Context, key string) error {
	return s.parent.Delete(ctx, s.prefix+key)
}

func (s *scopedStore) Close() error {
	return nil
}
