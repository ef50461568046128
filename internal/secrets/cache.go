package secrets

import "context"

// Cache memoizes customer secret bags for the duration of one handler
// invocation. It is constructed explicitly per invocation and passed down;
// it must never outlive the invocation, since tenant state is re-read
// fresh on every event.
type Cache struct {
	store   *Store
	entries map[string]*CustomerSecrets
}

// NewCache wraps the store with a per-invocation memo keyed by tenant
// account id.
func NewCache(store *Store) *Cache {
	return &Cache{
		store:   store,
		entries: make(map[string]*CustomerSecrets),
	}
}

// CustomerSecrets returns the tenant's bag, reading through to the store
// on first access.
func (c *Cache) CustomerSecrets(ctx context.Context, account string) (*CustomerSecrets, error) {
	if bag, ok := c.entries[account]; ok {
		return bag, nil
	}
	bag, err := c.store.CustomerSecrets(ctx, account)
	if err != nil {
		return nil, err
	}
	c.entries[account] = bag
	return bag, nil
}
