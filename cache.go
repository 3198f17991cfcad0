package main

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// cachedForm stores a form (with its fields) plus the fetch timestamp.
type cachedForm struct {
	Form      Form
	Timestamp time.Time
}

// FormCache keeps recently used form schemas in memory so the intake
// pipeline does not hit the database for every submission to a hot form.
type FormCache struct {
	forms *lru.Cache[string, cachedForm]
	ttl   time.Duration
}

// NewFormCache creates a form cache with the specified size and TTL.
func NewFormCache(size int, ttl time.Duration) (*FormCache, error) {
	forms, err := lru.New[string, cachedForm](size)
	if err != nil {
		return nil, err
	}
	return &FormCache{forms: forms, ttl: ttl}, nil
}

// Get retrieves a cached form by hash.
func (c *FormCache) Get(hash string) (Form, bool) {
	cached, ok := c.forms.Get(hash)
	if !ok {
		return Form{}, false
	}
	if time.Since(cached.Timestamp) > c.ttl {
		c.forms.Remove(hash)
		return Form{}, false
	}
	return cached.Form, true
}

// Set stores a form under its hash.
func (c *FormCache) Set(form Form) {
	c.forms.Add(form.Hash, cachedForm{
		Form:      form,
		Timestamp: time.Now(),
	})
}

// Invalidate drops the cached entry for a hash. Called whenever the admin
// surface mutates a form or its fields.
func (c *FormCache) Invalidate(hash string) {
	c.forms.Remove(hash)
}

// Clear removes all entries from the cache.
func (c *FormCache) Clear() {
	c.forms.Purge()
}
