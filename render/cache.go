package render

import "github.com/cespare/xxhash/v2"

// KeyFor derives the content-addressed key for a resource path or id.
func KeyFor(source string) ResourceKey {
	return ResourceKey(xxhash.Sum64String(source))
}

// refCache reference-counts backend resources so shared meshes and
// materials upload once and release only when the last user is gone.
type refCache struct {
	refs    map[ResourceKey]int
	sources map[ResourceKey]string
}

func newRefCache() *refCache {
	return &refCache{
		refs:    map[ResourceKey]int{},
		sources: map[ResourceKey]string{},
	}
}

// acquire bumps the refcount and reports whether this is the first
// user, i.e. the resource needs an upload.
func (c *refCache) acquire(source string) (ResourceKey, bool) {
	key := KeyFor(source)
	c.refs[key]++
	c.sources[key] = source
	return key, c.refs[key] == 1
}

// release drops one reference and reports whether the resource is now
// unused and should be freed.
func (c *refCache) release(key ResourceKey) bool {
	n, ok := c.refs[key]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(c.refs, key)
		delete(c.sources, key)
		return true
	}
	c.refs[key] = n - 1
	return false
}

func (c *refCache) count(key ResourceKey) int { return c.refs[key] }
