package pagecms

import (
	"time"

	cache "github.com/patrickmn/go-cache"
)

const (
	tagsKey     = "\x00tags"
	tagIndexKey = "\x00tag-index"
)

// PageCache is an in-memory TTL cache in front of the store's routing and
// tag lookups. Admin writes and scheduled publishing call Invalidate.
type PageCache struct {
	store *Store
	c     *cache.Cache
}

// NewPageCache creates a PageCache backed by the given Store.
func NewPageCache(s *Store, ttl time.Duration) *PageCache {
	return &PageCache{store: s, c: cache.New(ttl, 2*ttl)}
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *PageCache) Invalidate() {
	c.c.Flush()
}

// Route returns the page at the URL path, e.g. "/blog/my-post/". The
// returned page is shared; callers must not modify it.
func (c *PageCache) Route(path string) (*Page, error) {
	if v, ok := c.c.Get(path); ok {
		return v.(*Page), nil
	}
	p, err := c.store.GetPageByPath(path)
	if err != nil {
		return nil, err
	}
	c.c.SetDefault(path, p)
	return p, nil
}

// ListTags returns all unique tags of live blog pages.
func (c *PageCache) ListTags() ([]string, error) {
	if v, ok := c.c.Get(tagsKey); ok {
		return v.([]string), nil
	}
	tags, err := c.store.ListTags()
	if err != nil {
		return nil, err
	}
	c.c.SetDefault(tagsKey, tags)
	return tags, nil
}

// TagIndexPath returns the URL path of the first live tag index page, or
// "" when there is none.
func (c *PageCache) TagIndexPath() (string, error) {
	if v, ok := c.c.Get(tagIndexKey); ok {
		return v.(string), nil
	}
	p, err := c.store.FirstLivePage(TypeBlogTagIndexPage)
	if err != nil && err != ErrNotFound {
		return "", err
	}
	path := ""
	if p != nil {
		path = p.URLPath
	}
	c.c.SetDefault(tagIndexKey, path)
	return path, nil
}
