// Package catalog serves the active course list, with an optional
// read-through cache in front of the database.
package catalog

import (
	"context"
	"time"

	"github.com/openlearnhq/coursegate/internal/store"
	"github.com/openlearnhq/coursegate/pkg/logger"
)

const activeCoursesKey = "catalog:active_courses"

// JSONCache is the cache surface the catalog needs.
type JSONCache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Catalog answers course listing queries. The cache is optional; without one
// every call hits the database.
type Catalog struct {
	records store.RecordStore
	cache   JSONCache
	ttl     time.Duration
	log     logger.Logger
}

// New creates a catalog. cache may be nil.
func New(records store.RecordStore, cache JSONCache, ttl time.Duration, log logger.Logger) *Catalog {
	return &Catalog{
		records: records,
		cache:   cache,
		ttl:     ttl,
		log:     log.WithFields(logger.StringField("component", "catalog")),
	}
}

// ActiveCourses returns the active courses, cached when a cache is wired.
// Cache failures degrade to a database read, never to an error.
func (c *Catalog) ActiveCourses(ctx context.Context) ([]store.Course, error) {
	if c.cache != nil {
		var cached []store.Course
		hit, err := c.cache.GetJSON(ctx, activeCoursesKey, &cached)
		if err != nil {
			c.log.Warn("course cache read failed", logger.ErrorField(err))
		} else if hit {
			return cached, nil
		}
	}

	courses, err := c.records.ListActiveCourses(ctx)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.SetJSON(ctx, activeCoursesKey, courses, c.ttl); err != nil {
			c.log.Warn("course cache write failed", logger.ErrorField(err))
		}
	}
	return courses, nil
}

// Invalidate drops the cached course list so the next read sees fresh data.
func (c *Catalog) Invalidate(ctx context.Context) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Delete(ctx, activeCoursesKey); err != nil {
		c.log.Warn("course cache invalidation failed", logger.ErrorField(err))
	}
}
