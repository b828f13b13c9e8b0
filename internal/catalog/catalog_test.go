package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlearnhq/coursegate/internal/store"
	"github.com/openlearnhq/coursegate/pkg/logger"
)

type fakeCache struct {
	data    map[string][]byte
	getErr  error
	setErr  error
	deletes []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (f *fakeCache) GetJSON(_ context.Context, key string, dest any) (bool, error) {
	if f.getErr != nil {
		return false, f.getErr
	}
	raw, ok := f.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (f *fakeCache) SetJSON(_ context.Context, key string, value any, _ time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.data[key] = raw
	return nil
}

func (f *fakeCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
		f.deletes = append(f.deletes, k)
	}
	return nil
}

type countingRecords struct {
	store.RecordStore
	courses []store.Course
	listErr error
	calls   int
}

func (c *countingRecords) ListActiveCourses(context.Context) ([]store.Course, error) {
	c.calls++
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.courses, nil
}

func TestActiveCoursesWithoutCache(t *testing.T) {
	records := &countingRecords{courses: []store.Course{{ID: 1, Title: "Go Basics"}}}
	cat := New(records, nil, time.Minute, logger.NewNopLogger())

	courses, err := cat.ActiveCourses(context.Background())
	require.NoError(t, err)
	assert.Len(t, courses, 1)

	_, err = cat.ActiveCourses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, records.calls, "no cache means every call hits the store")
}

func TestActiveCoursesCachesResult(t *testing.T) {
	records := &countingRecords{courses: []store.Course{{ID: 1, Title: "Go Basics"}}}
	cat := New(records, newFakeCache(), time.Minute, logger.NewNopLogger())

	first, err := cat.ActiveCourses(context.Background())
	require.NoError(t, err)

	second, err := cat.ActiveCourses(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, records.calls, "second read is served from cache")
}

func TestActiveCoursesCacheErrorsDegradeToStore(t *testing.T) {
	records := &countingRecords{courses: []store.Course{{ID: 1}}}
	cache := newFakeCache()
	cache.getErr = errors.New("connection refused")
	cache.setErr = errors.New("connection refused")
	cat := New(records, cache, time.Minute, logger.NewNopLogger())

	courses, err := cat.ActiveCourses(context.Background())
	require.NoError(t, err, "a broken cache must not break listings")
	assert.Len(t, courses, 1)
	assert.Equal(t, 1, records.calls)
}

func TestActiveCoursesStoreErrorPropagates(t *testing.T) {
	records := &countingRecords{listErr: errors.New("db down")}
	cat := New(records, newFakeCache(), time.Minute, logger.NewNopLogger())

	_, err := cat.ActiveCourses(context.Background())
	require.Error(t, err)
}

func TestInvalidateDropsCachedList(t *testing.T) {
	records := &countingRecords{courses: []store.Course{{ID: 1}}}
	cache := newFakeCache()
	cat := New(records, cache, time.Minute, logger.NewNopLogger())

	_, err := cat.ActiveCourses(context.Background())
	require.NoError(t, err)

	cat.Invalidate(context.Background())
	assert.Equal(t, []string{activeCoursesKey}, cache.deletes)

	_, err = cat.ActiveCourses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, records.calls, "invalidation forces a fresh store read")
}
