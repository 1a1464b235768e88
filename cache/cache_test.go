package cache

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/chrisvdg/moviecache/notify"
	"github.com/chrisvdg/moviecache/storage"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(t *testing.T) (*Cache, storage.Store, *clock, *notify.Recorder) {
	store, err := storage.Open(storage.BackendMemory, storage.Options{ID: "test"})
	require.NoError(t, err)
	clk := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	rec := &notify.Recorder{}
	return New(store, WithClock(clk.now), WithNotifier(rec)), store, clk, rec
}

type movie struct {
	ID    int    `json:"id" msgpack:"id"`
	Title string `json:"title" msgpack:"title"`
}

func TestSetThenGet(t *testing.T) {
	assert := assert.New(t)
	c, store, _, rec := newTestCache(t)

	Set(c, "movies", []movie{{ID: 3, Title: "The Dark Knight"}}, nil, time.Minute)
	got, ok := Get[[]movie](c, "movies", nil)
	assert.True(ok)
	assert.Equal([]movie{{ID: 3, Title: "The Dark Knight"}}, got)

	raw, ok, err := store.GetItem("CACHE__movies")
	assert.NoError(err)
	assert.True(ok)
	var e map[string]json.RawMessage
	assert.NoError(json.Unmarshal([]byte(raw), &e))
	assert.Contains(e, "data")
	assert.Equal(`1714564860000`, string(e["expiry"]))

	assert.Empty(rec.Notifications())
}

func TestExpiredEntryIsRemovedOnRead(t *testing.T) {
	assert := assert.New(t)
	c, store, clk, _ := newTestCache(t)

	Set(c, "k", "v", nil, 10*time.Second)
	clk.advance(9 * time.Second)
	_, ok := Get[string](c, "k", nil)
	assert.True(ok)

	clk.advance(time.Second)
	_, ok = Get[string](c, "k", nil)
	assert.False(ok)

	has, err := store.Contains("CACHE__k")
	assert.NoError(err)
	assert.False(has)
}

func TestDefaultTTL(t *testing.T) {
	assert := assert.New(t)
	c, _, clk, _ := newTestCache(t)

	Set(c, "k", 1, nil, 0)
	clk.advance(DefaultTTL - time.Millisecond)
	_, ok := Get[int](c, "k", nil)
	assert.True(ok)
	clk.advance(time.Millisecond)
	_, ok = Get[int](c, "k", nil)
	assert.False(ok)
}

func TestInvalidate(t *testing.T) {
	assert := assert.New(t)
	c, _, _, _ := newTestCache(t)

	Set(c, "k", "v", nil, time.Hour)
	c.Invalidate("k")
	_, ok := Get[string](c, "k", nil)
	assert.False(ok)

	// missing keys are fine
	c.Invalidate("k")
}

func TestClearAllKeepsForeignKeys(t *testing.T) {
	assert := assert.New(t)
	c, store, _, _ := newTestCache(t)

	Set(c, "a", 1, nil, time.Hour)
	Set(c, "b", 2, nil, time.Hour)
	assert.NoError(store.SetItem("session_token", "abc"))

	assert.ElementsMatch([]string{"a", "b"}, c.Keys())
	c.ClearAll()

	keys, err := store.AllKeys()
	assert.NoError(err)
	assert.Equal([]string{"session_token"}, keys)
	assert.Empty(c.Keys())
}

func TestCorruptEntryIsAMiss(t *testing.T) {
	assert := assert.New(t)
	c, store, _, rec := newTestCache(t)

	assert.NoError(store.SetItem("CACHE__k", "{not json"))
	_, ok := Get[string](c, "k", nil)
	assert.False(ok)

	n := rec.Notifications()
	assert.Len(n, 1)
	assert.Equal(notify.LevelError, n[0].Level)
	assert.Equal("Error getting cached data", n[0].Message)
}

func TestNullDataIsAMiss(t *testing.T) {
	c, _, _, _ := newTestCache(t)

	Set[*movie](c, "k", nil, nil, time.Hour)
	_, ok := Get[*movie](c, "k", nil)
	assert.False(t, ok)
}

func TestMsgpackCodec(t *testing.T) {
	assert := assert.New(t)
	c, store, _, _ := newTestCache(t)
	codec := MsgpackCodec[movie]{}

	Set(c, "m", movie{ID: 7, Title: "Heat"}, codec, time.Hour)
	got, ok := Get(c, "m", codec)
	assert.True(ok)
	assert.Equal(movie{ID: 7, Title: "Heat"}, got)

	// the envelope stays JSON
	raw, _, err := store.GetItem("CACHE__m")
	assert.NoError(err)
	var e Entry
	assert.NoError(json.Unmarshal([]byte(raw), &e))
	assert.Equal(byte('"'), e.Data[0])

	// the JSON codec cannot read it back
	_, ok = Get[movie](c, "m", nil)
	assert.False(ok)
}

type brokenStore struct {
	storage.Store
}

var errBroken = errors.New("disk on fire")

func (brokenStore) SetItem(string, string) error { return errBroken }
func (brokenStore) GetItem(string) (string, bool, error) { return "", false, errBroken }
func (brokenStore) RemoveKey(string) error { return errBroken }
func (brokenStore) AllKeys() ([]string, error) { return nil, errBroken }
func (brokenStore) Contains(string) (bool, error) { return false, errBroken }
func (brokenStore) Clear() error { return errBroken }
func (brokenStore) Close() error { return nil }

func TestStorageFailuresAreAbsorbed(t *testing.T) {
	assert := assert.New(t)
	rec := &notify.Recorder{}
	c := New(brokenStore{}, WithNotifier(rec))

	assert.NotPanics(func() {
		Set(c, "k", "v", nil, time.Hour)
		_, ok := Get[string](c, "k", nil)
		assert.False(ok)
		c.Invalidate("k")
		c.ClearAll()
		assert.Empty(c.Keys())
		assert.Equal(0, c.Prune())
	})

	msgs := []string{}
	for _, n := range rec.Notifications() {
		assert.Equal(notify.LevelError, n.Level)
		msgs = append(msgs, n.Message)
	}
	assert.Equal([]string{
		"Error setting cached data",
		"Error getting cached data",
		"Error invalidating cache",
		"Error clearing cache",
		"Error listing cache",
		"Error clearing cache",
	}, msgs)
}

func TestOptions(t *testing.T) {
	assert := assert.New(t)
	store, err := storage.Open(storage.BackendMemory, storage.Options{ID: "test"})
	require.NoError(t, err)

	c := New(store, WithPrefix("Q"), WithTTL(time.Second), WithPrefix(""), WithTTL(-1))
	assert.Equal(time.Second, c.TTL())

	Set(c, "k", 1, nil, 0)
	has, err := store.Contains("Q_k")
	assert.NoError(err)
	assert.True(has)
}
