package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/HammerMeetNail/memeboard/internal/database"
	"github.com/HammerMeetNail/memeboard/internal/storage"
)

// newTestDB returns a migrated SQLite database in a temp dir.
func newTestDB(t *testing.T) DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "board.db")
	sqliteDB, err := database.NewSQLiteDB(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(sqliteDB.Close)

	m, err := database.NewMigrator(database.SQLiteMigrationURL(path), database.DriverSQLite)
	require.NoError(t, err)
	require.NoError(t, m.Up())
	require.NoError(t, m.Close())

	return NewSQLAdapter(sqliteDB.DB)
}

func insertMeme(t *testing.T, db DB, title string) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(context.Background(),
		`INSERT INTO memes (title, path, uploaded_by) VALUES ($1, $2, $3) RETURNING id`,
		title, "memes/"+title+".png", "tester",
	).Scan(&id)
	require.NoError(t, err)
	return id
}

// memStore is an in-memory storage.Store.
type memStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	putErr   error
	delErr   error
	puts     int
	deletes  []string
	existing map[string]bool
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, existing: map[string]bool{}}
}

func (m *memStore) Put(ctx context.Context, key string, r io.Reader) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	if _, ok := m.objects[key]; ok || m.existing[key] {
		return storage.ErrExists
	}
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(r); err != nil {
		return err
	}
	m.objects[key] = buf.Bytes()
	return nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, key)
	if m.delErr != nil {
		return m.delErr
	}
	delete(m.objects, key)
	return nil
}

func (m *memStore) URL(key string) string {
	return "/assets/" + key
}

func (m *memStore) Health(ctx context.Context) error {
	return nil
}

func (m *memStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

// fakeRedis is an in-memory RedisClient. beforeSet, when set, runs once
// just before the next guarded write is checked.
type fakeRedis struct {
	mu        sync.Mutex
	values    map[string]string
	err       error
	bumpErrs  int
	gets      int
	dels      []string
	beforeSet func()
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}}
}

func (f *fakeRedis) GetMany(ctx context.Context, keys []string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]string{}
	for _, k := range keys {
		if v, ok := f.values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (f *fakeRedis) SetManyGuarded(ctx context.Context, values []GuardedValue, ttl time.Duration) (int, error) {
	f.mu.Lock()
	hook := f.beforeSet
	f.beforeSet = nil
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	written := 0
	for _, v := range values {
		current, ok := f.values[v.GuardKey]
		if !ok {
			current = "0"
		}
		if current != v.Guard {
			continue
		}
		f.values[v.Key] = v.Value
		written++
	}
	return written, nil
}

func (f *fakeRedis) Bump(ctx context.Context, counters []string, counterTTL time.Duration, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.bumpErrs > 0 {
		f.bumpErrs--
		return errors.New("connection reset")
	}
	for _, c := range counters {
		n, _ := strconv.Atoi(f.values[c])
		f.values[c] = strconv.Itoa(n + 1)
	}
	for _, k := range keys {
		f.dels = append(f.dels, k)
		delete(f.values, k)
	}
	return nil
}
