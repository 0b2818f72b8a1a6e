package chat

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thereayou/chatsync/internal/docstore"
	"github.com/thereayou/chatsync/internal/identity"
	"github.com/thereayou/chatsync/internal/models"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// recordingStore считает записи и умеет ронять Get для выбранных id
type recordingStore struct {
	*docstore.MemoryStore

	updates atomic.Int32
	adds    atomic.Int32

	mu      sync.Mutex
	getErrs map[string]error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{
		MemoryStore: docstore.NewMemoryStore(docstore.WithClock(docstore.NewClock(func() time.Time { return t0 }))),
		getErrs:     make(map[string]error),
	}
}

func (s *recordingStore) failGet(id string, err error) {
	s.mu.Lock()
	s.getErrs[id] = err
	s.mu.Unlock()
}

func (s *recordingStore) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	s.mu.Lock()
	err := s.getErrs[id]
	s.mu.Unlock()
	if err != nil {
		return docstore.Document{}, err
	}
	return s.MemoryStore.Get(ctx, collection, id)
}

func (s *recordingStore) Add(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	s.adds.Add(1)
	return s.MemoryStore.Add(ctx, collection, fields)
}

func (s *recordingStore) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	s.updates.Add(1)
	return s.MemoryStore.Update(ctx, collection, id, fields)
}

// scriptedStore отдаёт тесту каналы Watch, чтобы тот сам присылал batch'и
type scriptedStore struct {
	*recordingStore
	watches chan chan docstore.Batch
}

func newScriptedStore() *scriptedStore {
	return &scriptedStore{
		recordingStore: newRecordingStore(),
		watches:        make(chan chan docstore.Batch, 8),
	}
}

func (s *scriptedStore) Watch(ctx context.Context, q docstore.Query) (<-chan docstore.Batch, error) {
	ch := make(chan docstore.Batch, 8)
	s.watches <- ch
	return ch, nil
}

func (s *scriptedStore) nextWatch(t *testing.T) chan docstore.Batch {
	t.Helper()
	select {
	case ch := <-s.watches:
		return ch
	case <-time.After(2 * time.Second):
		t.Fatal("no watch opened")
		return nil
	}
}

func newClient(t *testing.T, store docstore.Store, provider identity.Provider) *Client {
	t.Helper()
	client, err := New(store, provider, DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func signedIn(t *testing.T, userID string) *identity.Session {
	t.Helper()
	session := identity.NewSession()
	require.NoError(t, session.SignIn(userID))
	return session
}

func strPtr(s string) *string {
	return &s
}

func seedUser(t *testing.T, store docstore.Store, id, first, last, image string) models.User {
	t.Helper()
	fields := docstore.Fields{"firstName": first, "lastName": last, "role": "user"}
	if image != "" {
		fields["imageUrl"] = image
	}
	require.NoError(t, store.Set(context.Background(), DefaultUsersCollection, id, fields))
	doc, err := store.Get(context.Background(), DefaultUsersCollection, id)
	require.NoError(t, err)
	return decodeUser(doc, nil)
}

func seedRoom(t *testing.T, store docstore.Store, id string, fields docstore.Fields) {
	t.Helper()
	require.NoError(t, store.Set(context.Background(), DefaultRoomsCollection, id, fields))
}

// collect канал, в который колбэк подписки складывает снимки
func collect[T any]() (chan T, func(T)) {
	ch := make(chan T, 64)
	return ch, func(v T) { ch <- v }
}

// await ждёт снимок, удовлетворяющий cond
func await[T any](t *testing.T, ch <-chan T, cond func(T) bool) T {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case v := <-ch:
			if cond(v) {
				return v
			}
		case <-timeout:
			t.Fatal("expected snapshot did not arrive")
			var zero T
			return zero
		}
	}
}

func roomIDs(rooms []models.Room) []string {
	out := make([]string, len(rooms))
	for i, r := range rooms {
		out[i] = r.ID
	}
	return out
}
