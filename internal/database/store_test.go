package database

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thereayou/chatsync/internal/chat"
	"github.com/thereayou/chatsync/internal/docstore"
	"github.com/thereayou/chatsync/internal/identity"
	"github.com/thereayou/chatsync/internal/models"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := Connect("sqlite", dsn)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return NewDatabase(db, nil, WithClock(docstore.NewClock(func() time.Time { return t0 })))
}

func nextBatch(t *testing.T, ch <-chan docstore.Batch) docstore.Batch {
	t.Helper()
	select {
	case b, ok := <-ch:
		require.True(t, ok, "watch channel closed")
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batch")
	}
	return docstore.Batch{}
}

func TestDatabaseRoundTrip(t *testing.T) {
	d := newTestDatabase(t)
	ctx := context.Background()

	err := d.Set(ctx, "rooms", "r1", docstore.Fields{
		"type":      "group",
		"userIds":   []string{"alice", "bob"},
		"userRoles": map[string]any{"alice": "admin"},
		"size":      int64(42),
		"ratio":     0.5,
		"seen":      t0.Add(-time.Hour),
		"createdAt": docstore.ServerTimestamp(),
	})
	require.NoError(t, err)

	doc, err := d.Get(ctx, "rooms", "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", doc.ID)
	assert.Equal(t, "group", doc.Fields["type"])
	assert.Equal(t, []any{"alice", "bob"}, doc.Fields["userIds"])
	assert.Equal(t, map[string]any{"alice": "admin"}, doc.Fields["userRoles"])
	assert.EqualValues(t, 42, doc.Fields["size"])
	assert.Equal(t, 0.5, doc.Fields["ratio"])

	createdAt, ok := doc.Fields["createdAt"].(time.Time)
	require.True(t, ok, "createdAt decoded as %T", doc.Fields["createdAt"])
	assert.True(t, createdAt.Equal(t0))
	seen, ok := doc.Fields["seen"].(time.Time)
	require.True(t, ok)
	assert.True(t, seen.Equal(t0.Add(-time.Hour)))

	_, err = d.Get(ctx, "rooms", "missing")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestDatabaseUpdateMerges(t *testing.T) {
	d := newTestDatabase(t)
	ctx := context.Background()

	id, err := d.Add(ctx, "messages", docstore.Fields{"text": "draft", "createdAt": docstore.ServerTimestamp()})
	require.NoError(t, err)

	require.NoError(t, d.Update(ctx, "messages", id, docstore.Fields{"text": "final", "updatedAt": docstore.ServerTimestamp()}))
	doc, err := d.Get(ctx, "messages", id)
	require.NoError(t, err)
	assert.Equal(t, "final", doc.Fields["text"])
	assert.True(t, doc.Fields["updatedAt"].(time.Time).After(doc.Fields["createdAt"].(time.Time)))

	err = d.Update(ctx, "messages", "missing", docstore.Fields{"text": "x"})
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	require.NoError(t, d.Delete(ctx, "messages", id))
	_, err = d.Get(ctx, "messages", id)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestDatabaseQueryAndWatch(t *testing.T) {
	d := newTestDatabase(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, d.Set(ctx, "rooms", "a", docstore.Fields{"userIds": []any{"alice"}, "updatedAt": t0}))
	require.NoError(t, d.Set(ctx, "rooms", "b", docstore.Fields{"userIds": []any{"bob"}, "updatedAt": t0}))
	require.NoError(t, d.Set(ctx, "other", "c", docstore.Fields{"userIds": []any{"alice"}, "updatedAt": t0}))

	q := docstore.Collection("rooms").Where("userIds", docstore.OpArrayContains, "alice").Order("updatedAt", true)
	docs, err := d.Query(ctx, q)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a", docs[0].ID)

	batches, err := d.Watch(ctx, q)
	require.NoError(t, err)
	assert.Len(t, nextBatch(t, batches).Docs, 1)

	require.NoError(t, d.Set(ctx, "rooms", "z", docstore.Fields{"userIds": []any{"alice", "bob"}, "updatedAt": t0.Add(time.Minute)}))
	b := nextBatch(t, batches)
	require.NoError(t, b.Err)
	require.Len(t, b.Docs, 2)
	assert.Equal(t, "z", b.Docs[0].ID)
}

func TestDatabaseQueryFiltersInSQL(t *testing.T) {
	d := newTestDatabase(t)
	ctx := context.Background()
	long := strings.Repeat("x", maxIndexedValue+1)

	require.NoError(t, d.Set(ctx, "rooms", "a", docstore.Fields{"type": "group", "userIds": []any{"alice", "bob"}, "note": long}))
	require.NoError(t, d.Set(ctx, "rooms", "b", docstore.Fields{"type": "direct", "userIds": []any{"bob"}}))

	countIndex := func(id string) int64 {
		var n int64
		require.NoError(t, d.DB().Model(&indexRow{}).Where("collection = ? AND doc_id = ?", "rooms", id).Count(&n).Error)
		return n
	}
	// type и два элемента userIds; длинная строка не индексируется
	assert.EqualValues(t, 3, countIndex("a"))

	// строка без записей в индексе не проходит строковый фильтр: он проверен в SQL
	body, err := encodeFields(docstore.Fields{"userIds": []any{"alice"}})
	require.NoError(t, err)
	require.NoError(t, d.DB().Create(&documentRow{Collection: "rooms", ID: "unindexed", Body: body}).Error)

	docs, err := d.Query(ctx, docstore.Collection("rooms").Where("userIds", docstore.OpArrayContains, "alice"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, docIDs(docs))

	docs, err = d.Query(ctx, docstore.Collection("rooms").Where("type", docstore.OpEqual, "direct").Where("userIds", docstore.OpArrayContains, "bob"))
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, docIDs(docs))

	// "==" по строке не совпадает с элементом массива
	docs, err = d.Query(ctx, docstore.Collection("rooms").Where("userIds", docstore.OpEqual, "bob"))
	require.NoError(t, err)
	assert.Empty(t, docs)

	// фильтр по длинной строке проверяется в памяти
	docs, err = d.Query(ctx, docstore.Collection("rooms").Where("note", docstore.OpEqual, long))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, docIDs(docs))

	require.NoError(t, d.Update(ctx, "rooms", "a", docstore.Fields{"userIds": []any{"bob"}}))
	docs, err = d.Query(ctx, docstore.Collection("rooms").Where("userIds", docstore.OpArrayContains, "alice"))
	require.NoError(t, err)
	assert.Empty(t, docs)

	require.NoError(t, d.Delete(ctx, "rooms", "a"))
	assert.Zero(t, countIndex("a"))
}

func docIDs(docs []docstore.Document) []string {
	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
	}
	return ids
}

func TestChatClientOverDatabase(t *testing.T) {
	d := newTestDatabase(t)
	ctx := context.Background()

	alice, err := chat.New(d, identity.Fixed("alice"), chat.DefaultConfig())
	require.NoError(t, err)
	defer alice.Close()

	first := "Bob"
	require.NoError(t, alice.CreateUser(ctx, models.User{ID: "alice"}))
	require.NoError(t, alice.CreateUser(ctx, models.User{ID: "bob", FirstName: &first}))

	bob, err := alice.FetchUser(ctx, "bob", nil)
	require.NoError(t, err)

	room, err := alice.CreateDirectRoom(ctx, bob, nil)
	require.NoError(t, err)
	again, err := alice.CreateDirectRoom(ctx, bob, nil)
	require.NoError(t, err)
	assert.Equal(t, room.ID, again.ID)
	assert.Equal(t, "Bob", *again.Name)

	id, err := alice.SendMessage(ctx, *room, models.NewText("hello"))
	require.NoError(t, err)
	docs, err := d.Query(ctx, docstore.Collection(alice.Config().MessagesCollection(room.ID)))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	msgs := chat.MaterializeMessages(docs, again.Users)
	assert.Equal(t, id, msgs[0].ID)
	assert.Equal(t, "alice", msgs[0].Author.ID)
}

func TestCredentials(t *testing.T) {
	d := newTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, d.SaveCredential(ctx, &Credential{UserID: "u1", Email: "a@example.com", PasswordHash: "hash"}))
	assert.Error(t, d.SaveCredential(ctx, &Credential{UserID: "u2", Email: "a@example.com", PasswordHash: "hash"}))

	cred, err := d.FindCredentialByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", cred.UserID)

	_, err = d.FindCredentialByEmail(ctx, "b@example.com")
	assert.ErrorIs(t, err, ErrCredentialNotFound)

	require.NoError(t, d.DeleteCredential(ctx, "u1"))
	_, err = d.FindCredentialByEmail(ctx, "a@example.com")
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestConnectUnknownDriver(t *testing.T) {
	_, err := Connect("oracle", "dsn")
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestRedisNotifier(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	n := NewRedisNotifier(client, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := n.Subscribe(ctx, "rooms")
	require.NoError(t, err)
	require.NoError(t, n.Publish(ctx, "rooms"))

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}

	cancel()
	select {
	case _, ok := <-ch:
		for ok {
			_, ok = <-ch
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
