package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thereayou/chatsync/internal/docstore"
	"github.com/thereayou/chatsync/internal/models"
)

func newResolver(store docstore.Store) *Resolver {
	return NewResolver(NewUserRepository(store, DefaultConfig()), zerolog.Nop())
}

func TestMaterializeRoomDirectIdentity(t *testing.T) {
	store := newRecordingStore()
	seedUser(t, store, "alice", "Alice", "Doe", "https://img/alice.png")
	seedUser(t, store, "bob", "Bob", "Smith", "https://img/bob.png")

	doc := docstore.Document{ID: "r1", Fields: docstore.Fields{
		"type":     "direct",
		"name":     "stale name",
		"imageUrl": "https://img/stale.png",
		"userIds":  []any{"alice", "bob"},
	}}

	room, err := MaterializeRoom(context.Background(), newResolver(store), &doc, "alice")
	require.NoError(t, err)
	require.Len(t, room.Users, 2)
	assert.Equal(t, models.RoomDirect, room.Type)
	assert.Equal(t, "Bob Smith", *room.Name)
	assert.Equal(t, "https://img/bob.png", *room.ImageURL)

	// с другой стороны та же комната называется именем Alice
	room, err = MaterializeRoom(context.Background(), newResolver(store), &doc, "bob")
	require.NoError(t, err)
	assert.Equal(t, "Alice Doe", *room.Name)
}

func TestMaterializeRoomDirectNameTrimmed(t *testing.T) {
	store := newRecordingStore()
	seedUser(t, store, "alice", "Alice", "", "")
	require.NoError(t, store.Set(context.Background(), DefaultUsersCollection, "carol", docstore.Fields{"lastName": "Jones"}))

	doc := docstore.Document{ID: "r1", Fields: docstore.Fields{
		"type":    "direct",
		"userIds": []any{"alice", "carol"},
	}}
	room, err := MaterializeRoom(context.Background(), newResolver(store), &doc, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Jones", *room.Name)
	assert.Nil(t, room.ImageURL)
}

func TestMaterializeRoomPlaceholders(t *testing.T) {
	store := newRecordingStore()
	seedUser(t, store, "alice", "Alice", "Doe", "")
	store.failGet("broken", errors.New("connection reset"))

	doc := docstore.Document{ID: "g1", Fields: docstore.Fields{
		"type":      "group",
		"name":      "Team",
		"userIds":   []any{"ghost", "alice", "broken", "alice"},
		"userRoles": map[string]any{"ghost": "admin", "alice": "moderator", "broken": "nonsense"},
	}}

	room, err := MaterializeRoom(context.Background(), newResolver(store), &doc, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"ghost", "alice", "broken"}, room.UserIDs())
	assert.Equal(t, "Team", *room.Name)

	ghost := room.Users[0]
	assert.Nil(t, ghost.FirstName)
	require.NotNil(t, ghost.Role)
	assert.Equal(t, models.RoleAdmin, *ghost.Role)

	alice := room.Users[1]
	assert.Equal(t, "Alice", *alice.FirstName)
	require.NotNil(t, alice.Role)
	assert.Equal(t, models.RoleModerator, *alice.Role)

	assert.Nil(t, room.Users[2].Role)
	assert.Nil(t, room.LastMessages)
}

func TestMaterializeRoomUnknownType(t *testing.T) {
	store := newRecordingStore()
	for _, fields := range []docstore.Fields{
		{"type": "broadcast", "userIds": []any{"alice"}},
		{"type": 7, "userIds": []any{"alice"}},
		{"userIds": []any{"alice"}},
	} {
		doc := docstore.Document{ID: "x", Fields: fields}
		room, err := MaterializeRoom(context.Background(), newResolver(store), &doc, "alice")
		require.NoError(t, err)
		assert.Equal(t, models.RoomUnsupported, room.Type)
	}
}

func TestMaterializeRoomNilDocument(t *testing.T) {
	_, err := MaterializeRoom(context.Background(), newResolver(newRecordingStore()), nil, "alice")
	assert.ErrorIs(t, err, ErrRecordAbsent)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestMaterializeRoomLastMessages(t *testing.T) {
	store := newRecordingStore()
	seedUser(t, store, "alice", "Alice", "Doe", "")
	seedUser(t, store, "bob", "Bob", "Smith", "")

	doc := docstore.Document{ID: "r1", Fields: docstore.Fields{
		"type":    "group",
		"name":    "Team",
		"userIds": []any{"alice", "bob"},
		"lastMessages": []any{
			map[string]any{"authorId": "bob", "type": "text", "text": "hi", "createdAt": t0},
			map[string]any{"id": "m2", "authorId": "stranger", "type": "image", "uri": "u", "name": "n", "size": uint64(10)},
			"garbage",
		},
	}}

	room, err := MaterializeRoom(context.Background(), newResolver(store), &doc, "alice")
	require.NoError(t, err)
	require.Len(t, room.LastMessages, 2)

	first := room.LastMessages[0]
	assert.Equal(t, "", first.ID)
	assert.Equal(t, "Bob", *first.Author.FirstName)
	assert.Equal(t, models.MessageText, first.Type)
	assert.Equal(t, t0, *first.CreatedAt)

	second := room.LastMessages[1]
	assert.Equal(t, "m2", second.ID)
	assert.Equal(t, models.Placeholder("stranger"), second.Author)
	assert.Equal(t, models.MessageImage, second.Type)
	assert.Equal(t, int64(10), second.Size)
}

func TestMaterializeRoomsKeepsOrder(t *testing.T) {
	store := newRecordingStore()
	seedUser(t, store, "alice", "Alice", "Doe", "")
	docs := []docstore.Document{
		{ID: "c", Fields: docstore.Fields{"type": "group", "userIds": []any{"alice"}}},
		{ID: "a", Fields: docstore.Fields{"type": "group", "userIds": []any{"alice"}}},
		{ID: "b", Fields: docstore.Fields{"type": "channel", "userIds": []any{"alice"}}},
	}
	rooms := MaterializeRooms(context.Background(), newResolver(store), docs, "alice")
	assert.Equal(t, []string{"c", "a", "b"}, roomIDs(rooms))
	assert.Equal(t, models.RoomChannel, rooms[2].Type)
}

func TestResolverToleratesFailures(t *testing.T) {
	store := newRecordingStore()
	seedUser(t, store, "alice", "Alice", "Doe", "")
	store.failGet("bob", errors.New("timeout"))

	got := newResolver(store).Resolve(context.Background(), []string{"alice", "bob", "alice", "nobody", ""}, nil)
	require.Len(t, got, 1)
	assert.Equal(t, "Alice", *got["alice"].FirstName)
}

func TestFetchUserRoleOverride(t *testing.T) {
	store := newRecordingStore()
	seedUser(t, store, "alice", "Alice", "Doe", "")
	repo := NewUserRepository(store, DefaultConfig())

	user, err := repo.FetchUser(context.Background(), "alice", nil)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, *user.Role)

	admin := models.RoleAdmin
	user, err = repo.FetchUser(context.Background(), "alice", &admin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, *user.Role)

	_, err = repo.FetchUser(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateUserStampsTimes(t *testing.T) {
	store := newRecordingStore()
	repo := NewUserRepository(store, DefaultConfig())
	role := models.RoleAgent

	require.NoError(t, repo.CreateUser(context.Background(), models.User{
		ID:        "u1",
		FirstName: strPtr("Ann"),
		Role:      &role,
		Metadata:  map[string]any{"team": "support"},
	}))

	user, err := repo.FetchUser(context.Background(), "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, "Ann", *user.FirstName)
	assert.Nil(t, user.LastName)
	assert.Equal(t, models.RoleAgent, *user.Role)
	assert.Equal(t, "support", user.Metadata["team"])
	require.NotNil(t, user.CreatedAt)
	assert.Equal(t, user.CreatedAt, user.UpdatedAt)

	require.NoError(t, repo.UpdateLastSeen(context.Background(), "u1"))
	user, err = repo.FetchUser(context.Background(), "u1", nil)
	require.NoError(t, err)
	require.NotNil(t, user.LastSeen)
	assert.True(t, user.LastSeen.After(*user.CreatedAt))

	assert.ErrorIs(t, repo.CreateUser(context.Background(), models.User{}), ErrEmptyUserID)

	require.NoError(t, repo.DeleteUser(context.Background(), "u1"))
	_, err = repo.FetchUser(context.Background(), "u1", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}
