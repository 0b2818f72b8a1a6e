package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thereayou/chatsync/internal/docstore"
	"github.com/thereayou/chatsync/internal/identity"
	"github.com/thereayou/chatsync/internal/models"
)

func TestMaterializeMessages(t *testing.T) {
	alice := models.User{ID: "alice", FirstName: strPtr("Alice")}
	docs := []docstore.Document{
		{ID: "m3", Fields: docstore.Fields{"authorId": "alice", "type": "text", "text": "newest", "status": "seen"}},
		{ID: "m2", Fields: docstore.Fields{"authorId": "mallory", "type": "file", "uri": "s3://f", "name": "f.pdf", "size": int64(3), "mimeType": "application/pdf"}},
		{ID: "m1", Fields: docstore.Fields{"authorId": "alice", "type": "image", "uri": "s3://i", "name": "i.png"}},
		{ID: "m0", Fields: docstore.Fields{"authorId": "alice", "type": "sticker"}},
	}

	msgs := MaterializeMessages(docs, []models.User{alice})
	require.Len(t, msgs, 4)

	assert.Equal(t, "m3", msgs[0].ID)
	assert.Equal(t, alice, msgs[0].Author)
	assert.Equal(t, "newest", msgs[0].Text)
	assert.Equal(t, models.StatusSeen, *msgs[0].Status)

	assert.Equal(t, models.Placeholder("mallory"), msgs[1].Author)
	assert.Equal(t, models.MessageFile, msgs[1].Type)
	assert.Equal(t, "application/pdf", *msgs[1].MimeType)

	// у картинки нет size
	assert.Equal(t, models.MessageUnsupported, msgs[2].Type)
	assert.Empty(t, msgs[2].URI)

	assert.Equal(t, models.MessageUnsupported, msgs[3].Type)
}

func TestSendMessageRoundTrip(t *testing.T) {
	store := newRecordingStore()
	alice := seedUser(t, store, "alice", "Alice", "Doe", "")
	bob := seedUser(t, store, "bob", "Bob", "Smith", "")
	client := newClient(t, store, signedIn(t, "alice"))
	ctx := context.Background()

	room, err := client.CreateDirectRoom(ctx, bob, nil)
	require.NoError(t, err)

	snapshots, fn := collect[[]models.Message]()
	sub, err := client.SubscribeMessages(ctx, *room, fn)
	require.NoError(t, err)
	defer sub.Release()
	await(t, snapshots, func(m []models.Message) bool { return len(m) == 0 })

	preview := &models.PreviewData{Title: strPtr("Example"), Image: &models.PreviewDataImage{URL: "https://img", Width: 10, Height: 20}}
	partial := models.NewText("hello")
	partial.PreviewData = preview
	id, err := client.SendMessage(ctx, *room, partial)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs := await(t, snapshots, func(m []models.Message) bool { return len(m) == 1 })
	msg := msgs[0]
	assert.Equal(t, id, msg.ID)
	assert.Equal(t, models.MessageText, msg.Type)
	assert.Equal(t, "hello", msg.Text)
	assert.Equal(t, preview, msg.PreviewData)
	assert.Equal(t, alice.ID, msg.Author.ID)
	assert.Equal(t, "Alice", *msg.Author.FirstName)
	require.NotNil(t, msg.CreatedAt)
	require.NotNil(t, msg.UpdatedAt)
	assert.False(t, msg.UpdatedAt.Before(*msg.CreatedAt))

	second, err := client.SendMessage(ctx, *room, models.NewImage("s3://cat", "cat.png", 2048))
	require.NoError(t, err)
	msgs = await(t, snapshots, func(m []models.Message) bool { return len(m) == 2 })
	assert.Equal(t, second, msgs[0].ID, "newest first")
	assert.Equal(t, int64(2048), msgs[0].Size)
}

func TestSendMessageValidation(t *testing.T) {
	store := newRecordingStore()
	client := newClient(t, store, signedIn(t, "alice"))
	room := models.Room{ID: "r1"}

	_, err := client.SendMessage(context.Background(), room, models.NewText(""))
	assert.ErrorIs(t, err, ErrInvalidMessage)
	_, err = client.SendMessage(context.Background(), room, models.PartialMessage{Type: "poll"})
	assert.ErrorIs(t, err, ErrInvalidMessage)
	_, err = client.SendMessage(context.Background(), room, models.NewFile("", "a.txt", 1))
	assert.ErrorIs(t, err, ErrInvalidMessage)
	assert.Zero(t, store.adds.Load())
}

func TestSendMessageSignedOut(t *testing.T) {
	store := newRecordingStore()
	client := newClient(t, store, identity.NewSession())

	id, err := client.SendMessage(context.Background(), models.Room{ID: "r1"}, models.NewText("hi"))
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Zero(t, store.adds.Load())
}

func TestUpdateMessage(t *testing.T) {
	store := newRecordingStore()
	seedUser(t, store, "alice", "Alice", "Doe", "")
	bob := seedUser(t, store, "bob", "Bob", "Smith", "")
	session := signedIn(t, "alice")
	client := newClient(t, store, session)
	ctx := context.Background()

	room, err := client.CreateDirectRoom(ctx, bob, nil)
	require.NoError(t, err)
	_, err = client.SendMessage(ctx, *room, models.NewText("draft"))
	require.NoError(t, err)

	docs, err := store.Query(ctx, docstore.Collection(client.Config().MessagesCollection(room.ID)))
	require.NoError(t, err)
	msg := MaterializeMessages(docs, room.Users)[0]

	t.Run("non-author issues no write", func(t *testing.T) {
		require.NoError(t, session.SignIn("bob"))
		defer func() { require.NoError(t, session.SignIn("alice")) }()

		edited := msg
		edited.Text = "hijacked"
		ok, err := client.UpdateMessage(ctx, *room, edited)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, store.updates.Load())
	})

	t.Run("signed out issues no write", func(t *testing.T) {
		session.SignOut()
		defer func() { require.NoError(t, session.SignIn("alice")) }()

		ok, err := client.UpdateMessage(ctx, *room, msg)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, store.updates.Load())
	})

	t.Run("author updates", func(t *testing.T) {
		edited := msg
		edited.Text = "final"
		seen := models.StatusSeen
		edited.Status = &seen

		ok, err := client.UpdateMessage(ctx, *room, edited)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int32(1), store.updates.Load())

		doc, err := store.Get(ctx, client.Config().MessagesCollection(room.ID), msg.ID)
		require.NoError(t, err)
		assert.Equal(t, "final", doc.Fields["text"])
		assert.Equal(t, "alice", doc.Fields["authorId"])
		assert.Equal(t, "seen", doc.Fields["status"])
		assert.NotContains(t, doc.Fields, "author")
		assert.NotContains(t, doc.Fields, "id")

		updated := MaterializeMessages([]docstore.Document{doc}, room.Users)[0]
		assert.Equal(t, *msg.CreatedAt, *updated.CreatedAt)
		assert.True(t, updated.UpdatedAt.After(*msg.UpdatedAt))
	})
}
