// Package chat синхронизирует пользовательские представления чата поверх
// документного хранилища: подписки на комнаты, комнату, сообщения и
// пользователей, разрешение ссылок на пользователей и команды записи.
package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/thereayou/chatsync/internal/docstore"
	"github.com/thereayou/chatsync/internal/identity"
	"github.com/thereayou/chatsync/internal/metrics"
	"github.com/thereayou/chatsync/internal/models"
)

var ErrClientClosed = errors.New("chat: client closed")

const (
	kindRooms    = "rooms"
	kindRoom     = "room"
	kindMessages = "messages"
	kindUsers    = "users"
)

type handle interface {
	restart()
	Release()
}

// Client точка входа: хранит подписки и перезапускает пользовательские
// подписки при входе и выходе.
type Client struct {
	store    docstore.Store
	identity identity.Provider
	cfg      Config
	log      zerolog.Logger
	users    *UserRepository
	resolver *Resolver

	mu          sync.Mutex
	subs        map[handle]bool // true для подписок, зависящих от пользователя
	closed      bool
	unsubscribe func()
}

type Option func(*Client)

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.log = logger
	}
}

func New(store docstore.Store, provider identity.Provider, cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		store:    store,
		identity: provider,
		cfg:      cfg,
		log:      zerolog.Nop(),
		subs:     make(map[handle]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.users = NewUserRepository(store, cfg)
	c.resolver = NewResolver(c.users, c.log)
	c.unsubscribe = provider.Subscribe(c.onIdentityChange)
	return c, nil
}

func (c *Client) Config() Config {
	return c.cfg
}

// Close освобождает все подписки и отписывается от смены пользователя
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	subs := make([]handle, 0, len(c.subs))
	for h := range c.subs {
		subs = append(subs, h)
	}
	c.mu.Unlock()

	c.unsubscribe()
	for _, h := range subs {
		h.Release()
	}
}

func (c *Client) onIdentityChange(userID string, signedIn bool) {
	c.mu.Lock()
	var perUser []handle
	for h, scoped := range c.subs {
		if scoped {
			perUser = append(perUser, h)
		}
	}
	c.mu.Unlock()

	c.log.Info().Str("user_id", userID).Bool("signed_in", signedIn).Int("subscriptions", len(perUser)).Msg("identity changed")
	for _, h := range perUser {
		h.restart()
	}
}

func register[T any](c *Client, sub *Subscription[T], perUser bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	c.subs[sub] = perUser
	sub.detach = func() {
		c.mu.Lock()
		delete(c.subs, sub)
		c.mu.Unlock()
	}
	c.mu.Unlock()

	sub.start()
	return nil
}

// SubscribeRooms комнаты текущего пользователя; orderByRecency сортирует по
// updatedAt, новые первыми. Без пользователя публикует пустой список.
func (c *Client) SubscribeRooms(ctx context.Context, orderByRecency bool, fn func([]models.Room), opts ...SubscribeOption) (*Subscription[[]models.Room], error) {
	src := func(ctx context.Context, opened func(), emit func([]models.Room)) error {
		uid, ok := c.identity.CurrentUser()
		if !ok {
			return idle(ctx, opened, emit, []models.Room{})
		}

		q := docstore.Collection(c.cfg.RoomsCollection).Where("userIds", docstore.OpArrayContains, uid)
		if orderByRecency {
			q = q.Order("updatedAt", true)
		}
		batches, err := c.store.Watch(ctx, q)
		if err != nil {
			return err
		}
		opened()
		return consume(ctx, batches, func(b docstore.Batch) error {
			start := time.Now()
			rooms := MaterializeRooms(ctx, c.resolver, b.Docs, uid)
			metrics.MaterializeDuration.WithLabelValues(kindRooms).Observe(time.Since(start).Seconds())
			emit(rooms)
			return nil
		})
	}

	sub := newSubscription[[]models.Room](ctx, kindRooms, c.log, src, fn, buildOptions(opts))
	if err := register(c, sub, true); err != nil {
		return nil, err
	}
	return sub, nil
}

// SubscribeRoom одна комната. Без пользователя и для не участника публикует nil.
// Если документ пропал, batch пропускается, подписка продолжает работать.
func (c *Client) SubscribeRoom(ctx context.Context, roomID string, fn func(*models.Room), opts ...SubscribeOption) (*Subscription[*models.Room], error) {
	src := func(ctx context.Context, opened func(), emit func(*models.Room)) error {
		uid, ok := c.identity.CurrentUser()
		if !ok {
			return idle[*models.Room](ctx, opened, emit, nil)
		}

		batches, err := c.store.WatchDocument(ctx, c.cfg.RoomsCollection, roomID)
		if err != nil {
			return err
		}
		opened()
		return consume(ctx, batches, func(b docstore.Batch) error {
			var doc *docstore.Document
			if len(b.Docs) > 0 {
				doc = &b.Docs[0]
			}
			// не участнику комната не видна, даже если документ есть
			if doc != nil && !hasMember(decodeRawRoom(*doc).userIDs, uid) {
				emit(nil)
				return nil
			}
			start := time.Now()
			room, err := MaterializeRoom(ctx, c.resolver, doc, uid)
			if err != nil {
				c.log.Warn().Err(err).Str("room_id", roomID).Msg("room snapshot skipped")
				return nil
			}
			metrics.MaterializeDuration.WithLabelValues(kindRoom).Observe(time.Since(start).Seconds())
			emit(&room)
			return nil
		})
	}

	sub := newSubscription[*models.Room](ctx, kindRoom, c.log, src, fn, buildOptions(opts))
	if err := register(c, sub, true); err != nil {
		return nil, err
	}
	return sub, nil
}

// SubscribeMessages сообщения комнаты, новые первыми. Авторы берутся из
// room.Users; при смене состава комнаты подписку нужно открыть заново.
// Членство проверяется по документу комнаты на каждом batch'е: без
// пользователя и для не участника публикуется пустой список.
func (c *Client) SubscribeMessages(ctx context.Context, room models.Room, fn func([]models.Message), opts ...SubscribeOption) (*Subscription[[]models.Message], error) {
	participants := append([]models.User(nil), room.Users...)
	src := func(ctx context.Context, opened func(), emit func([]models.Message)) error {
		uid, ok := c.identity.CurrentUser()
		if !ok {
			return idle(ctx, opened, emit, []models.Message{})
		}

		q := docstore.Collection(c.cfg.MessagesCollection(room.ID)).Order("createdAt", true)
		batches, err := c.store.Watch(ctx, q)
		if err != nil {
			return err
		}
		opened()
		return consume(ctx, batches, func(b docstore.Batch) error {
			member, err := c.isMember(ctx, room.ID, uid)
			if err != nil {
				return err
			}
			if !member {
				emit([]models.Message{})
				return nil
			}
			start := time.Now()
			msgs := MaterializeMessages(b.Docs, participants)
			metrics.MaterializeDuration.WithLabelValues(kindMessages).Observe(time.Since(start).Seconds())
			emit(msgs)
			return nil
		})
	}

	sub := newSubscription[[]models.Message](ctx, kindMessages, c.log, src, fn, buildOptions(opts))
	if err := register(c, sub, true); err != nil {
		return nil, err
	}
	return sub, nil
}

// isMember пропавшая комната значит, что участников у неё нет
func (c *Client) isMember(ctx context.Context, roomID, userID string) (bool, error) {
	doc, err := c.store.Get(ctx, c.cfg.RoomsCollection, roomID)
	if errors.Is(err, docstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return hasMember(decodeRawRoom(doc).userIDs, userID), nil
}

func hasMember(userIDs []string, userID string) bool {
	for _, id := range userIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// SubscribeUsers все пользователи, кроме текущего. Без пользователя пустой список.
func (c *Client) SubscribeUsers(ctx context.Context, fn func([]models.User), opts ...SubscribeOption) (*Subscription[[]models.User], error) {
	src := func(ctx context.Context, opened func(), emit func([]models.User)) error {
		uid, ok := c.identity.CurrentUser()
		if !ok {
			return idle(ctx, opened, emit, []models.User{})
		}

		batches, err := c.store.Watch(ctx, docstore.Collection(c.cfg.UsersCollection))
		if err != nil {
			return err
		}
		opened()
		return consume(ctx, batches, func(b docstore.Batch) error {
			users := make([]models.User, 0, len(b.Docs))
			for _, doc := range b.Docs {
				if doc.ID == uid {
					continue
				}
				users = append(users, decodeUser(doc, nil))
			}
			emit(users)
			return nil
		})
	}

	sub := newSubscription[[]models.User](ctx, kindUsers, c.log, src, fn, buildOptions(opts))
	if err := register(c, sub, true); err != nil {
		return nil, err
	}
	return sub, nil
}

// idle источник без пользователя: один пустой снимок и ожидание отмены
func idle[T any](ctx context.Context, opened func(), emit func(T), empty T) error {
	opened()
	emit(empty)
	<-ctx.Done()
	return nil
}

// consume читает batch'и по порядку. Batch с ошибкой, ошибка fn и закрытый
// канал завершают источник ошибкой, отмена ctx завершает его без ошибки.
func consume(ctx context.Context, batches <-chan docstore.Batch, fn func(docstore.Batch) error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case b, ok := <-batches:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return docstore.ErrWatchClosed
			}
			if b.Err != nil {
				return b.Err
			}
			if err := fn(b); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}
