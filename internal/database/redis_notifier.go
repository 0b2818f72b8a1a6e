package database

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/thereayou/chatsync/internal/docstore"
)

const channelPrefix = "docstore:"

// RedisNotifier рассылает изменения коллекций через redis pub/sub,
// чтобы наблюдатели в других процессах видели запись
type RedisNotifier struct {
	client *redis.Client
	log    zerolog.Logger
}

var _ docstore.Notifier = (*RedisNotifier)(nil)

func NewRedisNotifier(client *redis.Client, logger zerolog.Logger) *RedisNotifier {
	return &RedisNotifier{client: client, log: logger}
}

func (n *RedisNotifier) Publish(ctx context.Context, collection string) error {
	return n.client.Publish(ctx, channelPrefix+collection, "changed").Err()
}

// Subscribe канал закрывается при отмене ctx или обрыве подписки
func (n *RedisNotifier) Subscribe(ctx context.Context, collection string) (<-chan struct{}, error) {
	ps := n.client.Subscribe(ctx, channelPrefix+collection)
	// ждём подтверждения, иначе первые публикации могут потеряться
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer ps.Close()

		messages := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-messages:
				if !ok {
					n.log.Warn().Str("collection", collection).Msg("redis subscription closed")
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}
