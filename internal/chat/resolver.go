package chat

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/thereayou/chatsync/internal/metrics"
	"github.com/thereayou/chatsync/internal/models"
)

// Resolver превращает id пользователей в User. Запросы идут параллельно,
// ошибка одного id не отменяет остальные: такой id просто пропадает из ответа.
type Resolver struct {
	users *UserRepository
	log   zerolog.Logger
}

func NewResolver(users *UserRepository, logger zerolog.Logger) *Resolver {
	return &Resolver{users: users, log: logger}
}

func (r *Resolver) Resolve(ctx context.Context, ids []string, roles map[string]models.Role) map[string]models.User {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}

	found := make([]*models.User, len(unique))
	var g errgroup.Group
	for i, id := range unique {
		i, id := i, id
		g.Go(func() error {
			var role *models.Role
			if stored, ok := roles[id]; ok {
				role = &stored
			}
			user, err := r.users.FetchUser(ctx, id, role)
			if err != nil {
				metrics.UserLookups.WithLabelValues("miss").Inc()
				r.log.Debug().Err(err).Str("user_id", id).Msg("user lookup failed")
				return nil
			}
			metrics.UserLookups.WithLabelValues("hit").Inc()
			found[i] = &user
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]models.User, len(unique))
	for _, u := range found {
		if u != nil {
			out[u.ID] = *u
		}
	}
	return out
}
