package docstore

import (
	"context"
	"sync"
	"time"
)

// WatchCollection общий цикл наблюдения для хранилищ без собственного
// потока изменений: подписывается на уведомления до первого чтения, отдаёт
// текущее состояние и перечитывает его после каждого уведомления.
// Ошибка чтения отдаётся последним batch'ем.
func WatchCollection(ctx context.Context, n Notifier, collection string, read func(ctx context.Context) ([]Document, error)) (<-chan Batch, error) {
	if collection == "" {
		return nil, ErrNoCollection
	}

	changes, err := n.Subscribe(ctx, collection)
	if err != nil {
		return nil, err
	}

	out := make(chan Batch)
	go func() {
		defer close(out)
		for {
			docs, err := read(ctx)
			if ctx.Err() != nil {
				return
			}

			select {
			case out <- Batch{Docs: docs, Err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}

			select {
			case _, ok := <-changes:
				if !ok {
					if ctx.Err() == nil {
						select {
						case out <- Batch{Err: ErrWatchClosed}:
						case <-ctx.Done():
						}
					}
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Clock время записи для ServerTimestamp. Значения строго возрастают,
// даже если системные часы стоят на месте или идут назад.
type Clock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

func (c *Clock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Round(0)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}
