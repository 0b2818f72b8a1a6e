package docstore

import (
	"context"
	"sync"
)

// Notifier сообщает наблюдателям, что коллекция изменилась.
// Уведомления схлопываются: важен сам факт изменения, а не их количество.
type Notifier interface {
	Publish(ctx context.Context, collection string) error
	// Subscribe канал закрывается, когда ctx отменён
	Subscribe(ctx context.Context, collection string) (<-chan struct{}, error)
}

// LocalNotifier уведомления внутри одного процесса
type LocalNotifier struct {
	mu        sync.Mutex
	listeners map[string]map[chan struct{}]struct{}
}

func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{
		listeners: make(map[string]map[chan struct{}]struct{}),
	}
}

func (n *LocalNotifier) Publish(_ context.Context, collection string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	for ch := range n.listeners[collection] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

func (n *LocalNotifier) Subscribe(ctx context.Context, collection string) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	n.mu.Lock()
	if _, ok := n.listeners[collection]; !ok {
		n.listeners[collection] = make(map[chan struct{}]struct{})
	}
	n.listeners[collection][ch] = struct{}{}
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.listeners[collection], ch)
		if len(n.listeners[collection]) == 0 {
			delete(n.listeners, collection)
		}
		close(ch)
	}()

	return ch, nil
}

// Listeners количество активных подписок на коллекцию
func (n *LocalNotifier) Listeners(collection string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.listeners[collection])
}
