package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/thereayou/chatsync/internal/docstore"
	"github.com/thereayou/chatsync/internal/metrics"
)

type State int

const (
	StateIdle State = iota
	StateSubscribing
	StateActive
	StateError
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubscribing:
		return "subscribing"
	case StateActive:
		return "active"
	case StateError:
		return "error"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

func (s State) terminal() bool {
	return s == StateError || s == StateClosed
}

// source открывает поток изменений и отдаёт снимки через emit, пока жив ctx.
// opened вызывается, когда наблюдение установлено.
type source[T any] func(ctx context.Context, opened func(), emit func(T)) error

// Subscription живое представление одного запроса.
//
// Каждый запуск источника (generation) работает в своей горутине и
// обрабатывает batch'и по порядку. Снимок публикуется, только если поколение
// всё ещё текущее и подписка не освобождена, поэтому после Release и после
// смены пользователя старые batch'и до колбэка не доходят.
type Subscription[T any] struct {
	kind    string
	log     zerolog.Logger
	parent  context.Context
	src     source[T]
	next    func(T)
	onError func(error)
	detach  func()

	// deliver держится на время колбэка: колбэки идут по одному, а Release
	// дожидается уже начатого
	deliver sync.Mutex

	mu       sync.Mutex
	state    State
	gen      uint64
	cancel   context.CancelFunc
	snapshot T
	has      bool
	err      error
	done     chan struct{}
}

func newSubscription[T any](parent context.Context, kind string, log zerolog.Logger, src source[T], next func(T), opts subscribeOptions) *Subscription[T] {
	return &Subscription[T]{
		kind:    kind,
		log:     log.With().Str("subscription", kind).Logger(),
		parent:  parent,
		src:     src,
		next:    next,
		onError: opts.onError,
		state:   StateIdle,
		done:    make(chan struct{}),
	}
}

func (s *Subscription[T]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot последний опубликованный снимок
func (s *Subscription[T]) Snapshot() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot, s.has
}

// Err ошибка транспорта, если подписка перешла в StateError
func (s *Subscription[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done закрывается, когда подписка освобождена или упала
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// Release останавливает подписку. Если колбэк уже выполняется, Release ждёт
// его завершения; после возврата колбэк больше не вызывается.
// Повторный вызов ничего не делает. Из колбэка этой же подписки Release
// вызывать нельзя: он будет ждать сам себя.
func (s *Subscription[T]) Release() {
	s.mu.Lock()
	if s.state.terminal() {
		s.mu.Unlock()
		return
	}
	counted := s.state != StateIdle
	s.state = StateClosed
	s.gen++
	if s.cancel != nil {
		s.cancel()
	}
	close(s.done)
	s.mu.Unlock()

	// ждём колбэк, начатый до смены поколения
	s.deliver.Lock()
	s.deliver.Unlock()

	s.finalize(counted)
	s.log.Debug().Msg("released")
}

func (s *Subscription[T]) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return
	}
	metrics.ActiveSubscriptions.WithLabelValues(s.kind).Inc()
	s.launch()
}

// restart запускает источник заново, например после смены пользователя
func (s *Subscription[T]) restart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.terminal() || s.state == StateIdle {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.launch()
}

// launch вызывается под mu
func (s *Subscription[T]) launch() {
	s.gen++
	gen := s.gen
	ctx, cancel := context.WithCancel(s.parent)
	s.cancel = cancel
	s.state = StateSubscribing

	go func() {
		err := s.src(ctx,
			func() { s.opened(gen) },
			func(v T) { s.publish(gen, v) },
		)
		s.finish(ctx, gen, err)
	}()
}

func (s *Subscription[T]) opened(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.gen && s.state == StateSubscribing {
		s.state = StateActive
	}
}

func (s *Subscription[T]) publish(gen uint64, v T) {
	s.deliver.Lock()
	defer s.deliver.Unlock()

	s.mu.Lock()
	if gen != s.gen || s.state.terminal() {
		s.mu.Unlock()
		return
	}
	s.state = StateActive
	s.snapshot = v
	s.has = true
	s.mu.Unlock()

	metrics.SnapshotsPublished.WithLabelValues(s.kind).Inc()
	if s.next != nil {
		s.next(v)
	}
}

func (s *Subscription[T]) finish(ctx context.Context, gen uint64, err error) {
	s.mu.Lock()
	if gen != s.gen || s.state.terminal() {
		s.mu.Unlock()
		return
	}

	// родительский контекст отменён: это то же, что Release
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		s.state = StateClosed
		s.gen++
		close(s.done)
		s.mu.Unlock()
		s.finalize(true)
		return
	}
	if err == nil {
		err = docstore.ErrWatchClosed
	}

	terr := &TransportError{Op: "watch " + s.kind, Err: err}
	s.state = StateError
	s.err = terr
	s.gen++
	s.cancel()
	close(s.done)
	s.mu.Unlock()

	metrics.SubscriptionFailures.WithLabelValues(s.kind).Inc()
	s.log.Error().Err(err).Msg("subscription failed")
	s.finalize(true)
	if s.onError != nil {
		s.onError(terr)
	}
}

// finalize вызывается ровно один раз, при переходе в конечное состояние
func (s *Subscription[T]) finalize(counted bool) {
	if counted {
		metrics.ActiveSubscriptions.WithLabelValues(s.kind).Dec()
	}
	if s.detach != nil {
		s.detach()
	}
}

type subscribeOptions struct {
	onError func(error)
}

type SubscribeOption func(*subscribeOptions)

// OnError колбэк для ошибки транспорта; после него подписка в StateError
func OnError(fn func(error)) SubscribeOption {
	return func(o *subscribeOptions) {
		o.onError = fn
	}
}

func buildOptions(opts []SubscribeOption) subscribeOptions {
	var o subscribeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
