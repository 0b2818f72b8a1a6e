// Package docstore описывает документное хранилище, с которым работает
// синхронизация чата: чтение документа, одноразовые запросы, наблюдение за
// запросом или документом и запись с серверными отметками времени.
//
// Наблюдение (Watch) отдаёт полные наборы результатов: каждый Batch содержит
// всё текущее состояние запроса, а не разницу с предыдущим. Batch с
// непустым Err последний в канале.
package docstore

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("docstore: document not found")
	ErrWatchClosed  = errors.New("docstore: change stream closed")
	ErrNoCollection = errors.New("docstore: collection is required")
)

// Fields содержимое документа. Допустимые значения: nil, string, bool,
// целые и дробные числа, time.Time, []any, map[string]any и ServerTimestamp().
type Fields map[string]any

type Document struct {
	ID     string
	Fields Fields
}

// Batch одно состояние наблюдаемого запроса
type Batch struct {
	Docs []Document
	Err  error
}

type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Query(ctx context.Context, q Query) ([]Document, error)
	Watch(ctx context.Context, q Query) (<-chan Batch, error)
	// WatchDocument отдаёт batch из одного документа или пустой, если документа нет
	WatchDocument(ctx context.Context, collection, id string) (<-chan Batch, error)

	// Add создаёт документ с id, назначенным хранилищем
	Add(ctx context.Context, collection string, fields Fields) (string, error)
	Set(ctx context.Context, collection, id string, fields Fields) error
	// Update сливает поля верхнего уровня; ErrNotFound если документа нет
	Update(ctx context.Context, collection, id string, fields Fields) error
	Delete(ctx context.Context, collection, id string) error
}

type serverTimestamp struct{}

// ServerTimestamp значение-заглушка, хранилище подставит своё время записи
func ServerTimestamp() any {
	return serverTimestamp{}
}

func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// Stamp возвращает копию полей, где все ServerTimestamp заменены на at
func (f Fields) Stamp(at time.Time) Fields {
	return stampMap(f, at)
}

func stampMap(m map[string]any, at time.Time) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = stampValue(v, at)
	}
	return out
}

func stampValue(v any, at time.Time) any {
	switch val := v.(type) {
	case serverTimestamp:
		return at
	case Fields:
		return Fields(stampMap(val, at))
	case map[string]any:
		return stampMap(val, at)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = stampValue(item, at)
		}
		return out
	}
	return v
}

// Clone глубокая копия, чтобы снимки не делили память с хранилищем
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	return Fields(cloneMap(f))
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case Fields:
		return cloneMap(val)
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = item
		}
		return out
	}
	return v
}
