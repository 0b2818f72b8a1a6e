package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thereayou/chatsync/internal/docstore"
	"github.com/thereayou/chatsync/internal/metrics"
)

var _ docstore.Store = (*Database)(nil)

func observe(op string, start time.Time) {
	metrics.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (d *Database) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	defer observe("get", time.Now())

	var row documentRow
	err := d.db.WithContext(ctx).First(&row, "collection = ? AND id = ?", collection, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return docstore.Document{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Document{}, err
	}
	return decodeRow(row)
}

// Query строковые фильтры отбирает в SQL через document_index, остальное
// (прочие фильтры, сортировка, limit) применяется в памяти
func (d *Database) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if q.Collection == "" {
		return nil, docstore.ErrNoCollection
	}
	defer observe("query", time.Now())

	tx := d.db.WithContext(ctx).Where("collection = ?", q.Collection)
	for _, f := range q.Filters {
		kind, value, ok := indexable(f)
		if !ok {
			continue
		}
		tx = tx.Where("id IN (?)", d.db.Model(&indexRow{}).Select("doc_id").
			Where("collection = ? AND field = ? AND kind = ? AND value = ?", q.Collection, f.Field, kind, value))
	}

	var rows []documentRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}
	docs := make([]docstore.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := decodeRow(row)
		if err != nil {
			d.log.Warn().Err(err).Msg("skipping undecodable document")
			continue
		}
		docs = append(docs, doc)
	}
	return q.Apply(docs), nil
}

func (d *Database) Watch(ctx context.Context, q docstore.Query) (<-chan docstore.Batch, error) {
	return docstore.WatchCollection(ctx, d.notifier, q.Collection, func(ctx context.Context) ([]docstore.Document, error) {
		return d.Query(ctx, q)
	})
}

func (d *Database) WatchDocument(ctx context.Context, collection, id string) (<-chan docstore.Batch, error) {
	return docstore.WatchCollection(ctx, d.notifier, collection, func(ctx context.Context) ([]docstore.Document, error) {
		doc, err := d.Get(ctx, collection, id)
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return []docstore.Document{doc}, nil
	})
}

func (d *Database) Add(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	id := uuid.NewString()
	if err := d.Set(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (d *Database) Set(ctx context.Context, collection, id string, fields docstore.Fields) error {
	if collection == "" {
		return docstore.ErrNoCollection
	}
	defer observe("set", time.Now())

	stamped := fields.Stamp(d.clock.Next())
	body, err := encodeFields(stamped)
	if err != nil {
		return err
	}
	row := documentRow{Collection: collection, ID: id, Body: body}
	err = d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
			return err
		}
		return writeIndex(tx, collection, id, stamped)
	})
	if err != nil {
		return err
	}
	d.publish(ctx, collection)
	return nil
}

// Update сливает поля верхнего уровня в транзакции с блокировкой строки
func (d *Database) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	defer observe("update", time.Now())

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row documentRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&row, "collection = ? AND id = ?", collection, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return docstore.ErrNotFound
		}
		if err != nil {
			return err
		}

		current, err := decodeRow(row)
		if err != nil {
			return err
		}
		for k, v := range fields.Stamp(d.clock.Next()) {
			current.Fields[k] = v
		}
		body, err := encodeFields(current.Fields)
		if err != nil {
			return err
		}
		if err := writeIndex(tx, collection, id, current.Fields); err != nil {
			return err
		}
		return tx.Model(&row).Updates(map[string]any{"body": body, "updated_at": time.Now()}).Error
	})
	if err != nil {
		return err
	}
	d.publish(ctx, collection)
	return nil
}

func (d *Database) Delete(ctx context.Context, collection, id string) error {
	defer observe("delete", time.Now())

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&indexRow{}, "collection = ? AND doc_id = ?", collection, id).Error; err != nil {
			return err
		}
		return tx.Delete(&documentRow{}, "collection = ? AND id = ?", collection, id).Error
	})
	if err != nil {
		return err
	}
	d.publish(ctx, collection)
	return nil
}

// writeIndex заменяет строки индекса документа внутри транзакции записи
func writeIndex(tx *gorm.DB, collection, id string, fields docstore.Fields) error {
	if err := tx.Delete(&indexRow{}, "collection = ? AND doc_id = ?", collection, id).Error; err != nil {
		return err
	}
	rows := indexRows(collection, id, fields)
	if len(rows) == 0 {
		return nil
	}
	return tx.Create(&rows).Error
}

// publish ошибка оповещения только логируется, запись уже сделана
func (d *Database) publish(ctx context.Context, collection string) {
	if err := d.notifier.Publish(ctx, collection); err != nil {
		d.log.Warn().Err(err).Str("collection", collection).Msg("change notification failed")
	}
}
