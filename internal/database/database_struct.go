package database

import (
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/thereayou/chatsync/internal/docstore"
)

// Database документное хранилище поверх SQL. Документы лежат в одной
// таблице, поля закодированы в CBOR; запросы выполняются сканированием
// коллекции. Об изменениях оповещает notifier.
type Database struct {
	db       *gorm.DB
	notifier docstore.Notifier
	clock    *docstore.Clock
	log      zerolog.Logger
}

type Option func(*Database)

func WithLogger(logger zerolog.Logger) Option {
	return func(d *Database) {
		d.log = logger
	}
}

func WithClock(c *docstore.Clock) Option {
	return func(d *Database) {
		d.clock = c
	}
}

// NewDatabase без notifier оповещения ходят только внутри процесса
func NewDatabase(db *gorm.DB, notifier docstore.Notifier, opts ...Option) *Database {
	if notifier == nil {
		notifier = docstore.NewLocalNotifier()
	}
	d := &Database{
		db:       db,
		notifier: notifier,
		clock:    docstore.NewClock(nil),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Database) DB() *gorm.DB {
	return d.db
}
