package database

import (
	"fmt"
	"reflect"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/thereayou/chatsync/internal/docstore"
)

// documentRow одна строка таблицы documents
type documentRow struct {
	Collection string    `gorm:"primaryKey;size:255"`
	ID         string    `gorm:"primaryKey;size:255"`
	Body       []byte    `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"index"`
}

func (documentRow) TableName() string {
	return "documents"
}

// maxIndexedValue строки длиннее в индекс не попадают
const maxIndexedValue = 255

const (
	indexScalar  = "eq"
	indexElement = "elem"
)

// indexRow строковое значение поля документа. По этим строкам фильтры
// "==" и array-contains со строковым значением проверяются в SQL.
type indexRow struct {
	Collection string `gorm:"primaryKey;size:255;index:idx_document_index_lookup,priority:1"`
	DocID      string `gorm:"primaryKey;size:255"`
	Field      string `gorm:"primaryKey;size:255;index:idx_document_index_lookup,priority:2"`
	Kind       string `gorm:"primaryKey;size:8;index:idx_document_index_lookup,priority:3"`
	Value      string `gorm:"primaryKey;size:255;index:idx_document_index_lookup,priority:4"`
}

func (indexRow) TableName() string {
	return "document_index"
}

// indexRows строковые значения верхнего уровня и строковые элементы массивов
func indexRows(collection, id string, f docstore.Fields) []indexRow {
	seen := make(map[indexRow]struct{})
	var rows []indexRow
	add := func(field, kind, value string) {
		if len(value) > maxIndexedValue {
			return
		}
		row := indexRow{Collection: collection, DocID: id, Field: field, Kind: kind, Value: value}
		if _, dup := seen[row]; dup {
			return
		}
		seen[row] = struct{}{}
		rows = append(rows, row)
	}

	for field, v := range f {
		if len(field) > maxIndexedValue {
			continue
		}
		switch val := v.(type) {
		case string:
			add(field, indexScalar, val)
		case []string:
			for _, item := range val {
				add(field, indexElement, item)
			}
		case []any:
			for _, item := range val {
				if str, ok := item.(string); ok {
					add(field, indexElement, str)
				}
			}
		}
	}
	return rows
}

// indexable фильтр, который можно проверить по document_index
func indexable(f docstore.Filter) (kind, value string, ok bool) {
	str, isString := f.Value.(string)
	if !isString || len(str) > maxIndexedValue || len(f.Field) > maxIndexedValue {
		return "", "", false
	}
	switch f.Op {
	case docstore.OpEqual:
		return indexScalar, str, true
	case docstore.OpArrayContains:
		return indexElement, str, true
	}
	return "", "", false
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// время пишется с тегом, чтобы при чтении в any вернулся time.Time
	encOptions.Time = cbor.TimeRFC3339Nano
	encOptions.TimeTag = cbor.EncTagRequired
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("database: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("database: CBOR decoder initialization failed: " + err.Error())
	}
}

func encodeFields(f docstore.Fields) ([]byte, error) {
	body, err := encMode.Marshal(map[string]any(f))
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return body, nil
}

func decodeRow(row documentRow) (docstore.Document, error) {
	var fields map[string]any
	if err := decMode.Unmarshal(row.Body, &fields); err != nil {
		return docstore.Document{}, fmt.Errorf("decode document %s/%s: %w", row.Collection, row.ID, err)
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return docstore.Document{ID: row.ID, Fields: docstore.Fields(fields)}, nil
}
