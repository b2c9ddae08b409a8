// Package docstore is a generic record accessor over relational tables. It
// reads and writes loosely typed documents (column -> value maps) by id or by
// filter, for callers such as reporting views that fold whole collections.
package docstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	pkgerrors "github.com/angelmondragon/shopledger-backend/pkg/errors"
)

// Document is a single record keyed by column name.
type Document = map[string]any

const (
	fieldID        = "id"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
)

// Store is the read/write surface consumed by domain services.
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	List(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	Add(ctx context.Context, collection string, data Document) (string, error)
	Update(ctx context.Context, collection, id string, partial Document) error
	Delete(ctx context.Context, collection, id string) error
}

// GormStore implements Store on top of a gorm connection.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

var _ Store = (*GormStore)(nil)

// NewGormStore builds a GormStore. now defaults to time.Now.
func NewGormStore(db *gorm.DB, now func() time.Time) (*GormStore, error) {
	if db == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "docstore requires a db")
	}
	if now == nil {
		now = time.Now
	}
	return &GormStore{db: db, now: now}, nil
}

func (s *GormStore) table(ctx context.Context, collection string) (*gorm.DB, error) {
	if !validIdentifier(collection) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid collection name").
			WithDetails(map[string]any{"collection": collection})
	}
	return s.db.WithContext(ctx).Table(collection), nil
}

// Get returns the document with the given id or a NOT_FOUND error.
func (s *GormStore) Get(ctx context.Context, collection, id string) (Document, error) {
	query, err := s.table(ctx, collection)
	if err != nil {
		return nil, err
	}
	var rows []Document
	if err := query.Where(fieldID+" = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, pkgerrors.FromStore(err, "get document")
	}
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "document not found").
			WithDetails(map[string]any{"collection": collection, "id": id})
	}
	return rows[0], nil
}

// List returns every document matching all filters.
func (s *GormStore) List(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	query, err := s.table(ctx, collection)
	if err != nil {
		return nil, err
	}
	for _, filter := range filters {
		expr, err := filter.expression()
		if err != nil {
			return nil, err
		}
		query = query.Where(expr)
	}
	var rows []Document
	if err := query.Find(&rows).Error; err != nil {
		return nil, pkgerrors.FromStore(err, "list documents")
	}
	return rows, nil
}

// Add inserts data and returns its id. Missing ids and timestamps are filled in.
func (s *GormStore) Add(ctx context.Context, collection string, data Document) (string, error) {
	query, err := s.table(ctx, collection)
	if err != nil {
		return "", err
	}
	if err := validateKeys(data); err != nil {
		return "", err
	}
	doc := make(Document, len(data)+3)
	for k, v := range data {
		doc[k] = v
	}
	id, _ := doc[fieldID].(string)
	if id == "" {
		id = uuid.NewString()
		doc[fieldID] = id
	}
	now := s.now().UTC()
	if _, ok := doc[fieldCreatedAt]; !ok {
		doc[fieldCreatedAt] = now
	}
	doc[fieldUpdatedAt] = now

	if err := query.Create(doc).Error; err != nil {
		return "", pkgerrors.FromStore(err, "add document")
	}
	return id, nil
}

// Update applies partial to the document and stamps updated_at.
func (s *GormStore) Update(ctx context.Context, collection, id string, partial Document) error {
	query, err := s.table(ctx, collection)
	if err != nil {
		return err
	}
	if err := validateKeys(partial); err != nil {
		return err
	}
	changes := make(Document, len(partial)+1)
	for k, v := range partial {
		if k == fieldID {
			continue
		}
		changes[k] = v
	}
	changes[fieldUpdatedAt] = s.now().UTC()

	result := query.Where(fieldID+" = ?", id).Updates(changes)
	if result.Error != nil {
		return pkgerrors.FromStore(result.Error, "update document")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "document not found").
			WithDetails(map[string]any{"collection": collection, "id": id})
	}
	return nil
}

// Delete removes the document. Deleting a missing id is not an error.
func (s *GormStore) Delete(ctx context.Context, collection, id string) error {
	if !validIdentifier(collection) {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid collection name").
			WithDetails(map[string]any{"collection": collection})
	}
	err := s.db.WithContext(ctx).
		Exec("DELETE FROM ? WHERE "+fieldID+" = ?", clause.Table{Name: collection}, id).Error
	if err != nil {
		return pkgerrors.FromStore(err, "delete document")
	}
	return nil
}

func validateKeys(doc Document) error {
	for key := range doc {
		if !validIdentifier(key) {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid document field").
				WithDetails(map[string]any{"field": key})
		}
	}
	return nil
}
