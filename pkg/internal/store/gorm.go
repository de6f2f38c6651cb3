package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"git.solsynth.dev/hypernet/confession/pkg/internal/models"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps every collection in one jsonb table on postgres.
type GormStore struct {
	db  *gorm.DB
	hub *Hub
}

func NewGorm(db *gorm.DB, hub *Hub) *GormStore {
	if hub == nil {
		hub = NewHub()
	}
	return &GormStore{db: db, hub: hub}
}

func (s *GormStore) Hub() *Hub {
	return s.hub
}

func (s *GormStore) tx(ctx context.Context, collection string) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.DocumentRecord{}).Where("collection = ?", collection)
}

func (s *GormStore) Create(ctx context.Context, collection string, doc models.Document) (string, error) {
	id := uuid.NewString()
	if err := s.Insert(ctx, collection, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

func (s *GormStore) Insert(ctx context.Context, collection, id string, doc models.Document) error {
	record := models.DocumentRecord{
		Collection: collection,
		ID:         id,
		Data:       datatypes.JSONMap(doc.Clone()),
	}
	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
	if tx.Error != nil {
		return transient(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return models.ErrAlreadyExists
	}

	s.hub.Notify(collection)
	return nil
}

func (s *GormStore) Get(ctx context.Context, collection, id string) (models.Document, error) {
	var record models.DocumentRecord
	if err := s.tx(ctx, collection).Where("id = ?", id).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, transient(err)
	}
	return models.Document(record.Data), nil
}

func (s *GormStore) Query(ctx context.Context, collection string, query Query) (Snapshot, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	tx := s.tx(ctx, collection)
	for _, filter := range query.Filters {
		tx = applyGormFilter(tx, filter)
	}
	tx = tx.Order(gormOrder(query))
	if query.Limit > 0 {
		tx = tx.Limit(query.Limit)
	}

	var records []models.DocumentRecord
	if err := tx.Find(&records).Error; err != nil {
		return nil, transient(err)
	}

	out := make(Snapshot, 0, len(records))
	for _, record := range records {
		out = append(out, Record{ID: record.ID, Data: models.Document(record.Data)})
	}
	return out, nil
}

func applyGormFilter(tx *gorm.DB, filter Filter) *gorm.DB {
	if filter.Op == OpEq {
		return tx.Where(datatypes.JSONQuery("data").Equals(filter.Value, filter.Field))
	}
	if _, isNumber := models.ToFloat64(filter.Value); isNumber && valueRank(filter.Value) == 2 {
		return tx.Where(
			fmt.Sprintf("jsonb_typeof(data->CAST(? AS text)) = 'number' AND (data->>CAST(? AS text))::numeric %s ?", filter.Op),
			filter.Field, filter.Field, filter.Value,
		)
	}
	return tx.Where(
		fmt.Sprintf("data->>CAST(? AS text) %s ?", filter.Op),
		filter.Field, filter.Value,
	)
}

func gormOrder(query Query) clause.OrderBy {
	var parts []string
	var vars []any
	for _, order := range query.Orders {
		parts = append(parts, "data->CAST(? AS text) "+direction(order.Desc))
		vars = append(vars, order.Field)
	}
	parts = append(parts, "id "+direction(query.IDDesc()))
	return clause.OrderBy{Expression: clause.Expr{
		SQL:                strings.Join(parts, ", "),
		Vars:               vars,
		WithoutParentheses: true,
	}}
}

func direction(desc bool) string {
	if desc {
		return "DESC NULLS LAST"
	}
	return "ASC NULLS FIRST"
}

func (s *GormStore) Subscribe(ctx context.Context, collection string, query Query, fn ChangeFunc) (Unsubscribe, error) {
	return subscribe(ctx, s.hub, s, collection, query, fn)
}

func (s *GormStore) Update(ctx context.Context, collection, id string, partial models.Document) error {
	payload, err := jsoniter.Marshal(partial)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}

	tx := s.tx(ctx, collection).Where("id = ?", id).
		Update("data", gorm.Expr("data || CAST(? AS jsonb)", string(payload)))
	if tx.Error != nil {
		return transient(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return models.ErrNotFound
	}

	s.hub.Notify(collection)
	return nil
}

func (s *GormStore) Delete(ctx context.Context, collection, id string) error {
	tx := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Delete(&models.DocumentRecord{})
	if tx.Error != nil {
		return transient(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return models.ErrNotFound
	}

	s.hub.Notify(collection)
	return nil
}

func (s *GormStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	start := time.Now()
	tx := s.tx(ctx, collection).Where("id = ?", id).
		Update("data", gorm.Expr(
			"jsonb_set(data, ARRAY[CAST(? AS text)], to_jsonb(GREATEST(COALESCE((data->>CAST(? AS text))::bigint, 0) + CAST(? AS bigint), 0)))",
			field, field, delta,
		))
	if tx.Error != nil {
		return transient(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return models.ErrNotFound
	}

	log.Debug().Str("collection", collection).Str("id", id).Str("field", field).
		Int64("delta", delta).Dur("elapsed", time.Since(start)).Msg("Incremented counter.")
	s.hub.Notify(collection)
	return nil
}

func (s *GormStore) Close() error {
	s.hub.Close()
	if sqlDB, err := s.db.DB(); err == nil {
		return sqlDB.Close()
	}
	return nil
}
