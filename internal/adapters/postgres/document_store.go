package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/domain"
	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/ports"
	"gorm.io/gorm"
)

// DocumentStore keeps collections in one JSONB-backed table. Equality
// filters translate to `fields ->> key = value` predicates, matching the
// conjunctive filter contract of the port.
type DocumentStore struct {
	db *gorm.DB
}

func NewDocumentStore(db *gorm.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

func (s *DocumentStore) List(ctx context.Context, collection string, filter ports.Filter) ([]ports.Document, error) {
	query := s.db.WithContext(ctx).Model(&documentModel{}).Where("collection = ?", collection)
	for key, value := range filter {
		query = query.Where("fields ->> ? = ?", key, fmt.Sprintf("%v", value))
	}
	var rows []documentModel
	if err := query.Order("doc_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	docs := make([]ports.Document, 0, len(rows))
	for _, row := range rows {
		fields := map[string]any{}
		if err := json.Unmarshal(row.Fields, &fields); err != nil {
			return nil, fmt.Errorf("decode document %s/%s: %w", collection, row.DocID, err)
		}
		docs = append(docs, ports.Document{ID: row.DocID, Fields: fields})
	}
	return docs, nil
}

func (s *DocumentStore) Create(ctx context.Context, collection, id string, fields map[string]any) (ports.Document, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return ports.Document{}, err
	}
	now := time.Now().UTC()
	row := documentModel{Collection: collection, DocID: id, Fields: raw, CreatedAt: now, UpdatedAt: now}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ports.Document{}, fmt.Errorf("%w: %s/%s", domain.ErrConflict, collection, id)
		}
		return ports.Document{}, err
	}
	return ports.Document{ID: id, Fields: fields}, nil
}

func (s *DocumentStore) Update(ctx context.Context, collection, id string, fields map[string]any) (ports.Document, error) {
	var row documentModel
	err := s.db.WithContext(ctx).
		Where("collection = ? AND doc_id = ?", collection, id).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Document{}, domain.ErrNotFound
		}
		return ports.Document{}, err
	}
	merged := map[string]any{}
	if len(row.Fields) > 0 {
		if err := json.Unmarshal(row.Fields, &merged); err != nil {
			return ports.Document{}, fmt.Errorf("decode document %s/%s: %w", collection, id, err)
		}
	}
	for k, v := range fields {
		merged[k] = v
	}
	raw, err := json.Marshal(merged)
	if err != nil {
		return ports.Document{}, err
	}
	err = s.db.WithContext(ctx).Model(&documentModel{}).
		Where("collection = ? AND doc_id = ?", collection, id).
		Updates(map[string]any{"fields": raw, "updated_at": time.Now().UTC()}).Error
	if err != nil {
		return ports.Document{}, err
	}
	return ports.Document{ID: id, Fields: merged}, nil
}

func (s *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	result := s.db.WithContext(ctx).
		Where("collection = ? AND doc_id = ?", collection, id).
		Delete(&documentModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
