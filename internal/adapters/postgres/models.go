package postgres

import "time"

type documentModel struct {
	Collection string    `gorm:"column:collection;primaryKey"`
	DocID      string    `gorm:"column:doc_id;primaryKey"`
	Fields     []byte    `gorm:"column:fields;type:jsonb"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (documentModel) TableName() string { return "documents" }
