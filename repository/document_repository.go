package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/camden-git/photowall/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentRepository handles database operations for Document entities
type DocumentRepository struct {
	DB *gorm.DB
}

// NewDocumentRepository creates a new instance of DocumentRepository
func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{DB: db}
}

// Load returns the body stored under key, or nil if nothing was ever saved there
func (r *DocumentRepository) Load(ctx context.Context, key string) ([]byte, error) {
	var doc models.Document
	err := r.DB.WithContext(ctx).Where("doc_key = ?", key).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load document %s: %w", key, err)
	}
	return doc.Body, nil
}

// Save replaces the body stored under key
func (r *DocumentRepository) Save(ctx context.Context, key string, body []byte) error {
	if body == nil {
		body = []byte{}
	}
	doc := models.Document{
		Key:       key,
		Body:      body,
		UpdatedAt: time.Now().UnixMilli(),
	}
	err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "doc_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"body", "updated_at"}),
	}).Create(&doc).Error
	if err != nil {
		return fmt.Errorf("failed to save document %s: %w", key, err)
	}
	return nil
}
