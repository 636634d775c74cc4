package database

import (
	"errors"
	"fmt"

	"bot-builder-go/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrDocumentNotFound is returned when no document has the requested name.
var ErrDocumentNotFound = errors.New("document not found")

// DocumentStore saves and loads named workspace documents.
type DocumentStore struct {
	db *gorm.DB
}

// NewDocumentStore creates a store on an already migrated database.
func NewDocumentStore(db *gorm.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Save writes content under name, replacing any previous version.
func (s *DocumentStore) Save(name string, content []byte) error {
	doc := models.Document{Name: name, Content: string(content)}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "updated_at"}),
	}).Create(&doc).Error
	if err != nil {
		return fmt.Errorf("failed to save document %q: %w", name, err)
	}
	return nil
}

// Load returns the content stored under name.
func (s *DocumentStore) Load(name string) ([]byte, error) {
	var doc models.Document
	err := s.db.Where("name = ?", name).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrDocumentNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document %q: %w", name, err)
	}
	return []byte(doc.Content), nil
}

// Names lists the saved documents alphabetically.
func (s *DocumentStore) Names() ([]string, error) {
	var names []string
	if err := s.db.Model(&models.Document{}).Order("name").Pluck("name", &names).Error; err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return names, nil
}

// Delete removes the document stored under name.
func (s *DocumentStore) Delete(name string) error {
	res := s.db.Unscoped().Where("name = ?", name).Delete(&models.Document{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete document %q: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %q", ErrDocumentNotFound, name)
	}
	return nil
}
