package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/camden-git/facebench/models"
)

// PersonRepository handles database operations for recognised people
type PersonRepository struct {
	DB *gorm.DB
}

// NewPersonRepository creates a new instance of PersonRepository
func NewPersonRepository(db *gorm.DB) *PersonRepository {
	return &PersonRepository{DB: db}
}

// GetOrCreate returns the id of the person with this name, inserting the row
// first if needed. A concurrent insert of the same name is tolerated.
func (r *PersonRepository) GetOrCreate(ctx context.Context, name string) (uint, error) {
	if name == "" {
		return 0, fmt.Errorf("%w: empty person name", ErrPersistence)
	}

	person, err := r.GetByName(ctx, name)
	if err == nil {
		return person.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	err = r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&models.Person{Name: name}).Error
	if err != nil {
		return 0, fmt.Errorf("%w: failed to create person %s: %w", ErrPersistence, name, err)
	}

	// re-read: with DoNothing the insert may not have produced the id
	person, err = r.GetByName(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("%w: person %s missing after insert: %w", ErrPersistence, name, err)
	}
	return person.ID, nil
}

// GetByName retrieves a person by name. gorm.ErrRecordNotFound is returned as is.
func (r *PersonRepository) GetByName(ctx context.Context, name string) (*models.Person, error) {
	var person models.Person
	err := r.DB.WithContext(ctx).Where("name = ?", name).First(&person).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: failed to get person %s: %w", ErrPersistence, name, err)
	}
	return &person, nil
}
