package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lcalzada-xor/iotguard/internal/core/domain"
	"github.com/lcalzada-xor/iotguard/internal/core/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ensure interface compliance
var _ ports.ModelRepository = (*SQLAdapter)(nil)

// The risk model is a singleton row.
const modelRowID = 1

func (a *SQLAdapter) LoadModel(ctx context.Context) (*domain.ModelState, error) {
	var row ModelStateModel
	if err := a.db.WithContext(ctx).First(&row, modelRowID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var state domain.ModelState
	if err := json.Unmarshal([]byte(row.State), &state); err != nil {
		return nil, fmt.Errorf("failed to decode model state: %w", err)
	}
	return &state, nil
}

// SaveModel replaces the stored model atomically.
func (a *SQLAdapter) SaveModel(ctx context.Context, state domain.ModelState) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode model state: %w", err)
	}
	row := ModelStateModel{ID: modelRowID, State: string(blob), UpdatedAt: time.Now().UTC()}
	return a.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"state", "updated_at"}),
	}).Create(&row).Error
}
