package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/lcalzada-xor/iotguard/internal/core/domain"
	"github.com/lcalzada-xor/iotguard/internal/core/ports"
	"gorm.io/gorm"
)

// Ensure interface compliance
var _ ports.ScanRepository = (*SQLAdapter)(nil)

// InsertScan stores the scan and its observations in one transaction.
func (a *SQLAdapter) InsertScan(ctx context.Context, scan domain.ScanRecord) (uint, error) {
	model := scanToModel(scan)
	model.ID = 0
	if err := a.db.WithContext(ctx).Create(&model).Error; err != nil {
		return 0, err
	}
	return model.ID, nil
}

func (a *SQLAdapter) GetScan(ctx context.Context, id uint) (*domain.ScanRecord, error) {
	var model ScanModel
	err := a.db.WithContext(ctx).
		Preload("Observations", orderByPosition).
		First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("scan %d: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	scan := scanToDomain(model)
	return &scan, nil
}

// ListScans returns matching scans newest first, with observations.
func (a *SQLAdapter) ListScans(ctx context.Context, filter domain.ScanFilter) ([]domain.ScanRecord, error) {
	query := a.db.WithContext(ctx).Model(&ScanModel{}).Preload("Observations", orderByPosition)

	if filter.Username != "" {
		query = query.Where("username = ?", filter.Username)
	}
	if filter.Target != "" {
		query = query.Where("target = ?", filter.Target)
	}
	if filter.Verdict != nil {
		query = query.Where("verdict = ?", filter.Verdict.String())
	}
	if !filter.Since.IsZero() {
		query = query.Where("timestamp >= ?", filter.Since)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var models []ScanModel
	if err := query.Order("timestamp desc, id desc").Find(&models).Error; err != nil {
		return nil, err
	}
	scans := make([]domain.ScanRecord, len(models))
	for i, m := range models {
		scans[i] = scanToDomain(m)
	}
	return scans, nil
}

// ListLabeledPorts returns every stored (port, tier) pair.
func (a *SQLAdapter) ListLabeledPorts(ctx context.Context) ([]domain.LabeledPort, error) {
	var rows []ObservationModel
	if err := a.db.WithContext(ctx).Select("port", "tier").Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.LabeledPort, 0, len(rows))
	for _, r := range rows {
		tier, err := domain.ParseTier(r.Tier)
		if err != nil || r.Port < 0 || r.Port > 65535 {
			continue
		}
		out = append(out, domain.LabeledPort{Port: uint16(r.Port), Tier: tier})
	}
	return out, nil
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position")
}
