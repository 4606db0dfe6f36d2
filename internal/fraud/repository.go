package fraud

import (
	"context"
	"errors"

	"github.com/onsite-hq/onsite/model"
	"gorm.io/gorm"
)

var ErrAlertNotFound = errors.New("fraud alert not found")

// AlertRepository is the append-only store behind the heuristics engine.
// Alerts are never deleted; Resolve is the only permitted mutation.
type AlertRepository interface {
	Create(ctx context.Context, alert *model.FraudAlert) error
	FindByID(ctx context.Context, id uint) (*model.FraudAlert, error)
	FindByEmployee(ctx context.Context, employeeID uint, limit int) ([]*model.FraudAlert, error)
	FindUnresolved(ctx context.Context, limit int) ([]*model.FraudAlert, error)
	// Resolve flips the resolved flag and stamps who did it. The row count
	// tells whether the alert was still open.
	Resolve(ctx context.Context, alertID uint, resolvedBy string) (int64, error)
}

type alertRepository struct {
	db *gorm.DB
}

func (r *alertRepository) Create(ctx context.Context, alert *model.FraudAlert) error {
	return r.db.WithContext(ctx).Create(alert).Error
}

func (r *alertRepository) FindByID(ctx context.Context, id uint) (*model.FraudAlert, error) {
	var alert model.FraudAlert
	err := r.db.WithContext(ctx).First(&alert, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &alert, err
}

func (r *alertRepository) FindByEmployee(ctx context.Context, employeeID uint, limit int) ([]*model.FraudAlert, error) {
	var alerts []*model.FraudAlert
	err := r.db.WithContext(ctx).
		Where("employee_id = ?", employeeID).
		Order("created_at DESC").
		Limit(limit).
		Find(&alerts).Error
	return alerts, err
}

func (r *alertRepository) FindUnresolved(ctx context.Context, limit int) ([]*model.FraudAlert, error) {
	var alerts []*model.FraudAlert
	err := r.db.WithContext(ctx).
		Where("resolved = ?", false).
		Order("created_at DESC").
		Limit(limit).
		Find(&alerts).Error
	return alerts, err
}

func (r *alertRepository) Resolve(ctx context.Context, alertID uint, resolvedBy string) (int64, error) {
	ret := r.db.WithContext(ctx).Model(&model.FraudAlert{}).
		Where("id = ? AND resolved = ?", alertID, false).
		Updates(map[string]interface{}{
			"resolved":    true,
			"resolved_by": resolvedBy,
		})
	return ret.RowsAffected, ret.Error
}

func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{db}
}
