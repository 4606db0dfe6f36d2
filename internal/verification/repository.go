package verification

import (
	"context"
	"errors"
	"time"

	"github.com/onsite-hq/onsite/model"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, session *model.VerificationSession) error
	FindByID(ctx context.Context, id uint) (*model.VerificationSession, error)
	// FindPending returns the employee's pending session, or nil when none.
	FindPending(ctx context.Context, employeeID uint) (*model.VerificationSession, error)
	// FindDue returns pending sessions whose deadline has passed.
	FindDue(ctx context.Context, now time.Time, limit int) ([]*model.VerificationSession, error)
	// FindRecent returns up to limit sessions triggered after since, newest first.
	FindRecent(ctx context.Context, employeeID uint, since time.Time, limit int) ([]*model.VerificationSession, error)
	// ResolvePending atomically applies columns while the session is still
	// pending. The row count is the compare-and-swap outcome: zero means
	// another resolver already set a terminal state.
	ResolvePending(ctx context.Context, sessionID uint, columns map[string]interface{}) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func (r *repository) Create(ctx context.Context, session *model.VerificationSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *repository) FindByID(ctx context.Context, id uint) (*model.VerificationSession, error) {
	var session model.VerificationSession
	err := r.db.WithContext(ctx).First(&session, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &session, err
}

func (r *repository) FindPending(ctx context.Context, employeeID uint) (*model.VerificationSession, error) {
	var session model.VerificationSession
	err := r.db.WithContext(ctx).
		Where("employee_id = ? AND status = ?", employeeID, model.VerificationStatusPending).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &session, err
}

func (r *repository) FindDue(ctx context.Context, now time.Time, limit int) ([]*model.VerificationSession, error) {
	var sessions []*model.VerificationSession
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", model.VerificationStatusPending, now).
		Order("expires_at").
		Limit(limit).
		Find(&sessions).Error
	return sessions, err
}

func (r *repository) FindRecent(ctx context.Context, employeeID uint, since time.Time, limit int) ([]*model.VerificationSession, error) {
	var sessions []*model.VerificationSession
	err := r.db.WithContext(ctx).
		Where("employee_id = ? AND triggered_at >= ?", employeeID, since).
		Order("triggered_at DESC").
		Limit(limit).
		Find(&sessions).Error
	return sessions, err
}

func (r *repository) ResolvePending(ctx context.Context, sessionID uint, columns map[string]interface{}) (int64, error) {
	ret := r.db.WithContext(ctx).Model(&model.VerificationSession{}).
		Where("id = ? AND status = ?", sessionID, model.VerificationStatusPending).
		Updates(columns)
	return ret.RowsAffected, ret.Error
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db}
}
