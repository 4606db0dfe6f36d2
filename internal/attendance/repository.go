package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/onsite-hq/onsite/model"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, session *model.AttendanceSession) error
	// FindActive returns the employee's active session, or nil when none.
	FindActive(ctx context.Context, employeeID uint) (*model.AttendanceSession, error)
	// FindActiveAll returns every active session for the employee. The ledger
	// invariant keeps this at one row; the fraud engine calls it to notice
	// when the invariant has been bypassed.
	FindActiveAll(ctx context.Context, employeeID uint) ([]*model.AttendanceSession, error)
	// FindPrevious returns the latest session checked in strictly before the
	// given time, or nil when there is none.
	FindPrevious(ctx context.Context, employeeID uint, before time.Time) (*model.AttendanceSession, error)
	// FindRecent returns up to limit sessions checked in after since, newest first.
	FindRecent(ctx context.Context, employeeID uint, since time.Time, limit int) ([]*model.AttendanceSession, error)
	// FindRecentCompleted is FindRecent restricted to completed sessions; the
	// time-pattern heuristic samples these so an in-flight session never
	// skews its own evaluation.
	FindRecentCompleted(ctx context.Context, employeeID uint, since time.Time, limit int) ([]*model.AttendanceSession, error)
	// CloseActive atomically applies columns to the session only while it is
	// still active; the returned row count is the compare-and-swap outcome.
	CloseActive(ctx context.Context, sessionID uint, columns map[string]interface{}) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func (r *repository) Create(ctx context.Context, session *model.AttendanceSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *repository) FindActive(ctx context.Context, employeeID uint) (*model.AttendanceSession, error) {
	var session model.AttendanceSession
	err := r.db.WithContext(ctx).
		Where("employee_id = ? AND status = ?", employeeID, model.AttendanceStatusActive).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &session, err
}

func (r *repository) FindActiveAll(ctx context.Context, employeeID uint) ([]*model.AttendanceSession, error) {
	var sessions []*model.AttendanceSession
	err := r.db.WithContext(ctx).
		Where("employee_id = ? AND status = ?", employeeID, model.AttendanceStatusActive).
		Find(&sessions).Error
	return sessions, err
}

func (r *repository) FindPrevious(ctx context.Context, employeeID uint, before time.Time) (*model.AttendanceSession, error) {
	var session model.AttendanceSession
	err := r.db.WithContext(ctx).
		Where("employee_id = ? AND check_in_time < ?", employeeID, before).
		Order("check_in_time DESC").
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &session, err
}

func (r *repository) FindRecent(ctx context.Context, employeeID uint, since time.Time, limit int) ([]*model.AttendanceSession, error) {
	var sessions []*model.AttendanceSession
	err := r.db.WithContext(ctx).
		Where("employee_id = ? AND check_in_time >= ?", employeeID, since).
		Order("check_in_time DESC").
		Limit(limit).
		Find(&sessions).Error
	return sessions, err
}

func (r *repository) FindRecentCompleted(ctx context.Context, employeeID uint, since time.Time, limit int) ([]*model.AttendanceSession, error) {
	var sessions []*model.AttendanceSession
	err := r.db.WithContext(ctx).
		Where("employee_id = ? AND status = ? AND check_in_time >= ?", employeeID, model.AttendanceStatusCompleted, since).
		Order("check_in_time DESC").
		Limit(limit).
		Find(&sessions).Error
	return sessions, err
}

func (r *repository) CloseActive(ctx context.Context, sessionID uint, columns map[string]interface{}) (int64, error) {
	ret := r.db.WithContext(ctx).Model(&model.AttendanceSession{}).
		Where("id = ? AND status = ?", sessionID, model.AttendanceStatusActive).
		Updates(columns)
	return ret.RowsAffected, ret.Error
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db}
}
