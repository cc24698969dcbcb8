package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"pawbook/backend/internal/domain"
	"pawbook/backend/internal/store"
)

type EmployeeRepo struct {
	db *bun.DB
}

func NewEmployeeRepo(db *bun.DB) *EmployeeRepo {
	return &EmployeeRepo{db: db}
}

func (r *EmployeeRepo) EmployeeExists(ctx context.Context, employeeID uuid.UUID) (bool, error) {
	return r.db.NewSelect().
		Model((*domain.Employee)(nil)).
		Where("id = ?", employeeID).
		Where("is_active").
		Exists(ctx)
}

type ShiftTemplateRepo struct {
	db *bun.DB
}

func NewShiftTemplateRepo(db *bun.DB) *ShiftTemplateRepo {
	return &ShiftTemplateRepo{db: db}
}

func (r *ShiftTemplateRepo) FindActiveFor(ctx context.Context, employeeID uuid.UUID, date domain.Date) ([]domain.ShiftTemplate, error) {
	var rows []domain.ShiftTemplate
	err := r.db.NewSelect().
		Model(&rows).
		Where("employee_id = ?", employeeID).
		Where("day_of_week = ?", date.Weekday()).
		Where("is_active").
		Where("effective_from <= ?", date).
		Where("(effective_to IS NULL OR effective_to >= ?)", date).
		OrderExpr("effective_from ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

type ShiftOverrideRepo struct {
	db *bun.DB
}

func NewShiftOverrideRepo(db *bun.DB) *ShiftOverrideRepo {
	return &ShiftOverrideRepo{db: db}
}

func (r *ShiftOverrideRepo) FindFor(ctx context.Context, employeeID uuid.UUID, date domain.Date) (domain.ShiftOverride, error) {
	var o domain.ShiftOverride
	err := r.db.NewSelect().
		Model(&o).
		Where("employee_id = ?", employeeID).
		Where("date = ?", date).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ShiftOverride{}, store.ErrNotFound
	}
	if err != nil {
		return domain.ShiftOverride{}, err
	}
	return o, nil
}

type BreakTemplateRepo struct {
	db *bun.DB
}

func NewBreakTemplateRepo(db *bun.DB) *BreakTemplateRepo {
	return &BreakTemplateRepo{db: db}
}

func (r *BreakTemplateRepo) FindActiveFor(ctx context.Context, employeeID uuid.UUID, date domain.Date) ([]domain.BreakTemplate, error) {
	var rows []domain.BreakTemplate
	err := r.db.NewSelect().
		Model(&rows).
		Where("employee_id = ?", employeeID).
		Where("(day_of_week IS NULL OR day_of_week = ?)", date.Weekday()).
		Where("is_active").
		Where("effective_from <= ?", date).
		Where("(effective_to IS NULL OR effective_to >= ?)", date).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

type ServiceRepo struct {
	db *bun.DB
}

func NewServiceRepo(db *bun.DB) *ServiceRepo {
	return &ServiceRepo{db: db}
}

func (r *ServiceRepo) FindService(ctx context.Context, serviceID uuid.UUID) (domain.Service, error) {
	var svc domain.Service
	err := r.db.NewSelect().Model(&svc).Where("id = ?", serviceID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Service{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Service{}, err
	}
	return svc, nil
}
