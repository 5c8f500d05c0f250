package session

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dentsim/dentsim-backend/internal/domain"
	"github.com/dentsim/dentsim-backend/internal/platform/dbctx"
	"github.com/dentsim/dentsim-backend/internal/platform/logger"
)

type ExamResultRepo interface {
	Create(dbc dbctx.Context, row *domain.ExamResult) (*domain.ExamResult, error)
	ListByStudent(dbc dbctx.Context, studentID string) ([]*domain.ExamResult, error)
}

type examResultRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExamResultRepo(db *gorm.DB, baseLog *logger.Logger) ExamResultRepo {
	return &examResultRepo{
		db:  db,
		log: baseLog.With("repo", "ExamResultRepo"),
	}
}

func (r *examResultRepo) Create(dbc dbctx.Context, row *domain.ExamResult) (*domain.ExamResult, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil {
		return nil, nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.CompletedAt.IsZero() {
		row.CompletedAt = time.Now().UTC()
	}
	if err := t.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *examResultRepo) ListByStudent(dbc dbctx.Context, studentID string) ([]*domain.ExamResult, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var rows []*domain.ExamResult
	if studentID == "" {
		return rows, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("student_id = ?", studentID).
		Order("completed_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
