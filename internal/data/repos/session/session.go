package session

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dentsim/dentsim-backend/internal/domain"
	"github.com/dentsim/dentsim-backend/internal/platform/dbctx"
	"github.com/dentsim/dentsim-backend/internal/platform/logger"
)

// StudentSessionRepo persists the append-only session rows. "Latest" always
// means the most recently created matching row; older rows are never updated
// once superseded and never deleted here.
type StudentSessionRepo interface {
	Create(dbc dbctx.Context, row *domain.StudentSession) (*domain.StudentSession, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.StudentSession, error)
	GetLatestByStudent(dbc dbctx.Context, studentID string) (*domain.StudentSession, error)
	GetLatestByStudentAndCase(dbc dbctx.Context, studentID, caseID string) (*domain.StudentSession, error)
	AddScore(dbc dbctx.Context, id uuid.UUID, delta float64) error
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]any) error
}

type studentSessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStudentSessionRepo(db *gorm.DB, baseLog *logger.Logger) StudentSessionRepo {
	return &studentSessionRepo{
		db:  db,
		log: baseLog.With("repo", "StudentSessionRepo"),
	}
}

func (r *studentSessionRepo) Create(dbc dbctx.Context, row *domain.StudentSession) (*domain.StudentSession, error) {
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
	if row.StartTime.IsZero() {
		row.StartTime = time.Now().UTC()
	}
	if err := t.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *studentSessionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.StudentSession, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row domain.StudentSession
	if err := t.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *studentSessionRepo) GetLatestByStudent(dbc dbctx.Context, studentID string) (*domain.StudentSession, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if studentID == "" {
		return nil, nil
	}
	var row domain.StudentSession
	if err := t.WithContext(dbc.Ctx).
		Where("student_id = ?", studentID).
		Order("start_time DESC").
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *studentSessionRepo) GetLatestByStudentAndCase(dbc dbctx.Context, studentID, caseID string) (*domain.StudentSession, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if studentID == "" || caseID == "" {
		return nil, nil
	}
	var row domain.StudentSession
	if err := t.WithContext(dbc.Ctx).
		Where("student_id = ? AND case_id = ?", studentID, caseID).
		Order("start_time DESC").
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

// AddScore increments the durable score column in a single SQL update.
// The score is only ever changed through this increment; no code path
// overwrites it wholesale.
func (r *studentSessionRepo) AddScore(dbc dbctx.Context, id uuid.UUID, delta float64) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil || delta == 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).
		Model(&domain.StudentSession{}).
		Where("id = ?", id).
		UpdateColumn("current_score", gorm.Expr("current_score + ?", delta)).Error
}

func (r *studentSessionRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]any) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).
		Model(&domain.StudentSession{}).
		Where("id = ?", id).
		Updates(updates).Error
}
