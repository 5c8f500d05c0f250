package session

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dentsim/dentsim-backend/internal/domain"
	"github.com/dentsim/dentsim-backend/internal/platform/dbctx"
	"github.com/dentsim/dentsim-backend/internal/platform/logger"
)

type ChatLogRepo interface {
	Append(dbc dbctx.Context, row *domain.ChatLog) (*domain.ChatLog, error)
	ListBySessionID(dbc dbctx.Context, sessionID uuid.UUID) ([]*domain.ChatLog, error)
}

type chatLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatLogRepo(db *gorm.DB, baseLog *logger.Logger) ChatLogRepo {
	return &chatLogRepo{
		db:  db,
		log: baseLog.With("repo", "ChatLogRepo"),
	}
}

func (r *chatLogRepo) Append(dbc dbctx.Context, row *domain.ChatLog) (*domain.ChatLog, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil || row.SessionID == uuid.Nil {
		return nil, nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.Timestamp.IsZero() {
		row.Timestamp = time.Now().UTC()
	}
	if err := t.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *chatLogRepo) ListBySessionID(dbc dbctx.Context, sessionID uuid.UUID) ([]*domain.ChatLog, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var rows []*domain.ChatLog
	if sessionID == uuid.Nil {
		return rows, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
