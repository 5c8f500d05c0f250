package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// StudentSession is one durable record of a student working a case.
// Rows are append-only per (student, case): starting a case again creates a
// new row, and "current" always means the most recently created matching row.
// CurrentScore is the single source of truth for the numeric score; the copy
// inside StateJSON is a cache and is overwritten from this column on read.
type StudentSession struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID    string         `gorm:"not null;index;column:student_id" json:"student_id"`
	CaseID       string         `gorm:"not null;index;column:case_id" json:"case_id"`
	CurrentScore float64        `gorm:"not null;default:0;column:current_score" json:"current_score"`
	StateJSON    datatypes.JSON `gorm:"column:state_json" json:"state_json"`
	StartTime    time.Time      `gorm:"not null;index;column:start_time" json:"start_time"`
}

func (StudentSession) TableName() string {
	return "student_sessions"
}

const (
	ChatRoleStudent   = "user"
	ChatRoleAssistant = "assistant"
)

// ChatLog records one message exchanged during a session, either the
// student's raw action or the composed feedback.
type ChatLog struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID    uuid.UUID      `gorm:"type:uuid;not null;index;column:session_id" json:"session_id"`
	Role         string         `gorm:"not null;column:role" json:"role"`
	Content      string         `gorm:"not null;column:content" json:"content"`
	MetadataJSON datatypes.JSON `gorm:"column:metadata_json" json:"metadata_json"`
	Timestamp    time.Time      `gorm:"not null;column:timestamp" json:"timestamp"`
}

func (ChatLog) TableName() string {
	return "chat_logs"
}

// ExamResult snapshots a completed case run.
type ExamResult struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID   string         `gorm:"not null;index;column:student_id" json:"student_id"`
	CaseID      string         `gorm:"not null;index;column:case_id" json:"case_id"`
	Score       float64        `gorm:"not null;column:score" json:"score"`
	MaxScore    float64        `gorm:"not null;column:max_score" json:"max_score"`
	DetailsJSON datatypes.JSON `gorm:"column:details_json" json:"details_json"`
	CompletedAt time.Time      `gorm:"not null;column:completed_at" json:"completed_at"`
}

func (ExamResult) TableName() string {
	return "exam_results"
}
