package repository

import (
	"time"

	"github.com/kursadbilgin/content-reminders/internal/domain"
)

// UserModel is the persistence model for the users table.
type UserModel struct {
	ID          string  `gorm:"type:uuid;primaryKey"`
	Email       *string `gorm:"type:varchar(255)"`
	DailyDigest bool    `gorm:"not null;default:true"`
	DigestTime  string  `gorm:"type:varchar(5);not null;default:''"`
	Timezone    string  `gorm:"type:varchar(64);not null;default:''"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (UserModel) TableName() string {
	return "users"
}

// ContentItemModel is the persistence model for the content_items table.
type ContentItemModel struct {
	ID                   string               `gorm:"type:uuid;primaryKey"`
	OwnerID              string               `gorm:"type:uuid;not null"`
	Title                string               `gorm:"type:varchar(255);not null;default:''"`
	Body                 string               `gorm:"type:text;not null;default:''"`
	Platform             string               `gorm:"type:varchar(32);not null;default:''"`
	Status               domain.ContentStatus `gorm:"type:varchar(20);not null"`
	ScheduledAt          *time.Time           `gorm:"type:timestamptz"`
	NotificationsEnabled bool                 `gorm:"not null;default:false"`
	ReminderLeadHours    int                  `gorm:"not null;default:24"`
	DailyDigestTime      string               `gorm:"type:varchar(5);not null;default:'09:00'"`
	MediaKeys            []string             `gorm:"serializer:json;type:jsonb"`
	CompletedAt          *time.Time           `gorm:"type:timestamptz"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (ContentItemModel) TableName() string {
	return "content_items"
}

// NotificationModel is the persistence model for the notifications table.
type NotificationModel struct {
	ID                string      `gorm:"type:uuid;primaryKey"`
	OwnerID           string      `gorm:"type:uuid;not null"`
	ContentItemID     *string     `gorm:"type:uuid"`
	Kind              domain.Kind `gorm:"type:varchar(20);not null"`
	Message           string      `gorm:"type:text;not null"`
	DueAt             time.Time   `gorm:"type:timestamptz;not null"`
	Sent              bool        `gorm:"not null;default:false"`
	SentAt            *time.Time  `gorm:"type:timestamptz"`
	ProviderMessageID *string     `gorm:"type:varchar(255)"`
	ClaimedUntil      *time.Time  `gorm:"type:timestamptz"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (NotificationModel) TableName() string {
	return "notifications"
}

// DeliveryAttemptModel is the persistence model for delivery_attempts.
type DeliveryAttemptModel struct {
	ID                string  `gorm:"type:uuid;primaryKey"`
	NotificationID    string  `gorm:"type:uuid;not null"`
	Recipient         string  `gorm:"type:varchar(255);not null"`
	StatusCode        *int    `gorm:"type:int"`
	ProviderMessageID *string `gorm:"type:varchar(255)"`
	Error             *string `gorm:"type:text"`
	CreatedAt         time.Time
}

func (DeliveryAttemptModel) TableName() string {
	return "delivery_attempts"
}

// JobRunModel is the persistence model for job_runs.
type JobRunModel struct {
	ID          string              `gorm:"type:uuid;primaryKey"`
	Job         domain.JobName      `gorm:"type:varchar(32);not null"`
	TotalCount  int                 `gorm:"not null;default:0"`
	FailedCount int                 `gorm:"not null;default:0"`
	Status      domain.JobRunStatus `gorm:"type:varchar(20);not null"`
	StartedAt   time.Time           `gorm:"type:timestamptz;not null"`
	FinishedAt  *time.Time          `gorm:"type:timestamptz"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (JobRunModel) TableName() string {
	return "job_runs"
}

func userModelToDomain(m *UserModel) *domain.User {
	if m == nil {
		return nil
	}

	return &domain.User{
		ID:    m.ID,
		Email: m.Email,
		Preferences: domain.NotificationPreferences{
			DailyDigest: m.DailyDigest,
			DigestTime:  m.DigestTime,
			Timezone:    m.Timezone,
		},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func contentItemModelToDomain(m *ContentItemModel) *domain.ContentItem {
	if m == nil {
		return nil
	}

	return &domain.ContentItem{
		ID:                   m.ID,
		OwnerID:              m.OwnerID,
		Title:                m.Title,
		Body:                 m.Body,
		Platform:             m.Platform,
		Status:               m.Status,
		ScheduledAt:          m.ScheduledAt,
		NotificationsEnabled: m.NotificationsEnabled,
		ReminderLeadHours:    m.ReminderLeadHours,
		DailyDigestTime:      m.DailyDigestTime,
		MediaKeys:            m.MediaKeys,
		CompletedAt:          m.CompletedAt,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

func notificationModelFromDomain(n *domain.NotificationRecord) *NotificationModel {
	if n == nil {
		return nil
	}

	return &NotificationModel{
		ID:                n.ID,
		OwnerID:           n.OwnerID,
		ContentItemID:     n.ContentItemID,
		Kind:              n.Kind,
		Message:           n.Message,
		DueAt:             n.DueAt,
		Sent:              n.Sent,
		SentAt:            n.SentAt,
		ProviderMessageID: n.ProviderMessageID,
		ClaimedUntil:      n.ClaimedUntil,
		CreatedAt:         n.CreatedAt,
		UpdatedAt:         n.UpdatedAt,
	}
}

func notificationModelToDomain(m *NotificationModel) *domain.NotificationRecord {
	if m == nil {
		return nil
	}

	return &domain.NotificationRecord{
		ID:                m.ID,
		OwnerID:           m.OwnerID,
		ContentItemID:     m.ContentItemID,
		Kind:              m.Kind,
		Message:           m.Message,
		DueAt:             m.DueAt,
		Sent:              m.Sent,
		SentAt:            m.SentAt,
		ProviderMessageID: m.ProviderMessageID,
		ClaimedUntil:      m.ClaimedUntil,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func attemptModelFromDomain(a *domain.DeliveryAttempt) *DeliveryAttemptModel {
	if a == nil {
		return nil
	}

	return &DeliveryAttemptModel{
		ID:                a.ID,
		NotificationID:    a.NotificationID,
		Recipient:         a.Recipient,
		StatusCode:        a.StatusCode,
		ProviderMessageID: a.ProviderMessageID,
		Error:             a.Error,
		CreatedAt:         a.CreatedAt,
	}
}

func attemptModelToDomain(m *DeliveryAttemptModel) *domain.DeliveryAttempt {
	if m == nil {
		return nil
	}

	return &domain.DeliveryAttempt{
		ID:                m.ID,
		NotificationID:    m.NotificationID,
		Recipient:         m.Recipient,
		StatusCode:        m.StatusCode,
		ProviderMessageID: m.ProviderMessageID,
		Error:             m.Error,
		CreatedAt:         m.CreatedAt,
	}
}

func jobRunModelFromDomain(r *domain.JobRun) *JobRunModel {
	if r == nil {
		return nil
	}

	return &JobRunModel{
		ID:          r.ID,
		Job:         r.Job,
		TotalCount:  r.TotalCount,
		FailedCount: r.FailedCount,
		Status:      r.Status,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func jobRunModelToDomain(m *JobRunModel) *domain.JobRun {
	if m == nil {
		return nil
	}

	return &domain.JobRun{
		ID:          m.ID,
		Job:         m.Job,
		TotalCount:  m.TotalCount,
		FailedCount: m.FailedCount,
		Status:      m.Status,
		StartedAt:   m.StartedAt,
		FinishedAt:  m.FinishedAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
