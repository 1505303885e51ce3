package models

import (
	"time"
)

// UserQuota is the persisted per-identity quota record: tier assignment plus
// the daily request bookkeeping. Identity is either a user id or an IP
// fallback; the two are deliberately distinct rows.
type UserQuota struct {
	Identity        string    `gorm:"primaryKey;size:128" json:"identity"`
	Tier            string    `gorm:"not null;default:'free'" json:"tier"`
	RequestsToday   int       `gorm:"not null;default:0" json:"requests_today"`
	LastRequestDate time.Time `gorm:"type:date;not null" json:"last_request_date"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (UserQuota) TableName() string {
	return "user_quotas"
}
