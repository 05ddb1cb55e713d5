package model

import "time"

// CohortUser 模拟队列的一行 (按 run_id 归属到一次分析任务)
type CohortUser struct {
	ID               uint64    `gorm:"primaryKey;column:cohort_user_id"`
	RunID            string    `gorm:"column:run_id;size:36;index"`
	UserID           int64     `gorm:"column:user_id"`
	SignupDate       time.Time `gorm:"column:signup_date"`
	UserType         string    `gorm:"column:user_type;size:32;index"`
	SubscriptionTier string    `gorm:"column:subscription_tier;size:16;index"`
	ActivityCount    int       `gorm:"column:activity_count"`
	Score            float64   `gorm:"column:score"`
	BaselineHazard   float64   `gorm:"column:baseline_hazard"`
	TimeToEvent      float64   `gorm:"column:time_to_event"`
	EventIndicator   int       `gorm:"column:event_indicator"`
	TimeObserved     float64   `gorm:"column:time_observed"`
	LastActiveDate   time.Time `gorm:"column:last_active_date"`
	CreatedAt        time.Time `gorm:"column:created_at"`
}

func (CohortUser) TableName() string { return "cohort_user" }
