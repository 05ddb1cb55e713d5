package model

import "time"

// AnalysisRun 分析任务执行记录
type AnalysisRun struct {
	ID                 uint64     `gorm:"primaryKey;column:analysis_run_id"`
	RunID              string     `gorm:"column:run_id;size:36;uniqueIndex"`
	Seed               uint64     `gorm:"column:seed"`
	NUsers             int        `gorm:"column:n_users"`
	StudyHorizonDays   float64    `gorm:"column:study_horizon_days"`
	ChurnedCount       int        `gorm:"column:churned_count"`
	ChurnRate          float64    `gorm:"column:churn_rate"`
	MedianSurvivalDays *float64   `gorm:"column:median_survival_days"`
	Status             string     `gorm:"column:status;size:16;index"`
	CSVPath            string     `gorm:"column:csv_path;size:255"`
	SummaryPath        string     `gorm:"column:summary_path;size:255"`
	ReportJSON         string     `gorm:"column:report_json;type:longtext"`
	StartedAt          time.Time  `gorm:"column:started_at;index"`
	FinishedAt         *time.Time `gorm:"column:finished_at"`
	CreatedAt          time.Time  `gorm:"column:created_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at"`
}

func (AnalysisRun) TableName() string { return "analysis_run" }
