package constants

import "time"

// 缓存相关常量
const (
	// LatestReportCacheKey 最新报告缓存 key
	LatestReportCacheKey = "retention:report:latest"
	// DefaultCacheExpiration 默认缓存过期时间
	DefaultCacheExpiration = time.Hour
	// NullCacheExpiration 空值缓存过期时间 (防止缓存穿透)
	NullCacheExpiration = 5 * time.Minute
)

// 分页相关常量
const (
	// DefaultPageSize 默认分页大小
	DefaultPageSize = 10
	// MaxPageSize 最大分页大小
	MaxPageSize = 100
)

// 分布式锁相关常量
const (
	// ReportLockKey 分析任务分布式锁 key
	ReportLockKey = "retention:report:lock"
	// ReportLockExpiration 分析任务锁过期时间
	ReportLockExpiration = 10 * time.Minute
	// ReportLockRetries 分析任务锁重试次数 (只尝试一次,失败说明已有任务在执行)
	ReportLockRetries = 1
)

// 订阅档位
const (
	TierFree    = "free"
	TierPremium = "premium"
)

// 用户类型
const (
	UserTypeJobSeeker   = "job_seeker"
	UserTypeInterviewer = "interviewer"
	UserTypeRecruiter   = "recruiter"
)

// 活跃度分组标签 (以 activity_count 阈值划分)
const (
	ActivityLow  = "low_activity"
	ActivityHigh = "high_activity"
)

// 分析任务状态
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// 留存报告相关常量
const (
	// RetentionCheckpoint* 报告中输出留存率的时间点(天), 与 120 天研究窗口对应
	RetentionCheckpoint1 = 30
	RetentionCheckpoint2 = 60
	RetentionCheckpoint3 = 90
	RetentionCheckpoint4 = 120

	// DefaultKeepRuns 清理任务默认保留的分析结果数
	DefaultKeepRuns = 30

	// SignificanceLevel 显著性水平 (log-rank / Cox p 值判定)
	SignificanceLevel = 0.05
)
