package conf

import (
	"fmt"
	"math"
)

type Bootstrap struct {
	Server *Server `yaml:"server" json:"server"`
	Data   *Data   `yaml:"data" json:"data"`
	Report *Report `yaml:"report" json:"report"`
	Log    *Log    `yaml:"log" json:"log"`
}

type Server struct {
	Http struct {
		Addr    string `yaml:"addr" json:"addr"`
		Timeout string `yaml:"timeout" json:"timeout"`
	} `yaml:"http" json:"http"`
	Grpc struct {
		Addr    string `yaml:"addr" json:"addr"`
		Timeout string `yaml:"timeout" json:"timeout"`
	} `yaml:"grpc" json:"grpc"`
}

type Data struct {
	Database struct {
		Driver          string `yaml:"driver" json:"driver"`
		Source          string `yaml:"source" json:"source"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	} `yaml:"database" json:"database"`
	Redis struct {
		Addr         string `yaml:"addr" json:"addr"`
		Password     string `yaml:"password" json:"password"`
		Db           int32  `yaml:"db" json:"db"`
		ReadTimeout  string `yaml:"read_timeout" json:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout" json:"write_timeout"`
	} `yaml:"redis" json:"redis"`
}

// CategoryProb 分类变量的取值及其概率
type CategoryProb struct {
	Label string  `yaml:"label" json:"label"`
	Prob  float64 `yaml:"prob" json:"prob"`
}

// Cohort 模拟队列生成参数
type Cohort struct {
	NUsers           int            `yaml:"n_users" json:"n_users"`
	StudyHorizonDays float64        `yaml:"study_horizon_days" json:"study_horizon_days"`
	Seed             uint64         `yaml:"seed" json:"seed"`
	EnrollmentStart  string         `yaml:"enrollment_start" json:"enrollment_start"` // 格式: 2006-01-02
	EnrollmentDays   int            `yaml:"enrollment_days" json:"enrollment_days"`
	UserTypes        []CategoryProb `yaml:"user_types" json:"user_types"`
	Tiers            []CategoryProb `yaml:"tiers" json:"tiers"`
	ActivityMean     float64        `yaml:"activity_mean" json:"activity_mean"`
	ScoreMean        float64        `yaml:"score_mean" json:"score_mean"`
	ScoreStdDev      float64        `yaml:"score_stddev" json:"score_stddev"`

	BaselineHazard           float64 `yaml:"baseline_hazard" json:"baseline_hazard"`
	PremiumHazardFactor      float64 `yaml:"premium_hazard_factor" json:"premium_hazard_factor"`
	HighActivityHazardFactor float64 `yaml:"high_activity_hazard_factor" json:"high_activity_hazard_factor"`
	HighActivityThreshold    int     `yaml:"high_activity_threshold" json:"high_activity_threshold"`
}

// Report 留存分析任务配置
type Report struct {
	Cohort    *Cohort `yaml:"cohort" json:"cohort"`
	OutputDir string  `yaml:"output_dir" json:"output_dir"`
	KeepRuns  int     `yaml:"keep_runs" json:"keep_runs"`
}

type Log struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	Output     string `yaml:"output" json:"output"`
	FilePath   string `yaml:"file_path" json:"file_path"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// Validate validates the configuration
func (b *Bootstrap) Validate() error {
	if b.Server == nil {
		return fmt.Errorf("server configuration is required")
	}
	if b.Server.Http.Addr == "" {
		return fmt.Errorf("server.http.addr is required")
	}
	if b.Server.Grpc.Addr == "" {
		return fmt.Errorf("server.grpc.addr is required")
	}
	if b.Data == nil {
		return fmt.Errorf("data configuration is required")
	}
	if b.Data.Database.Source == "" {
		return fmt.Errorf("data.database.source is required")
	}
	if b.Report == nil {
		return fmt.Errorf("report configuration is required")
	}
	if err := b.Report.Validate(); err != nil {
		return err
	}
	if b.Log == nil {
		return fmt.Errorf("log configuration is required")
	}
	return nil
}

// Validate 校验留存分析配置
func (r *Report) Validate() error {
	if r.Cohort == nil {
		return fmt.Errorf("report.cohort configuration is required")
	}
	if r.OutputDir == "" {
		return fmt.Errorf("report.output_dir is required")
	}
	return r.Cohort.Validate()
}

// Validate 校验队列生成参数
// 只做配置层面的检查, 采样前的完整校验(概率和等)在生成器中进行
func (c *Cohort) Validate() error {
	if c.NUsers <= 0 {
		return fmt.Errorf("report.cohort.n_users must be a positive integer, got %d", c.NUsers)
	}
	if c.StudyHorizonDays <= 0 || math.IsInf(c.StudyHorizonDays, 0) || math.IsNaN(c.StudyHorizonDays) {
		return fmt.Errorf("report.cohort.study_horizon_days must be positive, got %v", c.StudyHorizonDays)
	}
	if len(c.UserTypes) == 0 {
		return fmt.Errorf("report.cohort.user_types is required")
	}
	if len(c.Tiers) == 0 {
		return fmt.Errorf("report.cohort.tiers is required")
	}
	if c.BaselineHazard <= 0 {
		return fmt.Errorf("report.cohort.baseline_hazard must be positive, got %v", c.BaselineHazard)
	}
	return nil
}
