package biz

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/conf"
	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	// ErrInvalidCohortConfig 队列生成参数非法 (采样开始前抛出)
	ErrInvalidCohortConfig = errors.New("invalid cohort config")
	// ErrHazardOutOfDomain 风险率越界 (到达指数采样器的 hazard <= 0, 属于内部一致性错误)
	ErrHazardOutOfDomain = errors.New("baseline hazard out of domain")
)

// probSumTolerance 概率向量求和的浮点容差
const probSumTolerance = 1e-6

// CategoryProb 分类变量的取值及其概率
type CategoryProb struct {
	Label string
	Prob  float64
}

// CohortParams 模拟队列生成参数
type CohortParams struct {
	NUsers           int
	StudyHorizonDays float64
	EnrollmentStart  time.Time
	EnrollmentDays   int
	UserTypes        []CategoryProb
	Tiers            []CategoryProb
	ActivityMean     float64
	ScoreMean        float64
	ScoreStdDev      float64

	BaselineHazard           float64
	PremiumHazardFactor      float64
	HighActivityHazardFactor float64
	HighActivityThreshold    int
}

// DefaultCohortParams 默认生成参数 (与历史报告保持一致)
func DefaultCohortParams() CohortParams {
	return CohortParams{
		NUsers:           1500,
		StudyHorizonDays: 120,
		EnrollmentStart:  time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		EnrollmentDays:   31,
		UserTypes: []CategoryProb{
			{Label: constants.UserTypeJobSeeker, Prob: 0.60},
			{Label: constants.UserTypeInterviewer, Prob: 0.25},
			{Label: constants.UserTypeRecruiter, Prob: 0.15},
		},
		Tiers: []CategoryProb{
			{Label: constants.TierFree, Prob: 0.70},
			{Label: constants.TierPremium, Prob: 0.30},
		},
		ActivityMean:             5,
		ScoreMean:                75,
		ScoreStdDev:              12,
		BaselineHazard:           0.015,
		PremiumHazardFactor:      0.43,
		HighActivityHazardFactor: 0.32,
		HighActivityThreshold:    5,
	}
}

// CohortParamsFromConf 从配置构建生成参数
func CohortParamsFromConf(c *conf.Cohort) (CohortParams, error) {
	p := DefaultCohortParams()
	if c == nil {
		return p, nil
	}
	start, err := time.ParseInLocation("2006-01-02", c.EnrollmentStart, time.UTC)
	if err != nil {
		return p, fmt.Errorf("%w: enrollment_start %q: %v", ErrInvalidCohortConfig, c.EnrollmentStart, err)
	}
	p.NUsers = c.NUsers
	p.StudyHorizonDays = c.StudyHorizonDays
	p.EnrollmentStart = start
	p.EnrollmentDays = c.EnrollmentDays
	p.UserTypes = make([]CategoryProb, len(c.UserTypes))
	for i, ut := range c.UserTypes {
		p.UserTypes[i] = CategoryProb{Label: ut.Label, Prob: ut.Prob}
	}
	p.Tiers = make([]CategoryProb, len(c.Tiers))
	for i, t := range c.Tiers {
		p.Tiers[i] = CategoryProb{Label: t.Label, Prob: t.Prob}
	}
	p.ActivityMean = c.ActivityMean
	p.ScoreMean = c.ScoreMean
	p.ScoreStdDev = c.ScoreStdDev
	p.BaselineHazard = c.BaselineHazard
	p.PremiumHazardFactor = c.PremiumHazardFactor
	p.HighActivityHazardFactor = c.HighActivityHazardFactor
	p.HighActivityThreshold = c.HighActivityThreshold
	return p, nil
}

// Validate 采样前的完整参数校验
// 概率向量不合法时直接报错, 不做静默归一化
func (p CohortParams) Validate() error {
	if p.NUsers <= 0 {
		return fmt.Errorf("%w: n_users must be positive, got %d", ErrInvalidCohortConfig, p.NUsers)
	}
	if p.StudyHorizonDays <= 0 || math.IsNaN(p.StudyHorizonDays) || math.IsInf(p.StudyHorizonDays, 0) {
		return fmt.Errorf("%w: study_horizon_days must be positive, got %v", ErrInvalidCohortConfig, p.StudyHorizonDays)
	}
	if p.EnrollmentDays <= 0 {
		return fmt.Errorf("%w: enrollment_days must be positive, got %d", ErrInvalidCohortConfig, p.EnrollmentDays)
	}
	if err := validateProbs("user_types", p.UserTypes); err != nil {
		return err
	}
	if err := validateProbs("tiers", p.Tiers); err != nil {
		return err
	}
	if p.ActivityMean < 0 || math.IsNaN(p.ActivityMean) {
		return fmt.Errorf("%w: activity_mean must be non-negative, got %v", ErrInvalidCohortConfig, p.ActivityMean)
	}
	if p.ScoreStdDev <= 0 {
		return fmt.Errorf("%w: score_stddev must be positive, got %v", ErrInvalidCohortConfig, p.ScoreStdDev)
	}
	if p.BaselineHazard <= 0 || math.IsNaN(p.BaselineHazard) {
		return fmt.Errorf("%w: baseline_hazard must be positive, got %v", ErrInvalidCohortConfig, p.BaselineHazard)
	}
	if p.PremiumHazardFactor <= 0 {
		return fmt.Errorf("%w: premium_hazard_factor must be positive, got %v", ErrInvalidCohortConfig, p.PremiumHazardFactor)
	}
	if p.HighActivityHazardFactor <= 0 {
		return fmt.Errorf("%w: high_activity_hazard_factor must be positive, got %v", ErrInvalidCohortConfig, p.HighActivityHazardFactor)
	}
	if p.HighActivityThreshold < 0 {
		return fmt.Errorf("%w: high_activity_threshold must be non-negative, got %d", ErrInvalidCohortConfig, p.HighActivityThreshold)
	}
	return nil
}

func validateProbs(name string, probs []CategoryProb) error {
	if len(probs) == 0 {
		return fmt.Errorf("%w: %s must not be empty", ErrInvalidCohortConfig, name)
	}
	sum := 0.0
	for _, cp := range probs {
		if cp.Label == "" {
			return fmt.Errorf("%w: %s contains an empty label", ErrInvalidCohortConfig, name)
		}
		if cp.Prob < 0 || math.IsNaN(cp.Prob) {
			return fmt.Errorf("%w: %s probability for %q must be non-negative, got %v", ErrInvalidCohortConfig, name, cp.Label, cp.Prob)
		}
		sum += cp.Prob
	}
	if math.Abs(sum-1) > probSumTolerance {
		return fmt.Errorf("%w: %s probabilities must sum to 1, got %v", ErrInvalidCohortConfig, name, sum)
	}
	return nil
}

// UserRecord 一个模拟用户 (队列中的一行)
type UserRecord struct {
	UserID           int64
	SignupDate       time.Time
	UserType         string
	SubscriptionTier string
	ActivityCount    int
	Score            float64
	// BaselineHazard 该行的瞬时流失风险率, 始终为正
	BaselineHazard float64
	// TimeToEvent 删失前的真实流失时间 (保留在行上, 供下游校验删失逻辑)
	TimeToEvent float64
	// Churned 事件指示: 真实流失时间落在研究窗口内时为 true, 否则为右删失
	Churned        bool
	TimeObserved   float64
	LastActiveDate time.Time
}

// Cohort 一次生成的完整队列, 生成后不可变
type Cohort struct {
	Params  CohortParams
	Seed    uint64
	Records []UserRecord
}

// CohortGenerator 模拟队列生成器
//
// 生成器自身无状态; 随机源由调用方持有并传入。
// 同一个随机源不可被多个 goroutine 并发使用, 并行生成多个队列时
// 每次调用必须提供独立的 seed/源, 否则输出会相互关联。
type CohortGenerator struct {
	log *log.Helper
}

// NewCohortGenerator 创建队列生成器
func NewCohortGenerator(logger log.Logger) *CohortGenerator {
	return &CohortGenerator{log: log.NewHelper(logger)}
}

// Generate 按参数生成 n_users 行的模拟队列
//
// 相同 (参数, seed) 必然产出逐行一致的结果。采样按列批量进行,
// 列的采样顺序是确定性保证的一部分, 调整顺序会改变同 seed 的输出。
func (g *CohortGenerator) Generate(params CohortParams, seed uint64) (*Cohort, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	n := params.NUsers
	src := rand.NewSource(seed)
	rng := rand.New(src)

	// 1) 注册日期: 注册窗口内均匀分布的天偏移
	signupOffsets := make([]int, n)
	for i := range signupOffsets {
		signupOffsets[i] = rng.Intn(params.EnrollmentDays)
	}

	// 2) 分类协变量
	userTypes := sampleCategorical(rng, params.UserTypes, n)
	tiers := sampleCategorical(rng, params.Tiers, n)

	// 3) 活跃度: Poisson
	poisson := distuv.Poisson{Lambda: params.ActivityMean, Src: src}
	activity := make([]int, n)
	if params.ActivityMean > 0 {
		for i := range activity {
			activity[i] = int(poisson.Rand())
		}
	}

	// 4) 评分: Normal
	normal := distuv.Normal{Mu: params.ScoreMean, Sigma: params.ScoreStdDev, Src: src}
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = normal.Rand()
	}

	// 5) 风险率: 常数基线乘以两个条件衰减因子 (彼此独立, 可交换)
	hazards := make([]float64, n)
	for i := range hazards {
		h := params.BaselineHazard
		if tiers[i] == constants.TierPremium {
			h *= params.PremiumHazardFactor
		}
		if activity[i] >= params.HighActivityThreshold {
			h *= params.HighActivityHazardFactor
		}
		hazards[i] = h
	}

	// 6) 真实流失时间: 逐行指数分布, rate = 该行 hazard
	// 使用对数均匀逆变换, 极小 hazard 下数值稳定 (只会得到很大的时间, 不会溢出)
	times := make([]float64, n)
	for i := range times {
		if hazards[i] <= 0 || math.IsNaN(hazards[i]) {
			return nil, fmt.Errorf("%w: row %d has hazard %v", ErrHazardOutOfDomain, i+1, hazards[i])
		}
		u := rng.Float64()
		times[i] = -math.Log(1-u) / hazards[i]
	}

	// 7) 行政删失 + 派生列
	records := make([]UserRecord, n)
	for i := range records {
		signup := params.EnrollmentStart.AddDate(0, 0, signupOffsets[i])
		timeToEvent := times[i]
		churned := timeToEvent <= params.StudyHorizonDays
		timeObserved := math.Min(timeToEvent, params.StudyHorizonDays)

		records[i] = UserRecord{
			UserID:           int64(i + 1),
			SignupDate:       signup,
			UserType:         userTypes[i],
			SubscriptionTier: tiers[i],
			ActivityCount:    activity[i],
			Score:            scores[i],
			BaselineHazard:   hazards[i],
			TimeToEvent:      timeToEvent,
			Churned:          churned,
			TimeObserved:     timeObserved,
			LastActiveDate:   signup.AddDate(0, 0, int(math.Floor(timeObserved))),
		}
	}

	cohort := &Cohort{Params: params, Seed: seed, Records: records}
	g.log.Infof("generated cohort: users=%d, churned=%d (%.1f%%), seed=%d",
		n, cohort.ChurnedCount(), cohort.ChurnRate()*100, seed)
	return cohort, nil
}

// sampleCategorical 按固定概率批量采样分类变量
func sampleCategorical(rng *rand.Rand, probs []CategoryProb, n int) []string {
	// 累积概率边界, 末项钳到 1 消除浮点残差
	cum := make([]float64, len(probs))
	acc := 0.0
	for i, cp := range probs {
		acc += cp.Prob
		cum[i] = acc
	}
	cum[len(cum)-1] = 1

	out := make([]string, n)
	for i := range out {
		u := rng.Float64()
		for j, edge := range cum {
			if u < edge {
				out[i] = probs[j].Label
				break
			}
		}
		if out[i] == "" {
			out[i] = probs[len(probs)-1].Label
		}
	}
	return out
}

// ChurnedCount 窗口内流失的用户数
func (c *Cohort) ChurnedCount() int {
	count := 0
	for _, r := range c.Records {
		if r.Churned {
			count++
		}
	}
	return count
}

// ChurnRate 窗口内流失率
func (c *Cohort) ChurnRate() float64 {
	if len(c.Records) == 0 {
		return 0
	}
	return float64(c.ChurnedCount()) / float64(len(c.Records))
}

// Durations 所有行的观测时长
func (c *Cohort) Durations() []float64 {
	out := make([]float64, len(c.Records))
	for i, r := range c.Records {
		out[i] = r.TimeObserved
	}
	return out
}

// Events 所有行的事件指示
func (c *Cohort) Events() []bool {
	out := make([]bool, len(c.Records))
	for i, r := range c.Records {
		out[i] = r.Churned
	}
	return out
}

// SubsetByTier 按订阅档位取子集的 (时长, 事件) 序列
func (c *Cohort) SubsetByTier(tier string) ([]float64, []bool) {
	var durations []float64
	var events []bool
	for _, r := range c.Records {
		if r.SubscriptionTier == tier {
			durations = append(durations, r.TimeObserved)
			events = append(events, r.Churned)
		}
	}
	return durations, events
}

// SubsetByActivity 按活跃度分组取子集, high 为 true 表示 activity_count 达到阈值
func (c *Cohort) SubsetByActivity(high bool) ([]float64, []bool) {
	var durations []float64
	var events []bool
	for _, r := range c.Records {
		if (r.ActivityCount >= c.Params.HighActivityThreshold) == high {
			durations = append(durations, r.TimeObserved)
			events = append(events, r.Churned)
		}
	}
	return durations, events
}
