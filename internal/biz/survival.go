package biz

import "math"

// KMEstimate Kaplan-Meier 生存曲线估计结果
// Times 为升序的事件时间点, Survival 为对应时间点之后的生存概率 (阶梯函数)
type KMEstimate struct {
	Label    string    `json:"label"`
	Times    []float64 `json:"times"`
	Survival []float64 `json:"survival"`
	AtRisk   []int     `json:"at_risk"`
	Events   []int     `json:"events"`
	// NSubjects 参与估计的样本量
	NSubjects int `json:"n_subjects"`
}

// SurvivalAt 任意时刻 t 的生存概率 (阶梯函数取值)
func (e *KMEstimate) SurvivalAt(t float64) float64 {
	s := 1.0
	for i, ti := range e.Times {
		if ti > t {
			break
		}
		s = e.Survival[i]
	}
	return s
}

// MedianSurvivalTime 中位生存时间
// 曲线从未跌破 0.5 时返回 +Inf (窗口内多数用户仍然留存)
func (e *KMEstimate) MedianSurvivalTime() float64 {
	for i, s := range e.Survival {
		if s <= 0.5 {
			return e.Times[i]
		}
	}
	return math.Inf(1)
}

// LogRankResult 两组 log-rank 检验结果 (卡方统计量, 自由度 1)
type LogRankResult struct {
	Statistic float64 `json:"statistic"`
	PValue    float64 `json:"p_value"`
}

// CoxCoefficient Cox 回归单个协变量的估计结果
type CoxCoefficient struct {
	Name        string  `json:"name"`
	Coef        float64 `json:"coef"`
	StdErr      float64 `json:"std_err"`
	HazardRatio float64 `json:"hazard_ratio"`
	Z           float64 `json:"z"`
	PValue      float64 `json:"p_value"`
	CILower     float64 `json:"ci_lower"`
	CIUpper     float64 `json:"ci_upper"`
}

// CoxModel Cox 比例风险回归拟合结果
type CoxModel struct {
	Coefficients  []CoxCoefficient `json:"coefficients"`
	LogLikelihood float64          `json:"log_likelihood"`
	Iterations    int              `json:"iterations"`
	Converged     bool             `json:"converged"`
	NSubjects     int              `json:"n_subjects"`
	NEvents       int              `json:"n_events"`
}

// Coefficient 按协变量名查找估计结果, 不存在时返回 nil
func (m *CoxModel) Coefficient(name string) *CoxCoefficient {
	for i := range m.Coefficients {
		if m.Coefficients[i].Name == name {
			return &m.Coefficients[i]
		}
	}
	return nil
}

// SurvivalAnalyzer 生存统计协作方接口
//
// 消费生成器产出的 (观测时长, 事件指示, 协变量) 列, 本仓库不对
// 估计量本身的实现精度做承诺, 接口即队列表必须满足的出口契约。
type SurvivalAnalyzer interface {
	// FitKaplanMeier 拟合 KM 生存曲线
	FitKaplanMeier(durations []float64, events []bool, label string) (*KMEstimate, error)
	// LogRank 两组 log-rank 检验
	LogRank(d1 []float64, e1 []bool, d2 []float64, e2 []bool) (*LogRankResult, error)
	// FitCoxPH 在队列上拟合 Cox 比例风险回归
	// 协变量: premium 哑变量, activity_count, score, user_type 哑变量(丢弃首层)
	FitCoxPH(cohort *Cohort) (*CoxModel, error)
}
