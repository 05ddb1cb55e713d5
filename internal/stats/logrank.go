package stats

import (
	"fmt"
	"sort"

	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/biz"

	"gonum.org/v1/gonum/stat/distuv"
)

// LogRank 两组 log-rank 检验
//
// 在每个事件时刻比较两组的观测/期望事件数, 统计量在原假设下
// 服从自由度 1 的卡方分布。
func (e *Engine) LogRank(d1 []float64, e1 []bool, d2 []float64, e2 []bool) (*biz.LogRankResult, error) {
	if len(d1) != len(e1) || len(d2) != len(e2) {
		return nil, fmt.Errorf("durations and events length mismatch")
	}
	if len(d1) == 0 || len(d2) == 0 {
		return nil, fmt.Errorf("cannot run log-rank test on an empty group")
	}

	// 汇总所有发生过事件的时刻
	timeSet := make(map[float64]struct{})
	for i, t := range d1 {
		if e1[i] {
			timeSet[t] = struct{}{}
		}
	}
	for i, t := range d2 {
		if e2[i] {
			timeSet[t] = struct{}{}
		}
	}
	times := make([]float64, 0, len(timeSet))
	for t := range timeSet {
		times = append(times, t)
	}
	sort.Float64s(times)

	var observed, expected, variance float64
	for _, t := range times {
		n1, ev1 := riskAndEvents(d1, e1, t)
		n2, ev2 := riskAndEvents(d2, e2, t)
		n := n1 + n2
		d := ev1 + ev2
		if n < 2 || d == 0 {
			continue
		}

		fn, fn1, fn2, fd := float64(n), float64(n1), float64(n2), float64(d)
		observed += float64(ev1)
		expected += fd * fn1 / fn
		variance += fd * (fn1 / fn) * (fn2 / fn) * (fn - fd) / (fn - 1)
	}

	result := &biz.LogRankResult{}
	if variance > 0 {
		diff := observed - expected
		result.Statistic = diff * diff / variance
		result.PValue = distuv.ChiSquared{K: 1}.Survival(result.Statistic)
	} else {
		// 两组都没有可比较的事件时刻
		result.PValue = 1
	}
	return result, nil
}

// riskAndEvents 时刻 t 上的风险集大小和事件数
func riskAndEvents(durations []float64, events []bool, t float64) (atRisk, nEvents int) {
	for i, d := range durations {
		if d >= t {
			atRisk++
			if d == t && events[i] {
				nEvents++
			}
		}
	}
	return atRisk, nEvents
}
