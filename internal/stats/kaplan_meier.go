package stats

import (
	"fmt"
	"sort"

	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/biz"
)

// FitKaplanMeier 拟合 KM 生存曲线
//
// 右删失个体在其删失时刻之后退出风险集, 生存概率只在事件时刻下降。
func (e *Engine) FitKaplanMeier(durations []float64, events []bool, label string) (*biz.KMEstimate, error) {
	if len(durations) != len(events) {
		return nil, fmt.Errorf("durations and events length mismatch: %d vs %d", len(durations), len(events))
	}
	if len(durations) == 0 {
		return nil, fmt.Errorf("cannot fit Kaplan-Meier on an empty sample")
	}

	type subject struct {
		t     float64
		event bool
	}
	subjects := make([]subject, len(durations))
	for i := range durations {
		if durations[i] < 0 {
			return nil, fmt.Errorf("negative duration at index %d: %v", i, durations[i])
		}
		subjects[i] = subject{t: durations[i], event: events[i]}
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].t < subjects[j].t })

	est := &biz.KMEstimate{Label: label, NSubjects: len(subjects)}
	survival := 1.0
	i := 0
	for i < len(subjects) {
		t := subjects[i].t
		atRisk := len(subjects) - i

		// 合并同一时刻的事件与删失
		d := 0
		j := i
		for j < len(subjects) && subjects[j].t == t {
			if subjects[j].event {
				d++
			}
			j++
		}

		if d > 0 {
			survival *= 1 - float64(d)/float64(atRisk)
			est.Times = append(est.Times, t)
			est.Survival = append(est.Survival, survival)
			est.AtRisk = append(est.AtRisk, atRisk)
			est.Events = append(est.Events, d)
		}
		i = j
	}

	return est, nil
}
