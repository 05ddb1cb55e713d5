package stats

import (
	"io"
	"math"
	"testing"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(log.NewStdLogger(io.Discard))
}

func TestFitKaplanMeierHandComputed(t *testing.T) {
	engine := newTestEngine(t)

	// 事件在 t=1,2,4, 删失在 t=3,5:
	// S(1)=4/5, S(2)=0.8*3/4=0.6, S(4)=0.6*1/2=0.3
	durations := []float64{1, 2, 3, 4, 5}
	events := []bool{true, true, false, true, false}

	est, err := engine.FitKaplanMeier(durations, events, "overall")
	require.NoError(t, err)

	assert.Equal(t, "overall", est.Label)
	assert.Equal(t, 5, est.NSubjects)
	assert.Equal(t, []float64{1, 2, 4}, est.Times)
	assert.Equal(t, []int{5, 4, 2}, est.AtRisk)
	assert.Equal(t, []int{1, 1, 1}, est.Events)
	require.Len(t, est.Survival, 3)
	assert.InDelta(t, 0.8, est.Survival[0], 1e-12)
	assert.InDelta(t, 0.6, est.Survival[1], 1e-12)
	assert.InDelta(t, 0.3, est.Survival[2], 1e-12)

	// 阶梯函数取值
	assert.InDelta(t, 1.0, est.SurvivalAt(0), 1e-12)
	assert.InDelta(t, 0.8, est.SurvivalAt(1), 1e-12)
	assert.InDelta(t, 0.8, est.SurvivalAt(1.5), 1e-12)
	assert.InDelta(t, 0.6, est.SurvivalAt(3.9), 1e-12)
	assert.InDelta(t, 0.3, est.SurvivalAt(100), 1e-12)

	assert.InDelta(t, 4, est.MedianSurvivalTime(), 1e-12)
}

func TestFitKaplanMeierTiedEvents(t *testing.T) {
	engine := newTestEngine(t)

	// t=2 两个并列事件共享风险集 3: S(2)=1/3, S(3)=0
	est, err := engine.FitKaplanMeier([]float64{2, 2, 3}, []bool{true, true, true}, "tied")
	require.NoError(t, err)

	assert.Equal(t, []float64{2, 3}, est.Times)
	assert.Equal(t, []int{3, 1}, est.AtRisk)
	assert.Equal(t, []int{2, 1}, est.Events)
	assert.InDelta(t, 1.0/3.0, est.Survival[0], 1e-12)
	assert.InDelta(t, 0.0, est.Survival[1], 1e-12)
}

func TestFitKaplanMeierEventAndCensorTied(t *testing.T) {
	engine := newTestEngine(t)

	// 同一时刻事件与删失并存: 删失个体仍计入该时刻的风险集
	est, err := engine.FitKaplanMeier([]float64{2, 2}, []bool{true, false}, "mixed")
	require.NoError(t, err)

	assert.Equal(t, []float64{2}, est.Times)
	assert.Equal(t, []int{2}, est.AtRisk)
	assert.InDelta(t, 0.5, est.Survival[0], 1e-12)
	assert.InDelta(t, 2, est.MedianSurvivalTime(), 1e-12)
}

func TestFitKaplanMeierAllCensored(t *testing.T) {
	engine := newTestEngine(t)

	est, err := engine.FitKaplanMeier([]float64{10, 20, 30}, []bool{false, false, false}, "censored")
	require.NoError(t, err)

	assert.Empty(t, est.Times)
	assert.InDelta(t, 1.0, est.SurvivalAt(100), 1e-12)
	assert.True(t, math.IsInf(est.MedianSurvivalTime(), 1))
}

func TestFitKaplanMeierInputErrors(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.FitKaplanMeier(nil, nil, "empty")
	assert.Error(t, err)

	_, err = engine.FitKaplanMeier([]float64{1, 2}, []bool{true}, "mismatch")
	assert.Error(t, err)

	_, err = engine.FitKaplanMeier([]float64{1, -2}, []bool{true, true}, "negative")
	assert.Error(t, err)
}
