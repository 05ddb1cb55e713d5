package stats

import (
	"io"
	"math"
	"testing"

	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/biz"
	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

// syntheticCoxCohort 构造 premium 效应已知 (系数 premiumCoef) 而
// activity/score 与风险无关的队列, 用于检验系数还原
func syntheticCoxCohort(n int, premiumCoef float64, seed uint64) *biz.Cohort {
	rng := rand.New(rand.NewSource(seed))

	params := biz.DefaultCohortParams()
	params.NUsers = n
	params.StudyHorizonDays = 300
	params.UserTypes = []biz.CategoryProb{{Label: "member", Prob: 1}}

	baseRate := 0.02
	records := make([]biz.UserRecord, n)
	for i := range records {
		premium := i%2 == 0
		tier := constants.TierFree
		rate := baseRate
		if premium {
			tier = constants.TierPremium
			rate = baseRate * math.Exp(premiumCoef)
		}

		timeToEvent := rng.ExpFloat64() / rate
		churned := timeToEvent <= params.StudyHorizonDays

		records[i] = biz.UserRecord{
			UserID:           int64(i + 1),
			UserType:         "member",
			SubscriptionTier: tier,
			ActivityCount:    rng.Intn(10),
			Score:            75 + 12*rng.NormFloat64(),
			BaselineHazard:   rate,
			TimeToEvent:      timeToEvent,
			Churned:          churned,
			TimeObserved:     math.Min(timeToEvent, params.StudyHorizonDays),
		}
	}
	return &biz.Cohort{Params: params, Seed: seed, Records: records}
}

func TestFitCoxPHRecoversKnownCoefficient(t *testing.T) {
	engine := newTestEngine(t)

	const wantCoef = -0.9
	cohort := syntheticCoxCohort(2000, wantCoef, 7)

	model, err := engine.FitCoxPH(cohort)
	require.NoError(t, err)
	require.True(t, model.Converged)
	assert.Equal(t, 2000, model.NSubjects)
	assert.Positive(t, model.NEvents)

	premium := model.Coefficient("subscription_tier_premium")
	require.NotNil(t, premium)
	assert.InDelta(t, wantCoef, premium.Coef, 0.15)
	assert.InDelta(t, math.Exp(premium.Coef), premium.HazardRatio, 1e-12)
	assert.Less(t, premium.PValue, 1e-6)
	assert.Less(t, premium.CILower, premium.HazardRatio)
	assert.Greater(t, premium.CIUpper, premium.HazardRatio)

	// 与风险无关的协变量系数应接近 0
	activity := model.Coefficient("activity_count")
	require.NotNil(t, activity)
	assert.Less(t, math.Abs(activity.Coef), 0.1)

	score := model.Coefficient("score")
	require.NotNil(t, score)
	assert.Less(t, math.Abs(score.Coef), 0.05)
}

func TestFitCoxPHOnGeneratedCohort(t *testing.T) {
	engine := newTestEngine(t)

	gen := biz.NewCohortGenerator(log.NewStdLogger(io.Discard))
	params := biz.DefaultCohortParams()
	params.NUsers = 3000

	cohort, err := gen.Generate(params, 42)
	require.NoError(t, err)

	model, err := engine.FitCoxPH(cohort)
	require.NoError(t, err)
	require.True(t, model.Converged)

	// 完整的协变量表: premium + 数值列 + 丢弃首层的 user_type 哑变量
	names := make([]string, len(model.Coefficients))
	for i, c := range model.Coefficients {
		names[i] = c.Name
	}
	assert.Equal(t, []string{
		"subscription_tier_premium",
		"activity_count",
		"score",
		"user_type_" + constants.UserTypeInterviewer,
		"user_type_" + constants.UserTypeRecruiter,
	}, names)

	// premium 与高活跃都是保护因素, 系数为负且显著
	premium := model.Coefficient("subscription_tier_premium")
	require.NotNil(t, premium)
	assert.Negative(t, premium.Coef)
	assert.Less(t, premium.PValue, constants.SignificanceLevel)
	assert.Less(t, premium.HazardRatio, 1.0)

	activity := model.Coefficient("activity_count")
	require.NotNil(t, activity)
	assert.Negative(t, activity.Coef)
	assert.Less(t, activity.PValue, constants.SignificanceLevel)
}

func TestFitCoxPHErrors(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.FitCoxPH(nil)
	assert.Error(t, err)

	_, err = engine.FitCoxPH(&biz.Cohort{Params: biz.DefaultCohortParams()})
	assert.Error(t, err)

	// 没有任何事件时无法拟合
	noEvents := syntheticCoxCohort(50, 0, 1)
	for i := range noEvents.Records {
		noEvents.Records[i].Churned = false
		noEvents.Records[i].TimeObserved = noEvents.Params.StudyHorizonDays
	}
	_, err = engine.FitCoxPH(noEvents)
	assert.Error(t, err)
}

func TestCoxModelCoefficientLookup(t *testing.T) {
	model := &biz.CoxModel{Coefficients: []biz.CoxCoefficient{{Name: "score", Coef: 0.1}}}

	require.NotNil(t, model.Coefficient("score"))
	assert.Nil(t, model.Coefficient("missing"))
}
