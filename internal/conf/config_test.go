package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBootstrap() *Bootstrap {
	b := &Bootstrap{
		Server: &Server{},
		Data:   &Data{},
		Report: &Report{
			OutputDir: "output",
			Cohort: &Cohort{
				NUsers:           1500,
				StudyHorizonDays: 120,
				Seed:             42,
				EnrollmentStart:  "2025-09-01",
				EnrollmentDays:   31,
				UserTypes: []CategoryProb{
					{Label: "job_seeker", Prob: 0.6},
					{Label: "interviewer", Prob: 0.25},
					{Label: "recruiter", Prob: 0.15},
				},
				Tiers: []CategoryProb{
					{Label: "free", Prob: 0.7},
					{Label: "premium", Prob: 0.3},
				},
				ActivityMean:             5,
				ScoreMean:                75,
				ScoreStdDev:              12,
				BaselineHazard:           0.015,
				PremiumHazardFactor:      0.43,
				HighActivityHazardFactor: 0.32,
				HighActivityThreshold:    5,
			},
		},
		Log: &Log{Level: "info"},
	}
	b.Server.Http.Addr = "0.0.0.0:8000"
	b.Server.Grpc.Addr = "0.0.0.0:9000"
	b.Data.Database.Source = "root:root@tcp(127.0.0.1:3306)/retention"
	return b
}

func TestBootstrapValidate(t *testing.T) {
	require.NoError(t, validBootstrap().Validate())

	tests := []struct {
		name   string
		mutate func(b *Bootstrap)
	}{
		{"missing server", func(b *Bootstrap) { b.Server = nil }},
		{"missing http addr", func(b *Bootstrap) { b.Server.Http.Addr = "" }},
		{"missing grpc addr", func(b *Bootstrap) { b.Server.Grpc.Addr = "" }},
		{"missing data", func(b *Bootstrap) { b.Data = nil }},
		{"missing database source", func(b *Bootstrap) { b.Data.Database.Source = "" }},
		{"missing report", func(b *Bootstrap) { b.Report = nil }},
		{"missing cohort", func(b *Bootstrap) { b.Report.Cohort = nil }},
		{"missing output dir", func(b *Bootstrap) { b.Report.OutputDir = "" }},
		{"missing log", func(b *Bootstrap) { b.Log = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBootstrap()
			tt.mutate(b)
			assert.Error(t, b.Validate())
		})
	}
}

func TestCohortValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Cohort)
	}{
		{"zero users", func(c *Cohort) { c.NUsers = 0 }},
		{"negative users", func(c *Cohort) { c.NUsers = -1 }},
		{"zero horizon", func(c *Cohort) { c.StudyHorizonDays = 0 }},
		{"empty user types", func(c *Cohort) { c.UserTypes = nil }},
		{"empty tiers", func(c *Cohort) { c.Tiers = nil }},
		{"zero baseline hazard", func(c *Cohort) { c.BaselineHazard = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBootstrap()
			tt.mutate(b.Report.Cohort)
			assert.Error(t, b.Report.Cohort.Validate())
		})
	}
}

func TestLoad(t *testing.T) {
	content := `
server:
  http:
    addr: 0.0.0.0:8000
    timeout: 5s
  grpc:
    addr: 0.0.0.0:9000
data:
  database:
    driver: mysql
    source: root:root@tcp(127.0.0.1:3306)/retention
report:
  output_dir: output
  keep_runs: 30
  cohort:
    n_users: 1500
    study_horizon_days: 120
    seed: 42
    enrollment_start: "2025-09-01"
    enrollment_days: 31
    user_types:
      - label: job_seeker
        prob: 0.6
      - label: interviewer
        prob: 0.25
      - label: recruiter
        prob: 0.15
    tiers:
      - label: free
        prob: 0.7
      - label: premium
        prob: 0.3
    activity_mean: 5
    score_mean: 75
    score_stddev: 12
    baseline_hazard: 0.015
    premium_hazard_factor: 0.43
    high_activity_hazard_factor: 0.32
    high_activity_threshold: 5
log:
  level: info
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	b, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, b.Validate())

	assert.Equal(t, "0.0.0.0:8000", b.Server.Http.Addr)
	assert.Equal(t, 1500, b.Report.Cohort.NUsers)
	assert.Equal(t, uint64(42), b.Report.Cohort.Seed)
	assert.Equal(t, 30, b.Report.KeepRuns)
	require.Len(t, b.Report.Cohort.UserTypes, 3)
	assert.Equal(t, "job_seeker", b.Report.Cohort.UserTypes[0].Label)
	assert.InDelta(t, 0.6, b.Report.Cohort.UserTypes[0].Prob, 1e-12)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [notamap"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}
