package report

import (
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/biz"
	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/constants"
)

// summaryTemplate 执行摘要模板, 小节结构沿用历史报告
const summaryTemplate = `================================================================================
WEKRUIT USER RETENTION ANALYSIS - SURVIVAL ANALYSIS RESULTS
================================================================================

RUN ID:       {{.RunID}}
GENERATED:    {{.GeneratedAt.Format "2006-01-02 15:04:05"}} UTC
STUDY WINDOW: {{printf "%.0f" .StudyHorizonDays}} days
SAMPLE SIZE:  {{.NUsers}} users (simulated, seed={{.Seed}})

KEY FINDINGS:

1. OVERALL RETENTION METRICS
   - Median survival time: {{median .MedianSurvivalDays}}
   - 30-day retention rate: {{pct (index .RetentionByDay 30)}}
   - 60-day retention rate: {{pct (index .RetentionByDay 60)}}
   - 90-day retention rate: {{pct (index .RetentionByDay 90)}}
   - 120-day retention rate: {{pct (index .RetentionByDay 120)}}
   - Overall churn rate: {{pct .ChurnRate}}

2. SUBSCRIPTION TIER ANALYSIS (KAPLAN-MEIER)
   - Free users ({{.TierFree.NSubjects}}): median survival {{median .TierFree.MedianSurvivalDays}}, 90-day retention {{pct .TierFree.Retention90}}
   - Premium users ({{.TierPremium.NSubjects}}): median survival {{median .TierPremium.MedianSurvivalDays}}, 90-day retention {{pct .TierPremium.Retention90}}
   - Log-rank test: statistic={{printf "%.4f" .TierLogRank.Statistic}}, p={{printf "%.6f" .TierLogRank.PValue}} ({{verdict .TierLogRank.PValue}})

3. ACTIVITY LEVEL ANALYSIS
   - Low activity ({{.ActivityLow.NSubjects}}): median survival {{median .ActivityLow.MedianSurvivalDays}}, 90-day retention {{pct .ActivityLow.Retention90}}
   - High activity ({{.ActivityHigh.NSubjects}}): median survival {{median .ActivityHigh.MedianSurvivalDays}}, 90-day retention {{pct .ActivityHigh.Retention90}}
   - Log-rank test: statistic={{printf "%.4f" .ActivityLogRank.Statistic}}, p={{printf "%.6f" .ActivityLogRank.PValue}} ({{verdict .ActivityLogRank.PValue}})

4. COX PROPORTIONAL HAZARDS REGRESSION ({{.Cox.NSubjects}} subjects, {{.Cox.NEvents}} events)
{{- range .Cox.Coefficients}}
   - {{printf "%-26s" .Name}} HR={{printf "%.3f" .HazardRatio}}, 95% CI=[{{printf "%.3f" .CILower}}, {{printf "%.3f" .CIUpper}}], p={{printf "%.6f" .PValue}}
{{- end}}
{{- with .Cox.Coefficient "subscription_tier_premium"}}
   - Premium subscription is associated with a {{riskChange .HazardRatio}} churn risk (HR={{printf "%.2f" .HazardRatio}})
{{- end}}
{{- with .Cox.Coefficient "activity_count"}}
   - Each additional activity unit is associated with a {{riskChange .HazardRatio}} churn risk (HR={{printf "%.2f" .HazardRatio}})
{{- end}}

TECHNICAL APPROACH:
- Synthetic cohort with per-user hazard heterogeneity (exponential event
  times, administrative censoring at the study horizon)
- Kaplan-Meier estimator for survival curves
- Log-rank tests for group comparisons
- Cox proportional hazards regression for multivariate risk analysis

OUTPUTS:
- Cohort data: {{.CSVPath}}
{{- range .PlotPaths}}
- Plot: {{.}}
{{- end}}
`

// RenderSummary 渲染执行摘要文本并落盘
func (r *Renderer) RenderSummary(report *biz.Report) (string, error) {
	dir, err := r.ensureDir(summarySubdir)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "survival_analysis_summary.txt")

	tmpl, err := template.New("summary").Funcs(template.FuncMap{
		"pct": func(v float64) string {
			return fmt.Sprintf("%.1f%%", v*100)
		},
		"median": func(v *float64) string {
			if v == nil {
				return "not reached within study window"
			}
			return fmt.Sprintf("%.1f days", *v)
		},
		"verdict": func(p float64) string {
			if p < constants.SignificanceLevel {
				return "SIGNIFICANT at α=0.05"
			}
			return "NOT SIGNIFICANT at α=0.05"
		},
		"riskChange": func(hr float64) string {
			if hr < 1 {
				return fmt.Sprintf("%.1f%% lower", (1-hr)*100)
			}
			return fmt.Sprintf("%.1f%% higher", (hr-1)*100)
		},
	}).Parse(summaryTemplate)
	if err != nil {
		return "", err
	}

	f, err := os.Create(path)
	if err != nil {
		r.log.Errorf("Failed to create summary %s: %v", path, err)
		return "", err
	}
	defer f.Close()

	if err := tmpl.Execute(f, report); err != nil {
		r.log.Errorf("Failed to render summary: %v", err)
		return "", err
	}

	r.log.Infof("Rendered executive summary: %s", path)
	return path, nil
}
