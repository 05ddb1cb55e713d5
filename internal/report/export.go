package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/biz"
)

const dateLayout = "2006-01-02"

// csvHeader 队列 CSV 的列定义, 前两列之后是下游生存分析消费的协变量列
var csvHeader = []string{
	"user_id",
	"signup_date",
	"user_type",
	"subscription_tier",
	"activity_count",
	"score",
	"baseline_hazard",
	"time_to_event",
	"event_indicator",
	"time_observed",
	"last_active_date",
}

// ExportCSV 将整个队列写成平面表文件, 每次任务整体覆盖
func (r *Renderer) ExportCSV(runID string, cohort *biz.Cohort) (string, error) {
	dir, err := r.ensureDir(dataSubdir)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "user_retention.csv")

	f, err := os.Create(path)
	if err != nil {
		r.log.Errorf("Failed to create csv %s: %v", path, err)
		return "", err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return "", err
	}
	for _, rec := range cohort.Records {
		eventIndicator := "0"
		if rec.Churned {
			eventIndicator = "1"
		}
		row := []string{
			strconv.FormatInt(rec.UserID, 10),
			rec.SignupDate.Format(dateLayout),
			rec.UserType,
			rec.SubscriptionTier,
			strconv.Itoa(rec.ActivityCount),
			strconv.FormatFloat(rec.Score, 'f', -1, 64),
			strconv.FormatFloat(rec.BaselineHazard, 'f', -1, 64),
			strconv.FormatFloat(rec.TimeToEvent, 'f', -1, 64),
			eventIndicator,
			strconv.FormatFloat(rec.TimeObserved, 'f', -1, 64),
			rec.LastActiveDate.Format(dateLayout),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		r.log.Errorf("Failed to flush csv %s: %v", path, err)
		return "", err
	}

	r.log.Infof("Exported cohort csv: %s (%d rows, run %s)", path, len(cohort.Records), runID)
	return path, nil
}
