// Package report 负责分析产物的落盘输出:
// 队列 CSV、KM 生存曲线图和执行摘要文本。
package report

import (
	"os"
	"path/filepath"

	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/biz"
	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// ProviderSet is report providers.
var ProviderSet = wire.NewSet(
	NewRenderer,
	wire.Bind(new(biz.ReportRenderer), new(*Renderer)),
)

// 输出目录下的固定子目录, 与历史报告的目录结构保持一致
const (
	dataSubdir    = "data"
	plotSubdir    = "visualizations"
	summarySubdir = "reports"
)

// Renderer 报告产物输出实现
type Renderer struct {
	outputDir string
	log       *log.Helper
}

// NewRenderer 创建报告输出器
func NewRenderer(bc *conf.Bootstrap, logger log.Logger) *Renderer {
	outputDir := "output"
	if bc != nil && bc.Report != nil && bc.Report.OutputDir != "" {
		outputDir = bc.Report.OutputDir
	}
	return &Renderer{
		outputDir: outputDir,
		log:       log.NewHelper(logger),
	}
}

// ensureDir 确保输出子目录存在, 返回完整路径
func (r *Renderer) ensureDir(subdir string) (string, error) {
	dir := filepath.Join(r.outputDir, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.log.Errorf("Failed to create output dir %s: %v", dir, err)
		return "", err
	}
	return dir, nil
}
