// Package stats 实现留存报告所需的生存统计:
// Kaplan-Meier 估计、log-rank 检验和 Cox 比例风险回归。
// 输入是队列生成器产出的 (观测时长, 事件指示, 协变量) 列。
package stats

import (
	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// ProviderSet is stats providers.
var ProviderSet = wire.NewSet(
	NewEngine,
	wire.Bind(new(biz.SurvivalAnalyzer), new(*Engine)),
)

// Engine 生存统计引擎, 实现 biz.SurvivalAnalyzer
type Engine struct {
	log *log.Helper
}

// NewEngine 创建生存统计引擎
func NewEngine(logger log.Logger) *Engine {
	return &Engine{log: log.NewHelper(logger)}
}
