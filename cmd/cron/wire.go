//go:build wireinject
// +build wireinject

package main

import (
	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/biz"
	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/conf"
	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/data"
	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/report"
	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/stats"

	"github.com/google/wire"
)

// wireApp 初始化应用
func wireApp(*conf.Bootstrap) (*CronApp, func(), error) {
	panic(wire.Build(
		// Logger
		newLogger,

		// Data 层
		data.ProviderSet,

		// Biz 层
		biz.ProviderSet,
		stats.ProviderSet,
		report.ProviderSet,

		// App 结构
		wire.Struct(new(CronApp), "*"),
	))
}
