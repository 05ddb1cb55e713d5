//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/biz"
	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/conf"
	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/data"
	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/report"
	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/server"
	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/service"
	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/stats"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// wireApp init kratos application.
func wireApp(*conf.Bootstrap, log.Logger) (*kratos.App, func(), error) {
	panic(wire.Build(
		server.ProviderSet,
		data.ProviderSet,
		biz.ProviderSet,
		stats.ProviderSet,
		report.ProviderSet,
		service.ProviderSet,
		newApp,
	))
}
