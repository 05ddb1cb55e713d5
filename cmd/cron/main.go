package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/biz"
	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/conf"

	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	klog "github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
	_ "go.uber.org/automaxprocs"
)

var (
	flagconf string
)

func init() {
	flag.StringVar(&flagconf, "conf", "configs/config.yaml", "config path, eg: -conf config.yaml")
}

// CronApp Cron 应用结构
type CronApp struct {
	reportUsecase *biz.ReportUsecase
}

// newLogger 创建 logger
func newLogger() klog.Logger {
	return klog.With(klog.NewStdLogger(os.Stdout),
		"ts", klog.DefaultTimestamp,
		"caller", klog.DefaultCaller,
		"service.name", "retention-analysis-cron",
	)
}

func main() {
	flag.Parse()

	// 初始化配置
	c := config.New(
		config.WithSource(
			file.NewSource(flagconf),
		),
	)
	defer c.Close()

	if err := c.Load(); err != nil {
		panic(err)
	}

	var bc conf.Bootstrap
	if err := c.Scan(&bc); err != nil {
		panic(err)
	}

	// 初始化应用
	app, cleanup, err := wireApp(&bc)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	// 创建定时任务调度器（支持秒级调度）
	cronScheduler := cron.New(cron.WithSeconds())

	// 1. 留存分析 - 每天凌晨 2 点执行
	_, err = cronScheduler.AddFunc("0 0 2 * * *", func() {
		log.Println("[CRON] Starting retention analysis run...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		report, err := app.reportUsecase.RunAnalysis(ctx)
		if err != nil {
			if err == biz.ErrRunInProgress {
				log.Println("[CRON] Skipped: another analysis run is in progress")
			} else {
				log.Printf("[CRON] Error running retention analysis: %v", err)
			}
			return
		}
		log.Printf("[CRON] Analysis run %s completed: users=%d, churn_rate=%.1f%%",
			report.RunID, report.NUsers, report.ChurnRate*100)
		log.Println("[CRON] Finished retention analysis run")
	})
	if err != nil {
		log.Printf("Failed to add retention analysis job: %v", err)
	}

	// 2. 历史任务清理 - 每天凌晨 3 点半执行
	_, err = cronScheduler.AddFunc("0 30 3 * * *", func() {
		log.Println("[CRON] Starting analysis run pruning...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		count, err := app.reportUsecase.PruneRuns(ctx)
		if err != nil {
			log.Printf("[CRON] Error pruning analysis runs: %v", err)
			return
		}
		log.Printf("[CRON] Pruned %d analysis runs", count)
		log.Println("[CRON] Finished analysis run pruning")
	})
	if err != nil {
		log.Printf("Failed to add pruning job: %v", err)
	}

	// 启动定时任务
	cronScheduler.Start()
	log.Println("========================================")
	log.Println("Cron jobs started successfully")
	log.Println("Scheduled jobs:")
	log.Println("  - Retention analysis:  Every day at 02:00")
	log.Println("  - Run pruning:         Every day at 03:30")
	log.Println("========================================")

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down gracefully...")

	// 停止定时任务
	ctx := cronScheduler.Stop()
	select {
	case <-ctx.Done():
		log.Println("Cron jobs stopped gracefully")
	case <-time.After(5 * time.Second):
		log.Println("Cron jobs forced to stop after timeout")
	}
}
