// marketd 运行结算引擎并对外提供 HTTP/JSON 接口与事件流。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/openfire/firemarket/internal/api"
	"github.com/openfire/firemarket/internal/bootstrap"
	"github.com/openfire/firemarket/internal/metrics"
	"github.com/openfire/firemarket/internal/policy"
	"github.com/openfire/firemarket/pkg/config"
	"github.com/openfire/firemarket/pkg/logger"
	"github.com/openfire/firemarket/pkg/ratelimit"
	"github.com/openfire/firemarket/pkg/shutdown"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（支持 .yaml, .yml, .json）")
	envFile := flag.String("env", ".env", "dotenv 文件（不存在时忽略）")
	flag.Parse()

	_ = godotenv.Load(*envFile)

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   true,
		JSON:       cfg.Log.JSON,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		logrus.Errorf("marketd 退出: %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	rt, err := bootstrap.Open(cfg)
	if err != nil {
		return err
	}

	g := rt.Engine.Genesis()
	logrus.WithFields(logrus.Fields{
		"backend":     cfg.Store.Backend,
		"holder":      g.Holder.Hex(),
		"marketplace": g.Marketplace.Hex(),
		"operator":    g.Operator.Hex(),
		"commission":  policy.FormatPercent(g.CommissionBps),
		"fresh":       rt.Engine.Fresh(),
	}).Info("账本已就绪")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var opts []api.Option
	if cfg.APIWriteRate > 0 {
		limiter := ratelimit.NewKeyed(cfg.APIWriteRate, cfg.APIWriteBurst)
		opts = append(opts, api.WithWriteLimit(limiter))
		go pruneLimiter(ctx, limiter)
		logrus.Infof("写请求限流: %.2f/s burst=%d", cfg.APIWriteRate, cfg.APIWriteBurst)
	}
	srv := api.New(rt.Engine, opts...)
	httpSrv := &http.Server{
		Addr:              cfg.APIListen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logrus.Infof("API 监听 %s", cfg.APIListen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	if cfg.MetricsListen != "" {
		if _, err := metrics.StartAsync(ctx, cfg.MetricsListen); err != nil {
			logrus.Warnf("metrics 服务启动失败: %v", err)
		} else {
			logrus.Infof("metrics 监听 %s", cfg.MetricsListen)
		}
	}

	checkpoints := make(chan struct{})
	go func() {
		defer close(checkpoints)
		rt.RunCheckpoints(ctx, cfg.CheckpointEvery)
	}()

	sm := shutdown.NewManager()
	sm.OnShutdown("websocket", func(context.Context) error {
		srv.CloseStreams()
		return nil
	})
	sm.OnShutdown("http", httpSrv.Shutdown)
	sm.Alongside("checkpoints", func(ctx context.Context) error {
		cancel()
		select {
		case <-checkpoints:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	sm.OnShutdown("store", func(context.Context) error {
		return rt.Close()
	})

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	select {
	case sig := <-stop:
		logrus.Infof("收到信号 %s，开始关闭", sig)
	case err = <-serveErr:
		logrus.Errorf("API 服务异常: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if serr := sm.Shutdown(shutdownCtx); serr != nil {
		return errors.Join(err, serr)
	}
	logrus.Info("marketd 已停止")
	return err
}

// pruneLimiter 定期清理已回满的客户端令牌桶
func pruneLimiter(ctx context.Context, l *ratelimit.Keyed) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Prune(); n > 0 {
				logrus.Debugf("限流中的客户端: %d", n)
			}
		}
	}
}
