package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/goadmin/pkg/config"
	"github.com/goadmin/pkg/database"
	"github.com/goadmin/pkg/lifecycle"
	"github.com/goadmin/pkg/logger"
	"github.com/goadmin/pkg/utils"
	"github.com/goadmin/services/admin/internal/rbac"
	"github.com/goadmin/services/admin/internal/server"
	"go.uber.org/zap"
)

const serviceName = "admin-service"

// pruneInterval 撤销标记清理周期
const pruneInterval = 10 * time.Minute

func main() {
	// 加载配置
	if err := config.Init(os.Getenv("CONFIG_PATH")); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	// 初始化日志
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	for _, w := range cfg.JWT.Validate() {
		logger.Warn("JWT配置告警", zap.String("warning", w))
	}
	if cfg.JWT.Secret == "" {
		cfg.JWT.Secret = utils.RandomString(48)
		logger.Warn("jwt.secret 未配置，已生成随机密钥；重启后已签发的令牌全部失效")
	}

	// 初始化数据库
	if err := database.Init(&cfg.Database); err != nil {
		logger.Fatal("初始化数据库失败", zap.Error(err))
	}
	if err := database.InitRedis(&cfg.Redis); err != nil {
		logger.Fatal("初始化Redis失败", zap.Error(err))
	}

	ctx := context.Background()
	if err := rbac.Seed(ctx, database.Get(), os.Getenv("ADMIN_PASSWORD")); err != nil {
		logger.Fatal("初始化权限数据失败", zap.Error(err))
	}

	srv, err := server.New(ctx, server.Deps{
		Config: cfg,
		DB:     database.Get(),
		Redis:  database.GetRedis(),
	})
	if err != nil {
		logger.Fatal("创建服务失败", zap.Error(err))
	}

	err = lifecycle.NewBuilder(serviceName).
		WithAddress(cfg.Server.HTTP.Addr()).
		WithApp(srv.App).
		Every("prune-revoked", pruneInterval, srv.PruneRevoked).
		OnReady(func(s *lifecycle.Service) error {
			logger.Info("服务就绪",
				zap.String("address", s.Addr()),
				zap.String("permissionSource", cfg.Permission.Source),
			)
			return nil
		}).
		OnStop(func(*lifecycle.Service) error {
			if err := database.CloseRedis(); err != nil {
				logger.Error("关闭Redis失败", zap.Error(err))
			}
			return database.Close()
		}).
		Run()
	if err != nil {
		logger.Fatal("服务运行失败", zap.Error(err))
	}
}
