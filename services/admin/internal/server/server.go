package server

import (
	"context"
	"fmt"
	"time"

	"github.com/goadmin/pkg/auth"
	"github.com/goadmin/pkg/config"
	"github.com/goadmin/pkg/logger"
	"github.com/goadmin/pkg/middleware"
	"github.com/goadmin/pkg/permission"
	"github.com/goadmin/pkg/router"
	adminauth "github.com/goadmin/services/admin/internal/auth"
	"github.com/goadmin/services/admin/internal/rbac"
	"github.com/goadmin/services/admin/internal/role"
	"github.com/goadmin/services/admin/internal/session"
	"github.com/goadmin/services/admin/internal/user"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 权限数据源
const (
	SourceDatabase = "database"
	SourceCasbin   = "casbin"
)

// Deps 服务依赖
type Deps struct {
	Config *config.Config
	DB     *gorm.DB
	Redis  *redis.Client    // 为 nil 时关闭登录失败锁定
	Clock  func() time.Time // 为 nil 时使用 time.Now
}

// Server 管理后台HTTP服务
type Server struct {
	App      *fiber.App
	JWT      *auth.JWTManager
	Cache    *permission.Cache
	Store    *rbac.Store
	Sessions *session.Manager
	Registry *prometheus.Registry
}

// New 组装全部组件并注册路由
func New(ctx context.Context, deps Deps) (*Server, error) {
	cfg := deps.Config
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := permission.NewMetrics(reg)

	store := rbac.NewStore(deps.DB)
	loader, mirror, err := newSource(ctx, cfg, deps.DB, store)
	if err != nil {
		return nil, err
	}

	jwtManager := auth.NewJWTManager(&cfg.JWT, auth.WithClock(clock))
	cache := permission.NewCache(cfg.Permission.TTL(), permission.WithClock(clock), permission.WithMetrics(metrics))
	authorizer := middleware.NewAuthorizer(cache, loader, metrics)
	sessions := session.NewManager(cache, loader)

	var guard *adminauth.LoginGuard
	if deps.Redis != nil {
		guard = adminauth.NewLoginGuard(deps.Redis, &cfg.Login)
	}
	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Rate > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.Rate, cfg.RateLimit.Burst)
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		ErrorHandler:          middleware.ErrorHandler,
		ReadTimeout:           time.Duration(cfg.Server.HTTP.ReadTimeout) * time.Second,
		WriteTimeout:          time.Duration(cfg.Server.HTTP.WriteTimeout) * time.Second,
		DisableStartupMessage: true,
	})

	// 全局中间件
	app.Use(middleware.Recovery())
	app.Use(middleware.RequestID())
	app.Use(middleware.Cors())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "healthy",
			"service": cfg.App.Name,
			"time":    clock().Format(time.RFC3339),
		})
	})

	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	app.Get("/metrics", func(c *fiber.Ctx) error {
		metricsHandler(c.Context())
		return nil
	})

	router.Register(app, router.Guard{
		Identity:   middleware.Identity(jwtManager),
		Authorizer: authorizer,
	},
		adminauth.NewController(store, jwtManager, sessions, authorizer, guard, limiter),
		user.NewController(store, mirror, sessions),
		role.NewController(store, mirror, sessions),
	)

	return &Server{
		App:      app,
		JWT:      jwtManager,
		Cache:    cache,
		Store:    store,
		Sessions: sessions,
		Registry: reg,
	}, nil
}

// newSource 按配置选择权限数据源
func newSource(ctx context.Context, cfg *config.Config, db *gorm.DB, store *rbac.Store) (permission.Loader, rbac.PolicyMirror, error) {
	switch cfg.Permission.Source {
	case "", SourceDatabase:
		return store, rbac.NopMirror{}, nil
	case SourceCasbin:
		cs, err := auth.NewCasbinStore(db, cfg.Casbin.ModelPath, store)
		if err != nil {
			return nil, nil, fmt.Errorf("casbin: %w", err)
		}
		if err := rbac.SyncMirror(ctx, store, cs); err != nil {
			return nil, nil, fmt.Errorf("casbin sync: %w", err)
		}
		return cs, cs, nil
	default:
		return nil, nil, fmt.Errorf("unsupported permission source: %s", cfg.Permission.Source)
	}
}

// PruneRevoked 清理超过令牌有效期的撤销标记
func (s *Server) PruneRevoked(context.Context) {
	if n := s.Cache.PruneRevoked(s.JWT.GetExpireIn()); n > 0 {
		logger.Debug("pruned revoked subjects", zap.Int("count", n))
	}
}
