package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/huntparty/huntparty-backend/internal/api/handlers"
	"github.com/huntparty/huntparty-backend/internal/api/middleware"
	"github.com/huntparty/huntparty-backend/internal/config"
	"github.com/huntparty/huntparty-backend/internal/repository"
	"github.com/huntparty/huntparty-backend/internal/service"
	"github.com/huntparty/huntparty-backend/internal/store"
	"github.com/huntparty/huntparty-backend/internal/websocket"
	"github.com/huntparty/huntparty-backend/pkg/database"
	"github.com/huntparty/huntparty-backend/pkg/distributed"
	"github.com/huntparty/huntparty-backend/pkg/logger"
	"github.com/huntparty/huntparty-backend/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SetupRouter API 라우터 설정. 엔진 상태(큐/파티)는 전부 인메모리이고,
// Redis는 인스턴스 간 이벤트 중계와 스윕 리더 선출, 분산 rate limit에만
// 쓰인다. db는 외부 유저 디렉토리 어댑터로, nil이면 이름 해석 없이 돈다.
func SetupRouter(cfg *config.Config, db *database.DB) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 전역 미들웨어
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg))

	// 엔진 스토어 초기화
	queueIndex := store.NewQueueIndex()
	partyStore := store.NewPartyStore(cfg.PartyMaxSize, cfg.PartyTTL)

	// 이름→id 해석기 (디렉토리 없으면 이름 항목은 항상 미해석)
	resolve := service.NameResolver(func(name string) (string, bool) {
		return "", false
	})
	if db != nil {
		userRepo := repository.NewUserRepository(db)
		resolve = func(name string) (string, bool) {
			id, err := userRepo.ResolveNameToID(name)
			if err != nil || id == "" {
				return "", false
			}
			return id, true
		}
	}

	// WebSocket Hub 초기화 및 시작
	wsHub := websocket.NewHub()
	go wsHub.Run()
	logger.Info("WebSocket Hub started")

	// Redis 연결 (선택) - 이벤트 중계 / 리더 선출 / 분산 rate limit
	var (
		notifier     service.Notifier = wsHub
		redisClient  *redis.Client
		redisLimiter *ratelimit.RedisRateLimiter
		eventBus     *distributed.PartyEventBus
		relay        *service.RelayNotifier
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			panic("Invalid REDIS_URL: " + err.Error())
		}
		redisClient = redis.NewClient(opts)

		zapLogger, _ := zap.NewProduction()
		eventBus = distributed.NewPartyEventBus(redisClient, zapLogger)
		redisLimiter = ratelimit.NewRedisRateLimiter(ratelimit.RedisRateLimiterConfig{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		})
		logger.Info("Redis connected", "addr", opts.Addr)
	}
	if eventBus != nil {
		relay = service.NewRelayNotifier(wsHub, eventBus)
		notifier = relay
	}

	// Party Service 초기화 및 스윕 시작
	partyService := service.NewPartyService(
		partyStore,
		queueIndex,
		notifier,
		cfg.SweepInterval,
		cfg.UserGrace,
	)
	if redisClient != nil {
		lockManager := distributed.NewRedisLockManager(redisClient)
		instanceID := eventBus.InstanceID()
		partyService.SetSweepLeader(func() bool {
			return lockManager.AcquireLeadership(
				context.Background(), "sweep:leader", instanceID, cfg.SweepInterval)
		})
	}
	partyService.StartSweeper()

	// 원격 인스턴스 이벤트 수신 시작
	if relay != nil {
		go func() {
			if err := eventBus.Start(context.Background(), relay.HandleRemote); err != nil {
				logger.Error("Party event bus stopped with error", "error", err)
			}
		}()
	}

	// Matchmaking Service 초기화 및 틱 시작
	matchService := service.NewMatchmakingService(
		queueIndex,
		partyService,
		resolve,
		cfg.MatchInterval,
	)
	matchService.SetPairCap(cfg.PairCap)
	matchService.Start()
	logger.Info("MatchmakingService started", "interval", cfg.MatchInterval)

	// 연결 종료 시 큐에서 참가자 제거
	wsHub.SetOnDisconnect(func(userID string) {
		_ = matchService.Remove(userID)
	})

	// Random Assignment Service 초기화
	assignService := service.NewRandomAssignService(
		partyStore,
		queueIndex,
		partyService,
		resolve,
		cfg.AssignSampleSize,
	)

	// Rate limit 프리셋 (Redis 있으면 분산, 없으면 인메모리)
	enqueueLimit := middleware.EnqueueRateLimit()
	partyLimit := middleware.PartyMutationRateLimit()
	assignLimit := middleware.AssignRateLimit()
	if redisLimiter != nil {
		enqueueLimit = middleware.RedisEnqueueRateLimit(redisLimiter)
		partyLimit = middleware.RedisPartyMutationRateLimit(redisLimiter)
		assignLimit = middleware.RedisAssignRateLimit(redisLimiter)
	}

	// Handler 초기화
	queueHandler := handlers.NewQueueHandler(matchService)
	partyHandler := handlers.NewPartyHandler(partyService, assignService)
	wsHandler := handlers.NewWebSocketHandler(wsHub, partyService)

	// Health check
	router.GET("/health", handlers.HealthCheck)

	// API v1
	v1 := router.Group("/api/v1")
	{
		// WebSocket endpoint
		v1.GET("/ws", middleware.Auth(cfg), wsHandler.HandleWebSocket)

		// Queue routes
		queue := v1.Group("/queue")
		queue.Use(middleware.Auth(cfg))
		{
			queue.POST("", enqueueLimit, queueHandler.Enqueue)
			queue.POST("/leave", enqueueLimit, queueHandler.Leave)
			queue.DELETE("", queueHandler.Remove)
		}

		// Ground stats (공개)
		v1.GET("/grounds/:groundId/stats", queueHandler.GroundStats)

		// Party routes
		parties := v1.Group("/parties")
		parties.Use(middleware.Auth(cfg))
		{
			parties.POST("", partyLimit, partyHandler.Create)
			parties.POST("/assign", assignLimit, partyHandler.Assign)
			parties.GET("/me", partyHandler.GetMine)
			parties.GET("/member/:userId", partyHandler.GetByMember)
			parties.GET("/:partyId", partyHandler.Get)
			parties.POST("/:partyId/join", partyLimit, partyHandler.Join)
			parties.POST("/:partyId/leave", partyLimit, partyHandler.Leave)
			parties.PATCH("/:partyId/buffs", partyLimit, partyHandler.UpdateBuffs)
			parties.PUT("/:partyId/channel", partyLimit, partyHandler.AssignChannel)
			parties.PUT("/:partyId/open", partyLimit, partyHandler.SetOpen)
			parties.PUT("/:partyId/leader", partyLimit, partyHandler.TransferLeader)
			parties.POST("/:partyId/heartbeat", partyHandler.Heartbeat)
		}
	}

	return router
}
