package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/storage/redis/v3"
	"github.com/onsite-hq/onsite/internal/attendance"
	"github.com/onsite-hq/onsite/internal/audit"
	"github.com/onsite-hq/onsite/internal/common"
	"github.com/onsite-hq/onsite/internal/config"
	"github.com/onsite-hq/onsite/internal/employees"
	"github.com/onsite-hq/onsite/internal/events"
	"github.com/onsite-hq/onsite/internal/fraud"
	"github.com/onsite-hq/onsite/internal/geofence"
	"github.com/onsite-hq/onsite/internal/handlers/api"
	"github.com/onsite-hq/onsite/internal/middlewares"
	"github.com/onsite-hq/onsite/internal/notify"
	"github.com/onsite-hq/onsite/internal/store"
	"github.com/onsite-hq/onsite/internal/verification"
	"github.com/onsite-hq/onsite/model"
	"github.com/onsite-hq/onsite/params"
	"github.com/urfave/cli/v2"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
	"gorm.io/plugin/dbresolver"
)

var (
	app       *cli.App
	gitCommit string
	gitDate   string
)

var (
	configFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "YAML config file",
		Value: "config.yaml",
	}
	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Enable debug logging",
	}
)

func init() {
	app = cli.NewApp()
	app.EnableBashCompletion = true
	app.Usage = "onsite - workforce attendance integrity and verification engine"
	app.Flags = []cli.Flag{
		configFileFlag,
		debugFlag,
	}
	app.Commands = []*cli.Command{
		{
			Name: "version",
			Action: func(ctx *cli.Context) error {
				fmt.Println(params.VersionWithCommit(gitCommit, gitDate))
				return nil
			},
		},
	}
	app.Action = run
}

func mustInitLogger(debug bool) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}

func mustInitDatabase(dbConfig config.MySQLConfig) *gorm.DB {
	db, err := gorm.Open(mysql.Open(dbConfig.Dsn), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   dbConfig.TablePrefix,
			SingularTable: true,
		},
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if len(dbConfig.ReplicaDsns) > 0 {
		var replicas []gorm.Dialector
		for _, dsn := range dbConfig.ReplicaDsns {
			replicas = append(replicas, mysql.Open(dsn))
		}
		if err := db.Use(dbresolver.Register(dbresolver.Config{Replicas: replicas})); err != nil {
			slog.Error("Failed to register database replicas", "error", err)
			os.Exit(1)
		}
	}

	if err := db.AutoMigrate(model.Models...); err != nil {
		slog.Error("Database migration failed", "error", err)
		os.Exit(1)
	}

	return db
}

func mustInitRedisStorage(redisCfg config.RedisConfig) *redis.Storage {
	return redis.New(redis.Config{
		URL:           redisCfg.URL,
		PoolSize:      redisCfg.PoolSize,
		IsClusterMode: redisCfg.ClusterMode,
	})
}

func setupAPIRoutes(
	router fiber.Router,
	jwtSecret string,
	attendanceHandler *api.AttendanceHandler,
	verificationHandler *api.VerificationHandler,
	fraudHandler *api.FraudHandler,
	geofenceHandler *api.GeofenceHandler,
) {
	apiGroup := router.Group("/api", middlewares.Identity(jwtSecret))

	apiGroup.Post("/attendance/check-in", attendanceHandler.PostCheckIn)
	apiGroup.Post("/attendance/check-out", attendanceHandler.PostCheckOut)
	apiGroup.Get("/attendance/active", attendanceHandler.GetActive)
	apiGroup.Get("/attendance/history", attendanceHandler.GetHistory)

	apiGroup.Post("/verification/:id/respond", verificationHandler.PostRespond)
	apiGroup.Get("/verification/history", verificationHandler.GetHistory)
	apiGroup.Get("/verification/:id", verificationHandler.GetSession)

	admin := apiGroup.Group("", middlewares.RequireAdmin())
	admin.Post("/attendance/:employeeId/force-close", attendanceHandler.PostForceClose)
	admin.Post("/verification/trigger", verificationHandler.PostTrigger)
	admin.Post("/verification/sweep", verificationHandler.PostSweep)
	admin.Get("/fraud/alerts", fraudHandler.GetAlerts)
	admin.Post("/fraud/alerts/:id/resolve", fraudHandler.PostResolve)
	admin.Post("/fraud/employees/:employeeId/evaluate", fraudHandler.PostEvaluate)
	admin.Get("/geofences", geofenceHandler.GetList)
	admin.Post("/geofences", geofenceHandler.PostCreate)
	admin.Put("/geofences/:id", geofenceHandler.PutUpdate)
	admin.Delete("/geofences/:id", geofenceHandler.DeleteFence)
}

func run(ctx *cli.Context) error {
	config, err := config.LoadConfig(ctx.String(configFileFlag.Name))
	if err != nil {
		slog.Error("Could not load config file.", "error", err)
		return err
	}

	mustInitLogger(config.Debug || ctx.IsSet(debugFlag.Name))

	db := mustInitDatabase(config.MySQL)
	redisStorage := mustInitRedisStorage(config.Redis)
	cacheStorage := store.NewRedisStorage(redisStorage.Conn())
	audit.Initialize(audit.NewAuditEventRepository(db))

	// repositories
	var (
		employeeRepo     = employees.NewRepository(db)
		geofenceRepo     = geofence.NewRepository(db)
		attendanceRepo   = attendance.NewRepository(db)
		verificationRepo = verification.NewRepository(db)
		alertRepo        = fraud.NewAlertRepository(db)
	)

	// services
	bus := events.NewBus()
	fenceIndex := geofence.NewIndex(geofenceRepo)
	if err := fenceIndex.Reload(ctx.Context); err != nil {
		slog.Error("Failed to load geofence snapshot", "error", err)
		return err
	}
	var (
		fenceService = geofence.NewService(geofenceRepo, fenceIndex)
		fraudEngine  = fraud.NewEngine(alertRepo, attendanceRepo, bus)
		lastSeen     = store.New[attendance.LastCheckIn](cacheStorage, params.LastCheckInKeyPrefix)
		ledger       = attendance.NewLedger(attendanceRepo, employeeRepo, fenceIndex, lastSeen, fraudEngine, bus, config.Attendance.Policy)
		scorer       = verification.NewHTTPScorer(config.Scorer.URL, config.Scorer.APIKey, config.Scorer.Timeout)
		manager      = verification.NewManager(verificationRepo, ledger, employeeRepo, scorer, bus, config.Verification)
	)
	notify.NewDispatcher(config.Notify, employeeRepo).Register(bus)

	router := fiber.New(fiber.Config{
		Prefork:       false,
		CaseSensitive: true,
		BodyLimit:     params.ServerBodyLimit,
		IdleTimeout:   params.ServerIdleTimeout,
		ReadTimeout:   params.ServerReadTimeout,
		WriteTimeout:  params.ServerWriteTimeout,
		ErrorHandler:  middlewares.ErrorHandler,
	})

	router.Use(recover.New())
	router.Use(logger.New())
	router.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(config.AllowOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	setupAPIRoutes(
		router,
		config.JWTSecret,
		api.NewAttendanceHandler(ledger),
		api.NewVerificationHandler(manager),
		api.NewFraudHandler(alertRepo, fraudEngine),
		api.NewGeofenceHandler(fenceService),
	)

	workerCtx, term := context.WithCancel(ctx.Context)
	go manager.RunSweeper(workerCtx, config.Verification.SweepInterval)
	go fenceIndex.Run(workerCtx, params.GeofenceRefreshInterval)

	done := make(chan struct{})
	go common.StartHealthCheckServer(workerCtx, done, redisStorage.Conn(), db)
	defer func() {
		term()
		<-done
	}()
	return router.Listen(config.ListenAddr)
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
