package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/deletexiumu/screen-analyzer/api"
	"github.com/deletexiumu/screen-analyzer/capture"
	"github.com/deletexiumu/screen-analyzer/config"
	"github.com/deletexiumu/screen-analyzer/db"
	"github.com/deletexiumu/screen-analyzer/llm"
	"github.com/deletexiumu/screen-analyzer/llm/providers/anthropic"
	"github.com/deletexiumu/screen-analyzer/llm/providers/chatvision"
	"github.com/deletexiumu/screen-analyzer/llm/providers/cli"
	"github.com/deletexiumu/screen-analyzer/log"
	"github.com/deletexiumu/screen-analyzer/notifications"
	"github.com/deletexiumu/screen-analyzer/retention"
	"github.com/deletexiumu/screen-analyzer/scheduler"
	"github.com/deletexiumu/screen-analyzer/segmenter"
	"github.com/deletexiumu/screen-analyzer/videosynth"
)

func main() {
	cfg := config.Get()
	if err := cfg.EnsureDirs(); err != nil {
		log.Fatal().Err(err).Msg("failed to create data directories")
	}

	// Initialize database (also runs migrations and the startup
	// orphan-row reconciliation scan).
	_ = db.GetDB()

	// Load persisted user config and apply its log level.
	cfgMgr, err := config.NewManager(cfg.ConfigPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	log.SetLevel(cfgMgr.Get().LoggerSettings.Level)
	if err := cfgMgr.WatchExternalEdits(); err != nil {
		log.Warn().Err(err).Msg("failed to watch config.json for external edits")
	}

	cv := cfgMgr.Get()

	// Register every provider this binary was built with, then wire the
	// active one through config.Manager.
	llm.GlobalRegistry.Register(chatvision.New())
	llm.GlobalRegistry.Register(anthropic.New())
	llm.GlobalRegistry.Register(cli.New())
	activeProvider := llm.NewActiveCell()
	cfgMgr.Subscribe(activeProvider.ApplyConfig)
	activeProvider.ApplyConfig(cv)

	// Wire the capture -> segment -> analyze -> synthesize -> retain pipeline.
	engine := capture.NewEngine(cfg.FramesDir, cv.CaptureSettings)
	cfgMgr.Subscribe(engine.ApplySettings)

	seg := segmenter.New(segmenter.DefaultConfig())

	synth := videosynth.New("ffmpeg", cfg.VideosDir, cfg.FramesDir, cv.VideoConfig, 2)
	cfgMgr.Subscribe(synth.ApplySettings)

	orch := llm.NewOrchestrator(activeProvider, cfg.FramesDir, llm.DefaultConfig())

	retSvc := retention.New(cfg.FramesDir, cfg.VideosDir, cfg.DatabasePath)

	notifSvc := notifications.NewService()

	sched, err := scheduler.New(engine, seg, synth, orch, retSvc, notifSvc, cv)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to construct scheduler")
	}
	cfgMgr.Subscribe(sched.ApplyConfig)

	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}

	// Gin router.
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(log.GinLogger())
	if cfg.IsDevelopment() {
		r.Use(corsMiddleware())
	} else {
		r.Use(securityHeadersMiddleware())
	}
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{
		"/api/system/status/stream",
	})))
	r.SetTrustedProxies(nil)

	handlers := api.NewHandlers(cfgMgr, engine, sched, orch, retSvc, notifSvc, cfg.FramesDir, cfg.VideosDir)
	api.SetupRoutes(r, handlers)

	srv := &http.Server{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:  r,
		ErrorLog: log.StdErrorLogger(),
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("server starting")
		printNetworkAddresses(cfg.Port)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	if err := sched.Stop(10 * time.Second); err != nil {
		log.Warn().Err(err).Msg("scheduler did not shut down cleanly")
	}
	notifSvc.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	if err := cfgMgr.Close(); err != nil {
		log.Warn().Err(err).Msg("config watcher close error")
	}
	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("database close error")
	}

	log.Info().Msg("server stopped")
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:12345": true,
			"http://localhost:12346": true,
		}
		if allowedOrigins[origin] {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "SAMEORIGIN")
		c.Header("Cross-Origin-Opener-Policy", "same-origin")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

func printNetworkAddresses(port int) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok {
				if ip4 := ipnet.IP.To4(); ip4 != nil {
					log.Info().Str("url", fmt.Sprintf("http://%s:%d", ip4.String(), port)).Msg("network")
				}
			}
		}
	}
}
