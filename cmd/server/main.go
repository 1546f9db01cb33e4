package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"github.com/go-redis/redis/v8"
	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"pizzacall/internal/call"
	"pizzacall/internal/catalog"
	"pizzacall/internal/config"
	"pizzacall/internal/dialogue"
	"pizzacall/internal/infrastructure/logger"
	"pizzacall/internal/infrastructure/mysql"
	redisinfra "pizzacall/internal/infrastructure/redis"
	"pizzacall/internal/order"
	"pizzacall/internal/script"
	"pizzacall/internal/server"
	"pizzacall/internal/session"
	sessionctrl "pizzacall/internal/session/controller"
	"pizzacall/internal/session/registry"
	"pizzacall/internal/telephony"
)

func main() {
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		log.Fatalf("creating logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callScript, err := script.Load(cfg.Script.Path)
	if err != nil {
		zapLogger.Fatal("loading call script", zap.Error(err))
	}

	db, err := mysql.NewConnection(cfg.Database)
	if err != nil {
		zapLogger.Fatal("connecting to database", zap.Error(err))
	}
	defer db.Close()
	zapLogger.Info("database connected")

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redisinfra.NewClient(ctx, cfg.Redis)
		if err != nil {
			zapLogger.Fatal("connecting to redis", zap.Error(err))
		}
		defer redisClient.Close()
		zapLogger.Info("redis connected")
	}

	// Bloque 1: clientes de Google
	var googleOpts []option.ClientOption
	if cfg.Speech.CredentialsFile != "" {
		googleOpts = append(googleOpts, option.WithCredentialsFile(cfg.Speech.CredentialsFile))
	}

	genaiClient, err := genai.NewClient(ctx, option.WithAPIKey(cfg.Gemini.APIKey))
	if err != nil {
		zapLogger.Fatal("creating gemini client", zap.Error(err))
	}
	defer genaiClient.Close()

	speechClient, err := speech.NewClient(ctx, googleOpts...)
	if err != nil {
		zapLogger.Fatal("creating speech client", zap.Error(err))
	}
	defer speechClient.Close()

	ttsClient, err := texttospeech.NewClient(ctx, googleOpts...)
	if err != nil {
		zapLogger.Fatal("creating text-to-speech client", zap.Error(err))
	}
	defer ttsClient.Close()

	engine := dialogue.NewGeminiEngine(
		genaiClient,
		cfg.Gemini.Model,
		callScript,
		dialogue.NewGoogleRecognizer(speechClient, cfg.Speech.LanguageCode, zapLogger),
		dialogue.NewGoogleSynthesizer(ttsClient, cfg.Speech.LanguageCode, cfg.Speech.VoiceName),
		zapLogger,
	)

	// Bloque 2: módulos de dominio
	catalogLoader, menuCtrl := catalog.NewModule(db, redisClient, cfg, zapLogger)
	dispatcher := order.NewModule(db, cfg, zapLogger)
	calls := telephony.NewCalls(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, callScript.SayVoice, callScript.Language, zapLogger)

	var callRegistry session.Registry = registry.NewMemory()
	if redisClient != nil {
		callRegistry = registry.NewRedis(redisClient, registry.DefaultLease, zapLogger)
	}

	handler := session.NewHandler(catalogLoader, engine, dispatcher, calls, callRegistry, callScript, session.Options{
		EngineStartTimeout: cfg.Session.EngineStartTimeout,
		CatalogLoadTimeout: cfg.Session.CatalogLoadTimeout,
		ToolTimeout:        cfg.Session.ToolTimeout,
		MaxCallDuration:    cfg.Session.MaxCallDuration,
		InboundQueueSize:   cfg.Session.InboundQueueSize,
		BrowserInputRate:   cfg.Speech.BrowserSampleRate,
		BrowserOutputRate:  cfg.Speech.OutputSampleRate,
	}, zapLogger)

	streamCtrl := sessionctrl.NewStreamController(ctx, handler, cfg.Session.ReadTimeout, cfg.Session.WriteTimeout, zapLogger)
	incomingCtrl := call.NewModule(db, cfg, callScript, zapLogger)
	limiter := server.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst, zapLogger)

	router := server.NewRouter(incomingCtrl, streamCtrl, menuCtrl, limiter, zapLogger)

	srv := server.New(cfg.Server.Port, router, zapLogger)

	go func() {
		if err := srv.Start(); err != nil {
			zapLogger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server shutdown failed", zap.Error(err))
	}
	if err := streamCtrl.Wait(shutdownCtx); err != nil {
		zapLogger.Warn("calls still active at shutdown", zap.Error(err))
	}

	zapLogger.Info("server stopped gracefully")
}
