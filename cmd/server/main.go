package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carelink/backend/internal/api/handler"
	"carelink/backend/internal/auth"
	"carelink/backend/internal/blockchain"
	"carelink/backend/internal/chathub"
	"carelink/backend/internal/config"
	"carelink/backend/internal/localization"
	"carelink/backend/internal/mail"
	"carelink/backend/internal/messaging"
	"carelink/backend/internal/observability"
	"carelink/backend/internal/pinning"
	"carelink/backend/internal/storage"
	"carelink/backend/internal/users"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("invalid configuration", zap.Error(err))
	}

	log, err := observability.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		zap.NewExample().Fatal("build logger", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()
	if envErr != nil {
		log.Debug("no .env file loaded", zap.Error(envErr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Сховище
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal("failed to open storage", zap.String("backend", cfg.StorageBackend), zap.Error(err))
	}
	defer func() { _ = store.Close(context.Background()) }()
	log.Info("storage ready", zap.String("backend", cfg.StorageBackend))

	// 2. Сервіси
	loc, err := localization.Default()
	if err != nil {
		log.Fatal("failed to load locales", zap.Error(err))
	}
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL)
	msgs := messaging.NewService(store, log)
	usersSvc := users.NewService(store, tokens, newMailer(cfg, log), loc, log)

	// 3. Chat Hub та Redis relay
	hub := chathub.NewManagerService(chathub.NewRegistry(), chathub.NewRooms(), msgs, log)
	if cfg.RedisEnabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("failed to connect redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		defer func() { _ = rdb.Close() }()

		relay := storage.NewRelay(rdb, uuid.NewString())
		hub.SetPublisher(relay)
		go hub.Run(ctx, relay.Subscribe(ctx), relay.Origin)
		log.Info("redis relay started", zap.String("origin", relay.Origin))
	}

	h := handler.NewHandler(hub, msgs, usersSvc, tokens, loc, log)
	h.UploadDir = cfg.UploadDir
	if closeChain := wireNFT(ctx, cfg, h, log); closeChain != nil {
		defer closeChain()
	}

	// 4. Gin та роутинг
	if cfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), observability.RequestLogger(log), cors.New(corsConfig(cfg.CORSOrigins)))
	h.Routes(r)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20,
		// No WriteTimeout: WebSocket connections are long lived.
	}

	go func() {
		log.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newMailer(cfg *config.Config, log *zap.Logger) users.Mailer {
	if !cfg.MailEnabled() {
		log.Warn("SMTP_HOST not set, OTP emails are only logged")
		return mail.NewLogMailer(log)
	}
	return mail.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailSender)
}

// corsConfig treats a "*" entry as allow-all.
func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Accept-Language"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			c.AllowAllOrigins = true
			return c
		}
	}
	c.AllowOrigins = origins
	return c
}

// wireNFT attaches the Pinata and Ethereum clients when they are configured.
// The returned func closes the RPC connection.
func wireNFT(ctx context.Context, cfg *config.Config, h *handler.Handler, log *zap.Logger) func() {
	if cfg.PinataAPIKey != "" {
		h.Pinner = pinning.NewClient(cfg.PinataAPIURL, cfg.PinataAPIKey, cfg.PinataSecretKey, cfg.PinataGatewayURL)
	}
	if !cfg.ChainEnabled() {
		log.Info("NFT relay disabled, ETH_PRIVATE_KEY or NFT_CONTRACT_ADDRESS not set")
		return nil
	}

	chain, err := blockchain.Dial(ctx, cfg.EthRPCURL, cfg.EthPrivateKey, log)
	if err != nil {
		log.Error("ethereum dial failed, NFT relay disabled", zap.Error(err))
		return nil
	}

	nftABI, err := blockchain.LoadArtifact(cfg.NFTContractABI)
	if err != nil {
		log.Error("load NFT artifact", zap.String("path", cfg.NFTContractABI), zap.Error(err))
		return chain.Close
	}
	nft, err := chain.Bind(cfg.NFTContractAddress, nftABI)
	if err != nil {
		log.Error("bind NFT contract", zap.Error(err))
		return chain.Close
	}
	h.Minter = blockchain.NewMinter(nft)

	if cfg.NFTAccessContractAddress == "" {
		return chain.Close
	}
	accessABI, err := blockchain.LoadArtifact(cfg.NFTAccessContractABI)
	if err != nil {
		log.Error("load access artifact", zap.String("path", cfg.NFTAccessContractABI), zap.Error(err))
		return chain.Close
	}
	access, err := chain.Bind(cfg.NFTAccessContractAddress, accessABI)
	if err != nil {
		log.Error("bind access contract", zap.Error(err))
		return chain.Close
	}
	h.Access = blockchain.NewAccessClient(access)
	log.Info("NFT relay enabled", zap.String("nft", cfg.NFTContractAddress), zap.String("access", cfg.NFTAccessContractAddress))
	return chain.Close
}
