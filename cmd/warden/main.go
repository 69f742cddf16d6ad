package main

import (
	"context"
	"errors"
	"log"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/layer-3/warden/adapters/attestor"
	"github.com/layer-3/warden/adapters/events"
	"github.com/layer-3/warden/adapters/keys"
	"github.com/layer-3/warden/adapters/ledger"
	"github.com/layer-3/warden/adapters/store"
	"github.com/layer-3/warden/adapters/tokenizer"
	"github.com/layer-3/warden/adapters/wallet"
	"github.com/layer-3/warden/config"
	"github.com/layer-3/warden/ports"
	"github.com/layer-3/warden/service"
	transport "github.com/layer-3/warden/transport/http"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load(os.Getenv("WARDEN_CONFIG"))
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := watermill.NewStdLogger(false, false)

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		log.Fatalf("Failed to connect to ledger node: %v", err)
	}
	defer client.Close()

	// Durable storage and event bus: Redis when configured, in-process otherwise
	var (
		kv         ports.Store
		publisher  message.Publisher
		subscriber message.Subscriber
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()

		kv = store.NewRedisStore(redisClient)
		publisher, err = redisstream.NewPublisher(redisstream.PublisherConfig{Client: redisClient}, logger)
		if err != nil {
			log.Fatalf("Failed to create Redis publisher: %v", err)
		}
		subscriber, err = redisstream.NewSubscriber(redisstream.SubscriberConfig{
			Client:        redisClient,
			ConsumerGroup: "warden",
		}, logger)
		if err != nil {
			log.Fatalf("Failed to create Redis subscriber: %v", err)
		}
	} else {
		logger.Info("REDIS_URL not set, sessions will not survive a restart", nil)
		kv = store.NewMemoryStore()
		// Publishing waits for the ack so events on a topic stay in order
		bus := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            64,
			BlockPublishUntilSubscriberAck: true,
		}, logger)
		publisher, subscriber = bus, bus
	}
	defer publisher.Close()
	defer subscriber.Close()

	var account common.Address
	if cfg.WalletAccount != "" {
		account = common.HexToAddress(cfg.WalletAccount)
	}
	ks := keystore.NewKeyStore(cfg.KeystoreDir, keystore.StandardScryptN, keystore.StandardScryptP)
	provider := wallet.NewKeystoreWallet(ks, account, big.NewInt(cfg.ChainID))

	sessionKey, err := keys.LoadSessionKey(cfg.SessionKeyFile)
	if err != nil {
		log.Fatalf("Failed to load session key: %v", err)
	}

	reader, err := ledger.NewReader(cfg.Contract, client)
	if err != nil {
		log.Fatalf("Failed to create ledger reader: %v", err)
	}
	writer, err := ledger.NewWriter(cfg.Contract, client, provider)
	if err != nil {
		log.Fatalf("Failed to create ledger writer: %v", err)
	}
	watcher, err := ledger.NewWatcher(cfg.Contract, client, events.NewWatermillPublisher(publisher), logger)
	if err != nil {
		log.Fatalf("Failed to create ledger watcher: %v", err)
	}

	var idp ports.Attestor
	switch {
	case cfg.IssuerKeyFile != "":
		issuerKey, err := keys.LoadIssuerKey(cfg.IssuerKeyFile)
		if err != nil {
			log.Fatalf("Failed to load issuer key: %v", err)
		}
		idp = service.NewAttestor(issuerKey, logger)
	case cfg.AttestorURL != "":
		var pinned common.Address
		if cfg.IssuerAddress != "" {
			pinned = common.HexToAddress(cfg.IssuerAddress)
		}
		idp = attestor.NewHTTPAttestor(cfg.AttestorURL, pinned)
	default:
		idp = service.NewAttestor(nil, logger)
	}

	sessions := service.NewSessionStore(
		provider,
		kv,
		tokenizer.NewJWTTokenizer(sessionKey),
		logger,
		service.WithSessionTTL(cfg.SessionTTL.Duration),
	)
	mirror := service.NewMirror(reader, logger)
	authService := service.NewAuthService(
		sessions,
		mirror,
		service.NewRouteGuard(service.DefaultRoutes),
		reader,
		writer,
		idp,
		logger,
	)
	reconciler := service.NewReconciler(
		events.NewWatermillSubscriber(subscriber, logger),
		mirror,
		logger,
		cfg.RefreshInterval.Duration,
	)

	if _, err := authService.Restore(ctx); err != nil {
		logger.Error("Failed to restore session", err, nil)
	}

	go func() {
		if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Ledger watcher stopped", err, nil)
		}
	}()
	go func() {
		if err := reconciler.Run(ctx); err != nil {
			logger.Error("Reconciler stopped", err, nil)
		}
	}()
	go func() {
		if err := authService.WatchWallet(ctx, provider); err != nil {
			logger.Error("Wallet watcher stopped", err, nil)
		}
	}()

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: transport.SetupRouter(authService),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("Warden listening", watermill.LogFields{
		"addr":     cfg.ListenAddr,
		"contract": cfg.Contract.Hex(),
	})
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
}
