package main

import (
	"fmt"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/merkledrop-labs/merkledrop-go/pkg/authority"
	"github.com/merkledrop-labs/merkledrop-go/pkg/claimstore"
	"github.com/merkledrop-labs/merkledrop-go/pkg/claimstore/badger"
	"github.com/merkledrop-labs/merkledrop-go/pkg/claimstore/memory"
	"github.com/merkledrop-labs/merkledrop-go/pkg/claimstore/redis"
	"github.com/merkledrop-labs/merkledrop-go/pkg/config"
	"github.com/merkledrop-labs/merkledrop-go/pkg/logger"
	"github.com/merkledrop-labs/merkledrop-go/pkg/service"
	"github.com/merkledrop-labs/merkledrop-go/pkg/signing"
	"github.com/merkledrop-labs/merkledrop-go/pkg/token"
)

func main() {
	app := &cli.App{
		Name:  "merkledrop-server",
		Usage: "Airdrop claim gate",
		Description: `Serves one-shot claim authorization over HTTP against a published
root commitment.

Each claim request carries the claimer's record, a membership proof and
an ECDSA signature over the claim digest. Guards run in a fixed order
(already claimed, signature, proof); the payout fires exactly once per
address.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   8080,
				Usage:   "HTTP server port",
				EnvVars: []string{config.EnvDropPort},
			},
			&cli.Uint64Flag{
				Name:     "chain-id",
				Aliases:  []string{"chain"},
				Usage:    "Chain ID bound into the signature domain: " + config.GetSupportedChainIDsString(),
				EnvVars:  []string{config.EnvDropChainID},
				Required: true,
			},
			&cli.StringFlag{
				Name:     "root",
				Usage:    "0x-prefixed 32-byte root commitment",
				EnvVars:  []string{config.EnvDropRoot},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "domain-name",
				Value:   "Merkledrop",
				Usage:   "Signature domain name",
				EnvVars: []string{config.EnvDropDomainName},
			},
			&cli.StringFlag{
				Name:    "domain-version",
				Value:   "1",
				Usage:   "Signature domain version",
				EnvVars: []string{config.EnvDropDomainVersion},
			},
			&cli.StringFlag{
				Name:    "verifier-address",
				Usage:   "Verifying-contract address bound into the signature domain",
				EnvVars: []string{config.EnvDropVerifierAddress},
			},
			&cli.StringFlag{
				Name:    "store",
				Value:   string(config.StoreTypeMemory),
				Usage:   "Claimed-flag store backend: memory, badger or redis",
				EnvVars: []string{config.EnvDropStoreType},
			},
			&cli.StringFlag{
				Name:    "badger-dir",
				Usage:   "Data directory for the badger store",
				EnvVars: []string{config.EnvDropBadgerDir},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Usage:   "Redis server address (host:port)",
				EnvVars: []string{config.EnvDropRedisAddress},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				EnvVars: []string{config.EnvDropRedisPassword},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Usage:   "Redis database number (0-15)",
				EnvVars: []string{config.EnvDropRedisDB},
			},
			&cli.StringFlag{
				Name:  "dev-pool",
				Usage: "Fund the in-memory dev token pool with this amount (base units)",
			},
			&cli.Float64Flag{
				Name:  "claims-per-second",
				Usage: "Rate limit for claim submissions (0 disables)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvDropVerbose},
			},
		},
		Action: runServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runServer(c *cli.Context) error {
	cfg := parseConfig(c)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Verbose})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	root, err := cfg.RootDigest()
	if err != nil {
		return err
	}

	store, err := buildStore(cfg, l)
	if err != nil {
		return fmt.Errorf("failed to create claim store: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.HealthCheck(); err != nil {
		return fmt.Errorf("claim store unhealthy: %w", err)
	}

	ledger := token.NewMemoryToken()
	if pool := c.String("dev-pool"); pool != "" {
		amount, ok := new(big.Int).SetString(pool, 10)
		if !ok {
			return fmt.Errorf("malformed dev-pool amount %q", pool)
		}
		if err := ledger.FundPool(amount); err != nil {
			return fmt.Errorf("failed to fund dev pool: %w", err)
		}
		l.Sugar().Infow("Funded dev token pool", "amount", amount.String())
	}

	domainSeparator := signing.ComputeDomainSeparator(
		cfg.DomainName, cfg.DomainVersion, uint64(cfg.ChainID), cfg.Verifier())

	auth, err := authority.NewClaimAuthority(authority.Config{
		Root:            root,
		DomainSeparator: domainSeparator,
		Token:           ledger,
		Store:           store,
		Logger:          l,
	})
	if err != nil {
		return fmt.Errorf("failed to create claim authority: %w", err)
	}

	svc, err := service.NewService(auth, store, l, service.Config{
		Port:            cfg.Port,
		ClaimsPerSecond: c.Float64("claims-per-second"),
	})
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	if err := svc.Start(); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	l.Sugar().Infow("Claim server running",
		zap.Int("port", cfg.Port),
		zap.String("chain", string(cfg.ChainName)),
		zap.String("root", cfg.Root),
		zap.String("store", cfg.Store.Type.String()),
	)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	l.Sugar().Infow("Shutting down")
	return svc.Stop()
}

func parseConfig(c *cli.Context) *config.ServerConfig {
	return &config.ServerConfig{
		Port:            c.Int("port"),
		ChainID:         config.ChainId(c.Uint64("chain-id")),
		Root:            c.String("root"),
		DomainName:      c.String("domain-name"),
		DomainVersion:   c.String("domain-version"),
		VerifierAddress: c.String("verifier-address"),
		Store: config.StoreConfig{
			Type:          config.StoreType(c.String("store")),
			BadgerDir:     c.String("badger-dir"),
			RedisAddress:  c.String("redis-address"),
			RedisPassword: c.String("redis-password"),
			RedisDB:       c.Int("redis-db"),
		},
		Verbose: c.Bool("verbose"),
	}
}

func buildStore(cfg *config.ServerConfig, l *zap.Logger) (claimstore.IClaimStore, error) {
	switch cfg.Store.Type {
	case config.StoreTypeMemory:
		return memory.NewMemoryClaimStore(), nil
	case config.StoreTypeBadger:
		return badger.NewBadgerClaimStore(cfg.Store.BadgerDir, l)
	case config.StoreTypeRedis:
		return redis.NewRedisClaimStore(&redis.RedisConfig{
			Address:  cfg.Store.RedisAddress,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		}, l)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Store.Type)
	}
}
