package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"TreasurySweep/internal/api"
	"TreasurySweep/internal/chain"
	"TreasurySweep/internal/chain/provider"
	"TreasurySweep/internal/config"
	"TreasurySweep/internal/custody"
	xerrors "TreasurySweep/internal/errors"
	"TreasurySweep/internal/observability/alerting"
	"TreasurySweep/internal/observability/metrics"
	"TreasurySweep/internal/policy"
	"TreasurySweep/internal/sweep"
	"TreasurySweep/pkg/logger"
)

func main() {
	once := flag.Bool("once", false, "run a single sweep iteration and exit")
	flag.Parse()

	// Local development keeps secrets in a .env file; deployments set real
	// environment variables and the file is simply absent.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *once); err != nil && !errors.Is(err, context.Canceled) {
		logger.L().Error("sweepd exited with error", slog.String("error", err.Error()))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(ctx context.Context, once bool) error {
	configPath := os.Getenv("SWEEPD_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "sweepd.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Logger); err != nil {
		return err
	}
	log := logger.Named("sweepd")

	defs, err := chain.LoadNetworkDefinitions(cfg.Network.DefinitionsPath)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeConfigError, err, "load network definitions")
	}
	def, ok := defs.Networks[cfg.Network.Name]
	if !ok {
		return xerrors.New(xerrors.CodeConfigError, "network is not defined",
			xerrors.WithMetadata("network", cfg.Network.Name))
	}

	registry, err := provider.NewRegistry(ctx, defs, cfg.Network.Name)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeConfigError, err, "initialise chain clients")
	}
	defer registry.Close()

	chainClient, err := registry.DefaultClient()
	if err != nil {
		return err
	}

	tokenAddr := strings.TrimSpace(cfg.Sweep.TokenAddress)
	if tokenAddr == "" {
		tokenAddr = def.TokenAddress
	}
	if !common.IsHexAddress(tokenAddr) {
		return xerrors.New(xerrors.CodeConfigError, "no valid token address for network",
			xerrors.WithMetadata("network", cfg.Network.Name))
	}

	apiKey := strings.TrimSpace(os.Getenv(cfg.Custody.APIKeyEnv))
	if apiKey == "" {
		return xerrors.New(xerrors.CodeConfigError, "custody api key env is not set",
			xerrors.WithMetadata("env", cfg.Custody.APIKeyEnv))
	}
	custodyClient, err := custody.NewClient(cfg.Custody.BaseURL, apiKey, &http.Client{
		Timeout: time.Duration(cfg.Custody.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return xerrors.Wrap(xerrors.CodeConfigError, err, "initialise custody client")
	}

	resolver := custody.NewDestinationResolver(custodyClient, cfg.Network.Name, custody.Destination{
		Address: cfg.Sweep.DestinationAddress,
		Handle:  cfg.Sweep.DestinationHandle,
	})
	dest, err := resolver.Resolve(ctx)
	if err != nil {
		return err
	}
	log.Info("destination resolved", slog.String("address", dest.Address))

	predicate, err := policy.Compile(tokenAddr, dest.Address)
	if err != nil {
		return err
	}
	if err := provisionRestrictions(ctx, custodyClient, cfg.Sweep.RestrictionName, predicate, log); err != nil {
		return err
	}

	threshold, err := sweep.ParseUnits(cfg.Sweep.Threshold, def.TokenDecimals)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeConfigError, err, "parse sweep threshold")
	}
	minGas, err := sweep.ParseUnits(cfg.Sweep.MinGasReserve, 18)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeConfigError, err, "parse min gas reserve")
	}

	orchestrator := sweep.New(chainClient, custodyClient, sweep.Params{
		Network:       cfg.Network.Name,
		ChainID:       def.ChainID,
		Token:         common.HexToAddress(tokenAddr),
		TokenDecimals: def.TokenDecimals,
		Destination:   common.HexToAddress(dest.Address),
		Threshold:     threshold,
		MinGas:        minGas,
	},
		sweep.WithConfirmations(cfg.Sweep.Confirmations),
		sweep.WithConfirmTimeout(time.Duration(cfg.Sweep.ConfirmTimeoutSeconds)*time.Second),
	)

	schedulerOpts := []sweep.SchedulerOption{}

	if strings.EqualFold(cfg.Guard.Driver, "redis") {
		guard, err := sweep.NewRedisGuard(sweep.RedisGuardConfig{
			Address:  cfg.Guard.Redis.Address,
			Password: cfg.Guard.Redis.Password,
			DB:       cfg.Guard.Redis.DB,
			Key:      cfg.Guard.Redis.Key,
			TTL:      time.Duration(cfg.Guard.Redis.TTLSeconds) * time.Second,
		})
		if err != nil {
			return xerrors.Wrap(xerrors.CodeConfigError, err, "initialise redis guard")
		}
		defer guard.Close()
		schedulerOpts = append(schedulerOpts, sweep.WithGuard(guard))
	}

	if strings.EqualFold(cfg.Events.Driver, "rabbitmq") {
		publisher, err := sweep.NewRabbitMQPublisher(sweep.RabbitMQConfig{
			URL:        cfg.Events.RabbitMQ.URL,
			Queue:      cfg.Events.RabbitMQ.Queue,
			Durable:    cfg.Events.RabbitMQ.Durable,
			AutoDelete: cfg.Events.RabbitMQ.AutoDelete,
		})
		if err != nil {
			return xerrors.Wrap(xerrors.CodeConfigError, err, "initialise rabbitmq publisher")
		}
		defer publisher.Close()
		schedulerOpts = append(schedulerOpts, sweep.WithPublisher(publisher))
	}

	if dispatcher, err := buildAlerting(cfg.Alerting); err != nil {
		return err
	} else if dispatcher != nil {
		schedulerOpts = append(schedulerOpts, sweep.WithAlerts(dispatcher))
	}

	scheduler := sweep.NewScheduler(custodyClient, orchestrator, sweep.SchedulerConfig{
		Network:       cfg.Network.Name,
		TokenDecimals: def.TokenDecimals,
		Schedule:      cfg.Sweep.Schedule,
	}, schedulerOpts...)

	if once {
		summary, err := scheduler.RunOnce(ctx)
		if err != nil {
			return err
		}
		log.Info("single iteration finished",
			slog.Int("attempted", summary.Attempted),
			slog.Int("succeeded", summary.Succeeded),
			slog.Int("skipped", summary.Skipped),
			slog.Int("failed", summary.Failed),
		)
		return nil
	}

	if cfg.Metrics.Address != "" {
		go func() {
			if err := metrics.StartServer(ctx, cfg.Metrics.Address); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("metrics server exited", slog.String("error", err.Error()))
			}
		}()
	}
	go func() {
		server := api.NewServer(cfg.Server.Address, scheduler)
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("api server exited", slog.String("error", err.Error()))
		}
	}()

	return scheduler.Run(ctx)
}

// provisionRestrictions registers the transfer restriction in every realm the
// directory knows about. Realms that already carry the restriction are left
// untouched so restarts stay idempotent.
func provisionRestrictions(ctx context.Context, client *custody.Client, name, predicate string, log *slog.Logger) error {
	accounts, err := client.ListAccounts(ctx)
	if err != nil {
		return err
	}
	for _, account := range accounts {
		id, err := client.CreateRestriction(ctx, account.RealmID, name, predicate, "auto", custody.EffectAllow)
		if errors.Is(err, custody.ErrRestrictionExists) {
			log.Debug("restriction already present", slog.String("realm", account.RealmID))
			continue
		}
		if err != nil {
			return xerrors.Wrap(xerrors.CodeConfigError, err, "provision restriction",
				xerrors.WithMetadata("realm", account.RealmID))
		}
		log.Info("restriction created",
			slog.String("realm", account.RealmID),
			slog.String("restriction_id", id),
		)
	}
	return nil
}

func buildAlerting(cfg config.AlertingConfig) (alerting.Dispatcher, error) {
	var notifiers []alerting.Notifier

	if cfg.Webhook.URL != "" {
		webhook, err := alerting.NewWebhookNotifier(alerting.WebhookConfig{URL: cfg.Webhook.URL})
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeConfigError, err, "initialise webhook alerts")
		}
		notifiers = append(notifiers, webhook)
	}
	if cfg.Telegram.TokenEnv != "" {
		token := strings.TrimSpace(os.Getenv(cfg.Telegram.TokenEnv))
		if token == "" {
			return nil, xerrors.New(xerrors.CodeConfigError, "telegram token env is not set",
				xerrors.WithMetadata("env", cfg.Telegram.TokenEnv))
		}
		telegram, err := alerting.NewTelegramNotifier(alerting.TelegramConfig{
			Token:  token,
			ChatID: cfg.Telegram.ChatID,
		})
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeConfigError, err, "initialise telegram alerts")
		}
		notifiers = append(notifiers, telegram)
	}

	if len(notifiers) == 0 {
		return nil, nil
	}
	return alerting.NewFanout(notifiers...), nil
}
