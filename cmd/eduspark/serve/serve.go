// Package servecmder provides the serve command, which runs the chat relay,
// the study guide file server and the portal API.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/eduspark/portal/api"
	"github.com/eduspark/portal/pkg/cliui"
	"github.com/eduspark/portal/pkg/config"
	eventstreamutils "github.com/eduspark/portal/pkg/eventstream/utils"
	"github.com/eduspark/portal/pkg/logger"
	"github.com/eduspark/portal/pkg/objectstore"
	"github.com/eduspark/portal/pkg/portal"
	storageutils "github.com/eduspark/portal/pkg/storage/utils"
	"github.com/eduspark/portal/proxy"
)

type ServeCommander struct {
	listen       string
	apiListen    string
	upstream     string
	model        string
	rateLimit    uint
	workers      uint
	storage      string
	sqlitePath   string
	postgresDSN  string
	objectsRoot  string
	kafkaBrokers string
	logFile      string
	debug        bool

	cfg    *config.Config
	logger *slog.Logger
}

const serveLongDesc string = `Run the EduSpark chat relay and portal API.

The relay accepts conversations from the portal chat client on
/functions/v1/ai-chat, forwards them to an OpenAI compatible upstream with the
configured system prompt and model, and streams the reply back unchanged.
Completed turns are written to the record store and, when Kafka brokers are
configured, published as events.

When an objects root is configured, uploaded study guide files are served
read-only under the objects base URL.

The portal API listens on its own address and serves the materials catalog,
download analytics, study guides and referral codes from the same record store.
Requests authenticate with a bearer access token signed with auth.jwt_secret.

Settings are read from flags, EDUSPARK_ environment variables (a .env file in
the working directory is loaded first), config.toml and defaults, in that order.

Examples:
  eduspark serve
  eduspark serve --upstream https://api.openai.com/v1/chat/completions --model gpt-4o-mini
  eduspark serve --api-listen :9000
  eduspark serve --storage sqlite --sqlite ./eduspark.db --objects-root ./files`

const serveShortDesc string = "Run the EduSpark chat relay and portal API"

var serveFlags = []string{
	config.FlagListen,
	config.FlagAPIListen,
	config.FlagUpstream,
	config.FlagModel,
	config.FlagRateLimit,
	config.FlagWorkers,
	config.FlagStorage,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagObjectsRoot,
	config.FlagKafkaBrokers,
}

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, serveFlags)
			cmder.load(v)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return cmder.run(ctx)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &cmder.apiListen)
	config.AddStringFlag(cmd, config.Flags, config.FlagUpstream, &cmder.upstream)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddUintFlag(cmd, config.Flags, config.FlagRateLimit, &cmder.rateLimit)
	config.AddUintFlag(cmd, config.Flags, config.FlagWorkers, &cmder.workers)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorage, &cmder.storage)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagObjectsRoot, &cmder.objectsRoot)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")

	return cmd
}

// load resolves every setting through viper so flags, env, file and defaults
// apply in order.
func (c *ServeCommander) load(v *viper.Viper) {
	c.cfg = config.FromViper(v)

	c.listen = c.cfg.Relay.Listen
	c.apiListen = c.cfg.API.Listen
	c.upstream = c.cfg.Relay.Upstream
	c.model = c.cfg.Relay.Model
	c.rateLimit = c.cfg.Relay.RateLimit
	c.workers = c.cfg.Relay.Workers
	c.storage = c.cfg.Storage.Provider
	c.sqlitePath = c.cfg.Storage.SQLitePath
	c.postgresDSN = c.cfg.Storage.PostgresDSN
	c.objectsRoot = c.cfg.Objects.Root
	c.kafkaBrokers = c.cfg.Events.KafkaBrokers
}

func (c *ServeCommander) run(ctx context.Context) error {
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(cliui.IsTerminal(os.Stdout)),
		logger.WithJSON(true),
	)

	if c.logFile != "" {
		f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()

		c.logger = logger.Multi(c.logger, logger.New(
			logger.WithDebug(c.debug),
			logger.WithJSON(true),
			logger.WithWriter(f),
		))
	}

	driver, err := storageutils.NewDriver(ctx, &storageutils.NewDriverOpts{
		ProviderType: c.storage,
		SQLitePath:   c.sqlitePath,
		PostgresDSN:  c.postgresDSN,
		Logger:       c.logger,
	})
	if err != nil {
		return err
	}
	defer driver.Close()

	publisher, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		Brokers: config.EventsConfig{KafkaBrokers: c.kafkaBrokers}.Brokers(),
		Topic:   c.cfg.Events.KafkaTopic,
		Logger:  c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating event publisher: %w", err)
	}
	defer publisher.Close()

	relayConfig := proxy.Config{
		ListenAddr:   c.listen,
		UpstreamURL:  c.upstream,
		APIKey:       c.cfg.Relay.APIKey,
		Model:        c.model,
		SystemPrompt: c.cfg.Relay.SystemPrompt,
		RateLimit:    int(c.rateLimit),
		RateWindow:   time.Duration(c.cfg.Relay.RateWindowSeconds) * time.Second,
		Workers:      c.workers,
	}

	if c.objectsRoot != "" {
		// NewLocal creates the root so the static handler has something to serve.
		if _, err := objectstore.NewLocal(c.objectsRoot, c.cfg.Objects.BaseURL); err != nil {
			return fmt.Errorf("preparing objects root: %w", err)
		}
		relayConfig.FilesRoot = c.objectsRoot
		relayConfig.FilesPrefix = filesPrefix(c.cfg.Objects.BaseURL)
		c.logger.Info("serving study guide files",
			"root", relayConfig.FilesRoot,
			"prefix", relayConfig.FilesPrefix,
		)
	}

	p, err := proxy.New(relayConfig, driver, publisher, c.logger)
	if err != nil {
		return fmt.Errorf("creating relay: %w", err)
	}

	catalog, err := portal.Catalog()
	if err != nil {
		return err
	}

	apiServer := api.NewServer(api.Config{
		ListenAddr: c.apiListen,
		JWTSecret:  c.cfg.Auth.JWTSecret,
		Catalog:    catalog,
	}, driver, c.logger)

	apiLn, err := net.Listen("tcp", c.apiListen)
	if err != nil {
		p.Close()
		return fmt.Errorf("API server error: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := p.Run(); err != nil {
			return fmt.Errorf("relay error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		// A listener closed during shutdown is not a failure.
		if err := apiServer.Serve(apiLn); err != nil && gctx.Err() == nil {
			return fmt.Errorf("API server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			c.logger.Info("received signal, shutting down")
		}

		apiErr := apiServer.Shutdown()
		_ = apiLn.Close()
		return errors.Join(p.Close(), apiErr)
	})

	return g.Wait()
}

// filesPrefix turns the objects base URL into a route prefix. Absolute URLs
// keep only their path.
func filesPrefix(baseURL string) string {
	path := baseURL
	if u, err := url.Parse(baseURL); err == nil {
		path = u.Path
	}
	return "/" + strings.Trim(path, "/")
}
