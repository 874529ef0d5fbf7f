package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/onem2m/pkg/api"
	"github.com/cuemby/onem2m/pkg/config"
	"github.com/cuemby/onem2m/pkg/events"
	"github.com/cuemby/onem2m/pkg/lock"
	"github.com/cuemby/onem2m/pkg/log"
	"github.com/cuemby/onem2m/pkg/notifier"
	"github.com/cuemby/onem2m/pkg/onem2m"
	"github.com/cuemby/onem2m/pkg/primitives"
	"github.com/cuemby/onem2m/pkg/rest"
	"github.com/cuemby/onem2m/pkg/router"
	"github.com/cuemby/onem2m/pkg/tree"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "onem2md",
	Short: "onem2md - oneM2M CSE daemon",
	Long: `onem2md hosts one or more oneM2M Common Services Entities: a
hierarchical resource tree with CRUD request processing, subscriptions
with notification fan-out, and forwarding to remote CSEs.

Configuration comes from ONEM2M_-prefixed environment variables, with an
optional .env file in the working directory.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"onem2md version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	provisionCmd.Flags().String("name", "", "CSE name (resource name of the cseBase)")
	provisionCmd.Flags().String("cse-id", "", "CSE-ID")
	provisionCmd.Flags().String("cse-type", "IN-CSE", "CSE type (IN-CSE or MN-CSE)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(provisionCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the CSE daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: cfg.LogJSON})
		logger := log.WithComponent("onem2md")

		store, err := tree.NewBoltTree(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open data store: %w", err)
		}
		defer store.Close()

		broker := events.NewBroker()
		broker.Start()
		defer broker.Stop()

		routerSvc := router.NewService(router.ServiceConfig{
			Store:   store,
			Workers: cfg.RouterWorkers,
			Timeout: cfg.ForwardTimeout,
		})
		routerSvc.RegisterPlugin("http", router.NewHTTPPlugin())
		routerSvc.RegisterPlugin("https", router.NewHTTPPlugin())
		routerSvc.RegisterPlugin("coap", router.NewCoapPlugin())
		if err := routerSvc.Rebuild(); err != nil {
			return fmt.Errorf("failed to rebuild routing table: %w", err)
		}
		defer routerSvc.Stop()

		notifierSvc := notifier.NewService(notifier.ServiceConfig{
			Broker:  broker,
			Workers: cfg.NotifierWorkers,
			Timeout: cfg.NotifyTimeout,
		})
		notifierSvc.RegisterPlugin("http", notifier.NewHTTPPlugin())
		notifierSvc.RegisterPlugin("https", notifier.NewHTTPPlugin())
		notifierSvc.RegisterPlugin("coap", notifier.NewCoapPlugin())
		notifierSvc.RegisterPlugin("mqtt", notifier.NewMqttPlugin())
		notifierSvc.RegisterPlugin("ws", notifier.NewWsPlugin())
		notifierSvc.RegisterPlugin("wss", notifier.NewWsPlugin())
		notifierSvc.Start()
		defer notifierSvc.Stop()

		processor := rest.NewProcessor(rest.Config{
			Store:  store,
			Locker: lock.NewLocker(),
			Broker: broker,
			Router: routerSvc,
		})

		if cfg.ProvisionFile != "" {
			if err := provisionFromFile(processor, cfg.ProvisionFile); err != nil {
				return err
			}
		}

		server := api.NewServer(processor, api.NewHealth(store, Version))
		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.HTTPAddr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			logger.Info().Str("signal", sig.String()).Msg("shutting down")
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("http server error: %w", err)
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Stop(ctx)
	},
}

// provisionFromFile creates the CSEs listed in the provisioning file. A CSE
// that already exists is fine; anything else aborts startup.
func provisionFromFile(processor *rest.Processor, path string) error {
	logger := log.WithComponent("provision")

	pf, err := config.LoadProvisionFile(path)
	if err != nil {
		return err
	}
	for _, entry := range pf.Cses {
		resp := processor.ProvisionCse(entry.Name, entry.CseID, onem2m.CseType(entry.CseType))
		switch onem2m.StatusCode(resp.RSC()) {
		case onem2m.StatusOK:
			logger.Info().Str("cse", entry.Name).Msg("cse provisioned")
		case onem2m.StatusAlreadyExists:
			logger.Debug().Str("cse", entry.Name).Msg("cse already provisioned")
		default:
			return fmt.Errorf("failed to provision cse %s: %s", entry.Name, resp.RSC())
		}
	}
	return nil
}

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Provision a CSE in the data store",
	Long: `Provision creates a cseBase directly in the data store, outside the
normal request path. Run it before starting the daemon, or ship a
provisioning file and let serve do it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: cfg.LogJSON})

		name, _ := cmd.Flags().GetString("name")
		cseID, _ := cmd.Flags().GetString("cse-id")
		cseType, _ := cmd.Flags().GetString("cse-type")

		store, err := tree.NewBoltTree(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open data store: %w", err)
		}
		defer store.Close()

		processor := rest.NewProcessor(rest.Config{
			Store:  store,
			Locker: lock.NewLocker(),
		})
		resp := processor.ProvisionCse(name, cseID, onem2m.CseType(cseType))
		if onem2m.StatusCode(resp.RSC()) != onem2m.StatusOK {
			return fmt.Errorf("provisioning failed: %s %s",
				resp.RSC(), resp.Attr(primitives.Content))
		}
		fmt.Printf("✓ CSE %s provisioned (cseId %s)\n", name, cseID)
		return nil
	},
}
