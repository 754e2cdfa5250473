package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/arcfabric/storecore/internal/config"
	"github.com/arcfabric/storecore/internal/pool"
	"github.com/arcfabric/storecore/internal/transport"
)

const (
	ServiceName      = "storecore"
	ServiceNamespace = "arcfabric"
)

var (
	version        = "0.0.0"
	commit         = "hash"
	commitDate     = time.Now().String()
	branch         = "branch"
	buildTimestamp = ""
)

func Run() error {
	app := &cli.App{
		Name:  ServiceName,
		Usage: "Client library and CLI for the distributed object/KV/DB storage core",
		Commands: []*cli.Command{
			runCmd(),
			pingCmd(),
		},
	}

	return app.Run(os.Args)
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	return config.Load(c.String("config_file"), config.Flags())
}

func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config_file",
			Usage: "Path to the configuration file",
		},
	}
}

// runCmd starts the fx.App that hosts the shared Pool, Registry, and
// façade Clients for the process lifetime, mirroring the teacher's
// serverCmd shape (build app, wait for a signal, drain on shutdown).
func runCmd() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Start the client process, holding the connection pool open",
		Flags:   configFlags(),
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			app := NewApp(cfg)

			if err := app.Start(c.Context); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			slog.Info("STORECORE_SHUTTING_DOWN")
			return app.Stop(context.Background())
		},
	}
}

// pingCmd dials every configured server across all three data planes and
// reports which are reachable, without holding the pool open afterward.
func pingCmd() *cli.Command {
	return &cli.Command{
		Name:  "ping",
		Usage: "Check reachability of every configured object/KV/DB server",
		Flags: configFlags(),
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			log := ProvideLogger()
			dialer := transport.NetDialer{Timeout: cfg.Pool.DialTimeout}
			p := pool.New1(cfg, log, dialer)
			defer p.Shutdown()

			ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
			defer cancel()

			failed := 0
			for _, plane := range []struct {
				kind  pool.Kind
				addrs []string
			}{
				{pool.KindObject, cfg.Servers.Object},
				{pool.KindKV, cfg.Servers.KV},
				{pool.KindDB, cfg.Servers.DB},
			} {
				for i, addr := range plane.addrs {
					ep, err := p.Pop(ctx, plane.kind, i)
					if err != nil {
						failed++
						fmt.Printf("%-6s %-24s unreachable: %v\n", plane.kind, addr, err)
						continue
					}
					fmt.Printf("%-6s %-24s ok\n", plane.kind, addr)
					p.Push(plane.kind, i, ep)
				}
			}
			if failed > 0 {
				return fmt.Errorf("ping: %d server(s) unreachable", failed)
			}
			return nil
		},
	}
}
