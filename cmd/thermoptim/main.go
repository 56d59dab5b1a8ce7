package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/Agrid-Dev/thermoptim/cmd/app"
	httpctrl "github.com/Agrid-Dev/thermoptim/internal/controllers/http"
	modbusctrl "github.com/Agrid-Dev/thermoptim/internal/controllers/modbus"
	mqttctrl "github.com/Agrid-Dev/thermoptim/internal/controllers/mqtt"
	"github.com/Agrid-Dev/thermoptim/internal/logger"
	"github.com/Agrid-Dev/thermoptim/internal/pipeline"
	"github.com/Agrid-Dev/thermoptim/internal/run"
	"github.com/Agrid-Dev/thermoptim/internal/store"
)

func main() {
	var (
		configPath string
		serve      bool
	)
	flag.StringVar(&configPath, "config", "config.yaml", "path to config file (.yaml/.yml/.json)")
	flag.BoolVar(&serve, "serve", false, "keep the run available over the enabled controllers")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if serve {
		cfg.Serve = true
	}
	logger.Setup(cfg.Log.Level, cfg.Log.Format)
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}
	pc, err := cfg.Pipeline()
	if err != nil {
		logger.Fatalf("invalid config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	r, err := pipeline.Run(ctx, pc)
	if err != nil {
		logger.Fatalf("run failed: %v", err)
	}
	if err := pipeline.Write(r, cfg.Outputs()); err != nil {
		logger.Errorf("writing outputs: %v", err)
	}
	if cfg.Store.Enabled {
		if err := persist(ctx, cfg.StoreConfig(), r); err != nil {
			logger.Errorf("storing run: %v", err)
		}
	}

	if !cfg.Serve {
		return
	}
	if err := serveRun(ctx, cfg, r); err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("controllers exited: %v", err)
		os.Exit(1)
	}
}

func persist(ctx context.Context, sc store.Config, r *run.Run) error {
	db, err := store.Open(ctx, sc)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}
	return db.SaveRun(ctx, r)
}

// serveRun blocks until ctx is canceled or a controller fails.
func serveRun(ctx context.Context, cfg app.Config, r *run.Run) error {
	g, ctx := errgroup.WithContext(ctx)
	ctrl := cfg.Controllers

	if ctrl.HTTP.Enabled {
		srv := httpctrl.New(r, ctrl.HTTP.Addr)
		g.Go(func() error { return srv.Run(ctx) })
	}
	if ctrl.MQTT.Enabled {
		mc, err := mqttctrl.New(r, cfg.MQTT())
		if err != nil {
			return err
		}
		g.Go(func() error { return mc.Run(ctx) })
	}
	if ctrl.MODBUS.Enabled {
		mb, err := modbusctrl.New(r, cfg.Modbus())
		if err != nil {
			return err
		}
		g.Go(func() error { return mb.Run(ctx) })
	}
	logger.WithRun(r.ID().String()).Info("serving run")
	return g.Wait()
}
