package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/goliatone/go-router"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	invoicehttp "github.com/sticktoon/go-invoice/adapters/http"
	"github.com/sticktoon/go-invoice/adapters/invoiceapi"
	invoicerouter "github.com/sticktoon/go-invoice/adapters/router"
	"github.com/sticktoon/go-invoice/command"
	"github.com/sticktoon/go-invoice/internal/config"
)

const shutdownTimeout = 10 * time.Second

// server is the subset of a transport the serve command drives.
type server interface {
	Serve(addr string) error
	Shutdown(ctx context.Context) error
}

func newServeCmd(e *env) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve invoice pages, downloads and print output over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if port != "" {
				a.cfg.Server.Port = port
			}

			apiCfg := invoiceapi.Config{
				Service:     a.service,
				TokenSecret: a.cfg.Source.TokenSecret,
				BasePath:    a.cfg.Server.BasePath,
				Logger:      a.logger,
			}
			srv := buildServer(a.cfg.Server, apiCfg)

			scheduler, err := scheduleArchivePrune(a)
			if err != nil {
				return err
			}
			if scheduler != nil {
				scheduler.Start()
				defer scheduler.Stop()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			addr := a.cfg.Addr()
			errCh := make(chan error, 1)
			go func() {
				a.logger.Infof("serving invoices on http://%s%s (%s)", addr, a.cfg.Server.BasePath, a.cfg.Server.Transport)
				errCh <- srv.Serve(addr)
			}()

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server error: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			a.logger.Infof("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "override the configured port")
	return cmd
}

func buildServer(cfg config.ServerConfig, apiCfg invoiceapi.Config) server {
	if cfg.Transport == "http" {
		mux := http.NewServeMux()
		invoicehttp.NewHandler(apiCfg).RegisterRoutes(mux)
		return &httpServer{srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}}
	}

	srv := router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		app := fiber.New(fiber.Config{
			AppName:               "invoicedoc",
			DisableStartupMessage: true,
		})
		app.Use(fiberlogger.New(fiberlogger.Config{
			Format: "[${time}] ${status} ${method} ${path} ${latency}\n",
		}))
		app.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowMethods: "GET,OPTIONS",
			AllowHeaders: "Content-Type,Authorization",
		}))
		return app
	})
	invoicerouter.NewHandler(apiCfg).RegisterRoutes(srv.Router())
	return srv
}

// scheduleArchivePrune runs the archive prune handler on its cron schedule.
// It returns nil when archiving is disabled.
func scheduleArchivePrune(a *app) (*cron.Cron, error) {
	if a.cfg.Archive.Dir == "" {
		return nil, nil
	}
	handler := command.NewPruneArchiveHandler(a.service, a.cfg.Archive.Retention)
	if a.cfg.Archive.Schedule != "" {
		handler.Config.Expression = a.cfg.Archive.Schedule
	}

	scheduler := cron.New()
	run := handler.CronHandler()
	if _, err := scheduler.AddFunc(handler.CronOptions().Expression, func() {
		if err := run(); err != nil {
			a.logger.Errorf("archive prune failed: %v", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid archive schedule %q: %w", handler.CronOptions().Expression, err)
	}
	return scheduler, nil
}

// httpServer adapts net/http to the server interface.
type httpServer struct {
	srv *http.Server
}

func (s *httpServer) Serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.srv.Serve(ln)
}

func (s *httpServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
