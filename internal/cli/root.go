package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/sticktoon/go-invoice/internal/config"
	"github.com/sticktoon/go-invoice/invoice"
)

var (
	version = "dev"
	commit  = "none"
)

// Options replaces parts of the pipeline built from config. Nil fields use
// the configured implementation.
type Options struct {
	Source     invoice.Source
	Rasterizer invoice.Rasterizer
	Printer    invoice.Printer
}

type rootFlags struct {
	configPath string
	debug      bool
}

// env is shared by subcommands to load config and wire the service.
type env struct {
	opts  Options
	flags *rootFlags
}

func newRootCmd(opts Options) *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "invoicedoc",
		Short:         "Render, print and export storefront invoices",
		Long:          "invoicedoc fetches invoices from the storefront API and turns them into pages, PDFs and spreadsheets.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default "+config.DefaultFile+")")
	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "log debug output")

	e := &env{opts: opts, flags: flags}
	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd(e))
	cmd.AddCommand(newExportCmd(e))
	cmd.AddCommand(newPrintCmd(e))
	cmd.AddCommand(newHistoryCmd(e))
	cmd.AddCommand(newDownloadCmd(e))
	cmd.AddCommand(newPruneCmd(e))
	return cmd
}

// NewRootCmd returns the invoicedoc root command wired with opts.
func NewRootCmd(opts Options) *cobra.Command {
	return newRootCmd(opts)
}

// NewRootCmdForTest returns the root command for testing.
func NewRootCmdForTest(opts Options) *cobra.Command {
	return newRootCmd(opts)
}

func Execute() error {
	return newRootCmd(Options{}).Execute()
}

func (e *env) config() (config.Config, error) {
	cfg, err := config.Load(e.flags.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if e.flags.debug {
		cfg.Debug = true
	}
	return cfg, nil
}

func (e *env) open(cmd *cobra.Command) (*app, error) {
	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	logger := newLogger("invoicedoc", cmd.ErrOrStderr(), cfg.Debug)
	return newApp(cmd.Context(), cfg, e.opts, logger)
}

// auth resolves the caller's credentials from --token, falling back to the
// configured token. Tokens signed with the configured secret are verified.
func (a *app) auth(token string) (invoice.AuthContext, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		token = strings.TrimSpace(a.cfg.Source.Token)
	}
	if token == "" {
		return invoice.AuthContext{}, nil
	}
	return invoice.ParseVerifiedAuthorization("Bearer "+token, []byte(a.cfg.Source.TokenSecret))
}
