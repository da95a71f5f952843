// Command susgo checks, downloads and decrypts firmware from the vendor
// firmware update service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mattchengg/susgo/internal/config"
	"github.com/mattchengg/susgo/internal/logging"
)

type app struct {
	cfg config.Config
	log *slog.Logger

	configPath string
	verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", describe(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "susgo",
		Short:         "Samsung firmware downloader",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", config.DefaultPath(), "config file")
	pf.StringP("model", "m", "", "device model (e.g. SM-G998B)")
	pf.StringP("region", "r", "", "device region code (e.g. EUX, XAR)")
	pf.StringP("imei", "i", "", "device IMEI (15 digits) or a prefix of at least 8 digits")
	pf.StringP("serial", "s", "", "device serial number, for devices without IMEI")
	pf.Int("chunk-size", 0, "decryption chunk size in bytes, a multiple of 16")
	pf.Int("workers", 0, "decrypt chunks on this many goroutines")
	pf.BoolVarP(&a.verbose, "verbose", "d", false, "debug logging")

	root.AddCommand(a.checkUpdateCmd(), a.downloadCmd(), a.decryptCmd())
	return root
}

// setup merges the config file with the flags that were set explicitly.
func (a *app) setup(cmd *cobra.Command) error {
	path, required := a.configPath, cmd.Flags().Changed("config")
	if env, ok := os.LookupEnv("SUSGO_CONFIG"); ok && !required {
		path, required = env, true
	}
	cfg, err := config.Load(path, required)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	for name, dst := range map[string]*string{
		"model":  &cfg.Model,
		"region": &cfg.Region,
		"imei":   &cfg.IMEI,
		"serial": &cfg.Serial,
	} {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	for name, dst := range map[string]*int{
		"chunk-size": &cfg.ChunkSize,
		"workers":    &cfg.Workers,
	} {
		if flags.Changed(name) {
			*dst, _ = flags.GetInt(name)
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if a.verbose {
		cfg.LogLevel = "debug"
	}

	a.cfg = cfg
	a.log = logging.New(os.Stderr, logging.ParseLevel(cfg.LogLevel), cfg.NoColor)
	slog.SetDefault(a.log)
	return nil
}

func (a *app) requireDevice() error {
	if a.cfg.Model == "" || a.cfg.Region == "" {
		return errors.New("model (-m) and region (-r) are required")
	}
	return nil
}
