// Command reactorfsd runs the static-file reactor server: it builds a
// config.Config from flags/env/config-file via pflag+viper, wires a zerolog
// logger, and drives internal/orchestrator.Server until SIGINT/SIGTERM
// (spec §4.9, §6 CLI surface).
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kestrelhttp/reactorfs/internal/config"
	"github.com/kestrelhttp/reactorfs/internal/logging"
	"github.com/kestrelhttp/reactorfs/internal/orchestrator"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "reactorfsd:", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("reactorfsd", pflag.ContinueOnError)
	flags.String("address", "0.0.0.0", "listen address")
	flags.Int("port", 8080, "HTTP listen port")
	flags.Int("https-port", 8443, "HTTPS listen port (used when --secure is set)")
	flags.String("root", "www", "static file root directory")
	flags.Int("workers", 1, "number of worker reactors")
	flags.Int("max-conn", 255, "maximum concurrent connections")
	flags.Int("backlog", 255, "listen backlog")
	flags.Bool("v6", false, "bind as IPv6 instead of IPv4")
	flags.Bool("secure", false, "also bind an HTTPS listener alongside HTTP")
	flags.String("certificate", "fullchain.pem", "TLS certificate file (PEM)")
	flags.String("private-key", "privkey.pem", "TLS private key file (PEM)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("config", "", "path to a config file (toml/yaml/json)")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	v := viper.New()
	v.SetEnvPrefix("REACTORFSD")
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}
	if cfgFile, _ := flags.GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
	}

	level, err := zerolog.ParseLevel(v.GetString("log-level"))
	if err != nil {
		return fmt.Errorf("log-level: %w", err)
	}
	log := logging.New(level)

	cfg := buildConfig(v)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	srv, err := orchestrator.New(cfg, log)
	if err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("shutdown signal received")
		srv.Stop()
	}()

	log.Info().
		Int("workers", cfg.WorkerCount).
		Int("listeners", len(cfg.Listeners)).
		Msg("reactorfsd starting")
	srv.Run()
	log.Info().Msg("reactorfsd stopped")
	return nil
}

// buildConfig always binds a plain-HTTP listener, and additionally binds an
// HTTPS listener when --secure is set — matching the original source's
// config_get, which binds HTTP unconditionally and bumps the listener count
// for TLS rather than replacing the HTTP listener with it (spec §6's
// default pairing of http-port=8080/https-port=8443 run simultaneously).
func buildConfig(v *viper.Viper) *config.Config {
	family := config.FamilyV4
	address := v.GetString("address")
	if v.GetBool("v6") {
		family = config.FamilyV6
		if !v.IsSet("address") {
			address = "::"
		}
	}
	root := v.GetString("root")
	listeners := []config.ListenerConfig{
		{
			Family:  family,
			Address: address,
			Port:    v.GetInt("port"),
			Max:     v.GetInt("backlog"),
			Root:    root,
		},
	}
	if v.GetBool("secure") {
		listeners = append(listeners, config.ListenerConfig{
			Family:      family,
			Address:     address,
			Port:        v.GetInt("https-port"),
			Max:         v.GetInt("backlog"),
			Secure:      true,
			Root:        root,
			Certificate: v.GetString("certificate"),
			PrivateKey:  v.GetString("private-key"),
		})
	}
	return &config.Config{
		WorkerCount: v.GetInt("workers"),
		MaxConn:     v.GetInt("max-conn"),
		BufferSize:  1 << 20,
		Listeners:   listeners,
	}
}
