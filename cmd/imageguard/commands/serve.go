package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/imageguard/imageguard/pkg/config"
	"github.com/imageguard/imageguard/pkg/logging"
	"github.com/imageguard/imageguard/pkg/metrics"
	"github.com/imageguard/imageguard/pkg/policy"
	"github.com/imageguard/imageguard/pkg/webhooks"
	"github.com/imageguard/imageguard/pkg/webhooks/resource"
)

type probes struct{}

func (probes) IsReady(context.Context) bool { return true }
func (probes) IsLive(context.Context) bool  { return true }

func ServeCommand() *cobra.Command {
	var (
		address       string
		certFile      string
		keyFile       string
		policyFile    string
		loggingFormat string
		strictTags    bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the validating admission webhook server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logging.Setup(loggingFormat); err != nil {
				return err
			}
			logger := logging.WithName("setup")
			compiled, err := loadPolicy(policyFile, strictTags)
			if err != nil {
				return err
			}
			var tlsProvider webhooks.TlsProvider
			if certFile != "" && keyFile != "" {
				tlsProvider = func() ([]byte, []byte, error) {
					cert, err := os.ReadFile(certFile)
					if err != nil {
						return nil, nil, err
					}
					key, err := os.ReadFile(keyFile)
					if err != nil {
						return nil, nil, err
					}
					return cert, key, nil
				}
			}
			registry := prometheus.NewRegistry()
			recorder := metrics.NewRecorder(registry)
			server := webhooks.NewServer(address, tlsProvider, resource.NewHandler(compiled), recorder, registry, probes{})
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			logger.Info("starting server", "address", address, "tls", tlsProvider != nil)
			server.Run(ctx.Done())
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			server.Stop(shutdownCtx)
			return nil
		},
	}
	cmd.Flags().StringVar(&address, "address", config.WebhookServerPort, "Address the admission server listens on.")
	cmd.Flags().StringVar(&certFile, "cert-file", "", "Path to the TLS certificate. Leave empty together with --key-file to serve plain HTTP.")
	cmd.Flags().StringVar(&keyFile, "key-file", "", "Path to the TLS key.")
	cmd.Flags().StringVar(&policyFile, "policy-file", "", "Path to the settings file (JSON or YAML).")
	cmd.Flags().BoolVar(&strictTags, "strict-tags", false, "Validate the syntax of rejected tags at startup.")
	cmd.Flags().StringVar(&loggingFormat, "loggingFormat", logging.TextFormat, "This determines the output format of the logger.")
	if err := cmd.MarkFlagRequired("policy-file"); err != nil {
		panic(err)
	}
	return cmd
}

func loadPolicy(path string, strictTags bool) (*policy.Policy, error) {
	settings, err := policy.Load(path)
	if err != nil {
		return nil, err
	}
	var opts []policy.CompileOption
	if strictTags {
		opts = append(opts, policy.WithStrictTags())
	}
	compiled, err := policy.Compile(settings, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid settings %s: %w", path, err)
	}
	return compiled, nil
}
