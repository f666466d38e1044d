package webhooks

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/imageguard/imageguard/pkg/config"
	"github.com/imageguard/imageguard/pkg/logging"
	"github.com/imageguard/imageguard/pkg/metrics"
	"github.com/imageguard/imageguard/pkg/webhooks/handlers"
)

type Server interface {
	// Run TLS server in separate thread and returns control immediately
	Run(<-chan struct{})
	// Stop TLS server and returns control after the server is shut down
	Stop(context.Context)
}

type server struct {
	server *http.Server
}

// TlsProvider returns the PEM encoded certificate and key the server
// presents. It is called on every TLS handshake, so rotated
// certificates are picked up without a restart.
type TlsProvider = func() ([]byte, []byte, error)

type Probes interface {
	IsReady(context.Context) bool
	IsLive(context.Context) bool
}

// NewServer creates new instance of server accordingly to given configuration
func NewServer(
	addr string,
	tlsProvider TlsProvider,
	validationHandler handlers.AdmissionHandler,
	recorder *metrics.Recorder,
	registry *prometheus.Registry,
	probes Probes,
) Server {
	resourceLogger := logging.WithName("resource")
	mux := httprouter.New()
	mux.HandlerFunc(
		"POST",
		config.ValidatingWebhookServicePath,
		validationHandler.
			WithMetrics(recorder).
			WithAdmission(resourceLogger.WithName("validate")),
	)
	mux.HandlerFunc("GET", config.LivenessServicePath, handlers.Probe(probes.IsLive))
	mux.HandlerFunc("GET", config.ReadinessServicePath, handlers.Probe(probes.IsReady))
	mux.Handler("GET", config.MetricsServicePath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	var tlsConfig *tls.Config
	if tlsProvider != nil {
		tlsConfig = &tls.Config{
			GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
				certPem, keyPem, err := tlsProvider()
				if err != nil {
					return nil, err
				}
				pair, err := tls.X509KeyPair(certPem, keyPem)
				if err != nil {
					return nil, err
				}
				return &pair, nil
			},
			MinVersion: tls.VersionTLS12,
		}
	}
	return &server{
		server: &http.Server{
			Addr:              addr,
			TLSConfig:         tlsConfig,
			Handler:           mux,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			ReadHeaderTimeout: 30 * time.Second,
			IdleTimeout:       5 * time.Minute,
			ErrorLog:          logging.StdLogger(logging.WithName("server"), ""),
		},
	}
}

func (s *server) Run(stopCh <-chan struct{}) {
	go func() {
		var err error
		if s.server.TLSConfig != nil {
			err = s.server.ListenAndServeTLS("", "")
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logging.Error(err, "failed to start server")
		}
	}()
}

func (s *server) Stop(ctx context.Context) {
	err := s.server.Shutdown(ctx)
	if err != nil {
		err = s.server.Close()
		if err != nil {
			logging.Error(err, "failed to stop server")
		}
	}
}
