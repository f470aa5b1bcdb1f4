package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/jmcleod/keyrelay/api"
	"github.com/jmcleod/keyrelay/envelope"
	"github.com/jmcleod/keyrelay/internal/util"
	"github.com/jmcleod/keyrelay/provider"
	"github.com/jmcleod/keyrelay/session"
	bboltstorage "github.com/jmcleod/keyrelay/storage/bbolt"
)

// Required process secrets. Both are supplied out-of-band and are never
// logged; they are moved into memguard enclaves at startup.
const (
	envMasterSecret  = "KEYRELAY_MASTER_SECRET"
	envSessionSecret = "KEYRELAY_SESSION_SECRET"
)

var (
	port        int
	upstreamURL string
	dataDir     string
	tlsCert     string
	tlsKey      string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the relay server",
	RunE: func(cmd *cobra.Command, args []string) error {
		masterSecret := os.Getenv(envMasterSecret)
		if masterSecret == "" {
			return fmt.Errorf("%s must be set", envMasterSecret)
		}
		sessionSecret := os.Getenv(envSessionSecret)
		if sessionSecret == "" {
			return fmt.Errorf("%s must be set", envSessionSecret)
		}
		if masterSecret == sessionSecret {
			return errors.New("master and session secrets must be distinct")
		}

		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		auditStore, err := bboltstorage.NewStoreFromFile(dataDir+"/audit.db", nil)
		if err != nil {
			return fmt.Errorf("failed to open audit storage: %w", err)
		}
		defer auditStore.Close()

		sealer := envelope.NewSealer([]byte(masterSecret))
		sessions := session.NewService([]byte(sessionSecret))
		upstream := provider.NewClient(upstreamURL)

		a := api.New(sealer, sessions, upstream, api.WithAuditStore(auditStore))

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)
		r.Use(api.SecurityHeaders)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		r.Mount("/api/v1", a.Router())

		var tlsConfig *tls.Config
		if tlsCert != "" && tlsKey != "" {
			cert, err := tls.LoadX509KeyPair(tlsCert, tlsKey)
			if err != nil {
				return fmt.Errorf("failed to load TLS key pair: %w", err)
			}
			tlsConfig = &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			}
		} else {
			cert, err := util.GenerateSelfSignedCert()
			if err != nil {
				return fmt.Errorf("failed to generate self-signed certificate: %w", err)
			}
			tlsConfig = &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			}
			fmt.Println("Using self-signed runtime generated certificate for TLS")
		}

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			TLSConfig:         tlsConfig,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			// WriteTimeout must exceed the upstream call deadline or it
			// would cut streamed responses short.
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner()
		fmt.Printf("Starting server on port %d (data: %s)...\n", port, dataDir)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().IntVarP(&port, "port", "p", 8443, "Port to listen on")
	serverCmd.Flags().StringVar(&upstreamURL, "upstream", "", "Upstream API base URL (default: the provider's public endpoint)")
	serverCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Directory for persistent data")
	serverCmd.Flags().StringVar(&tlsCert, "tls-cert", "", "Path to TLS certificate file")
	serverCmd.Flags().StringVar(&tlsKey, "tls-key", "", "Path to TLS key file")
}
