package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jmerrifield20/certauth/internal/fakevault"
	"github.com/jmerrifield20/certauth/internal/testca"
)

var (
	devListen string
	devToken  string
)

var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "Run an in-memory cert auth server for local development",
	Long: `dev starts a throwaway server with the cert method mounted at --mount.
It creates a CA, a server certificate and a client certificate, and writes
ca.pem, cert.pem and key.pem to --cert-dir so that other commands can talk
to it:

  certauth dev --cert-dir /tmp/certauth &
  export VAULT_ADDR=https://127.0.0.1:8201 VAULT_TOKEN=root
  certauth --cert-dir /tmp/certauth role create web --certificate /tmp/certauth/ca.pem
  certauth --cert-dir /tmp/certauth login web

Nothing is persisted.`,
	Args: cobra.NoArgs,
	RunE: runDev,
}

func init() {
	devCmd.Flags().StringVar(&devListen, "listen", "127.0.0.1:8201", "listen address")
	devCmd.Flags().StringVar(&devToken, "root-token", "root", "token accepted for management calls")
}

func runDev(cmd *cobra.Command, args []string) error {
	dir := viper.GetString("cert_dir")
	if dir == "" {
		return fmt.Errorf("--cert-dir is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create cert dir %q: %w", dir, err)
	}

	ca, err := testca.New("certauth dev CA")
	if err != nil {
		return err
	}
	srvCert, err := ca.IssueServer()
	if err != nil {
		return err
	}
	clientCert, err := ca.IssueClient("dev.localhost")
	if err != nil {
		return err
	}
	for name, content := range map[string]string{
		"ca.pem":   ca.CertPEM(),
		"cert.pem": clientCert.CertPEM,
		"key.pem":  clientCert.KeyPEM,
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}

	tlsCfg, err := ca.ServerTLSConfig(srvCert)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              devListen,
		Handler:           fakevault.New(devToken, logger, mount()).Handler(),
		TLSConfig:         tlsCfg,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServeTLS("", "") }()
	logger.Info("dev server listening",
		zap.String("address", "https://"+devListen),
		zap.String("mount", mount()),
		zap.String("cert_dir", dir),
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-cmd.Context().Done():
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
