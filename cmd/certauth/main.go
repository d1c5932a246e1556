package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	vault "github.com/hashicorp/vault/api"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jmerrifield20/certauth/pkg/api"
	"github.com/jmerrifield20/certauth/pkg/client"
	"github.com/jmerrifield20/certauth/pkg/client/vaultapi"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

var (
	cfgFile string
	logger  = zap.NewNop()
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "certauth",
	Short: "Manage and use TLS certificate authentication",
	Long: `certauth manages trusted certificates, CRLs and settings of the TLS
certificate auth method, and logs in with a client certificate.

Connection settings come from flags, the environment (VAULT_ADDR,
VAULT_TOKEN, VAULT_NAMESPACE, VAULT_CACERT, VAULT_CLIENT_CERT,
VAULT_CLIENT_KEY, VAULT_SKIP_VERIFY) or ~/.certauth/config.yaml.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".certauth"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return fmt.Errorf("read config %q: %w", cfgFile, err)
			}
		}

		var err error
		if viper.GetBool("verbose") {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ~/.certauth/config.yaml)")
	pf.String("address", "https://127.0.0.1:8200", "server address")
	pf.String("mount", "cert", "mount path of the cert auth method")
	pf.String("cert-dir", "", "directory holding cert.pem, key.pem and ca.pem")
	pf.String("transport", "http", "request transport: http or vaultapi")
	pf.String("format", "text", "output format: text or json")
	pf.Duration("timeout", 30*time.Second, "per-request timeout")
	pf.Bool("verbose", false, "log requests at debug level")

	for _, name := range []string{"address", "mount", "cert-dir", "transport", "format", "timeout", "verbose"} {
		_ = viper.BindPFlag(strings.ReplaceAll(name, "-", "_"), pf.Lookup(name))
	}
	for key, env := range map[string]string{
		"address":     "VAULT_ADDR",
		"token":       "VAULT_TOKEN",
		"namespace":   "VAULT_NAMESPACE",
		"cacert":      "VAULT_CACERT",
		"client_cert": "VAULT_CLIENT_CERT",
		"client_key":  "VAULT_CLIENT_KEY",
		"skip_verify": "VAULT_SKIP_VERIFY",
	} {
		_ = viper.BindEnv(key, env)
	}

	rootCmd.AddCommand(configCmd, loginCmd, roleCmd, crlCmd, devCmd, versionCmd)
}

// newClient builds the transport selected by --transport.
func newClient() (api.Client, error) {
	switch t := viper.GetString("transport"); t {
	case "http", "":
		return newHTTPClient()
	case "vaultapi":
		return newVaultClient()
	default:
		return nil, fmt.Errorf("unknown transport %q (want http or vaultapi)", t)
	}
}

// certFiles resolves the client certificate files from --cert-dir or the
// VAULT_CLIENT_* variables.
func certFiles() (certFile, keyFile, caFile string) {
	caFile = viper.GetString("cacert")
	if dir := viper.GetString("cert_dir"); dir != "" {
		certFile, keyFile = filepath.Join(dir, "cert.pem"), filepath.Join(dir, "key.pem")
		if caFile == "" {
			if _, err := os.Stat(filepath.Join(dir, "ca.pem")); err == nil {
				caFile = filepath.Join(dir, "ca.pem")
			}
		}
		return certFile, keyFile, caFile
	}
	return viper.GetString("client_cert"), viper.GetString("client_key"), caFile
}

func newHTTPClient() (*client.Client, error) {
	opts := []client.Option{
		client.WithLogger(logger),
		client.WithTimeout(viper.GetDuration("timeout")),
		client.WithToken(viper.GetString("token")),
		client.WithNamespace(viper.GetString("namespace")),
	}
	certFile, keyFile, caFile := certFiles()
	switch {
	case certFile != "" && keyFile != "":
		opts = append(opts, client.WithCertFiles(certFile, keyFile, caFile))
	case caFile != "":
		opts = append(opts, client.WithCACertFile(caFile))
	}
	if viper.GetBool("skip_verify") {
		opts = append(opts, client.WithInsecureSkipVerify())
	}
	return client.New(viper.GetString("address"), opts...)
}

func newVaultClient() (*vaultapi.Client, error) {
	cfg := vault.DefaultConfig()
	if cfg.Error != nil {
		return nil, fmt.Errorf("read vault environment: %w", cfg.Error)
	}
	cfg.Address = viper.GetString("address")
	cfg.Timeout = viper.GetDuration("timeout")

	certFile, keyFile, caFile := certFiles()
	err := cfg.ConfigureTLS(&vault.TLSConfig{
		CACert:     caFile,
		ClientCert: certFile,
		ClientKey:  keyFile,
		Insecure:   viper.GetBool("skip_verify"),
	})
	if err != nil {
		return nil, fmt.Errorf("configure TLS: %w", err)
	}

	c, err := vaultapi.NewFromConfig(cfg, vaultapi.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if token := viper.GetString("token"); token != "" {
		c.Vault().SetToken(token)
	}
	if ns := viper.GetString("namespace"); ns != "" {
		c.Vault().SetNamespace(ns)
	}
	return c, nil
}

func mount() string { return viper.GetString("mount") }

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printKeys prints a list result, one name per line in text mode.
func printKeys(keys []string) error {
	if viper.GetString("format") == "json" {
		if keys == nil {
			keys = []string{}
		}
		return printJSON(keys)
	}
	for _, k := range keys {
		fmt.Println(k)
	}
	return nil
}

// readFileArg reads a PEM file flag value; "-" reads stdin.
func readFileArg(path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(b), nil
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the certauth CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("certauth %s\n", version)
	},
}
