package client

import (
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
)

// CertBundle holds the PEM-encoded material a client logs in with.
type CertBundle struct {
	// CertPEM is the client certificate presented during the TLS handshake.
	CertPEM string

	// PrivateKeyPEM is the key for CertPEM. Keep this secret.
	PrivateKeyPEM string

	// CAPEM verifies the server certificate. Empty means the system roots.
	CAPEM string
}

// LoadCertBundle reads cert.pem, key.pem and the optional ca.pem from dir.
func LoadCertBundle(dir string) (*CertBundle, error) {
	ca := filepath.Join(dir, "ca.pem")
	if _, err := os.Stat(ca); os.IsNotExist(err) {
		ca = ""
	}
	return LoadCertFiles(filepath.Join(dir, "cert.pem"), filepath.Join(dir, "key.pem"), ca)
}

// LoadCertFiles reads a bundle from individual files. caFile may be empty.
func LoadCertFiles(certFile, keyFile, caFile string) (*CertBundle, error) {
	read := func(name string) (string, error) {
		if name == "" {
			return "", nil
		}
		b, err := os.ReadFile(name)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", filepath.Base(name), err)
		}
		return string(b), nil
	}

	cert, err := read(certFile)
	if err != nil {
		return nil, err
	}
	key, err := read(keyFile)
	if err != nil {
		return nil, err
	}
	ca, err := read(caFile)
	if err != nil {
		return nil, err
	}
	return &CertBundle{CertPEM: cert, PrivateKeyPEM: key, CAPEM: ca}, nil
}

// WithCertDir loads the bundle in dir and configures mTLS with it:
//
//	c, err := client.New(addr,
//	    client.WithCertDir(certDir),
//	    client.WithRateLimit(10, 5),
//	)
func WithCertDir(dir string) Option {
	return func(c *Client) error {
		bundle, err := LoadCertBundle(dir)
		if err != nil {
			return fmt.Errorf("load cert bundle from %q: %w", dir, err)
		}
		return WithMTLS(bundle.CertPEM, bundle.PrivateKeyPEM, bundle.CAPEM)(c)
	}
}

// WithCertFiles is WithCertDir for files in arbitrary locations, such as
// those named by VAULT_CLIENT_CERT, VAULT_CLIENT_KEY and VAULT_CACERT.
func WithCertFiles(certFile, keyFile, caFile string) Option {
	return func(c *Client) error {
		bundle, err := LoadCertFiles(certFile, keyFile, caFile)
		if err != nil {
			return fmt.Errorf("load client certificate: %w", err)
		}
		return WithMTLS(bundle.CertPEM, bundle.PrivateKeyPEM, bundle.CAPEM)(c)
	}
}

// WithCACertFile trusts the PEM certificates in file for the server.
func WithCACertFile(file string) Option {
	return func(c *Client) error {
		b, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read CA cert: %w", err)
		}
		return WithCACert(string(b))(c)
	}
}

func certPool(caPEM string) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM([]byte(caPEM)) {
		return nil, fmt.Errorf("failed to parse CA certificate PEM")
	}
	return pool, nil
}
