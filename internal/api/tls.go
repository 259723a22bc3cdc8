package api

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// TLSOptions configures certificate checks for https base URLs. The zero
// value uses the system roots and no client certificate.
type TLSOptions struct {
	// CAFile is a PEM bundle trusted in addition to the system roots.
	CAFile string
	// CertFile and KeyFile hold a client certificate for mutual TLS. Both
	// must be set or both empty.
	CertFile string
	KeyFile  string
}

func (o TLSOptions) empty() bool {
	return o.CAFile == "" && o.CertFile == "" && o.KeyFile == ""
}

// Config builds the client TLS configuration. It returns nil for the zero
// value.
func (o TLSOptions) Config() (*tls.Config, error) {
	if o.empty() {
		return nil, nil
	}

	cfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if o.CAFile != "" {
		pem, err := os.ReadFile(o.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil {
			pool = x509.NewCertPool()
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", o.CAFile)
		}
		cfg.RootCAs = pool
	}

	if (o.CertFile == "") != (o.KeyFile == "") {
		return nil, fmt.Errorf("client certificate and key must be set together")
	}
	if o.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(o.CertFile, o.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return cfg, nil
}
