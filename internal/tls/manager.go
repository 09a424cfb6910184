package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"lisst-auth/internal/util"
)

// Manager resolves serving certificates: autocert in production, file-based
// certs when configured, a generated self-signed cert as the dev fallback.
type Manager struct {
	config   *Config
	autoCert *autocert.Manager

	devCert *tls.Certificate
}

type Config struct {
	AutoCert    bool
	Domain      string
	CertFile    string
	KeyFile     string
	AutoCertDir string
	Email       string
}

func NewManager(config *Config) *Manager {
	m := &Manager{config: config}

	if config.AutoCert {
		if err := os.MkdirAll(config.AutoCertDir, 0700); err != nil {
			util.Warn("Could not create autocert directory", zap.Error(err))
		} else {
			m.autoCert = &autocert.Manager{
				Prompt:     autocert.AcceptTOS,
				HostPolicy: autocert.HostWhitelist(config.Domain),
				Cache:      autocert.DirCache(config.AutoCertDir),
				Email:      config.Email,
			}
			util.Info("AutoCert configured",
				zap.String("domain", config.Domain),
				zap.String("cache_dir", config.AutoCertDir),
			)
		}
	}

	return m
}

func (m *Manager) GetTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: m.GetCertificate,
	}
}

func (m *Manager) GetAutocertManager() *autocert.Manager {
	return m.autoCert
}

func (m *Manager) GetCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	if m.autoCert != nil {
		if cert, err := m.autoCert.GetCertificate(hello); err == nil {
			return cert, nil
		}
	}

	if m.config.CertFile != "" && m.config.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(m.config.CertFile, m.config.KeyFile)
		if err == nil {
			return &cert, nil
		}
		util.Warn("Failed to load configured certificate, falling back to self-signed",
			zap.Error(err))
	}

	return m.selfSignedCert()
}

// selfSignedCert generates (once) an in-memory ECDSA certificate for local
// development.
func (m *Manager) selfSignedCert() (*tls.Certificate, error) {
	if m.devCert != nil {
		return m.devCert, nil
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate dev key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial: %w", err)
	}

	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"Lisst Auth Development"}},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{m.config.Domain, "localhost"},
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create dev certificate: %w", err)
	}

	m.devCert = &tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
	}

	util.Info("Generated self-signed dev certificate", zap.String("domain", m.config.Domain))
	return m.devCert, nil
}
