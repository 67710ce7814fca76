package mgo

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"os"

	"github.com/youmark/pkcs8"
)

// TLSConfig carries the connection's TLS knobs: whether TLS is required
// (implicit from a non-nil *TLSConfig or a +srv scheme), peer verification,
// CA file, minimum protocol version, plus an optional client certificate/key
// pair for mutual TLS. KeyPassword lets the key file be an encrypted
// PKCS#8 blob.
type TLSConfig struct {
	VerifyPeer  bool // true in DefaultTLSConfig and for a nil *TLSConfig; false (the zero value) skips peer verification
	CAFile      string
	CertFile    string
	KeyFile     string
	KeyPassword string
	MinVersion  uint16 // e.g. tls.VersionTLS12; zero means the stdlib default
}

// DefaultTLSConfig returns the default knob values: peer verification on,
// no client certificate.
func DefaultTLSConfig() *TLSConfig {
	return &TLSConfig{VerifyPeer: true}
}

func (c *TLSConfig) clientConfig() (*tls.Config, error) {
	if c == nil {
		c = DefaultTLSConfig()
	}
	cfg := &tls.Config{
		InsecureSkipVerify: !c.VerifyPeer,
		MinVersion:         c.MinVersion,
	}

	if c.CAFile != "" {
		pemBytes, err := os.ReadFile(c.CAFile)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pemBytes) {
			return nil, &ConfigError{Msg: "no certificates found in CA file " + c.CAFile}
		}
		cfg.RootCAs = pool
	}

	if c.CertFile != "" && c.KeyFile != "" {
		cert, err := loadKeyPair(c.CertFile, c.KeyFile, c.KeyPassword)
		if err != nil {
			return nil, err
		}
		cfg.Certificates = []tls.Certificate{*cert}
	}

	return cfg, nil
}

// loadKeyPair builds a tls.Certificate from a PEM cert file and a PEM key
// file, decrypting the key with pkcs8.ParsePKCS8PrivateKey when password is
// non-empty. This is the one place in this module a build needs to parse
// an encrypted PKCS#8 private key, which the stdlib's crypto/tls and
// crypto/x509 packages cannot do on their own.
func loadKeyPair(certFile, keyFile, password string) (*tls.Certificate, error) {
	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		return nil, err
	}
	keyPEM, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, err
	}

	if password == "" {
		cert, err := tls.X509KeyPair(certPEM, keyPEM)
		if err != nil {
			return nil, err
		}
		return &cert, nil
	}

	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, &ConfigError{Msg: "no PEM block found in key file " + keyFile}
	}
	key, err := pkcs8.ParsePKCS8PrivateKey(block.Bytes, []byte(password))
	if err != nil {
		return nil, &ConfigError{Msg: "decrypting PKCS#8 key: " + err.Error()}
	}

	certBlock, _ := pem.Decode(certPEM)
	if certBlock == nil {
		return nil, &ConfigError{Msg: "no PEM block found in cert file " + certFile}
	}
	certDER, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, err
	}

	cert := &tls.Certificate{
		Certificate: [][]byte{certBlock.Bytes},
		PrivateKey:  key,
		Leaf:        certDER,
	}
	return cert, nil
}
