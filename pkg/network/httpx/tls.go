package httpx

import "golang.org/x/crypto/acme/autocert"

// TLS gets Let's Encrypt certificates on the fly.
type TLS struct {
	CertManager *autocert.Manager
}

// NewTLSConfig makes a certificate manager that keeps certificates in the cache dir.
// A non-empty host is the only domain it will get a certificate for.
func NewTLSConfig(host, cache string) *TLS {
	m := autocert.Manager{Prompt: autocert.AcceptTOS}
	if cache != "" {
		m.Cache = autocert.DirCache(cache)
	}
	if host != "" {
		m.HostPolicy = autocert.HostWhitelist(host)
	}
	return &TLS{CertManager: &m}
}
