package certstore

import (
	"crypto/x509"
	"encoding/pem"
	"time"
)

// LeafExpiry extracts the expiration time from the leaf certificate in a PEM
// chain. The leaf is the first CERTIFICATE block. Returns zero time if the
// data contains no parseable certificate.
func LeafExpiry(pemData []byte) time.Time {
	rest := pemData
	for {
		block, r := pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type == "CERTIFICATE" {
			if c, err := x509.ParseCertificate(block.Bytes); err == nil {
				return c.NotAfter
			}
		}
		rest = r
	}
	return time.Time{}
}

// LeafDomains returns the common name and DNS SANs of the leaf certificate,
// deduplicated, common name first. Returns nil if the data contains no
// parseable certificate.
func LeafDomains(pemData []byte) []string {
	rest := pemData
	for {
		block, r := pem.Decode(rest)
		if block == nil {
			return nil
		}
		if block.Type == "CERTIFICATE" {
			c, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				rest = r
				continue
			}
			seen := map[string]struct{}{}
			var domains []string
			if cn := c.Subject.CommonName; cn != "" {
				seen[cn] = struct{}{}
				domains = append(domains, cn)
			}
			for _, san := range c.DNSNames {
				if _, ok := seen[san]; !ok {
					seen[san] = struct{}{}
					domains = append(domains, san)
				}
			}
			return domains
		}
		rest = r
	}
}
