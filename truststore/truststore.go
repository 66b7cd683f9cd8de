// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package truststore builds the Java keystore (JKS) trust material a
// Legend workload reads its trusted certificates from.
package truststore

import (
	"bytes"
	"crypto/x509"
	"sort"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/pavlo-v-chernykh/keystore-go/v4"
)

// certificateType is the entry type recognised by JKS consumers.
const certificateType = "X509"

// Preferences describes the truststore a charm wants provisioned into
// its workload container.
type Preferences struct {
	// Path is the container path the serialized store is written to.
	Path string

	// Passphrase protects the store. The workload is handed the same
	// passphrase through its service configuration.
	Passphrase string

	// Certificates holds the trusted certificates, keyed by alias.
	Certificates map[string]*x509.Certificate
}

// Validate returns an error if the preferences cannot yield a usable
// truststore. Provisioning must not be attempted with invalid
// preferences.
func (p Preferences) Validate() error {
	if p.Path == "" {
		return errors.NotValidf("empty truststore path")
	}
	if len(p.Certificates) == 0 {
		return errors.NotValidf("truststore preferences without certificates")
	}
	for alias, cert := range p.Certificates {
		if cert == nil {
			return errors.NotValidf("nil certificate for alias %q", alias)
		}
	}
	return nil
}

// Create builds a keystore holding every given certificate as a
// trusted entry. Aliases are added in sorted order and entry creation
// times come from the supplied clock, so the same certificates always
// yield the same store regardless of map iteration order.
func Create(certs map[string]*x509.Certificate, clk clock.Clock) (keystore.KeyStore, error) {
	ks := keystore.New(keystore.WithOrderedAliases())
	aliases := make([]string, 0, len(certs))
	for alias := range certs {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	now := clk.Now()
	for _, alias := range aliases {
		cert := certs[alias]
		if cert == nil {
			return keystore.KeyStore{}, errors.NotValidf("nil certificate for alias %q", alias)
		}
		err := ks.SetTrustedCertificateEntry(alias, keystore.TrustedCertificateEntry{
			CreationTime: now,
			Certificate: keystore.Certificate{
				Type:    certificateType,
				Content: cert.Raw,
			},
		})
		if err != nil {
			return keystore.KeyStore{}, errors.Annotatef(err, "adding certificate %q to trust store", alias)
		}
	}
	return ks, nil
}

// Serialize returns the JKS encoding of the store, protected by the
// given passphrase.
func Serialize(ks keystore.KeyStore, passphrase string) ([]byte, error) {
	var buf bytes.Buffer
	if err := ks.Store(&buf, []byte(passphrase)); err != nil {
		return nil, errors.Annotate(err, "serializing trust store")
	}
	return buf.Bytes(), nil
}
