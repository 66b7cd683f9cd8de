// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package testing generates throwaway trust material for tests.
// Certificates are created on demand rather than checked in, so no
// fixture can ever expire.
package testing

import (
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"time"

	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/fabi200123/legend-juju-libs/pki"
)

// Cert returns a freshly generated self-signed certificate.
func Cert(c *gc.C) *x509.Certificate {
	signer, err := pki.DefaultKeyProfile()
	c.Assert(err, jc.ErrorIsNil)
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 64))
	c.Assert(err, jc.ErrorIsNil)
	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   "legend-test",
			Organization: []string{"FINOS"},
		},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.AddDate(10, 0, 0),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, signer.Public(), signer)
	c.Assert(err, jc.ErrorIsNil)
	cert, err := x509.ParseCertificate(der)
	c.Assert(err, jc.ErrorIsNil)
	return cert
}

// CertBase64 returns a freshly generated self-signed certificate in
// the base64 PEM form trust material takes on the wire.
func CertBase64(c *gc.C) string {
	b64, err := pki.CertificateToBase64(Cert(c))
	c.Assert(err, jc.ErrorIsNil)
	return b64
}
