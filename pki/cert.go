// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package pki provides the small amount of certificate plumbing the
// reconciliation core needs: decoding trust material received over
// relations, and re-encoding it for truststore construction.
package pki

import (
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"strings"

	"github.com/juju/errors"
)

// PEMTypeCertificate is the PEM armor type for certificates.
const PEMTypeCertificate = "CERTIFICATE"

// ParseBase64Certificate decodes a base64 payload, as published on a
// relation, into a certificate. The payload may wrap either a PEM
// armored certificate or raw DER bytes; surrounding whitespace is
// tolerated since relation data frequently picks some up in transit.
func ParseBase64Certificate(b64 string) (*x509.Certificate, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return nil, errors.Annotate(err, "decoding base64 certificate")
	}
	cert, err := ParseCertificate(decoded)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return cert, nil
}

// ParseCertificate parses a certificate from either PEM armor or raw
// DER bytes.
func ParseCertificate(data []byte) (*x509.Certificate, error) {
	if block, _ := pem.Decode(data); block != nil {
		if block.Type != PEMTypeCertificate {
			return nil, errors.Errorf("expected %q pem block, got %q", PEMTypeCertificate, block.Type)
		}
		data = block.Bytes
	}
	cert, err := x509.ParseCertificate(data)
	if err != nil {
		return nil, errors.Annotate(err, "parsing certificate")
	}
	return cert, nil
}

// CertificateToPemString returns the PEM encoding of the certificate.
func CertificateToPemString(cert *x509.Certificate) (string, error) {
	if cert == nil {
		return "", errors.NotValidf("nil certificate")
	}
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  PEMTypeCertificate,
		Bytes: cert.Raw,
	})), nil
}

// CertificateToBase64 returns the base64 form of the certificate's PEM
// encoding, the shape trust material takes on the wire.
func CertificateToBase64(cert *x509.Certificate) (string, error) {
	pemStr, err := CertificateToPemString(cert)
	if err != nil {
		return "", errors.Trace(err)
	}
	return base64.StdEncoding.EncodeToString([]byte(pemStr)), nil
}
