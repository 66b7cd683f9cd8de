// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package pki

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
)

// KeyProfile is a convenient way of getting a crypto private key with a
// default set of attributes.
type KeyProfile func() (crypto.Signer, error)

// DefaultKeyProfile is used wherever trust material is generated and
// the caller expressed no preference.
var DefaultKeyProfile KeyProfile = ECDSAP256

// ECDSAP256 returns an ECDSA P-256 private key.
func ECDSAP256() (crypto.Signer, error) {
	return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
}

// RSA2048 returns an RSA 2048 private key.
func RSA2048() (crypto.Signer, error) {
	return rsa.GenerateKey(rand.Reader, 2048)
}
