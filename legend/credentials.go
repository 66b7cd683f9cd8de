// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package legend holds the relation data schemas shared by the FINOS
// Legend charms: the mongodb credentials published by the database
// manager, the gitlab application credentials published by the gitlab
// integrator, and the OAuth redirect URIs the core service charms
// announce back. All of it travels as JSON strings inside relation
// settings.
package legend

import (
	"crypto/x509"
	"encoding/json"

	"github.com/juju/errors"

	"github.com/fabi200123/legend-juju-libs/core/relation"
	"github.com/fabi200123/legend-juju-libs/pki"
)

// Relation settings keys used across the legend charm family.
const (
	DBConnectionKey     = "legend-db-connection"
	GitlabConnectionKey = "legend-gitlab-connection"
	RedirectURIsKey     = "legend-gitlab-redirect-uris"
)

// DBCredentials is the mongodb connection data a legend service needs.
type DBCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Database string `json:"database"`
	URI      string `json:"uri"`
}

// Validate returns an error if the credentials are incomplete.
func (creds DBCredentials) Validate() error {
	if creds.Username == "" {
		return errors.NotValidf("db credentials without username")
	}
	if creds.Password == "" {
		return errors.NotValidf("db credentials without password")
	}
	if creds.Database == "" {
		return errors.NotValidf("db credentials without database")
	}
	if creds.URI == "" {
		return errors.NotValidf("db credentials without uri")
	}
	return nil
}

// Settings renders the credentials as relation settings, as published
// by the database manager charm.
func (creds DBCredentials) Settings() (relation.Settings, error) {
	if err := creds.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	data, err := json.Marshal(creds)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return relation.Settings{DBConnectionKey: string(data)}, nil
}

// ParseDBCredentials extracts mongodb credentials from the given
// relation settings. It returns a NotFound error while the relation
// has not published any, and a NotValid error if what it published is
// malformed or incomplete.
func ParseDBCredentials(settings relation.Settings) (*DBCredentials, error) {
	raw, ok := settings[DBConnectionKey]
	if !ok || raw == "" {
		return nil, errors.NotFoundf("legend db connection data")
	}
	var creds DBCredentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return nil, errors.NewNotValid(err, "malformed legend db connection data")
	}
	if err := creds.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &creds, nil
}

// GitlabCredentials is the gitlab application registration data a
// legend service needs for its OAuth flows.
type GitlabCredentials struct {
	Host               string `json:"gitlab_host"`
	Port               int    `json:"gitlab_port"`
	Scheme             string `json:"gitlab_scheme"`
	ClientID           string `json:"client_id"`
	ClientSecret       string `json:"client_secret"`
	OpenIDDiscoveryURL string `json:"openid_discovery_url"`
	HostCertB64        string `json:"gitlab_host_cert_b64"`
}

// Validate returns an error if the credentials are incomplete. The
// host certificate is optional; a gitlab reachable over plain http or
// with a publicly trusted certificate does not publish one.
func (creds GitlabCredentials) Validate() error {
	if creds.Host == "" {
		return errors.NotValidf("gitlab credentials without gitlab_host")
	}
	if creds.Port <= 0 {
		return errors.NotValidf("gitlab credentials port %d", creds.Port)
	}
	if creds.Scheme == "" {
		return errors.NotValidf("gitlab credentials without gitlab_scheme")
	}
	if creds.ClientID == "" {
		return errors.NotValidf("gitlab credentials without client_id")
	}
	if creds.ClientSecret == "" {
		return errors.NotValidf("gitlab credentials without client_secret")
	}
	if creds.OpenIDDiscoveryURL == "" {
		return errors.NotValidf("gitlab credentials without openid_discovery_url")
	}
	return nil
}

// Settings renders the credentials as relation settings, as published
// by the gitlab integrator charm.
func (creds GitlabCredentials) Settings() (relation.Settings, error) {
	if err := creds.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	data, err := json.Marshal(creds)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return relation.Settings{GitlabConnectionKey: string(data)}, nil
}

// Certificate returns the gitlab host certificate, or nil if the
// integrator did not publish one.
func (creds GitlabCredentials) Certificate() (*x509.Certificate, error) {
	if creds.HostCertB64 == "" {
		return nil, nil
	}
	cert, err := pki.ParseBase64Certificate(creds.HostCertB64)
	if err != nil {
		return nil, errors.Annotate(err, "gitlab host certificate")
	}
	return cert, nil
}

// ParseGitlabCredentials extracts gitlab application credentials from
// the given relation settings. It returns a NotFound error while the
// relation has not published any, and a NotValid error if what it
// published is malformed or incomplete.
func ParseGitlabCredentials(settings relation.Settings) (*GitlabCredentials, error) {
	raw, ok := settings[GitlabConnectionKey]
	if !ok || raw == "" {
		return nil, errors.NotFoundf("legend gitlab connection data")
	}
	var creds GitlabCredentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return nil, errors.NewNotValid(err, "malformed legend gitlab connection data")
	}
	if err := creds.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &creds, nil
}

// RedirectURIsSettings renders the given OAuth redirect URIs as
// relation settings for publication towards the gitlab integrator.
func RedirectURIsSettings(uris []string) (relation.Settings, error) {
	data, err := json.Marshal(uris)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return relation.Settings{RedirectURIsKey: string(data)}, nil
}

// ParseRedirectURIs extracts the OAuth redirect URIs a core service
// charm announced on its gitlab relation.
func ParseRedirectURIs(settings relation.Settings) ([]string, error) {
	raw, ok := settings[RedirectURIsKey]
	if !ok || raw == "" {
		return nil, errors.NotFoundf("legend gitlab redirect uris")
	}
	var uris []string
	if err := json.Unmarshal([]byte(raw), &uris); err != nil {
		return nil, errors.NewNotValid(err, "malformed legend gitlab redirect uris")
	}
	return uris, nil
}
