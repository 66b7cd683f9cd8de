// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package testcharms provides ready-made charm specs for exercising
// the reconciler through the test harness: a minimal standalone charm,
// and a core service charm wired the way the legend engine, sdlc and
// studio charms are.
package testcharms

import (
	"crypto/x509"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/schema"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"
	"gopkg.in/juju/environschema.v1"

	"github.com/fabi200123/legend-juju-libs/charm"
	"github.com/fabi200123/legend-juju-libs/core/config"
	"github.com/fabi200123/legend-juju-libs/core/relation"
	"github.com/fabi200123/legend-juju-libs/harness"
	"github.com/fabi200123/legend-juju-libs/legend"
	pkitesting "github.com/fabi200123/legend-juju-libs/pki/testing"
	"github.com/fabi200123/legend-juju-libs/reconciler"
	"github.com/fabi200123/legend-juju-libs/truststore"
)

// Fixed paths and payloads used by the sample charm.
const (
	SampleJSONPath    = "/legend-test-1.json"
	SampleJSONContent = `{"some": "json"}`
	SampleINIPath     = "/legend-test-2.ini"
	SampleINIContent  = "[section]\nwith_some = options"

	SampleTruststorePath       = "/truststore.jks"
	SampleTruststorePassphrase = "legend-test"
	SampleTruststoreAlias      = "testing-cert-1"
)

const sampleMetaYAML = `
name: legend-test
summary: Minimal charm exercising the legend operator libraries.
description: |
  Declares two required relations and a single workload service, with
  static configuration files and trust material.
requires:
  legend-test-rel-1:
    interface: legend_test_1
  legend-test-rel-2:
    interface: legend_test_2
container: legend
services:
  - legend-test-service
`

func sampleLayer() charm.Layer {
	return charm.Layer{
		Summary: "legend test layer",
		Services: map[string]charm.ServiceSpec{
			"legend-test-service": {
				Override: charm.OverrideReplace,
				Summary:  "legend test service",
				Command:  "bash -c 'echo yes'",
				Startup:  charm.StartupEnabled,
			},
		},
	}
}

func readMeta(c *gc.C, metaYAML string) *charm.Meta {
	meta, err := charm.ReadMeta(strings.NewReader(metaYAML))
	c.Assert(err, jc.ErrorIsNil)
	return meta
}

// Sample returns the spec of a minimal charm: two required relations,
// fixed configuration files, a fixed trust store, and one service.
func Sample(c *gc.C) harness.Spec {
	cert := pkitesting.Cert(c)
	return harness.Spec{
		Meta: readMeta(c, sampleMetaYAML),
		Synthesize: func(*config.Config, map[string]relation.Settings) (*reconciler.ConfigSet, error) {
			configs := reconciler.NewConfigSet()
			configs.Add(SampleJSONPath, []byte(SampleJSONContent))
			configs.Add(SampleINIPath, []byte(SampleINIContent))
			return configs, nil
		},
		TrustPreferences: func(*config.Config, map[string]relation.Settings) (*truststore.Preferences, error) {
			return &truststore.Preferences{
				Path:       SampleTruststorePath,
				Passphrase: SampleTruststorePassphrase,
				Certificates: map[string]*x509.Certificate{
					SampleTruststoreAlias: cert,
				},
			}, nil
		},
		Layers: map[string]charm.Layer{"legend-test": sampleLayer()},
	}
}

// Names and paths used by the core service charm.
const (
	CoreServiceDBRelation     = "legend-db"
	CoreServiceGitlabRelation = "legend-gitlab"
	CoreServiceConfigPath     = "/core-service-config.json"

	CoreServiceTruststorePath       = "/truststore.jks"
	CoreServiceTruststorePassphrase = "legend-test"
	CoreServiceGitlabCertAlias      = "gitlab-host-cert"
)

const coreServiceMetaYAML = `
name: legend-sdlc
summary: Core legend service charm used in tests.
description: |
  Consumes mongodb credentials from the database manager and OAuth
  application credentials from the gitlab integrator, and announces
  its redirect URIs back to the integrator.
requires:
  legend-db:
    interface: legend_db
  legend-gitlab:
    interface: legend_gitlab
container: legend
services:
  - legend-sdlc-service
`

func coreServiceLayer() charm.Layer {
	return charm.Layer{
		Summary: "legend sdlc layer",
		Services: map[string]charm.ServiceSpec{
			"legend-sdlc-service": {
				Override: charm.OverrideReplace,
				Summary:  "legend sdlc service",
				Command:  "bash -c 'java -jar /sdlc.jar server /core-service-config.json'",
				Startup:  charm.StartupEnabled,
			},
		},
	}
}

// CoreServiceConfig is the shape of the configuration file the core
// service charm renders once its relations have provided credentials.
type CoreServiceConfig struct {
	DatabaseURI  string `json:"database_uri"`
	DatabaseName string `json:"database_name"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	DiscoveryURL string `json:"openid_discovery_url"`
}

// CoreService returns the spec of a charm wired the way the legend
// core service charms are: configuration synthesized from mongodb and
// gitlab credentials, gitlab redirect URIs announced on the integrator
// relation, and the gitlab host certificate provisioned into a JKS
// trust store.
func CoreService(c *gc.C) harness.Spec {
	synthesize := legend.CoreServiceSynthesis(CoreServiceDBRelation, CoreServiceGitlabRelation,
		func(db *legend.DBCredentials, gitlab *legend.GitlabCredentials) (*reconciler.ConfigSet, error) {
			payload, err := json.Marshal(CoreServiceConfig{
				DatabaseURI:  db.URI,
				DatabaseName: db.Database,
				ClientID:     gitlab.ClientID,
				ClientSecret: gitlab.ClientSecret,
				DiscoveryURL: gitlab.OpenIDDiscoveryURL,
			})
			if err != nil {
				return nil, errors.Trace(err)
			}
			configs := reconciler.NewConfigSet()
			configs.Add(CoreServiceConfigPath, payload)
			return configs, nil
		})
	return harness.Spec{
		Meta: readMeta(c, coreServiceMetaYAML),
		ConfigFields: environschema.Fields{
			"external-hostname": environschema.Attr{
				Description: "The hostname this service advertises in its OAuth redirect URIs.",
				Type:        environschema.Tstring,
			},
		},
		ConfigDefaults: schema.Defaults{
			"external-hostname": "service.legend",
		},
		Synthesize: func(_ *config.Config, credentials map[string]relation.Settings) (*reconciler.ConfigSet, error) {
			return synthesize(credentials)
		},
		TrustPreferences: func(_ *config.Config, credentials map[string]relation.Settings) (*truststore.Preferences, error) {
			gitlab, err := legend.ParseGitlabCredentials(credentials[CoreServiceGitlabRelation])
			if err != nil {
				return nil, nil
			}
			cert, err := gitlab.Certificate()
			if err != nil {
				return nil, errors.Trace(err)
			}
			if cert == nil {
				return nil, nil
			}
			return &truststore.Preferences{
				Path:       CoreServiceTruststorePath,
				Passphrase: CoreServiceTruststorePassphrase,
				Certificates: map[string]*x509.Certificate{
					CoreServiceGitlabCertAlias: cert,
				},
			}, nil
		},
		Publications: []harness.Publication{{
			Relation: CoreServiceGitlabRelation,
			Derive: func(cfg *config.Config) (relation.Settings, error) {
				host, _ := cfg.String("external-hostname")
				return legend.RedirectURIsSettings([]string{
					fmt.Sprintf("http://%s:443/callback", host),
				})
			},
		}},
		Layers: map[string]charm.Layer{"legend-sdlc": coreServiceLayer()},
	}
}
