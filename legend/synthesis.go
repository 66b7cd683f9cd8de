// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package legend

import (
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/fabi200123/legend-juju-libs/core/relation"
	"github.com/fabi200123/legend-juju-libs/reconciler"
)

var logger = loggo.GetLogger("legend.service")

// ServiceConfigsFunc renders the configuration files of a legend core
// service once both backing credential sets are available.
type ServiceConfigsFunc func(db *DBCredentials, gitlab *GitlabCredentials) (*reconciler.ConfigSet, error)

// CoreServiceSynthesis returns the configuration synthesis for a
// legend core service charm (engine, sdlc, studio). Until both the
// database manager and the gitlab integrator have provided complete
// credentials on the named relations it reports a not yet available
// error, which the reconciler surfaces as a waiting status.
func CoreServiceSynthesis(dbRelation, gitlabRelation string, render ServiceConfigsFunc) reconciler.SynthesisFunc {
	return func(credentials map[string]relation.Settings) (*reconciler.ConfigSet, error) {
		db, err := ParseDBCredentials(credentials[dbRelation])
		if err != nil {
			logger.Debugf("no usable credentials on %q yet: %v", dbRelation, err)
			return nil, errors.NotYetAvailablef("Missing params")
		}
		gitlab, err := ParseGitlabCredentials(credentials[gitlabRelation])
		if err != nil {
			logger.Debugf("no usable credentials on %q yet: %v", gitlabRelation, err)
			return nil, errors.NotYetAvailablef("Missing params")
		}
		configs, err := render(db, gitlab)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return configs, nil
	}
}
