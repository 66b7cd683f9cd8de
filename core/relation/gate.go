// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package relation

import (
	"fmt"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
)

// Missing returns the required relation names that have no established
// instance, sorted. An empty result means every required relation is
// satisfied and reconciliation may proceed.
func Missing(required []string, present map[string][]Instance) []string {
	missing := set.NewStrings()
	for _, name := range required {
		if len(present[name]) == 0 {
			missing.Add(name)
		}
	}
	return missing.SortedValues()
}

// One resolves the single instance of the named relation that a charm
// should read from.
//
// With no instance established, One returns a not found error. A
// non-negative relationId selects the instance with that id, or not
// found if no such instance exists. With several instances and no id
// to disambiguate, the outcome depends on tolerateMultiple: when false
// a *TooManyRelatedError is returned; when true the ambiguity is
// tolerated and both results are nil, so the caller can treat the
// relation as not yet usable.
func One(name string, instances []Instance, relationId int, tolerateMultiple bool) (*Instance, error) {
	if relationId >= 0 {
		for _, inst := range instances {
			if inst.Id == relationId {
				found := inst
				return &found, nil
			}
		}
		return nil, errors.NotFoundf("relation %q with id %d", name, relationId)
	}
	switch len(instances) {
	case 0:
		return nil, errors.NotFoundf("relation %q", name)
	case 1:
		found := instances[0]
		return &found, nil
	}
	if tolerateMultiple {
		return nil, nil
	}
	return nil, newTooManyRelatedError(name, len(instances))
}

// TooManyRelatedError is returned by One when more than one application
// is related on a relation the charm can only consume from a single
// remote, and no relation id was supplied to disambiguate.
type TooManyRelatedError struct {
	err string
}

var _ error = &TooManyRelatedError{}

func newTooManyRelatedError(name string, count int) error {
	return &TooManyRelatedError{
		err: fmt.Sprintf("too many applications related on %q: %d", name, count),
	}
}

func (e *TooManyRelatedError) Error() string {
	return e.err
}

// IsTooManyRelated returns true when the supplied error was caused by a
// TooManyRelatedError.
func IsTooManyRelated(err error) bool {
	_, ok := errors.Cause(err).(*TooManyRelatedError)
	return ok
}
