// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package testing

import (
	"regexp"

	gc "gopkg.in/check.v1"
)

type bytesToStringChecker struct {
	*gc.CheckerInfo
}

// BytesToStringMatch compares a []byte against a regular expression by
// converting the bytes to a string first. Handy for asserting on file
// contents captured from a workload container.
var BytesToStringMatch gc.Checker = &bytesToStringChecker{
	&gc.CheckerInfo{Name: "BytesToStringMatch", Params: []string{"obtained", "regex"}},
}

func (c *bytesToStringChecker) Check(params []interface{}, names []string) (bool, string) {
	obtained, ok := params[0].([]byte)
	if !ok {
		return false, "obtained value is not a []byte"
	}
	expr, ok := params[1].(string)
	if !ok {
		return false, "regex must be a string"
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return false, "regex does not compile: " + err.Error()
	}
	return re.Match(obtained), ""
}
