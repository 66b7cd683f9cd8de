// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package testing

import (
	"time"
)

const (
	// LongWait is used when something should have already happened, or
	// happens quickly. The long wait is to make sure we don't have
	// spurious failures on slow test machines.
	LongWait = 10 * time.Second

	// ShortWait is a reasonable amount of time to block waiting for
	// something that shouldn't actually happen.
	ShortWait = 50 * time.Millisecond
)
