// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package hookqueue_test

import (
	"time"

	"github.com/juju/errors"
	gitjujutesting "github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	"github.com/juju/worker/v4/workertest"
	gc "gopkg.in/check.v1"

	"github.com/fabi200123/legend-juju-libs/hook"
	"github.com/fabi200123/legend-juju-libs/hookqueue"
	coretesting "github.com/fabi200123/legend-juju-libs/testing"
)

type HookQueueSuite struct {
	gitjujutesting.IsolationSuite
}

var _ = gc.Suite(&HookQueueSuite{})

func (s *HookQueueSuite) TestValidateConfig(c *gc.C) {
	err := hookqueue.Config{}.Validate()
	c.Check(err, gc.ErrorMatches, "nil Handler not valid")
	err = hookqueue.Config{Handler: func(hook.Info) error { return nil }}.Validate()
	c.Check(err, gc.ErrorMatches, "nil Logger not valid")
}

func (s *HookQueueSuite) TestNewInvalidConfig(c *gc.C) {
	q, err := hookqueue.New(hookqueue.Config{})
	c.Check(err, gc.ErrorMatches, "nil Handler not valid")
	c.Check(q, gc.IsNil)
}

func (s *HookQueueSuite) TestDeliversInOrder(c *gc.C) {
	handled := make(chan hook.Info, 10)
	q, err := hookqueue.New(hookqueue.Config{
		Handler: func(info hook.Info) error {
			handled <- info
			return nil
		},
		Logger: coretesting.NewCheckLogger(c),
	})
	c.Assert(err, jc.ErrorIsNil)
	defer workertest.CleanKill(c, q)

	sent := []hook.Info{
		{Kind: hook.Install},
		{Kind: hook.RelationJoined, RelationName: "legend-db", RelationId: 0, RemoteUnit: "mongodb-k8s/0"},
		{Kind: hook.ConfigChanged},
	}
	for _, info := range sent {
		c.Assert(q.Send(info), jc.ErrorIsNil)
	}

	var got []hook.Info
	for range sent {
		select {
		case info := <-handled:
			got = append(got, info)
		case <-time.After(coretesting.LongWait):
			c.Fatalf("timed out waiting for hook delivery")
		}
	}
	c.Check(got, jc.DeepEquals, sent)
}

func (s *HookQueueSuite) TestSendRejectsInvalidInfo(c *gc.C) {
	q, err := hookqueue.New(hookqueue.Config{
		Handler: func(hook.Info) error {
			c.Errorf("handler should not run")
			return nil
		},
		Logger: coretesting.NewCheckLogger(c),
	})
	c.Assert(err, jc.ErrorIsNil)
	defer workertest.CleanKill(c, q)

	err = q.Send(hook.Info{Kind: hook.RelationJoined})
	c.Check(err, gc.ErrorMatches, `"relation-joined" hook requires a remote unit`)
}

func (s *HookQueueSuite) TestHandlerErrorStopsWorker(c *gc.C) {
	q, err := hookqueue.New(hookqueue.Config{
		Handler: func(hook.Info) error {
			return errors.New("pass exploded")
		},
		Logger: coretesting.NewCheckLogger(c),
	})
	c.Assert(err, jc.ErrorIsNil)
	defer workertest.DirtyKill(c, q)

	c.Assert(q.Send(hook.Info{Kind: hook.ConfigChanged}), jc.ErrorIsNil)
	err = workertest.CheckKilled(c, q)
	c.Check(err, gc.ErrorMatches, `delivering "config-changed" hook: pass exploded`)
}

func (s *HookQueueSuite) TestSendAfterStop(c *gc.C) {
	q, err := hookqueue.New(hookqueue.Config{
		Handler: func(hook.Info) error { return nil },
		Logger:  coretesting.NewCheckLogger(c),
	})
	c.Assert(err, jc.ErrorIsNil)
	workertest.CleanKill(c, q)

	err = q.Send(hook.Info{Kind: hook.ConfigChanged})
	c.Check(err, gc.ErrorMatches, "hook queue stopped")
}

func (s *HookQueueSuite) TestCleanKill(c *gc.C) {
	q, err := hookqueue.New(hookqueue.Config{
		Handler: func(hook.Info) error { return nil },
		Logger:  coretesting.NewCheckLogger(c),
	})
	c.Assert(err, jc.ErrorIsNil)
	workertest.CheckAlive(c, q)
	workertest.CleanKill(c, q)
}
