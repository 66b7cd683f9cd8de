// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package pebble_test

import (
	"io"
	"os"
	"time"

	"github.com/canonical/pebble/client"
	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	gitjujutesting "github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/fabi200123/legend-juju-libs/charm"
	"github.com/fabi200123/legend-juju-libs/pebble"
	coretesting "github.com/fabi200123/legend-juju-libs/testing"
)

type mockClient struct {
	gitjujutesting.Stub
	change client.Change
}

func (m *mockClient) SysInfo() (*client.SysInfo, error) {
	m.MethodCall(m, "SysInfo")
	if err := m.NextErr(); err != nil {
		return nil, err
	}
	return &client.SysInfo{}, nil
}

func (m *mockClient) Push(opts *client.PushOptions) error {
	data, err := io.ReadAll(opts.Source)
	if err != nil {
		return err
	}
	m.MethodCall(m, "Push", opts.Path, string(data), opts.MakeDirs, opts.Permissions)
	return m.NextErr()
}

func (m *mockClient) AddLayer(opts *client.AddLayerOptions) error {
	m.MethodCall(m, "AddLayer", opts.Label, string(opts.LayerData), opts.Combine)
	return m.NextErr()
}

func (m *mockClient) Start(opts *client.ServiceOptions) (string, error) {
	m.MethodCall(m, "Start", opts.Names)
	return "11", m.NextErr()
}

func (m *mockClient) Stop(opts *client.ServiceOptions) (string, error) {
	m.MethodCall(m, "Stop", opts.Names)
	return "12", m.NextErr()
}

func (m *mockClient) Restart(opts *client.ServiceOptions) (string, error) {
	m.MethodCall(m, "Restart", opts.Names)
	return "13", m.NextErr()
}

func (m *mockClient) WaitChange(id string, opts *client.WaitChangeOptions) (*client.Change, error) {
	m.MethodCall(m, "WaitChange", id, opts.Timeout)
	if err := m.NextErr(); err != nil {
		return nil, err
	}
	change := m.change
	if change.ID == "" {
		change.ID = id
	}
	return &change, nil
}

type WorkloadSuite struct {
	gitjujutesting.IsolationSuite

	client *mockClient
	clock  *testclock.Clock
}

var _ = gc.Suite(&WorkloadSuite{})

func (s *WorkloadSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.client = &mockClient{}
	s.clock = testclock.NewClock(time.Time{})
}

func (s *WorkloadSuite) workload(c *gc.C, config pebble.Config) *pebble.Workload {
	config.Client = s.client
	config.Clock = s.clock
	config.Logger = coretesting.NewCheckLogger(c)
	w, err := pebble.New(config)
	c.Assert(err, jc.ErrorIsNil)
	return w
}

func (s *WorkloadSuite) TestValidateConfig(c *gc.C) {
	err := pebble.Config{}.Validate()
	c.Check(err, gc.ErrorMatches, "nil Client not valid")
	err = pebble.Config{Client: s.client}.Validate()
	c.Check(err, gc.ErrorMatches, "nil Clock not valid")
	err = pebble.Config{Client: s.client, Clock: s.clock}.Validate()
	c.Check(err, gc.ErrorMatches, "nil Logger not valid")
}

func (s *WorkloadSuite) TestSocketPath(c *gc.C) {
	c.Check(pebble.SocketPath("legend"), gc.Equals, "/charm/containers/legend/pebble.socket")
}

func (s *WorkloadSuite) TestCanConnect(c *gc.C) {
	w := s.workload(c, pebble.Config{ConnectAttempts: 1})
	c.Check(w.CanConnect(), jc.IsTrue)
	s.client.CheckCallNames(c, "SysInfo")
}

func (s *WorkloadSuite) TestCanConnectFailure(c *gc.C) {
	s.client.SetErrors(errors.New("socket not ready"))
	w := s.workload(c, pebble.Config{ConnectAttempts: 1})
	c.Check(w.CanConnect(), jc.IsFalse)
}

func (s *WorkloadSuite) TestCanConnectRetries(c *gc.C) {
	s.client.SetErrors(errors.New("socket not ready"), nil)
	w := s.workload(c, pebble.Config{ConnectAttempts: 2, ConnectDelay: time.Second})
	done := make(chan bool)
	go func() {
		done <- w.CanConnect()
	}()
	err := s.clock.WaitAdvance(time.Second, coretesting.LongWait, 1)
	c.Assert(err, jc.ErrorIsNil)
	select {
	case connected := <-done:
		c.Check(connected, jc.IsTrue)
	case <-time.After(coretesting.LongWait):
		c.Fatalf("timed out waiting for connection probe")
	}
	s.client.CheckCallNames(c, "SysInfo", "SysInfo")
}

func (s *WorkloadSuite) TestWriteFile(c *gc.C) {
	w := s.workload(c, pebble.Config{})
	err := w.WriteFile("/legend-test-1.json", []byte(`{"some": "json"}`), true)
	c.Assert(err, jc.ErrorIsNil)
	s.client.CheckCalls(c, []gitjujutesting.StubCall{
		{FuncName: "Push", Args: []interface{}{
			"/legend-test-1.json", `{"some": "json"}`, true, os.FileMode(0o644),
		}},
	})
}

func (s *WorkloadSuite) TestWriteFileError(c *gc.C) {
	s.client.SetErrors(errors.New("no space left"))
	w := s.workload(c, pebble.Config{})
	err := w.WriteFile("/truststore.jks", []byte("jks"), false)
	c.Assert(err, gc.ErrorMatches, `pushing file "/truststore.jks" to workload: no space left`)
}

func (s *WorkloadSuite) TestAddLayer(c *gc.C) {
	layer := charm.Layer{
		Summary: "test layer",
		Services: map[string]charm.ServiceSpec{
			"legend-test-service": {
				Override: charm.OverrideReplace,
				Command:  "bash -c 'echo yes'",
				Startup:  charm.StartupEnabled,
			},
		},
	}
	w := s.workload(c, pebble.Config{})
	err := w.AddLayer("legend-test", layer)
	c.Assert(err, jc.ErrorIsNil)

	s.client.CheckCallNames(c, "AddLayer")
	call := s.client.Calls()[0]
	c.Check(call.Args[0], gc.Equals, "legend-test")
	c.Check(call.Args[2], gc.Equals, true)
	parsed, err := charm.ParseLayer(call.Args[1].(string))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(parsed, jc.DeepEquals, &layer)
}

func (s *WorkloadSuite) TestRestart(c *gc.C) {
	w := s.workload(c, pebble.Config{ChangeTimeout: time.Minute})
	err := w.Restart([]string{"legend-test-service"})
	c.Assert(err, jc.ErrorIsNil)
	s.client.CheckCalls(c, []gitjujutesting.StubCall{
		{FuncName: "Restart", Args: []interface{}{[]string{"legend-test-service"}}},
		{FuncName: "WaitChange", Args: []interface{}{"13", time.Minute}},
	})
}

func (s *WorkloadSuite) TestStopAndStart(c *gc.C) {
	w := s.workload(c, pebble.Config{})
	c.Assert(w.Stop([]string{"legend-test-service"}), jc.ErrorIsNil)
	c.Assert(w.Start([]string{"legend-test-service"}), jc.ErrorIsNil)
	s.client.CheckCallNames(c, "Stop", "WaitChange", "Start", "WaitChange")
}

func (s *WorkloadSuite) TestNoServicesNoCalls(c *gc.C) {
	w := s.workload(c, pebble.Config{})
	c.Assert(w.Restart(nil), jc.ErrorIsNil)
	s.client.CheckNoCalls(c)
}

func (s *WorkloadSuite) TestServiceChangeRequestError(c *gc.C) {
	s.client.SetErrors(errors.New("daemon restarting"))
	w := s.workload(c, pebble.Config{})
	err := w.Restart([]string{"legend-test-service"})
	c.Assert(err, gc.ErrorMatches,
		`requesting restart of services \[legend-test-service\]: daemon restarting`)
}

func (s *WorkloadSuite) TestServiceChangeFailed(c *gc.C) {
	s.client.change = client.Change{ID: "13", Err: "service exited too quickly"}
	w := s.workload(c, pebble.Config{})
	err := w.Restart([]string{"legend-test-service"})
	c.Assert(err, gc.ErrorMatches, "restart change 13 failed: service exited too quickly")
}

func (s *WorkloadSuite) TestServiceChangeWaitError(c *gc.C) {
	s.client.SetErrors(nil, errors.New("timed out"))
	w := s.workload(c, pebble.Config{})
	err := w.Stop([]string{"legend-test-service"})
	c.Assert(err, gc.ErrorMatches, "waiting for stop change 12: timed out")
}
