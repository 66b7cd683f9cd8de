// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package testcharms_test

import (
	"bytes"
	"crypto/x509"

	"github.com/juju/errors"
	gitjujutesting "github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	keystore "github.com/pavlo-v-chernykh/keystore-go/v4"
	gc "gopkg.in/check.v1"

	"github.com/fabi200123/legend-juju-libs/core/config"
	"github.com/fabi200123/legend-juju-libs/core/relation"
	"github.com/fabi200123/legend-juju-libs/core/status"
	"github.com/fabi200123/legend-juju-libs/harness"
	"github.com/fabi200123/legend-juju-libs/testcharms"
	"github.com/fabi200123/legend-juju-libs/truststore"
)

type SampleCharmSuite struct {
	gitjujutesting.IsolationSuite
}

var _ = gc.Suite(&SampleCharmSuite{})

func (s *SampleCharmSuite) addRelation(c *gc.C, h *harness.Harness, name string, data relation.Settings) int {
	relId := h.AddRelation(c, name, name+"-relator")
	h.AddRelationUnit(c, relId, name+"-relator/0")
	h.UpdateRelationData(c, relId, data)
	return relId
}

func (s *SampleCharmSuite) activeHarness(c *gc.C) *harness.Harness {
	h := harness.NewHarness(c, testcharms.Sample(c))
	h.SetLeader(c, true)
	s.addRelation(c, h, "legend-test-rel-1", relation.Settings{"rel1": "test1"})
	s.addRelation(c, h, "legend-test-rel-2", relation.Settings{"rel2": "test2"})
	h.BeginWithInitialHooks(c)
	c.Assert(h.Status().Status, gc.Equals, status.Active)
	return h
}

func (s *SampleCharmSuite) TestBlockedUntilAllRelationsPresent(c *gc.C) {
	h := harness.NewHarness(c, testcharms.Sample(c))
	h.SetLeader(c, true)
	h.BeginWithInitialHooks(c)

	info := h.Status()
	c.Check(info.Status, gc.Equals, status.Blocked)
	c.Check(info.Message, gc.Equals,
		"missing following relations: legend-test-rel-1, legend-test-rel-2")
	c.Check(h.Workload().Running(), gc.HasLen, 0)

	s.addRelation(c, h, "legend-test-rel-1", relation.Settings{"rel1": "test1"})
	info = h.Status()
	c.Check(info.Status, gc.Equals, status.Blocked)
	c.Check(info.Message, gc.Equals, "missing following relations: legend-test-rel-2")

	s.addRelation(c, h, "legend-test-rel-2", relation.Settings{"rel2": "test2"})
	c.Check(h.Status().Status, gc.Equals, status.Active)
	c.Check(h.Status().Message, gc.Equals, "")
	c.Check(h.Workload().Running(), jc.DeepEquals, []string{"legend-test-service"})
}

func (s *SampleCharmSuite) TestServicesStoppedWhenRelationRemoved(c *gc.C) {
	h := harness.NewHarness(c, testcharms.Sample(c))
	h.SetLeader(c, true)
	relId := s.addRelation(c, h, "legend-test-rel-1", relation.Settings{"rel1": "test1"})
	s.addRelation(c, h, "legend-test-rel-2", relation.Settings{"rel2": "test2"})
	h.BeginWithInitialHooks(c)
	c.Assert(h.Status().Status, gc.Equals, status.Active)

	h.Workload().ResetCalls()
	h.RemoveRelation(c, relId)

	info := h.Status()
	c.Check(info.Status, gc.Equals, status.Blocked)
	c.Check(info.Message, gc.Equals, "missing following relations: legend-test-rel-1")
	c.Check(h.Workload().Running(), gc.HasLen, 0)

	var stops [][]string
	for _, call := range h.Workload().Calls() {
		if call.FuncName == "Stop" {
			stops = append(stops, call.Args[0].([]string))
		}
	}
	c.Assert(stops, gc.Not(gc.HasLen), 0)
	c.Check(stops[len(stops)-1], jc.DeepEquals, []string{"legend-test-service"})
}

func (s *SampleCharmSuite) TestTruststoreWrittenBeforeConfigFiles(c *gc.C) {
	h := s.activeHarness(c)
	h.Workload().ResetCalls()
	h.EmitConfigChanged(c)

	h.Workload().CheckCallNames(c,
		"WriteFile", "WriteFile", "WriteFile", "AddLayer", "Restart")
	calls := h.Workload().Calls()
	c.Check(calls[0].Args[0], gc.Equals, testcharms.SampleTruststorePath)
	c.Check(calls[0].Args[2], gc.Equals, false)
	c.Check(calls[1].Args[0], gc.Equals, testcharms.SampleJSONPath)
	c.Check(calls[1].Args[1], jc.DeepEquals, []byte(testcharms.SampleJSONContent))
	c.Check(calls[1].Args[2], gc.Equals, true)
	c.Check(calls[2].Args[0], gc.Equals, testcharms.SampleINIPath)
	c.Check(calls[2].Args[1], jc.DeepEquals, []byte(testcharms.SampleINIContent))
	c.Check(calls[3].Args[0], gc.Equals, "legend-test")
	c.Check(calls[4].Args[0], jc.DeepEquals, []string{"legend-test-service"})
}

func (s *SampleCharmSuite) TestTruststoreContents(c *gc.C) {
	h := s.activeHarness(c)
	written, ok := h.Workload().File(testcharms.SampleTruststorePath)
	c.Assert(ok, jc.IsTrue)

	ks := keystore.New()
	err := ks.Load(bytes.NewReader(written), []byte(testcharms.SampleTruststorePassphrase))
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(ks.Aliases(), jc.DeepEquals, []string{testcharms.SampleTruststoreAlias})

	entry, err := ks.GetTrustedCertificateEntry(testcharms.SampleTruststoreAlias)
	c.Assert(err, jc.ErrorIsNil)
	cert, err := x509.ParseCertificate(entry.Certificate.Content)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(cert.Subject.CommonName, gc.Equals, "legend-test")
}

func (s *SampleCharmSuite) TestTruststoreSerializationDeterministic(c *gc.C) {
	h := s.activeHarness(c)
	first, ok := h.Workload().File(testcharms.SampleTruststorePath)
	c.Assert(ok, jc.IsTrue)

	h.EmitConfigChanged(c)
	second, ok := h.Workload().File(testcharms.SampleTruststorePath)
	c.Assert(ok, jc.IsTrue)
	c.Check(second, jc.DeepEquals, first)
}

func (s *SampleCharmSuite) TestInvalidTruststorePreferencesBlockWithoutWrites(c *gc.C) {
	spec := testcharms.Sample(c)
	spec.TrustPreferences = func(*config.Config, map[string]relation.Settings) (*truststore.Preferences, error) {
		return &truststore.Preferences{
			Path:       testcharms.SampleTruststorePath,
			Passphrase: testcharms.SampleTruststorePassphrase,
		}, nil
	}
	h := harness.NewHarness(c, spec)
	h.SetLeader(c, true)
	s.addRelation(c, h, "legend-test-rel-1", relation.Settings{"rel1": "test1"})
	s.addRelation(c, h, "legend-test-rel-2", relation.Settings{"rel2": "test2"})
	h.BeginWithInitialHooks(c)

	info := h.Status()
	c.Check(info.Status, gc.Equals, status.Blocked)
	c.Check(info.Message, gc.Equals, "invalid jks truststore preferences provided")
	h.Workload().CheckNoCalls(c)
}

func (s *SampleCharmSuite) TestEmptyTruststorePreferencesBlockWithoutWrites(c *gc.C) {
	spec := testcharms.Sample(c)
	spec.TrustPreferences = func(*config.Config, map[string]relation.Settings) (*truststore.Preferences, error) {
		return &truststore.Preferences{}, nil
	}
	h := harness.NewHarness(c, spec)
	h.SetLeader(c, true)
	s.addRelation(c, h, "legend-test-rel-1", relation.Settings{"rel1": "test1"})
	s.addRelation(c, h, "legend-test-rel-2", relation.Settings{"rel2": "test2"})
	h.BeginWithInitialHooks(c)

	c.Check(h.Status().Status, gc.Equals, status.Blocked)
	c.Check(h.Status().Message, gc.Equals, "invalid jks truststore preferences provided")
	h.Workload().CheckNoCalls(c)
}

func (s *SampleCharmSuite) TestTruststoreWriteFailureBlocksAfterSingleAttempt(c *gc.C) {
	h := s.activeHarness(c)
	h.Workload().ResetCalls()
	h.Workload().SetErrors(errors.New("disk full"))
	h.EmitConfigChanged(c)

	info := h.Status()
	c.Check(info.Status, gc.Equals, status.Blocked)
	c.Check(info.Message, gc.Equals,
		"error(s) occurred while adding jks trust store to the workload container")
	h.Workload().CheckCallNames(c, "WriteFile")
}

func (s *SampleCharmSuite) TestConfigFileWriteFailureBlocked(c *gc.C) {
	h := s.activeHarness(c)
	h.Workload().ResetCalls()
	h.Workload().SetErrors(nil, errors.New("disk full"))
	h.EmitConfigChanged(c)

	info := h.Status()
	c.Check(info.Status, gc.Equals, status.Blocked)
	c.Check(info.Message, gc.Equals,
		"error(s) occurred while writing workload configuration files")
	h.Workload().CheckCallNames(c, "WriteFile", "WriteFile")
}
