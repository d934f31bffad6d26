package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psychon7/Triage-AI/internal/approval"
	"github.com/psychon7/Triage-AI/internal/config"
	"github.com/psychon7/Triage-AI/internal/logger"
	"github.com/psychon7/Triage-AI/internal/pipeline"
)

func testConfig(t *testing.T) config.AppConfig {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	v.Set("data.dir", t.TempDir())
	cfg, err := config.Load(v)
	require.NoError(t, err)
	return cfg
}

func stubGenerator() pipeline.Generator {
	return pipeline.GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		return "stub output", nil
	})
}

func newTestRuntime(t *testing.T, cfg config.AppConfig, restore bool) *pipelineRuntime {
	t.Helper()
	rt, err := newRuntime(context.Background(), cfg, logger.Discard(), runtimeOptions{
		generator: stubGenerator(),
		restore:   restore,
	})
	require.NoError(t, err)
	return rt
}

func waitFor(t *testing.T, rt *pipelineRuntime, id string, cond func(*pipeline.TaskState) bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		st, err := rt.gateway.GetStatus(id)
		return err == nil && cond(st)
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRuntimeCompletesAndPersists(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	rt := newTestRuntime(t, cfg, false)
	sub, err := rt.gateway.Submit(ctx, "Build an invoicing API")
	require.NoError(t, err)
	id := sub.TaskID

	for _, s := range pipeline.Sequence() {
		waitFor(t, rt, id, func(st *pipeline.TaskState) bool {
			return st.AwaitingUserApproval && st.CurrentStage == s
		})
		_, err := rt.gateway.Decide(ctx, id, s.String(), true, "")
		require.NoError(t, err)
	}
	waitFor(t, rt, id, func(st *pipeline.TaskState) bool { return st.Complete })
	require.NoError(t, rt.Close(ctx))

	assert.True(t, rt.sink.HasFinalPlan(id))

	store, err := openStoreAt(cfg.Data.Dir)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	st, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, st.Complete)
	assert.Equal(t, "Build an invoicing API", st.Problem)
}

func TestRuntimeRestoresTasks(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	first := newTestRuntime(t, cfg, false)
	sub, err := first.gateway.Submit(ctx, "Design a rate limiter")
	require.NoError(t, err)
	waitFor(t, first, sub.TaskID, func(st *pipeline.TaskState) bool { return st.AwaitingUserApproval })
	require.NoError(t, first.Close(ctx))

	second := newTestRuntime(t, cfg, true)
	t.Cleanup(func() { _ = second.Close(context.Background()) })

	st, err := second.gateway.GetStatus(sub.TaskID)
	require.NoError(t, err)
	assert.True(t, st.AwaitingUserApproval)
	assert.Equal(t, pipeline.StageProjectManager, st.CurrentStage)

	resolved, err := second.gateway.ResolveID(ctx, sub.TaskID[:8])
	require.NoError(t, err)
	assert.Equal(t, sub.TaskID, resolved)
}

func TestRunSessionAutoApprove(t *testing.T) {
	cfg := testConfig(t)
	rt := newTestRuntime(t, cfg, false)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })

	var out, status bytes.Buffer
	sess := &runSession{gw: rt.gateway, out: &out, status: &status, autoApprove: true}
	id, err := sess.run(context.Background(), "Plan a data migration")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	assert.Contains(t, out.String(), "stub output")
	assert.Equal(t, len(pipeline.Sequence()), strings.Count(status.String(), "approved"))
}

func TestRunSessionQuietPrintsOnlyPlan(t *testing.T) {
	cfg := testConfig(t)
	rt := newTestRuntime(t, cfg, false)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })

	var out, status bytes.Buffer
	sess := &runSession{gw: rt.gateway, out: &out, status: &status, autoApprove: true, quiet: true}
	_, err := sess.run(context.Background(), "Plan a data migration")
	require.NoError(t, err)

	assert.Empty(t, status.String())
	assert.NotEmpty(t, out.String())
}

func TestFinishRunReportsPlanOnlyWhenComplete(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	rt := newTestRuntime(t, cfg, false)
	var out, status bytes.Buffer
	sess := &runSession{gw: rt.gateway, out: &out, status: &status, autoApprove: true}
	id, err := sess.run(ctx, "Plan a data migration")
	require.NoError(t, err)

	var report bytes.Buffer
	require.NoError(t, finishRun(rt, id, &report))
	assert.Equal(t, "Plan written to "+rt.sink.FinalPlanPath(id)+"\n", report.String())
	assert.FileExists(t, rt.sink.FinalPlanPath(id))
}

func TestFinishRunSilentForUnfinishedTask(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	rt := newTestRuntime(t, cfg, false)
	sub, err := rt.gateway.Submit(ctx, "Design a rate limiter")
	require.NoError(t, err)
	waitFor(t, rt, sub.TaskID, func(st *pipeline.TaskState) bool { return st.AwaitingUserApproval })
	_, err = rt.gateway.Decide(ctx, sub.TaskID, "project_manager", true, "")
	require.NoError(t, err)

	var report bytes.Buffer
	require.NoError(t, finishRun(rt, sub.TaskID, &report))
	assert.Empty(t, report.String())
	assert.FileExists(t, filepath.Join(cfg.OutputPath(), sub.TaskID, "project_manager_output.md"))
}

func TestRuntimeHotReloadsPolicies(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.PoliciesPath(), 0o755))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := newRuntime(ctx, cfg, logger.Discard(), runtimeOptions{generator: stubGenerator(), watch: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })

	sub, err := rt.gateway.Submit(ctx, "Ship a feature")
	require.NoError(t, err)
	waitFor(t, rt, sub.TaskID, func(st *pipeline.TaskState) bool { return st.AwaitingUserApproval })

	policy := "package triage.policy\n\nimport rego.v1\n\ndeny contains \"approvals are frozen\" if { true }\n"
	require.NoError(t, os.WriteFile(filepath.Join(cfg.PoliciesPath(), "freeze.rego"), []byte(policy), 0o644))
	require.Eventually(t, func() bool {
		return len(rt.policy.PolicyNames()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, err = rt.gateway.Decide(ctx, sub.TaskID, "project_manager", true, "")
	assert.ErrorIs(t, err, approval.ErrPolicyDenied)
	assert.Contains(t, err.Error(), "approvals are frozen")
}
