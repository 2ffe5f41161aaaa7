package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/internal/testutil"
	"github.com/hupe1980/chatmesh/registry"
)

func fastOrchestrator(t *testing.T, reg *registry.Registry, optFns ...func(o *Options)) *Orchestrator {
	t.Helper()
	fns := append([]func(o *Options){func(o *Options) {
		o.StepTimeout = 100 * time.Millisecond
		o.MaxAttempts = 2
		o.Backoff = time.Millisecond
	}}, optFns...)
	return New(reg, fns...)
}

func registerAgent(t *testing.T, reg *registry.Registry, o *Orchestrator, id string, inv core.Invoker, caps ...core.Capability) {
	t.Helper()
	_, err := reg.Register(testutil.AgentConfig(id, caps...))
	require.NoError(t, err)
	if inv != nil {
		o.Bind(id, inv)
	}
}

func executeText(t *testing.T, o *Orchestrator, text string) *core.PipelineResult {
	t.Helper()
	result, err := o.Execute(context.Background(), ExecuteRequest{
		SessionID: "s1",
		UserID:    "u1",
		Message:   core.NewIncomingMessage("s1", text),
	})
	require.NoError(t, err)
	return result
}

func TestExecute_BankingResponseWins(t *testing.T) {
	reg := registry.New()
	o := fastOrchestrator(t, reg)

	registerAgent(t, reg, o, "analysis-agent",
		testutil.NewStubInvoker(testutil.NewResultBuilder("").Sentiment("neutral").Build()),
		core.CapabilityLanguageAnalysis)
	registerAgent(t, reg, o, "intent-agent",
		testutil.NewStubInvoker(testutil.NewResultBuilder("I can help with banking.").Intent("banking.balance.check", 0.9).Build()),
		core.CapabilityIntentDetection)
	registerAgent(t, reg, o, "banking-agent",
		testutil.NewStubInvoker(testutil.NewResultBuilder("Your balance is $4,200.").Entity("account", "checking").Build()),
		core.CapabilityAccountInquiry)

	result := executeText(t, o, "What's my balance?")

	require.NotNil(t, result.Response)
	assert.Equal(t, "Your balance is $4,200.", result.Response.Text)
	assert.Equal(t, "banking-agent", result.Response.SourceAgentID)
	assert.Equal(t, "banking.balance.check", result.Response.Intent, "intent aggregated from the intent step")
	assert.Equal(t, "neutral", result.Response.Sentiment, "sentiment aggregated from the analysis step")
	assert.Equal(t, "checking", result.Response.Entities["account"])
	assert.False(t, result.Aborted)
	assert.False(t, result.FellBack)
	assert.Len(t, result.Steps, 3)
	assert.ElementsMatch(t, []string{"analysis-agent", "intent-agent", "banking-agent"}, result.AgentsUsed())
}

func TestExecute_ReleasesReservations(t *testing.T) {
	reg := registry.New()
	o := fastOrchestrator(t, reg)

	registerAgent(t, reg, o, "intent-agent",
		testutil.NewStubInvoker(testutil.NewResultBuilder("hi").Build()),
		core.CapabilityIntentDetection)

	executeText(t, o, "hello")
	executeText(t, o, "hello again")

	a, ok := reg.Get("intent-agent")
	require.True(t, ok)
	assert.Equal(t, 0, a.Load(), "every reserve must be released")
}

func TestExecute_ReleaseOnFailureAndTimeout(t *testing.T) {
	reg := registry.New()
	o := fastOrchestrator(t, reg)

	registerAgent(t, reg, o, "intent-agent",
		testutil.NewFailingInvoker(errors.New("boom")),
		core.CapabilityIntentDetection)
	slow := core.InvokerFunc(func(ctx context.Context, _ core.CapabilityRequest) (*core.CapabilityResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	registerAgent(t, reg, o, "tool-agent", slow, core.CapabilityToolCalling)

	result := executeText(t, o, "calculate 2+2")

	intentStep, ok := result.StepFor(core.CapabilityIntentDetection)
	require.True(t, ok)
	assert.Equal(t, core.StepFailed, intentStep.State)
	assert.Equal(t, 2, intentStep.Attempts, "failed step retried up to the attempt limit")

	toolStep, ok := result.StepFor(core.CapabilityToolCalling)
	require.True(t, ok)
	assert.Equal(t, core.StepFailed, toolStep.State)
	assert.Contains(t, toolStep.Error, "timed out")

	for _, id := range []string{"intent-agent", "tool-agent"} {
		a, ok := reg.Get(id)
		require.True(t, ok)
		assert.Equal(t, 0, a.Load(), "agent %s still reserved", id)
	}
}

func TestExecute_SkipsWhenNoAgentAvailable(t *testing.T) {
	reg := registry.New()
	o := fastOrchestrator(t, reg)

	// Only the intent capability is registered; analysis has no agent.
	registerAgent(t, reg, o, "intent-agent",
		testutil.NewStubInvoker(testutil.NewResultBuilder("hi").Build()),
		core.CapabilityIntentDetection)

	result := executeText(t, o, "hello")

	analysisStep, ok := result.StepFor(core.CapabilityLanguageAnalysis)
	require.True(t, ok)
	assert.Equal(t, core.StepSkipped, analysisStep.State)
	assert.Equal(t, "hi", result.Response.Text, "pipeline continues past skipped steps")
}

func TestExecute_SkipsWhenNoInvokerBound(t *testing.T) {
	reg := registry.New()
	o := fastOrchestrator(t, reg)

	registerAgent(t, reg, o, "intent-agent", nil, core.CapabilityIntentDetection)

	result := executeText(t, o, "hello")
	step, ok := result.StepFor(core.CapabilityIntentDetection)
	require.True(t, ok)
	assert.Equal(t, core.StepSkipped, step.State)

	a, _ := reg.Get("intent-agent")
	assert.Equal(t, 0, a.Load(), "reservation released on skip after reserve")
}

func TestExecute_CriticalFailureAborts(t *testing.T) {
	reg := registry.New()
	o := fastOrchestrator(t, reg, func(o *Options) {
		o.FallbackEnabled = false
	})

	registerAgent(t, reg, o, "intent-agent",
		testutil.NewStubInvoker(testutil.NewResultBuilder("intent ok").Intent("banking.balance.check", 0.9).Build()),
		core.CapabilityIntentDetection)
	registerAgent(t, reg, o, "banking-agent",
		testutil.NewFailingInvoker(errors.New("core banking system down")),
		core.CapabilityAccountInquiry)
	toolInv := testutil.NewStubInvoker(testutil.NewResultBuilder("tool ok").Build())
	registerAgent(t, reg, o, "tool-agent", toolInv, core.CapabilityToolCalling)

	result, err := o.Execute(context.Background(), ExecuteRequest{
		SessionID: "s1",
		Message:   core.NewIncomingMessage("s1", "check my balance and calculate interest"),
	})
	assert.True(t, core.IsKind(err, core.KindPipelineAborted))
	assert.True(t, result.Aborted)

	// Steps after the critical failure are skipped, not executed.
	toolStep, ok := result.StepFor(core.CapabilityToolCalling)
	require.True(t, ok)
	assert.Equal(t, core.StepSkipped, toolStep.State)
	assert.Equal(t, 0, toolInv.Calls())

	require.NotNil(t, result.Response, "aborted pipeline still answers")
	assert.True(t, result.Response.EscalationRequired)
	assert.NotEmpty(t, result.Response.Text)
}

func TestExecute_CriticalFailureFallsBack(t *testing.T) {
	reg := registry.New()
	o := fastOrchestrator(t, reg) // fallback enabled by default

	registerAgent(t, reg, o, "banking-agent",
		testutil.NewFailingInvoker(errors.New("down")),
		core.CapabilityAccountInquiry)

	result := executeText(t, o, "what's my balance?")

	assert.False(t, result.Aborted)
	assert.True(t, result.FellBack)

	step, ok := result.StepFor(core.CapabilityAccountInquiry)
	require.True(t, ok)
	assert.True(t, step.Succeeded())
	assert.Equal(t, "fallback", step.Output.Provenance)
	assert.Equal(t, "banking.balance.check", result.Response.Intent)
	assert.Equal(t, "fallback", result.Response.Provenance)
	assert.False(t, result.Response.EscalationRequired)
}

func TestExecute_DegradedResultBehindOpenBreaker(t *testing.T) {
	reg := registry.New()
	o := fastOrchestrator(t, reg)

	degraded := core.InvokerFunc(func(_ context.Context, req core.CapabilityRequest) (*core.CapabilityResult, error) {
		return testutil.NewResultBuilder("degraded answer").Provenance("fallback").Build(),
			core.NewError(core.KindCircuitOpen, "circuit breaker open")
	})
	registerAgent(t, reg, o, "intent-agent", degraded, core.CapabilityIntentDetection)

	result := executeText(t, o, "hello")

	step, ok := result.StepFor(core.CapabilityIntentDetection)
	require.True(t, ok)
	assert.True(t, step.Succeeded(), "fallback behind an open breaker is a degraded success")
	assert.True(t, result.FellBack)
	assert.Equal(t, "degraded answer", result.Response.Text)
}

func TestExecute_NoUsableStepYieldsApology(t *testing.T) {
	reg := registry.New()
	o := fastOrchestrator(t, reg)

	result := executeText(t, o, "hello")

	require.NotNil(t, result.Response)
	assert.True(t, result.Response.EscalationRequired)
	assert.Equal(t, 0.1, result.Response.Confidence)
}

func TestExecute_PriorResultsFlowDownstream(t *testing.T) {
	reg := registry.New()
	o := fastOrchestrator(t, reg)

	registerAgent(t, reg, o, "intent-agent",
		testutil.NewStubInvoker(testutil.NewResultBuilder("intent ok").Intent("banking.balance.check", 0.9).Build()),
		core.CapabilityIntentDetection)
	bankingInv := testutil.NewStubInvoker(testutil.NewResultBuilder("Your balance is $1.").Build())
	registerAgent(t, reg, o, "banking-agent", bankingInv, core.CapabilityAccountInquiry)

	executeText(t, o, "what's my balance?")

	req := bankingInv.LastRequest()
	require.NotEmpty(t, req.PriorResults, "downstream steps see upstream results")
	assert.Equal(t, core.CapabilityIntentDetection, req.PriorResults[len(req.PriorResults)-1].Capability)
}

func TestExecute_SynthesisPriorityToolOverIntent(t *testing.T) {
	reg := registry.New()
	o := fastOrchestrator(t, reg)

	registerAgent(t, reg, o, "intent-agent",
		testutil.NewStubInvoker(testutil.NewResultBuilder("intent answer").Intent("general.query", 0.8).Build()),
		core.CapabilityIntentDetection)
	registerAgent(t, reg, o, "tool-agent",
		testutil.NewStubInvoker(testutil.NewResultBuilder("42").Build()),
		core.CapabilityToolCalling)

	result := executeText(t, o, "calculate 6 times 7")
	assert.Equal(t, "42", result.Response.Text, "tool output outranks the intent answer")
	assert.Equal(t, "general.query", result.Response.Intent)
}

func TestExecute_DegradedCriticalStepAbortsWithoutFallback(t *testing.T) {
	reg := registry.New()
	o := fastOrchestrator(t, reg, func(o *Options) { o.FallbackEnabled = false })

	// A degraded answer (fallback payload alongside the call error) may not
	// stand in for a critical step when fallback mode is off.
	degraded := core.InvokerFunc(func(_ context.Context, _ core.CapabilityRequest) (*core.CapabilityResult, error) {
		return testutil.NewResultBuilder("canned balance answer").Provenance("fallback").Build(),
			core.NewError(core.KindAgentCallFailed, "attempts exhausted")
	})
	registerAgent(t, reg, o, "banking-agent", degraded, core.CapabilityAccountInquiry)

	result, err := o.Execute(context.Background(), ExecuteRequest{
		SessionID: "s1",
		UserID:    "u1",
		Message:   core.NewIncomingMessage("s1", "what's my balance?"),
	})
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindPipelineAborted))
	assert.True(t, result.Aborted)

	step, ok := result.StepFor(core.CapabilityAccountInquiry)
	require.True(t, ok)
	assert.Equal(t, core.StepFailed, step.State)
	require.NotNil(t, result.Response)
	assert.True(t, result.Response.EscalationRequired)
}
