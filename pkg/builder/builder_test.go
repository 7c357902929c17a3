package builder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/composer/pkg/schema"
)

func TestBuilderAssemblesWorkflow(t *testing.T) {
	wf := NewWorkflow("wf-1", "demo").
		Description("a builder-assembled workflow").
		Timeout(30*time.Second).
		TokenBudget(1000).
		Metadata("owner", "team-a").
		Step("fetch", "echo").
		StaticArg("url", "https://example.com").
		Retry(2).
		Step("summarize", "echo").
		DependsOn("fetch").
		Bind("fetch", "body", "text").
		Condition(`fetch.status == 200`).
		OutputAs("summary").
		Step("notify", "echo").
		DependsOn("summarize").
		Fallback("notification skipped").
		ExtractOutput("summarize", "", "result").
		Build()

	assert.Equal(t, "wf-1", wf.ID)
	assert.Equal(t, int64(30000), wf.TimeoutMs)
	assert.Equal(t, 1000, wf.TokenBudget)
	assert.Equal(t, "team-a", wf.Metadata["owner"])
	assert.NotEmpty(t, wf.CreatedAt)
	require.Len(t, wf.Steps, 3)

	fetch := wf.Steps[0]
	assert.Equal(t, schema.ErrorPolicyRetry, fetch.OnError)
	assert.Equal(t, 2, fetch.RetryCount)
	assert.Equal(t, "https://example.com", fetch.StaticArgs["url"])

	summarize := wf.Steps[1]
	assert.Equal(t, []string{"fetch"}, summarize.DependsOn)
	require.Len(t, summarize.Bindings, 1)
	assert.Equal(t, "fetch", summarize.Bindings[0].Source)
	assert.Equal(t, "summary", summarize.OutputAs)

	notify := wf.Steps[2]
	assert.Equal(t, schema.ErrorPolicyFallback, notify.OnError)
	assert.Equal(t, "notification skipped", notify.FallbackValue)

	require.Len(t, wf.OutputExtraction, 1)
	assert.Equal(t, "result", wf.OutputExtraction[0].Target)
}

func TestBuilderGeneratesID(t *testing.T) {
	wf := NewWorkflow("", "demo").Step("a", "echo").Build()
	assert.NotEmpty(t, wf.ID)
}
