package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (f *fakePutter) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, f.err
}

type countingRecorder struct {
	requests, tokens, generations, diagnostics int
}

func (c *countingRecorder) RecordAPIRequest(context.Context, string, int, time.Duration) {
	c.requests++
}

func (c *countingRecorder) RecordTokenUsage(context.Context, string, int64, int64, int64) {
	c.tokens++
}

func (c *countingRecorder) RecordGenerationDuration(context.Context, string, time.Duration, bool) {
	c.generations++
}

func (c *countingRecorder) RecordDiagnostics(context.Context, string, int) {
	c.diagnostics++
}

func TestNewClient_DisabledOutsideProduction(t *testing.T) {
	client, err := NewClient(context.Background(), "development")
	require.NoError(t, err)
	assert.False(t, client.enabled)

	// disabled clients never touch CloudWatch
	client.RecordAPIRequest(context.Background(), "/health", 200, time.Millisecond)
	assert.NoError(t, client.putMetrics(datum("APIRequests", 1, types.StandardUnitCount, nil)))
}

func TestClient_PutMetrics(t *testing.T) {
	fake := &fakePutter{}
	client := &Client{client: fake, enabled: true, environment: "production"}

	dims := client.dimensions("Operation", "turn")
	err := client.putMetrics(
		datum("GenerationDuration", 42, types.StandardUnitMilliseconds, dims),
		datum("SkippedInputs", 2, types.StandardUnitCount, dims),
	)
	require.NoError(t, err)
	require.Len(t, fake.inputs, 1)

	in := fake.inputs[0]
	assert.Equal(t, namespace, aws.ToString(in.Namespace))
	require.Len(t, in.MetricData, 2)
	assert.Equal(t, "SkippedInputs", aws.ToString(in.MetricData[1].MetricName))
	assert.Equal(t, "GenerationDuration", aws.ToString(in.MetricData[0].MetricName))
	assert.Equal(t, 42.0, aws.ToFloat64(in.MetricData[0].Value))
	require.Len(t, in.MetricData[0].Dimensions, 2)
	assert.Equal(t, "turn", aws.ToString(in.MetricData[0].Dimensions[0].Value))
	assert.Equal(t, "production", aws.ToString(in.MetricData[0].Dimensions[1].Value))

	assert.NoError(t, client.putMetrics(), "empty batches are not sent")
	assert.Len(t, fake.inputs, 1)

	fake.err = errors.New("throttled")
	assert.Error(t, client.putMetrics(datum("GenerationDuration", 1, types.StandardUnitMilliseconds, nil)))
}

func TestMulti_FansOut(t *testing.T) {
	a, b := &countingRecorder{}, &countingRecorder{}
	var rec Recorder = Multi{a, b, Noop{}}
	ctx := context.Background()

	rec.RecordAPIRequest(ctx, "/api/v1/render", 200, time.Millisecond)
	rec.RecordTokenUsage(ctx, "gpt-4.1-mini", 10, 7, 3)
	rec.RecordGenerationDuration(ctx, "turn", time.Second, true)
	rec.RecordDiagnostics(ctx, "render", 2)

	for _, c := range []*countingRecorder{a, b} {
		assert.Equal(t, 1, c.requests)
		assert.Equal(t, 1, c.tokens)
		assert.Equal(t, 1, c.generations)
		assert.Equal(t, 1, c.diagnostics)
	}
}

func TestRecorderImplementations(t *testing.T) {
	var _ Recorder = (*SentryMetrics)(nil)
	var _ Recorder = (*Client)(nil)
	var _ Recorder = Multi(nil)
	var _ Recorder = Noop{}

	// without sentry.Init these are no-ops and must not panic
	m := NewSentryMetrics()
	m.RecordGenerationDuration(context.Background(), "melody", time.Millisecond, false)
	m.RecordDiagnostics(context.Background(), "melody", 1)
}
