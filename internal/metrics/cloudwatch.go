package metrics

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

const (
	namespace             = "MelodyComp/API"
	httpStatusServerError = 500
	cloudwatchTimeout     = 5 * time.Second
)

// metricPutter is the slice of the CloudWatch client we use
type metricPutter interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Client wraps CloudWatch client for custom metrics
type Client struct {
	client      metricPutter
	enabled     bool
	environment string
}

// NewClient creates a new CloudWatch metrics client
func NewClient(ctx context.Context, environment string) (*Client, error) {
	// Only enable in production
	if environment != "production" {
		log.Printf("📊 CloudWatch Metrics: DISABLED (environment: %s)", environment)
		return &Client{
			enabled:     false,
			environment: environment,
		}, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		log.Printf("⚠️  Failed to load AWS config for CloudWatch: %v", err)
		return &Client{enabled: false}, nil
	}

	client := cloudwatch.NewFromConfig(cfg)
	log.Printf("📊 CloudWatch Metrics: ✅ ENABLED (namespace: %s)", namespace)

	return &Client{
		client:      client,
		enabled:     true,
		environment: environment,
	}, nil
}

// RecordAPIRequest counts the request (or error) and its latency per route.
func (m *Client) RecordAPIRequest(_ context.Context, endpoint string, statusCode int, duration time.Duration) {
	if !m.enabled {
		return
	}
	name := "APIRequests"
	if statusCode >= httpStatusServerError {
		name = "APIErrors"
	}
	dims := m.dimensions("Endpoint", endpoint)
	go m.send(
		datum(name, 1, types.StandardUnitCount, dims),
		datum("APILatency", float64(duration.Milliseconds()), types.StandardUnitMilliseconds, dims),
	)
}

// RecordTokenUsage records the token counts of one model call.
func (m *Client) RecordTokenUsage(_ context.Context, model string, totalTokens, inputTokens, outputTokens int64) {
	if !m.enabled {
		return
	}
	dims := m.dimensions("Model", model)
	go m.send(
		datum("LLMTokens/Total", float64(totalTokens), types.StandardUnitCount, dims),
		datum("LLMTokens/Input", float64(inputTokens), types.StandardUnitCount, dims),
		datum("LLMTokens/Output", float64(outputTokens), types.StandardUnitCount, dims),
	)
}

// RecordGenerationDuration records how long a turn, tips or melody call took.
func (m *Client) RecordGenerationDuration(_ context.Context, operation string, duration time.Duration, success bool) {
	if !m.enabled {
		return
	}
	dims := append(m.dimensions("Operation", operation), types.Dimension{
		Name:  aws.String("Success"),
		Value: aws.String(strconv.FormatBool(success)),
	})
	go m.send(datum("GenerationDuration", float64(duration.Milliseconds()), types.StandardUnitMilliseconds, dims))
}

// RecordDiagnostics records how many inputs a conversion stage skipped.
func (m *Client) RecordDiagnostics(_ context.Context, stage string, count int) {
	if !m.enabled || count == 0 {
		return
	}
	go m.send(datum("SkippedInputs", float64(count), types.StandardUnitCount, m.dimensions("Stage", stage)))
}

func (m *Client) dimensions(name, value string) []types.Dimension {
	return []types.Dimension{
		{Name: aws.String(name), Value: aws.String(value)},
		{Name: aws.String("Environment"), Value: aws.String(m.environment)},
	}
}

func datum(name string, value float64, unit types.StandardUnit, dims []types.Dimension) types.MetricDatum {
	return types.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(time.Now()),
		Dimensions: dims,
	}
}

// send logs rather than returns failures; it runs off the request path.
func (m *Client) send(data ...types.MetricDatum) {
	if err := m.putMetrics(data...); err != nil {
		log.Printf("Failed to record %d metric(s): %v", len(data), err)
	}
}

// putMetrics writes all data points in one PutMetricData call.
func (m *Client) putMetrics(data ...types.MetricDatum) error {
	if !m.enabled || m.client == nil || len(data) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cloudwatchTimeout)
	defer cancel()

	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(namespace),
		MetricData: data,
	})
	return err
}
