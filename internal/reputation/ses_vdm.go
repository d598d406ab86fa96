package reputation

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/ignite/dispatch-engine/internal/domain"
)

// metricDataAPI is the slice of the SES v2 API the monitor needs.
type metricDataAPI interface {
	BatchGetMetricData(ctx context.Context, input *sesv2.BatchGetMetricDataInput, optFns ...func(*sesv2.Options)) (*sesv2.BatchGetMetricDataOutput, error)
}

// SESMonitor computes rolling 24-hour bounce and complaint rates from SES
// VDM metrics. One VDM query client serves all scopes; SES exposes these
// statistics account-wide per region, not per IP, so every scope within a
// region observes the same rates.
type SESMonitor struct {
	clients map[string]metricDataAPI // region name → client
	primary string
	window  time.Duration
	now     func() time.Time
}

// NewSESMonitor creates a VDM-backed monitor. primary names the region
// whose client answers scopes that are not themselves region names.
func NewSESMonitor(clients map[string]*sesv2.Client, primary string) *SESMonitor {
	m := &SESMonitor{
		clients: make(map[string]metricDataAPI, len(clients)),
		primary: primary,
		window:  24 * time.Hour,
		now:     time.Now,
	}
	for region, c := range clients {
		m.clients[region] = c
	}
	return m
}

const (
	metricSend            = "SEND"
	metricPermanentBounce = "PERMANENT_BOUNCE"
	metricTransientBounce = "TRANSIENT_BOUNCE"
	metricComplaint       = "COMPLAINT"
)

var vdmMetrics = []string{metricSend, metricPermanentBounce, metricTransientBounce, metricComplaint}

// Metrics returns rolling rates for the given scope.
func (m *SESMonitor) Metrics(ctx context.Context, scope string) (domain.ReputationMetrics, error) {
	client, ok := m.clients[scope]
	if !ok {
		client, ok = m.clients[m.primary]
		if !ok {
			return domain.ReputationMetrics{}, fmt.Errorf("reputation: no client for scope %q", scope)
		}
	}

	to := m.now()
	from := to.Add(-m.window)

	queries := make([]types.BatchGetMetricDataQuery, 0, len(vdmMetrics))
	for i, metric := range vdmMetrics {
		queries = append(queries, types.BatchGetMetricDataQuery{
			Id:        aws.String(fmt.Sprintf("q%d_%s", i, metric)),
			Namespace: types.MetricNamespaceVdm,
			Metric:    types.Metric(metric),
			StartDate: aws.Time(from),
			EndDate:   aws.Time(to),
		})
	}

	output, err := client.BatchGetMetricData(ctx, &sesv2.BatchGetMetricDataInput{Queries: queries})
	if err != nil {
		return domain.ReputationMetrics{}, fmt.Errorf("fetching VDM metrics for %s: %w", scope, err)
	}

	var sends, bounces, complaints int64
	for _, result := range output.Results {
		if result.Id == nil {
			continue
		}
		var total int64
		for _, val := range result.Values {
			total += int64(val)
		}
		switch {
		case hasMetricSuffix(*result.Id, metricPermanentBounce), hasMetricSuffix(*result.Id, metricTransientBounce):
			bounces += total
		case hasMetricSuffix(*result.Id, metricComplaint):
			complaints += total
		case hasMetricSuffix(*result.Id, metricSend):
			sends += total
		}
	}

	return rates(sends, bounces, complaints), nil
}

func hasMetricSuffix(id, metric string) bool {
	return len(id) >= len(metric) && id[len(id)-len(metric):] == metric
}

// rates converts raw counts to the metrics snapshot. The score is derived:
// a clean sender scores 100; bounce rate costs 2 points per percent and
// complaint rate 20 points per hundredth of a percent.
func rates(sends, bounces, complaints int64) domain.ReputationMetrics {
	var m domain.ReputationMetrics
	if sends == 0 {
		m.ReputationScore = 100
		return m
	}
	m.BounceRate = float64(bounces) / float64(sends)
	m.ComplaintRate = float64(complaints) / float64(sends)

	score := 100 - m.BounceRate*100*2 - m.ComplaintRate*100*20
	if score < 0 {
		score = 0
	}
	m.ReputationScore = score
	return m
}
