package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	job := "order-ttl"
	m.ObserveDuration(job, 250*time.Millisecond)
	m.IncSuccess(job)
	m.IncSuccess(job)
	m.IncFailure(job)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "dailycart_cron_job_runs_total", map[string]string{"job": job, "result": "success"}); err != nil {
		t.Fatalf("fetch success: %v", err)
	} else if got != 2 {
		t.Fatalf("expected success=2, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "dailycart_cron_job_runs_total", map[string]string{"job": job, "result": "failure"}); err != nil {
		t.Fatalf("fetch failure: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failure=1, got %f", got)
	}
	if got, err := fetchHistogramSum(mfs, "dailycart_cron_job_duration_seconds", map[string]string{"job": job}); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestNilRecordersAreNoops(t *testing.T) {
	var cron *CronJobMetrics
	cron.IncSuccess("x")
	cron.ObserveDuration("x", time.Second)
	NewCronJobMetrics(nil).IncFailure("x")

	var f *FulfillmentMetrics
	f.IncCheckout(CheckoutSuccess)
	NewFulfillmentMetrics(nil).IncTransition("pending", "confirmed")
}

func TestFulfillmentMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewFulfillmentMetrics(reg)
	m.IncCheckout(CheckoutSuccess)
	m.IncCheckout(CheckoutInsufficientStock)
	m.IncCheckout(CheckoutSuccess)
	m.IncTransition("pending", "cancelled")
	m.IncOutbox("order.created", "published")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "dailycart_checkout_total", map[string]string{"result": CheckoutSuccess}); err != nil || got != 2 {
		t.Fatalf("expected 2 successful checkouts, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "dailycart_order_transitions_total", map[string]string{"from": "pending", "to": "cancelled"}); err != nil || got != 1 {
		t.Fatalf("expected 1 transition, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "dailycart_outbox_events_total", map[string]string{"event_type": "order.created", "result": "published"}); err != nil || got != 1 {
		t.Fatalf("expected 1 published event, got %f (%v)", got, err)
	}
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing labels %v", name, labels)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, p := range pairs {
		if v, ok := want[p.GetName()]; ok {
			if v != p.GetValue() {
				return false
			}
			matched++
		}
	}
	return matched == len(want)
}
