package metrics

import (
	"sync"
	"time"
)

// Collector provides a centralized way to collect and retrieve metrics.
// A nil *Collector is valid and records nothing.
type Collector struct {
	mutex               sync.RWMutex
	counters            map[string]int64
	gauges              map[string]float64
	requestCounts       map[string]int64
	requestLatencies    map[string][]time.Duration
	invocationCounts    map[string]int64
	invocationLatencies map[string][]time.Duration
	messageBusCounts    map[string]int64
	messageBusLatencies map[string][]time.Duration
	errorCounts         map[string]int64
	startTime           time.Time
	maxHistogramSamples int
}

// Counter metrics
const (
	CounterInvocations            = "invocations_total"
	CounterInvocationsFailed      = "invocations_failed_total"
	CounterRecordsReceived        = "records_received_total"
	CounterRecordsSkipped         = "records_skipped_total"
	CounterDevicesSelected        = "devices_selected_total"
	CounterTransitions            = "transitions_total"
	CounterTransitionFailures     = "transition_failures_total"
	CounterNotificationsPublished = "notifications_published_total"
	CounterPublishFailures        = "publish_failures_total"
	CounterWebhookPosts           = "webhook_posts_total"
	CounterWebhookFailures        = "webhook_failures_total"
	CounterReportsPublished       = "reports_published_total"
	CounterHTTPRequests           = "http_requests_total"
	CounterHTTPRequestsError      = "http_requests_error_total"
	CounterMessagesSent           = "messages_sent_total"
	CounterMessagesReceived       = "messages_received_total"
	CounterMessagesCompleted      = "messages_completed_total"
	CounterMessagesError          = "messages_error_total"
	CounterErrorsTotal            = "errors_total"
)

// Gauge metrics
const (
	GaugePendingMessages = "pending_messages"
	GaugeSystemMemory    = "system_memory_bytes"
)

// Message bus operations
const (
	MessageBusOperationSend     = "send"
	MessageBusOperationReceive  = "receive"
	MessageBusOperationComplete = "complete"
	MessageBusOperationAbandon  = "abandon"
)

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		counters:            make(map[string]int64),
		gauges:              make(map[string]float64),
		requestCounts:       make(map[string]int64),
		requestLatencies:    make(map[string][]time.Duration),
		invocationCounts:    make(map[string]int64),
		invocationLatencies: make(map[string][]time.Duration),
		messageBusCounts:    make(map[string]int64),
		messageBusLatencies: make(map[string][]time.Duration),
		errorCounts:         make(map[string]int64),
		startTime:           time.Now(),
		maxHistogramSamples: 1000,
	}
}

// IncrementCounter increments a counter by the given value
func (m *Collector) IncrementCounter(name string, value int64) {
	if m == nil {
		return
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.counters[name] += value
}

// SetGauge sets a gauge to the given value
func (m *Collector) SetGauge(name string, value float64) {
	if m == nil {
		return
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.gauges[name] = value
}

// Counter returns the current value of a counter
func (m *Collector) Counter(name string) int64 {
	if m == nil {
		return 0
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.counters[name]
}

func (m *Collector) appendLatency(series map[string][]time.Duration, key string, latency time.Duration) {
	latencies, ok := series[key]
	if !ok {
		latencies = make([]time.Duration, 0, m.maxHistogramSamples)
	}
	if len(latencies) >= m.maxHistogramSamples {
		// Remove the oldest sample
		latencies = latencies[1:]
	}
	series[key] = append(latencies, latency)
}

// RecordInvocation records one function invocation
func (m *Collector) RecordInvocation(function string, success bool, latency time.Duration) {
	if m == nil {
		return
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.counters[CounterInvocations]++
	m.invocationCounts[function]++
	if !success {
		m.counters[CounterInvocationsFailed]++
	}
	m.appendLatency(m.invocationLatencies, function, latency)
}

// RecordHTTPRequest records metrics for an HTTP request
func (m *Collector) RecordHTTPRequest(path string, statusCode int, latency time.Duration) {
	if m == nil {
		return
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.counters[CounterHTTPRequests]++
	m.requestCounts[path]++
	if statusCode >= 400 {
		m.counters[CounterHTTPRequestsError]++
	}
	m.appendLatency(m.requestLatencies, path, latency)
}

// RecordMessageBusOperation records metrics for a message bus operation
func (m *Collector) RecordMessageBusOperation(operation string, success bool, latency time.Duration) {
	if m == nil {
		return
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.messageBusCounts[operation]++

	if success {
		switch operation {
		case MessageBusOperationSend:
			m.counters[CounterMessagesSent]++
		case MessageBusOperationReceive:
			m.counters[CounterMessagesReceived]++
		case MessageBusOperationComplete:
			m.counters[CounterMessagesCompleted]++
		}
	} else {
		m.counters[CounterMessagesError]++
		m.errorCounts["message_bus"]++
	}

	m.appendLatency(m.messageBusLatencies, operation, latency)
}

// RecordError records an error of the given kind
func (m *Collector) RecordError(kind string) {
	if m == nil {
		return
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.errorCounts[kind]++
	m.counters[CounterErrorsTotal]++
}

// SetPendingMessages sets the size of the last received batch
func (m *Collector) SetPendingMessages(count int) {
	m.SetGauge(GaugePendingMessages, float64(count))
}

func averageMillis(series map[string][]time.Duration) map[string]float64 {
	out := make(map[string]float64, len(series))
	for key, latencies := range series {
		if len(latencies) == 0 {
			continue
		}
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		out[key] = float64(sum.Milliseconds()) / float64(len(latencies))
	}
	return out
}

func copyInts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// GetMetrics returns all collected metrics in a structured format
func (m *Collector) GetMetrics() map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	gauges := make(map[string]float64, len(m.gauges))
	for k, v := range m.gauges {
		gauges[k] = v
	}

	return map[string]interface{}{
		"uptime_seconds":           time.Since(m.startTime).Seconds(),
		"counters":                 copyInts(m.counters),
		"gauges":                   gauges,
		"request_counts":           copyInts(m.requestCounts),
		"request_latencies_ms":     averageMillis(m.requestLatencies),
		"invocation_counts":        copyInts(m.invocationCounts),
		"invocation_latencies_ms":  averageMillis(m.invocationLatencies),
		"message_bus_counts":       copyInts(m.messageBusCounts),
		"message_bus_latencies_ms": averageMillis(m.messageBusLatencies),
		"error_counts":             copyInts(m.errorCounts),
	}
}

// GetHealthStatus returns a simple health status based on metrics
func (m *Collector) GetHealthStatus() map[string]interface{} {
	if m == nil {
		return map[string]interface{}{"status": map[string]interface{}{"healthy": true}}
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	// Invocations are best-effort; a failed invocation never marks the
	// process unhealthy. The ratio is reported for dashboards.
	failureRate := 0.0
	if total := m.counters[CounterInvocations]; total > 0 {
		failureRate = float64(m.counters[CounterInvocationsFailed]) / float64(total)
	}

	return map[string]interface{}{
		"status": map[string]interface{}{
			"healthy":        true,
			"uptime_seconds": time.Since(m.startTime).Seconds(),
		},
		"metrics": map[string]interface{}{
			"invocations":             m.counters[CounterInvocations],
			"invocation_failure_rate": failureRate,
			"transitions":             m.counters[CounterTransitions],
			"notifications_published": m.counters[CounterNotificationsPublished],
			"webhook_posts":           m.counters[CounterWebhookPosts],
			"messages_error":          m.counters[CounterMessagesError],
		},
	}
}
