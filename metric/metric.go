// Package metric captures processing counters of graph nodes and publishes
// them with expvar.
package metric

import (
	"expvar"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/davidhesselbom/freq-sub001/signal"
)

const componentsLabel = "freq.operations"

const (
	// NodeCounter counts number of nodes metered for the operation.
	NodeCounter = "Nodes"
	// TaskCounter measures number of executed tasks.
	TaskCounter = "Tasks"
	// SampleCounter measures number of computed samples.
	SampleCounter = "Samples"
	// LatencyCounter is the processing time of the latest task.
	LatencyCounter = "Latency"
	// BusyCounter accumulates processing time of all tasks.
	BusyCounter = "Busy"
	// DurationCounter counts what's the duration of computed signal.
	DurationCounter = "Duration"
)

var (
	components = metrics{
		m: make(map[string]metric),
	}

	counters = []string{
		NodeCounter,
		TaskCounter,
		SampleCounter,
		LatencyCounter,
		BusyCounter,
		DurationCounter,
	}
)

// Get metrics values for provided component.
func Get(component interface{}) map[string]string {
	return getCounters(getType(component))
}

// GetAll returns counters for all measured components.
func GetAll() map[string]map[string]string {
	m := make(map[string]map[string]string)
	components.Lock()
	defer components.Unlock()
	for component := range components.m {
		m[component] = getCounters(component)
	}
	return m
}

func getCounters(componentType string) map[string]string {
	m := make(map[string]string)
	for _, counter := range counters {
		v := expvar.Get(key(componentType, counter))
		if v != nil {
			m[counter] = v.String()
		}
	}
	return m
}

// ResetFunc starts measuring a single task. The returned closure must be
// called once the task is done.
type ResetFunc func() MeasureFunc

// MeasureFunc captures metrics when a task is done.
type MeasureFunc func(samples int64, sampleRate int)

// Meter registers a node of the component type and returns the closure to
// measure its tasks.
func Meter(component interface{}) ResetFunc {
	metric := components.get(getType(component))
	metric.nodes.Add(1)
	return func() MeasureFunc {
		startedAt := time.Now()
		return func(samples int64, sampleRate int) {
			elapsed := time.Since(startedAt)
			metric.latency.set(elapsed)
			metric.busy.add(elapsed)
			metric.tasks.Add(1)
			metric.samples.Add(samples)
			metric.duration.add(signal.DurationOf(sampleRate, samples))
		}
	}
}

type metrics struct {
	sync.Mutex
	m map[string]metric
}

func (m *metrics) get(componentType string) metric {
	m.Lock()
	defer m.Unlock()
	if metric, ok := m.m[componentType]; ok {
		return metric
	}
	metric := newMetric(componentType)
	m.m[componentType] = metric
	return metric
}

type metric struct {
	nodes    *expvar.Int
	tasks    *expvar.Int
	samples  *expvar.Int
	latency  *duration
	busy     *duration
	duration *duration
}

func newMetric(componentType string) metric {
	m := metric{
		nodes:    expvar.NewInt(key(componentType, NodeCounter)),
		tasks:    expvar.NewInt(key(componentType, TaskCounter)),
		samples:  expvar.NewInt(key(componentType, SampleCounter)),
		latency:  &duration{},
		busy:     &duration{},
		duration: &duration{},
	}
	expvar.Publish(key(componentType, LatencyCounter), m.latency)
	expvar.Publish(key(componentType, BusyCounter), m.busy)
	expvar.Publish(key(componentType, DurationCounter), m.duration)
	return m
}

func key(componentType, counter string) string {
	return fmt.Sprintf("%s.%s.%s", componentsLabel, componentType, counter)
}

// getType uses the component name if it has one, otherwise its type.
func getType(component interface{}) string {
	if n, ok := component.(interface{ Name() string }); ok {
		return n.Name()
	}
	rv := reflect.ValueOf(component)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	return rv.Type().String()
}

// duration allows to format time.Duration metric values.
type duration struct {
	d int64
}

func (v *duration) String() string {
	return fmt.Sprintf("%q", time.Duration(atomic.LoadInt64(&v.d)).String())
}

func (v *duration) add(delta time.Duration) {
	atomic.AddInt64(&v.d, int64(delta))
}

func (v *duration) set(value time.Duration) {
	atomic.StoreInt64(&v.d, int64(value))
}
