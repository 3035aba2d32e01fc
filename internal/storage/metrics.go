package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Instrumented wraps a Backend and records one counter sample and one latency sample per call.
type Instrumented struct {
	next     Backend
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var _ Backend = (*Instrumented)(nil)

// Instrument registers the backend metrics on reg and returns the wrapped backend.
func Instrument(next Backend, driver string, reg prometheus.Registerer) (*Instrumented, error) {
	ops := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "docstore_backend_operations_total",
			Help:        "Total number of object storage operations.",
			ConstLabels: prometheus.Labels{"driver": driver},
		},
		[]string{"operation", "result"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "docstore_backend_operation_duration_seconds",
			Help:        "Latency of object storage operations.",
			ConstLabels: prometheus.Labels{"driver": driver},
			Buckets:     prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	if err := reg.Register(ops); err != nil {
		return nil, err
	}
	if err := reg.Register(duration); err != nil {
		return nil, err
	}
	return &Instrumented{next: next, ops: ops, duration: duration}, nil
}

func (i *Instrumented) observe(op string, start time.Time, err error) {
	result := "ok"
	switch {
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	case err != nil:
		result = "error"
	}
	i.ops.WithLabelValues(op, result).Inc()
	i.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Put records the wrapped Put.
func (i *Instrumented) Put(ctx context.Context, bucket, key string, r io.Reader, size int64) (err error) {
	defer func(start time.Time) { i.observe("put", start, err) }(time.Now())
	return i.next.Put(ctx, bucket, key, r, size)
}

// Get records the wrapped Get.
func (i *Instrumented) Get(ctx context.Context, bucket, key string) (data []byte, err error) {
	defer func(start time.Time) { i.observe("get", start, err) }(time.Now())
	return i.next.Get(ctx, bucket, key)
}

// Delete records the wrapped Delete.
func (i *Instrumented) Delete(ctx context.Context, bucket, key string) (err error) {
	defer func(start time.Time) { i.observe("delete", start, err) }(time.Now())
	return i.next.Delete(ctx, bucket, key)
}

// List records the wrapped List.
func (i *Instrumented) List(ctx context.Context, bucket, prefix string) (out []ObjectSummary, err error) {
	defer func(start time.Time) { i.observe("list", start, err) }(time.Now())
	return i.next.List(ctx, bucket, prefix)
}

// Ping forwards to the wrapped backend when it supports it.
func (i *Instrumented) Ping(ctx context.Context) error {
	if p, ok := i.next.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
