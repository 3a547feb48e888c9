/*
	Copyright NetFoundry Inc.

	Licensed under the Apache License, Version 2.0 (the "License");
	you may not use this file except in compliance with the License.
	You may obtain a copy of the License at

	https://www.apache.org/licenses/LICENSE-2.0

	Unless required by applicable law or agreed to in writing, software
	distributed under the License is distributed on an "AS IS" BASIS,
	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
	See the License for the specific language governing permissions and
	limitations under the License.
*/

package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/openziti/xrouter"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const unmatchedRouteLabel = "unmatched"

// MetricsRecorder holds the request counter and latency histogram. Requests
// are labeled by method, matched route name, and status; route names keep
// the label cardinality bounded where raw paths would not.
type MetricsRecorder struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewMetricsRecorder creates and registers the recorder's collectors.
// Registration tolerates collectors already present, reusing them instead,
// so a recorder can be rebuilt across hot reloads against the same
// registerer.
func NewMetricsRecorder(namespace string, registerer prometheus.Registerer) (*MetricsRecorder, error) {
	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of dispatched requests",
		},
		[]string{"method", "route", "status"},
	)

	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Request dispatch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	requestsTotal, err := registerCounterVec(registerer, requestsTotal)

	if err != nil {
		return nil, errors.Wrap(err, "error registering request counter")
	}

	requestDuration, err = registerHistogramVec(registerer, requestDuration)

	if err != nil {
		return nil, errors.Wrap(err, "error registering request duration histogram")
	}

	return &MetricsRecorder{
		requestsTotal:   requestsTotal,
		requestDuration: requestDuration,
	}, nil
}

func registerCounterVec(registerer prometheus.Registerer, counter *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := registerer.Register(counter); err != nil {
		are := prometheus.AlreadyRegisteredError{}

		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}

		return nil, err
	}

	return counter, nil
}

func registerHistogramVec(registerer prometheus.Registerer, histogram *prometheus.HistogramVec) (*prometheus.HistogramVec, error) {
	if err := registerer.Register(histogram); err != nil {
		are := prometheus.AlreadyRegisteredError{}

		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
		}

		return nil, err
	}

	return histogram, nil
}

// NewObserver creates outbound middleware that counts the request and, when
// a request timer ran, observes its duration.
func (recorder *MetricsRecorder) NewObserver() xrouter.Middleware {
	return func(ctx context.Context, request *xrouter.Request, response *xrouter.Response) (xrouter.Outcome, error) {
		routeName := unmatchedRouteLabel

		if route := xrouter.RouteFromContext(ctx); route != nil {
			routeName = route.Name()
		}

		status := strconv.Itoa(response.Status())

		recorder.requestsTotal.WithLabelValues(request.Method(), routeName, status).Inc()

		if startedAt, found := response.Prop(RequestStartedAtProp); found {
			if started, ok := startedAt.(time.Time); ok {
				recorder.requestDuration.WithLabelValues(request.Method(), routeName, status).Observe(time.Since(started).Seconds())
			}
		}

		return xrouter.Continue(response), nil
	}
}

// NewObserverFactory adapts NewObserver to registry registration. The
// factory returns the same underlying collectors on every invocation, so
// repeated table builds observe into one series set.
func (recorder *MetricsRecorder) NewObserverFactory() xrouter.Factory[xrouter.Middleware] {
	observer := recorder.NewObserver()

	return func(xrouter.Options) (xrouter.Middleware, error) {
		return observer, nil
	}
}
