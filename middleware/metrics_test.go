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
	"testing"

	"github.com/openziti/xrouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func routeContext(t *testing.T, name, pattern string) context.Context {
	matcher, err := xrouter.CompilePathnamePattern(pattern)
	require.NoError(t, err)

	route := xrouter.NewRoute(name, matcher, nil, nil)

	return context.WithValue(context.Background(), xrouter.RouteContextKey, route)
}

func Test_NewMetricsRecorder(t *testing.T) {

	t.Run("counts requests by method, route, and status", func(t *testing.T) {
		registry := prometheus.NewRegistry()

		recorder, err := NewMetricsRecorder("xrouter", registry)

		req := require.New(t)
		req.NoError(err)

		observer := recorder.NewObserver()

		ctx := routeContext(t, "public.users", "/users")
		request := newTestRequest("GET", "https://api.example.com/users", nil)
		response := xrouter.NewResponse()

		_, err = observer(ctx, request, response)
		req.NoError(err)

		_, err = observer(ctx, request, response)
		req.NoError(err)

		counted := testutil.ToFloat64(recorder.requestsTotal.WithLabelValues("GET", "public.users", "200"))
		req.Equal(float64(2), counted)
	})

	t.Run("requests dispatched without a matched route use the fallback label", func(t *testing.T) {
		registry := prometheus.NewRegistry()

		recorder, err := NewMetricsRecorder("xrouter", registry)

		req := require.New(t)
		req.NoError(err)

		observer := recorder.NewObserver()

		request := newTestRequest("GET", "https://api.example.com/missing", nil)
		response := xrouter.NewResponse().SetStatus(404)

		_, err = observer(context.Background(), request, response)
		req.NoError(err)

		counted := testutil.ToFloat64(recorder.requestsTotal.WithLabelValues("GET", unmatchedRouteLabel, "404"))
		req.Equal(float64(1), counted)
	})

	t.Run("durations are observed only when a request timer ran", func(t *testing.T) {
		registry := prometheus.NewRegistry()

		recorder, err := NewMetricsRecorder("xrouter", registry)

		req := require.New(t)
		req.NoError(err)

		observer := recorder.NewObserver()
		ctx := routeContext(t, "public.users", "/users")
		request := newTestRequest("GET", "https://api.example.com/users", nil)

		//no timer prop: count only, no duration series
		_, err = observer(ctx, request, xrouter.NewResponse())
		req.NoError(err)
		req.Equal(0, testutil.CollectAndCount(recorder.requestDuration))

		//with the timer prop the duration series appears
		timer := NewRequestTimer()
		outcome, err := timer(ctx, request, xrouter.NewResponse())
		req.NoError(err)

		_, err = observer(ctx, request, outcome.Response())
		req.NoError(err)
		req.Equal(1, testutil.CollectAndCount(recorder.requestDuration))
	})

	t.Run("rebuilding against the same registerer reuses the collectors", func(t *testing.T) {
		registry := prometheus.NewRegistry()

		first, err := NewMetricsRecorder("xrouter", registry)

		req := require.New(t)
		req.NoError(err)

		second, err := NewMetricsRecorder("xrouter", registry)
		req.NoError(err)

		observer := first.NewObserver()
		ctx := routeContext(t, "public.users", "/users")
		request := newTestRequest("GET", "https://api.example.com/users", nil)

		_, err = observer(ctx, request, xrouter.NewResponse())
		req.NoError(err)

		//the second recorder reads the series the first one incremented
		counted := testutil.ToFloat64(second.requestsTotal.WithLabelValues("GET", "public.users", "200"))
		req.Equal(float64(1), counted)
	})

	t.Run("a conflicting collector is an error", func(t *testing.T) {
		registry := prometheus.NewRegistry()

		conflicting := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xrouter",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "something else entirely",
		})

		req := require.New(t)
		req.NoError(registry.Register(conflicting))

		_, err := NewMetricsRecorder("xrouter", registry)
		req.Error(err)
		req.Contains(err.Error(), "error registering request counter")
	})
}
