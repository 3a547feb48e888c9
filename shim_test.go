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

package xrouter

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

var _ FatalEventHandler = (*recordingFatalEventHandler)(nil)

type recordingFatalEventHandler struct {
	events []*FatalEvent
}

func (handler *recordingFatalEventHandler) AcceptFatalEvent(event *FatalEvent) {
	handler.events = append(handler.events, event)
}

func quietLogger() *logrus.Entry {
	logger, _ := logrustest.NewNullLogger()
	return logrus.NewEntry(logger)
}

func wildcardShimRouter(t *testing.T, handler Middleware) *Router {
	return buildTestRouter(t, &VirtualHostSpec{
		Name:    "any",
		Pattern: WildcardPattern,
		Routes: []*RouteSpec{
			{Name: "any", Pattern: WildcardPattern, Targets: singleTarget(AllHttpMethods(), handler)},
		},
	})
}

func Test_HttpShim_RequestId(t *testing.T) {

	t.Run("echoes an inbound tracing header", func(t *testing.T) {
		var seen string

		handler := func(ctx context.Context, _ *Request, response *Response) (Outcome, error) {
			seen = RequestIdFromContext(ctx)
			return Continue(response.RespondWithUtf8("text/plain", "ok")), nil
		}

		shim := NewHttpShim(wildcardShimRouter(t, handler))

		httpRequest := httptest.NewRequest("GET", "http://api.example.com/users", nil)
		httpRequest.Header.Set(DefaultTracingHeader, "abc-123")

		recorder := httptest.NewRecorder()
		shim.ServeHTTP(recorder, httpRequest)

		req := require.New(t)
		req.Equal("abc-123", seen)
		req.Equal("abc-123", recorder.Header().Get(DefaultTracingHeader))
	})

	t.Run("assigns sequence identifiers when the header is absent", func(t *testing.T) {
		shim := NewHttpShim(wildcardShimRouter(t, textHandler("ok")))

		req := require.New(t)

		recorder := httptest.NewRecorder()
		shim.ServeHTTP(recorder, httptest.NewRequest("GET", "http://api.example.com/", nil))
		req.Equal("1", recorder.Header().Get(DefaultTracingHeader))

		recorder = httptest.NewRecorder()
		shim.ServeHTTP(recorder, httptest.NewRequest("GET", "http://api.example.com/", nil))
		req.Equal("2", recorder.Header().Get(DefaultTracingHeader))
	})

	t.Run("a custom tracing header is honored", func(t *testing.T) {
		shim := NewHttpShim(wildcardShimRouter(t, textHandler("ok")), WithTracingHeader("X-Trace"))

		httpRequest := httptest.NewRequest("GET", "http://api.example.com/", nil)
		httpRequest.Header.Set("X-Trace", "trace-9")

		recorder := httptest.NewRecorder()
		shim.ServeHTTP(recorder, httpRequest)

		req := require.New(t)
		req.Equal("trace-9", recorder.Header().Get("X-Trace"))
		req.Empty(recorder.Header().Get(DefaultTracingHeader))
	})
}

func Test_HttpShim_ExternalUrl(t *testing.T) {

	t.Run("forwarded headers reconstruct the external url", func(t *testing.T) {
		var scheme, hostname string

		handler := func(_ context.Context, request *Request, response *Response) (Outcome, error) {
			scheme = request.URL().Scheme
			hostname = request.Hostname()
			return Continue(response.RespondWithUtf8("text/plain", "ok")), nil
		}

		//the virtual host matches the forwarded hostname, not the proxy's
		router := buildTestRouter(t, &VirtualHostSpec{
			Name:     "public",
			Hostname: "api.example.com",
			Routes: []*RouteSpec{
				{Name: "any", Pattern: WildcardPattern, Targets: singleTarget([]string{"GET"}, handler)},
			},
		})

		shim := NewHttpShim(router)

		httpRequest := httptest.NewRequest("GET", "http://10.0.0.7:8080/users", nil)
		httpRequest.Header.Set("X-Forwarded-Proto", "https, http")
		httpRequest.Header.Set("X-Forwarded-Host", "api.example.com, 10.0.0.7")

		recorder := httptest.NewRecorder()
		shim.ServeHTTP(recorder, httpRequest)

		req := require.New(t)
		req.Equal(200, recorder.Code)
		req.Equal("https", scheme)
		req.Equal("api.example.com", hostname)
	})

	t.Run("without forwarded headers the transport values stand", func(t *testing.T) {
		var scheme, hostname string

		handler := func(_ context.Context, request *Request, response *Response) (Outcome, error) {
			scheme = request.URL().Scheme
			hostname = request.Hostname()
			return Continue(response.RespondWithUtf8("text/plain", "ok")), nil
		}

		shim := NewHttpShim(wildcardShimRouter(t, handler))

		recorder := httptest.NewRecorder()
		shim.ServeHTTP(recorder, httptest.NewRequest("GET", "http://api.example.com:8080/users", nil))

		req := require.New(t)
		req.Equal("http", scheme)
		req.Equal("api.example.com", hostname)
	})
}

func Test_HttpShim_WriteResponse(t *testing.T) {

	t.Run("head responses carry headers but no body", func(t *testing.T) {
		shim := NewHttpShim(wildcardShimRouter(t, textHandler("the body")))

		recorder := httptest.NewRecorder()
		shim.ServeHTTP(recorder, httptest.NewRequest("HEAD", "http://api.example.com/", nil))

		req := require.New(t)
		req.Equal(200, recorder.Code)
		req.Equal("8", recorder.Header().Get("Content-Length"))
		req.Empty(recorder.Body.Bytes())
	})

	t.Run("streamed bodies are piped to the wire", func(t *testing.T) {
		handler := func(_ context.Context, _ *Request, response *Response) (Outcome, error) {
			return Continue(response.RespondWithStream("application/octet-stream", 11, strings.NewReader("streamed up"))), nil
		}

		shim := NewHttpShim(wildcardShimRouter(t, handler))

		recorder := httptest.NewRecorder()
		shim.ServeHTTP(recorder, httptest.NewRequest("GET", "http://api.example.com/download", nil))

		req := require.New(t)
		req.Equal("streamed up", recorder.Body.String())
		req.Equal("11", recorder.Header().Get("Content-Length"))
	})

	t.Run("the request body reaches the chain", func(t *testing.T) {
		handler := func(_ context.Context, request *Request, response *Response) (Outcome, error) {
			payload := map[string]string{}

			if err := request.JsonBody(&payload); err != nil {
				return Outcome{}, err
			}

			return Continue(response.RespondWithUtf8("text/plain", payload["name"])), nil
		}

		shim := NewHttpShim(wildcardShimRouter(t, handler))

		httpRequest := httptest.NewRequest("POST", "http://api.example.com/products", strings.NewReader(`{"name":"anvil"}`))

		recorder := httptest.NewRecorder()
		shim.ServeHTTP(recorder, httpRequest)

		req := require.New(t)
		req.Equal("anvil", recorder.Body.String())
	})
}

func Test_HttpShim_Fatals(t *testing.T) {

	t.Run("a panicking handler becomes a generic 500 with the stack captured", func(t *testing.T) {
		panicking := func(_ context.Context, _ *Request, _ *Response) (Outcome, error) {
			panic("kaboom")
		}

		fatals := &recordingFatalEventHandler{}

		shim := NewHttpShim(wildcardShimRouter(t, panicking), WithFatalHandler(fatals), WithLogger(quietLogger()))

		httpRequest := httptest.NewRequest("GET", "http://api.example.com/", nil)
		httpRequest.Header.Set(DefaultTracingHeader, "abc-123")

		recorder := httptest.NewRecorder()
		shim.ServeHTTP(recorder, httpRequest)

		req := require.New(t)
		req.Equal(500, recorder.Code)

		//the panic value never reaches the wire
		body := recorder.Body.String()
		req.Contains(body, GenericInternalDetail)
		req.NotContains(body, "kaboom")

		req.Len(fatals.events, 1)
		req.Equal("abc-123", fatals.events[0].RequestId)
		req.Contains(fatals.events[0].Err.Error(), "kaboom")
		req.NotEmpty(fatals.events[0].Stack)
	})

	t.Run("an unhandled dispatch error becomes a generic 500", func(t *testing.T) {
		failing := func(_ context.Context, _ *Request, _ *Response) (Outcome, error) {
			return Outcome{}, errors.New("database gone")
		}

		fatals := &recordingFatalEventHandler{}

		shim := NewHttpShim(wildcardShimRouter(t, failing), WithFatalHandler(fatals), WithLogger(quietLogger()))

		recorder := httptest.NewRecorder()
		shim.ServeHTTP(recorder, httptest.NewRequest("GET", "http://api.example.com/", nil))

		req := require.New(t)
		req.Equal(500, recorder.Code)

		body := recorder.Body.String()
		req.Contains(body, GenericInternalDetail)
		req.NotContains(body, "database gone")

		req.Len(fatals.events, 1)
		req.EqualError(fatals.events[0].Err, "database gone")
		req.Empty(fatals.events[0].Stack)
	})

	t.Run("handled conditions never raise fatal events", func(t *testing.T) {
		fatals := &recordingFatalEventHandler{}

		router := buildTestRouter(t, &VirtualHostSpec{
			Name:     "public",
			Hostname: "api.example.com",
			Routes: []*RouteSpec{
				{Name: "users", Pattern: "/users", Targets: singleTarget([]string{"GET"}, textHandler("ok"))},
			},
		})

		shim := NewHttpShim(router, WithFatalHandler(fatals))

		recorder := httptest.NewRecorder()
		shim.ServeHTTP(recorder, httptest.NewRequest("POST", "http://api.example.com/users", nil))

		req := require.New(t)
		req.Equal(405, recorder.Code)
		req.Empty(fatals.events)
	})
}
