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
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/michaelquigley/pfxlog"
	"github.com/openziti/foundation/v2/debugz"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type ContextKey string

// DefaultTracingHeader is the inbound header trusted for request
// identifiers. The assigned identifier, inbound or generated, is echoed back
// on every response under the same header.
const DefaultTracingHeader = "X-Request-Id"

// ShimOption adjusts an HttpShim at construction.
type ShimOption func(shim *HttpShim)

// WithTracingHeader overrides the header consulted for inbound request
// identifiers.
func WithTracingHeader(header string) ShimOption {
	return func(shim *HttpShim) {
		shim.tracingHeader = header
	}
}

// WithFatalHandler registers the hook invoked when dispatch fails in a way
// no error handler converted to a response: a propagated unexpected error or
// a recovered panic. The owning process decides what fatal means for it.
func WithFatalHandler(handler FatalEventHandler) ShimOption {
	return func(shim *HttpShim) {
		shim.fatalHandler = handler
	}
}

// WithLogger overrides the shim's logger.
func WithLogger(logger *logrus.Entry) ShimOption {
	return func(shim *HttpShim) {
		shim.logger = logger
	}
}

// HttpShim adapts a net/http server to the Router dispatch model. It assigns
// request identifiers, reconstructs the externally visible URL behind
// reverse proxies, builds the Request/Response pair, dispatches, and writes
// the outcome back to the wire. Unhandled dispatch errors and panics are
// converted to a generic internal-error response with no detail leakage and
// surfaced through the fatal handler.
type HttpShim struct {
	router        *Router
	tracingHeader string
	fatalHandler  FatalEventHandler
	logger        *logrus.Entry
	sequence      atomic.Uint64
}

var _ http.Handler = (*HttpShim)(nil)

func NewHttpShim(router *Router, options ...ShimOption) *HttpShim {
	shim := &HttpShim{
		router:        router,
		tracingHeader: DefaultTracingHeader,
		logger:        pfxlog.Logger().Entry,
	}

	for _, option := range options {
		option(shim)
	}

	return shim
}

func (shim *HttpShim) ServeHTTP(writer http.ResponseWriter, httpRequest *http.Request) {
	requestId := shim.requestId(httpRequest)

	request := NewRequest(requestId, httpRequest.Method, httpRequest.Header, externalUrl(httpRequest), httpRequest.Body)
	response := NewResponse()

	ctx := context.WithValue(httpRequest.Context(), RequestIdContextKey, requestId)

	result, err := shim.dispatch(ctx, request, response)

	if err != nil {
		result = shim.renderFatal(requestId, err)
	}

	result.SetHeader(shim.tracingHeader, requestId)

	shim.drainBody(httpRequest)
	shim.writeResponse(writer, request, result)
}

// requestId trusts a non-empty tracing header when present, otherwise
// assigns the next value of a monotonically increasing per-process sequence.
func (shim *HttpShim) requestId(httpRequest *http.Request) string {
	if inbound := strings.TrimSpace(httpRequest.Header.Get(shim.tracingHeader)); inbound != "" {
		return inbound
	}

	return strconv.FormatUint(shim.sequence.Add(1), 10)
}

// dispatch runs the router with panic recovery. A recovered panic is
// returned as an error carrying the captured stack.
func (shim *HttpShim) dispatch(ctx context.Context, request *Request, response *Response) (result *Response, err error) {
	defer func() {
		if panicVal := recover(); panicVal != nil {
			result = nil
			err = &panicError{value: panicVal, stack: debugz.GenerateLocalStack()}
		}
	}()

	return shim.router.HandleHttpRequest(ctx, request, response)
}

// renderFatal logs an unhandled dispatch failure, notifies the fatal
// handler, and produces the generic internal-error response. The cause's
// message never reaches the wire.
func (shim *HttpShim) renderFatal(requestId string, cause error) *Response {
	stack := ""

	var recovered *panicError

	if errors.As(cause, &recovered) {
		stack = recovered.stack
		shim.logger.Errorf("panic caught processing request [%s]: %v\n%v", requestId, recovered.value, recovered.stack)
	} else {
		shim.logger.Errorf("unhandled error processing request [%s]: %v", requestId, cause)
	}

	if shim.fatalHandler != nil {
		shim.fatalHandler.AcceptFatalEvent(&FatalEvent{
			RequestId: requestId,
			Err:       cause,
			Stack:     stack,
		})
	}

	internal := NewInternalServerError(cause)
	response := NewResponse().SetStatus(internal.Status)

	if rendered, err := response.RespondWithJson(internal.Envelope()); err == nil {
		return rendered
	}

	return response
}

// drainBody consumes any request bytes the chain left unread. Unconsumed
// bytes on an open connection stall keep-alive reuse.
func (shim *HttpShim) drainBody(httpRequest *http.Request) {
	if httpRequest.Body == nil {
		return
	}

	_, _ = io.Copy(io.Discard, httpRequest.Body)
}

func (shim *HttpShim) writeResponse(writer http.ResponseWriter, request *Request, response *Response) {
	header := writer.Header()

	for name, values := range response.Header() {
		header[name] = values
	}

	writer.WriteHeader(response.Status())

	if request.IsHead() {
		return
	}

	if stream := response.BodyStream(); stream != nil {
		if _, err := io.Copy(writer, stream); err != nil {
			shim.logger.Warnf("error piping response stream for request [%s]: %v", request.Id(), err)
		}

		return
	}

	if body := response.BodyBytes(); body != nil {
		if _, err := writer.Write(body); err != nil {
			shim.logger.Warnf("error writing response body for request [%s]: %v", request.Id(), err)
		}
	}
}

// externalUrl reconstructs the externally visible URL for a request that may
// have traversed a reverse proxy: X-Forwarded-Proto and X-Forwarded-Host win
// (first value of a comma separated list), with plain fallbacks when absent.
func externalUrl(httpRequest *http.Request) *url.URL {
	requestUrl := *httpRequest.URL

	scheme := firstForwardedValue(httpRequest.Header.Get("X-Forwarded-Proto"))

	if scheme == "" {
		if httpRequest.TLS != nil {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}

	host := firstForwardedValue(httpRequest.Header.Get("X-Forwarded-Host"))

	if host == "" {
		host = httpRequest.Host
	}

	requestUrl.Scheme = scheme
	requestUrl.Host = host

	return &requestUrl
}

func firstForwardedValue(header string) string {
	if header == "" {
		return ""
	}

	return strings.TrimSpace(strings.Split(header, ",")[0])
}

type panicError struct {
	value interface{}
	stack string
}

func (p *panicError) Error() string {
	return fmt.Sprintf("panic during dispatch: %v", p.value)
}
