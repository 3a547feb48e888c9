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
	"net/http"
	"strings"

	"github.com/michaelquigley/pfxlog"
	"github.com/openziti/foundation/v2/concurrenz"
	"github.com/pkg/errors"
)

// Router owns the active routing table and the top-level dispatch protocol.
// The table is the only state shared across concurrent requests; it is held
// behind an atomic reference and replaced wholesale by ResetVirtualHosts, so
// a request mid-dispatch keeps the self-consistent snapshot it started with.
// Routers are safe for concurrent use.
type Router struct {
	virtualHosts       concurrenz.AtomicValue[[]*VirtualHost]
	errorEventHandlers concurrenz.CopyOnWriteSlice[ErrorEventHandler]
}

func NewRouter(virtualHosts []*VirtualHost) *Router {
	router := &Router{}
	router.virtualHosts.Store(virtualHosts)
	return router
}

// VirtualHosts returns the current table snapshot in registration order.
// Treat as read-only.
func (router *Router) VirtualHosts() []*VirtualHost {
	return router.virtualHosts.Load()
}

// ResetVirtualHosts atomically replaces the routing table. Requests already
// dispatching continue against the table they started with. Callers are
// responsible for only swapping in fully-built tables; a failed build keeps
// the previous table in effect by simply not calling this.
func (router *Router) ResetVirtualHosts(virtualHosts []*VirtualHost) {
	router.virtualHosts.Store(virtualHosts)
	pfxlog.Logger().Debugf("routing table replaced with [%d] virtual hosts", len(virtualHosts))
}

// AddErrorEventHandler subscribes an observer to error events. Every error
// encountered during dispatch is delivered exactly once, whether or not the
// error cascade ultimately handles it.
func (router *Router) AddErrorEventHandler(handler ErrorEventHandler) {
	router.errorEventHandlers.Append(handler)
}

// RemoveErrorEventHandler unsubscribes a previously added observer.
func (router *Router) RemoveErrorEventHandler(handler ErrorEventHandler) {
	router.errorEventHandlers.Delete(handler)
}

func (router *Router) notifyError(requestId string, cause error) {
	event := &ErrorEvent{
		RequestId: requestId,
		Err:       cause,
	}

	for _, handler := range router.errorEventHandlers.Value() {
		handler.AcceptErrorEvent(event)
	}
}

// MatchHostname scans the virtual hosts in registration order and returns
// the first match with its extracted hostname parameters. When nothing
// matches, the first-registered virtual host is returned with empty
// parameters rather than failing: every request resolves to some host, and
// unmatched-host policy is pushed down to routes and handlers. Returns nil
// only when the table is empty.
func (router *Router) MatchHostname(hostname string) (*VirtualHost, Params) {
	virtualHosts := router.virtualHosts.Load()

	for _, virtualHost := range virtualHosts {
		if params, matched := virtualHost.MatchHostname(hostname); matched {
			return virtualHost, params
		}
	}

	if len(virtualHosts) > 0 {
		pfxlog.Logger().Debugf("no virtual host matched hostname [%s], falling back to [%s]", hostname, virtualHosts[0].Name())
		return virtualHosts[0], Params{}
	}

	return nil, nil
}

// HandleHttpRequest is the dispatch entry point. It resolves the virtual
// host and route by hostname and pathname, the target by method, runs the
// target's middleware chain, and validates the chain's final response. Any
// failure along the way is routed through the error cascade; errors the
// cascade does not convert into a response propagate to the caller, which
// treats them as fatal for the request.
func (router *Router) HandleHttpRequest(ctx context.Context, request *Request, response *Response) (*Response, error) {
	virtualHost, hostnameParams := router.MatchHostname(request.Hostname())

	if virtualHost == nil {
		return router.dispatchError(ctx, request, response, NewNotFoundError(request.Pathname()), nil, nil)
	}

	request.SetHostnameParams(hostnameParams)
	ctx = context.WithValue(ctx, VirtualHostContextKey, virtualHost)

	route, pathnameParams, found := virtualHost.MatchRequest(request)

	if !found {
		return router.dispatchError(ctx, request, response, NewNotFoundError(request.Pathname()), nil, nil)
	}

	request.SetPathnameParams(pathnameParams)
	ctx = context.WithValue(ctx, RouteContextKey, route)

	target := route.TargetForMethod(request.Method())

	if target == nil {
		cause := NewMethodNotAllowedError(request.Method(), route.AllowedMethods())
		return router.dispatchError(ctx, request, response, cause, nil, route)
	}

	current := response

	for _, middleware := range target.Chain() {
		outcome, err := middleware(ctx, request, current)

		if err != nil {
			return router.dispatchError(ctx, request, current, err, target, route)
		}

		current = outcome.Response()

		if outcome.Halted() {
			break
		}
	}

	if err := validateResponse(request, current); err != nil {
		if current == nil {
			current = response
		}

		return router.dispatchError(ctx, request, current, err, target, route)
	}

	return current, nil
}

// dispatchError runs the error cascade: notify observers, then try target
// error handlers, then route error handlers, then the built-in default. The
// default only converts errors carrying HTTP semantics; anything else is
// returned to the caller unhandled. Each handler runs at most once.
func (router *Router) dispatchError(ctx context.Context, request *Request, response *Response, cause error, target *Target, route *Route) (*Response, error) {
	router.notifyError(request.Id(), cause)

	if target != nil {
		if handled := target.HandleError(ctx, request, response, cause); handled != nil {
			return handled, nil
		}
	}

	if route != nil {
		if handled := route.HandleError(ctx, request, response, cause); handled != nil {
			return handled, nil
		}
	}

	var httpError *HttpError

	if errors.As(cause, &httpError) {
		return renderHttpError(response, httpError)
	}

	return nil, cause
}

// renderHttpError writes the structured envelope for an error that carries
// HTTP semantics. The envelope detail comes from the error's public detail
// only; unexpected errors never reach this path.
func renderHttpError(response *Response, httpError *HttpError) (*Response, error) {
	response.SetStatus(httpError.Status)

	if httpError.Status == http.StatusMethodNotAllowed && len(httpError.AllowedMethods) > 0 {
		response.SetHeader("Allow", strings.Join(httpError.AllowedMethods, ", "))
	}

	return response.RespondWithJson(httpError.Envelope())
}

// validateResponse asserts the shape of the value a middleware chain handed
// back. A malformed response is a programming error in the chain, reported
// as an internal failure rather than a routing condition.
func validateResponse(request *Request, response *Response) error {
	if response == nil {
		return errors.Errorf("assert failed: middleware chain for request [%s] returned a nil response", request.Id())
	}

	if response.Status() == 0 {
		return errors.Errorf("assert failed: middleware chain for request [%s] returned a response with no status", request.Id())
	}

	if response.Header() == nil {
		return errors.Errorf("assert failed: middleware chain for request [%s] returned a response with no headers", request.Id())
	}

	return nil
}
