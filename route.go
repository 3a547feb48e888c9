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

	"github.com/openziti/foundation/v2/stringz"
)

// Route is a routing scope selected by request pathname within a
// VirtualHost. It holds a compiled pathname matcher, an ordered list of
// Targets, and the error handlers inherited from its spec ancestry
// (most specific first). Routes are immutable once constructed.
type Route struct {
	name          string
	matcher       *PatternMatcher
	targets       []*Target
	errorHandlers []ErrorHandler
}

func NewRoute(name string, matcher *PatternMatcher, targets []*Target, errorHandlers []ErrorHandler) *Route {
	return &Route{
		name:          name,
		matcher:       matcher,
		targets:       targets,
		errorHandlers: errorHandlers,
	}
}

// Name returns the dotted name assembled during flattening, used for
// reporting.
func (route *Route) Name() string {
	return route.name
}

// Pattern returns the pathname pattern the route was compiled from.
func (route *Route) Pattern() string {
	return route.matcher.Source()
}

// MatchPathname tests the request pathname against the route's compiled
// pattern, returning extracted parameters on success.
func (route *Route) MatchPathname(pathname string) (Params, bool) {
	return route.matcher.Match(pathname)
}

// TargetForMethod scans the route's targets in registration order and
// returns the first whose method set contains the given method, or nil.
func (route *Route) TargetForMethod(method string) *Target {
	for _, target := range route.targets {
		if target.IsMethodAllowed(method) {
			return target
		}
	}

	return nil
}

// Targets returns the route's targets in registration order. Treat as
// read-only.
func (route *Route) Targets() []*Target {
	return route.targets
}

// AllowedMethods returns the union of all target method sets in registration
// order, without duplicates. It supplies the Allow header for 405 responses.
func (route *Route) AllowedMethods() []string {
	var allowed []string

	for _, target := range route.targets {
		for _, method := range target.Methods() {
			if !stringz.Contains(allowed, method) {
				allowed = append(allowed, method)
			}
		}
	}

	return allowed
}

// HandleError tries the route's error handlers in registration order and
// returns the first non-nil response. It returns nil when no handler claimed
// the error, which advances the cascade to the router's default handling.
func (route *Route) HandleError(ctx context.Context, request *Request, response *Response, cause error) *Response {
	for _, errorHandler := range route.errorHandlers {
		if handled := errorHandler(ctx, request, response, cause); handled != nil {
			return handled
		}
	}

	return nil
}
