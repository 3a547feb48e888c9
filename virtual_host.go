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
	"strings"
)

// VirtualHost is a routing scope selected by request hostname. It matches
// either an exact hostname or a compiled hostname pattern, never both, and
// holds an ordered list of flattened Routes. VirtualHosts are immutable once
// constructed; hot-reload replaces the router's whole list rather than
// editing one in place.
type VirtualHost struct {
	name     string
	hostname string
	matcher  *PatternMatcher
	routes   []*Route
}

// NewExactVirtualHost creates a virtual host matched by case-insensitive
// hostname equality.
func NewExactVirtualHost(name, hostname string, routes []*Route) *VirtualHost {
	return &VirtualHost{
		name:     name,
		hostname: strings.ToLower(hostname),
		routes:   routes,
	}
}

// NewPatternVirtualHost creates a virtual host matched by a compiled
// hostname pattern.
func NewPatternVirtualHost(name string, matcher *PatternMatcher, routes []*Route) *VirtualHost {
	return &VirtualHost{
		name:    name,
		matcher: matcher,
		routes:  routes,
	}
}

func (virtualHost *VirtualHost) Name() string {
	return virtualHost.name
}

// Routes returns the virtual host's flattened routes in registration order.
// Treat as read-only.
func (virtualHost *VirtualHost) Routes() []*Route {
	return virtualHost.routes
}

// MatchHostname tests the candidate hostname. Exact hostnames compare with
// case-insensitive equality and yield no parameters; pattern hosts defer to
// the compiled matcher, which may extract hostname parameters.
func (virtualHost *VirtualHost) MatchHostname(hostname string) (Params, bool) {
	if virtualHost.matcher == nil {
		if strings.EqualFold(virtualHost.hostname, hostname) {
			return Params{}, true
		}

		return nil, false
	}

	return virtualHost.matcher.Match(hostname)
}

// MatchRequest scans the virtual host's routes in registration order and
// returns the first route matching the request pathname. Specification
// authors register more specific patterns ahead of more general ones; no
// automatic specificity ranking is applied.
func (virtualHost *VirtualHost) MatchRequest(request *Request) (*Route, Params, bool) {
	for _, route := range virtualHost.routes {
		if params, matched := route.MatchPathname(request.Pathname()); matched {
			return route, params, true
		}
	}

	return nil, nil, false
}
