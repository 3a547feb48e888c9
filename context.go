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

import "context"

const (
	VirtualHostContextKey = ContextKey("xrouter.VirtualHost.ContextKey")
	RouteContextKey       = ContextKey("xrouter.Route.ContextKey")
	RequestIdContextKey   = ContextKey("xrouter.RequestId.ContextKey")
)

// VirtualHostFromContext is a utility function to retrieve the *VirtualHost
// that the dispatcher matched, during downstream middleware processing, from
// the request context.
func VirtualHostFromContext(ctx context.Context) *VirtualHost {
	if val := ctx.Value(VirtualHostContextKey); val != nil {
		if virtualHost, ok := val.(*VirtualHost); ok {
			return virtualHost
		}
	}
	return nil
}

// RouteFromContext is a utility function to retrieve the *Route that the
// dispatcher matched, during downstream middleware processing, from the
// request context.
func RouteFromContext(ctx context.Context) *Route {
	if val := ctx.Value(RouteContextKey); val != nil {
		if route, ok := val.(*Route); ok {
			return route
		}
	}
	return nil
}

// RequestIdFromContext is a utility function to retrieve the identifier the
// transport shim assigned to the current request from the request context.
// It returns the empty string when no identifier was stashed.
func RequestIdFromContext(ctx context.Context) string {
	if val := ctx.Value(RequestIdContextKey); val != nil {
		if id, ok := val.(string); ok {
			return id
		}
	}
	return ""
}
