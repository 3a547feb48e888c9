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

// Target is the terminal handler unit for one set of HTTP methods within a
// Route. Its chain is fully composed at compile time: the owning route's
// inbound middleware, then the target's own handlers, then the route's
// outbound middleware. Targets are immutable once constructed.
type Target struct {
	methods       []string
	chain         []Middleware
	errorHandlers []ErrorHandler
}

func NewTarget(methods []string, chain []Middleware, errorHandlers []ErrorHandler) *Target {
	return &Target{
		methods:       methods,
		chain:         chain,
		errorHandlers: errorHandlers,
	}
}

// Methods returns the allowed method set in registration order. Treat as
// read-only.
func (target *Target) Methods() []string {
	return target.methods
}

// IsMethodAllowed reports whether the target serves the given method.
func (target *Target) IsMethodAllowed(method string) bool {
	return stringz.Contains(target.methods, method)
}

// Chain returns the composed middleware chain. Treat as read-only.
func (target *Target) Chain() []Middleware {
	return target.chain
}

// HandleError tries the target's error handlers in registration order and
// returns the first non-nil response. It returns nil when no handler claimed
// the error, which advances the cascade to the route scope.
func (target *Target) HandleError(ctx context.Context, request *Request, response *Response, cause error) *Response {
	for _, errorHandler := range target.errorHandlers {
		if handled := errorHandler(ctx, request, response, cause); handled != nil {
			return handled
		}
	}

	return nil
}
