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

// Options is the free-form configuration attached to a symbolic middleware,
// handler, or error handler reference. The behavior, valid keys, and valid
// values are not defined by xrouter components, but by the factory the
// options are handed to.
type Options map[interface{}]interface{}

// Middleware is one element of a Target's executable chain. It receives the
// response produced by the previous element and reports how the chain should
// proceed. Returning an error abandons the chain and enters the error
// handling cascade.
type Middleware func(ctx context.Context, request *Request, response *Response) (Outcome, error)

// ErrorHandler attempts to convert cause into a response. Returning nil
// signals "not handled" and the cascade moves on to the next handler.
type ErrorHandler func(ctx context.Context, request *Request, response *Response, cause error) *Response

// Factory produces a configured chain component from the options attached to
// its symbolic reference. Factories are registered in a Registry and invoked
// once per reference when a specification is compiled.
type Factory[T any] func(options Options) (T, error)

// Outcome is the result a Middleware reports back to the chain executor. It
// carries the response that becomes the input to the next element and whether
// the chain should halt early.
type Outcome struct {
	response *Response
	halt     bool
}

// Continue reports response as the input to the next chain element.
func Continue(response *Response) Outcome {
	return Outcome{response: response}
}

// Halt stops the chain immediately. response becomes the final response of
// the dispatch; any elements remaining in the chain do not run.
func Halt(response *Response) Outcome {
	return Outcome{response: response, halt: true}
}

// Response returns the response carried by the outcome.
func (outcome Outcome) Response() *Response {
	return outcome.response
}

// Halted returns true when the outcome stops the chain.
func (outcome Outcome) Halted() bool {
	return outcome.halt
}
