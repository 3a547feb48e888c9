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

	"github.com/pkg/errors"
)

// MiddlewareSpec is one entry of a declared middleware chain: either an
// already-resolved Middleware function or a symbolic {name, options}
// reference to be resolved against a Registry at compile time. Exactly one
// variant is populated. The options provided by a symbolic reference are not
// interpreted here; their keys and values are defined by the factory the
// name resolves to.
type MiddlewareSpec struct {
	fn      Middleware
	name    string
	options Options
}

// ResolvedMiddleware wraps a concrete function as an already-resolved spec.
func ResolvedMiddleware(fn Middleware) *MiddlewareSpec {
	return &MiddlewareSpec{fn: fn}
}

// NamedMiddleware creates a symbolic reference to be resolved later.
func NamedMiddleware(name string, options Options) *MiddlewareSpec {
	return &MiddlewareSpec{name: name, options: options}
}

// ParseMiddlewareSpec parses one chain entry from declarative input. It
// accepts a concrete function, a bare name string, a [name] or
// [name, options] tuple, or a {name, options} map.
func ParseMiddlewareSpec(value interface{}) (*MiddlewareSpec, error) {
	switch typed := value.(type) {
	case Middleware:
		return ResolvedMiddleware(typed), nil

	case func(ctx context.Context, request *Request, response *Response) (Outcome, error):
		return ResolvedMiddleware(typed), nil

	case string:
		if typed == "" {
			return nil, errors.New("middleware name must not be empty")
		}

		return NamedMiddleware(typed, nil), nil

	case []interface{}:
		name, options, err := parseSymbolTuple(typed)

		if err != nil {
			return nil, errors.Wrap(err, "error parsing middleware tuple")
		}

		return NamedMiddleware(name, options), nil

	case map[interface{}]interface{}:
		name, options, err := parseSymbolMap(typed)

		if err != nil {
			return nil, errors.Wrap(err, "error parsing middleware entry")
		}

		return NamedMiddleware(name, options), nil

	default:
		return nil, errors.Errorf("middleware entry must be a function, a name, a [name, options] tuple, or a map, got [%T]", value)
	}
}

// IsResolved reports whether the spec carries a concrete function.
func (spec *MiddlewareSpec) IsResolved() bool {
	return spec.fn != nil
}

// Name returns the symbolic name, or the empty string for specs constructed
// directly from a function.
func (spec *MiddlewareSpec) Name() string {
	return spec.name
}

// Middleware returns the resolved function, or nil for an unresolved spec.
func (spec *MiddlewareSpec) Middleware() Middleware {
	return spec.fn
}

// Resolve looks the symbolic name up in registry and invokes its factory
// with the declared options (or empty options) to produce a new, resolved
// spec. Already-resolved specs pass through untouched, so resolution is
// idempotent. path is the dotted vhost/route/target name chain used for
// reporting.
func (spec *MiddlewareSpec) Resolve(registry Registry[Middleware], path string) (*MiddlewareSpec, error) {
	if spec.fn != nil {
		return spec, nil
	}

	factory, found := registry.Lookup(spec.name)

	if !found {
		return nil, errors.Errorf("assert failed: no middleware registered as [%s] for [%s]", spec.name, path)
	}

	options := spec.options

	if options == nil {
		options = Options{}
	}

	fn, err := factory(options)

	if err != nil {
		return nil, errors.Wrapf(err, "error creating middleware [%s] for [%s]", spec.name, path)
	}

	return &MiddlewareSpec{fn: fn, name: spec.name, options: spec.options}, nil
}

// ErrorHandlerSpec is the ErrorHandler counterpart of MiddlewareSpec: a
// resolved handler function or a symbolic {name, options} reference.
type ErrorHandlerSpec struct {
	fn      ErrorHandler
	name    string
	options Options
}

// ResolvedErrorHandler wraps a concrete handler as an already-resolved spec.
func ResolvedErrorHandler(fn ErrorHandler) *ErrorHandlerSpec {
	return &ErrorHandlerSpec{fn: fn}
}

// NamedErrorHandler creates a symbolic reference to be resolved later.
func NamedErrorHandler(name string, options Options) *ErrorHandlerSpec {
	return &ErrorHandlerSpec{name: name, options: options}
}

// ParseErrorHandlerSpec parses one error-handler entry from declarative
// input, accepting the same shapes as ParseMiddlewareSpec.
func ParseErrorHandlerSpec(value interface{}) (*ErrorHandlerSpec, error) {
	switch typed := value.(type) {
	case ErrorHandler:
		return ResolvedErrorHandler(typed), nil

	case func(ctx context.Context, request *Request, response *Response, cause error) *Response:
		return ResolvedErrorHandler(typed), nil

	case string:
		if typed == "" {
			return nil, errors.New("error handler name must not be empty")
		}

		return NamedErrorHandler(typed, nil), nil

	case []interface{}:
		name, options, err := parseSymbolTuple(typed)

		if err != nil {
			return nil, errors.Wrap(err, "error parsing error handler tuple")
		}

		return NamedErrorHandler(name, options), nil

	case map[interface{}]interface{}:
		name, options, err := parseSymbolMap(typed)

		if err != nil {
			return nil, errors.Wrap(err, "error parsing error handler entry")
		}

		return NamedErrorHandler(name, options), nil

	default:
		return nil, errors.Errorf("error handler entry must be a function, a name, a [name, options] tuple, or a map, got [%T]", value)
	}
}

// IsResolved reports whether the spec carries a concrete function.
func (spec *ErrorHandlerSpec) IsResolved() bool {
	return spec.fn != nil
}

// Name returns the symbolic name, or the empty string for specs constructed
// directly from a function.
func (spec *ErrorHandlerSpec) Name() string {
	return spec.name
}

// ErrorHandler returns the resolved function, or nil for an unresolved spec.
func (spec *ErrorHandlerSpec) ErrorHandler() ErrorHandler {
	return spec.fn
}

// Resolve looks the symbolic name up in registry and invokes its factory,
// producing a new resolved spec. Already-resolved specs pass through
// untouched.
func (spec *ErrorHandlerSpec) Resolve(registry Registry[ErrorHandler], path string) (*ErrorHandlerSpec, error) {
	if spec.fn != nil {
		return spec, nil
	}

	factory, found := registry.Lookup(spec.name)

	if !found {
		return nil, errors.Errorf("assert failed: no error handler registered as [%s] for [%s]", spec.name, path)
	}

	options := spec.options

	if options == nil {
		options = Options{}
	}

	fn, err := factory(options)

	if err != nil {
		return nil, errors.Wrapf(err, "error creating error handler [%s] for [%s]", spec.name, path)
	}

	return &ErrorHandlerSpec{fn: fn, name: spec.name, options: spec.options}, nil
}

// parseSymbolTuple parses the [name] / [name, options] tuple form.
func parseSymbolTuple(tuple []interface{}) (string, Options, error) {
	if len(tuple) == 0 || len(tuple) > 2 {
		return "", nil, errors.New("tuple must be [name] or [name, options]")
	}

	name, ok := tuple[0].(string)

	if !ok || name == "" {
		return "", nil, errors.New("name must be a non-empty string")
	}

	if len(tuple) == 1 {
		return name, nil, nil
	}

	options, ok := asOptions(tuple[1])

	if !ok {
		return "", nil, errors.New("options if declared must be a map")
	}

	return name, options, nil
}

// parseSymbolMap parses the {name: ..., options: {...}} map form.
func parseSymbolMap(entry map[interface{}]interface{}) (string, Options, error) {
	nameInterface, ok := entry["name"]

	if !ok {
		return "", nil, errors.New("name is required")
	}

	name, ok := nameInterface.(string)

	if !ok || name == "" {
		return "", nil, errors.New("name must be a non-empty string")
	}

	if optionsInterface, ok := entry["options"]; ok {
		options, ok := asOptions(optionsInterface)

		if !ok {
			return "", nil, errors.New("options if declared must be a map")
		}

		return name, options, nil
	} //no else, options are optional

	return name, nil, nil
}

func asOptions(value interface{}) (Options, bool) {
	switch typed := value.(type) {
	case Options:
		return typed, true
	case map[interface{}]interface{}:
		return typed, true
	default:
		return nil, false
	}
}
