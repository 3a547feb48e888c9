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
	"fmt"
	"strings"

	"github.com/openziti/foundation/v2/stringz"
	"github.com/pkg/errors"
)

// MethodWildcard in a target's method list expands to the full HTTP method
// set.
const MethodWildcard = "*"

// AllHttpMethods returns the full method set the wildcard expands to. A
// fresh slice is returned on every call so callers may keep the result.
func AllHttpMethods() []string {
	return []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "CONNECT", "OPTIONS", "TRACE"}
}

// TargetSpec declares the terminal handler unit of a route leaf: the allowed
// method set, the ordered handler chain, and the target-scoped error
// handlers.
type TargetSpec struct {
	Methods       []string
	Handlers      []*MiddlewareSpec
	ErrorHandlers []*ErrorHandlerSpec
}

// ParseTargetSpec parses one target from a configuration map.
func ParseTargetSpec(targetMap map[interface{}]interface{}) (*TargetSpec, error) {
	spec := &TargetSpec{}

	//parse methods, required, "*" or array of method names
	if methodsInterface, ok := targetMap["methods"]; ok {
		methods, err := parseMethods(methodsInterface)

		if err != nil {
			return nil, err
		}

		spec.Methods = methods
	} else {
		return nil, errors.New("methods is required")
	}

	//parse handlers, required, array of middleware entries
	if handlersInterface, ok := targetMap["handlers"]; ok {
		if handlerArray, ok := handlersInterface.([]interface{}); ok {
			for i, handlerInterface := range handlerArray {
				handler, err := ParseMiddlewareSpec(handlerInterface)

				if err != nil {
					return nil, fmt.Errorf("error parsing handler at index [%d]: %v", i, err)
				}

				spec.Handlers = append(spec.Handlers, handler)
			}
		} else {
			return nil, errors.New("handlers must be an array")
		}
	} else {
		return nil, errors.New("handlers is required")
	}

	//parse errorHandlers
	if errorHandlersInterface, ok := targetMap["errorHandlers"]; ok {
		if errorHandlerArray, ok := errorHandlersInterface.([]interface{}); ok {
			for i, errorHandlerInterface := range errorHandlerArray {
				errorHandler, err := ParseErrorHandlerSpec(errorHandlerInterface)

				if err != nil {
					return nil, fmt.Errorf("error parsing error handler at index [%d]: %v", i, err)
				}

				spec.ErrorHandlers = append(spec.ErrorHandlers, errorHandler)
			}
		} else {
			return nil, errors.New("errorHandlers if declared must be an array")
		}
	} //no else, optional

	return spec, nil
}

func parseMethods(value interface{}) ([]string, error) {
	if wildcard, ok := value.(string); ok {
		if wildcard == MethodWildcard {
			return AllHttpMethods(), nil
		}

		return nil, fmt.Errorf("methods must be [%s] or an array of method names", MethodWildcard)
	}

	methodArray, ok := value.([]interface{})

	if !ok {
		return nil, fmt.Errorf("methods must be [%s] or an array of method names", MethodWildcard)
	}

	var methods []string

	for i, methodInterface := range methodArray {
		method, ok := methodInterface.(string)

		if !ok {
			return nil, fmt.Errorf("error parsing method at index [%d]: not a string", i)
		}

		method = strings.ToUpper(method)

		if !stringz.Contains(AllHttpMethods(), method) {
			return nil, fmt.Errorf("error parsing method at index [%d]: unknown method [%s]", i, method)
		}

		if !stringz.Contains(methods, method) {
			methods = append(methods, method)
		}
	}

	return methods, nil
}

// Validate checks this target's values.
func (spec *TargetSpec) Validate() error {
	if len(spec.Methods) == 0 {
		return errors.New("no methods specified, must specify at least one")
	}

	for i, method := range spec.Methods {
		if !stringz.Contains(AllHttpMethods(), method) {
			return fmt.Errorf("invalid method at index [%d]: unknown method [%s]", i, method)
		}
	}

	if len(spec.Handlers) == 0 {
		return errors.New("no handlers specified, must specify at least one")
	}

	return nil
}

// Resolve returns a new TargetSpec with every symbolic handler and error
// handler resolved against the supplied registries. path is the dotted name
// chain used for reporting.
func (spec *TargetSpec) Resolve(registries *Registries, path string) (*TargetSpec, error) {
	resolved := &TargetSpec{
		Methods: spec.Methods,
	}

	for _, handler := range spec.Handlers {
		resolvedHandler, err := handler.Resolve(registries.Handlers, path)

		if err != nil {
			return nil, err
		}

		resolved.Handlers = append(resolved.Handlers, resolvedHandler)
	}

	for _, errorHandler := range spec.ErrorHandlers {
		resolvedErrorHandler, err := errorHandler.Resolve(registries.ErrorHandlers, path)

		if err != nil {
			return nil, err
		}

		resolved.ErrorHandlers = append(resolved.ErrorHandlers, resolvedErrorHandler)
	}

	return resolved, nil
}

// ToHttpTarget converts the resolved spec into a runtime Target, composing
// the full chain: the owning route's inbound middleware, the target's
// handlers, then the route's outbound middleware. Every spec must already be
// resolved.
func (spec *TargetSpec) ToHttpTarget(inbound, outbound []*MiddlewareSpec, path string) (*Target, error) {
	var chain []Middleware

	for _, middleware := range inbound {
		if !middleware.IsResolved() {
			return nil, errors.Errorf("assert failed: unresolved inbound middleware [%s] for [%s]", middleware.Name(), path)
		}

		chain = append(chain, middleware.Middleware())
	}

	for _, handler := range spec.Handlers {
		if !handler.IsResolved() {
			return nil, errors.Errorf("assert failed: unresolved handler [%s] for [%s]", handler.Name(), path)
		}

		chain = append(chain, handler.Middleware())
	}

	for _, middleware := range outbound {
		if !middleware.IsResolved() {
			return nil, errors.Errorf("assert failed: unresolved outbound middleware [%s] for [%s]", middleware.Name(), path)
		}

		chain = append(chain, middleware.Middleware())
	}

	var errorHandlers []ErrorHandler

	for _, errorHandler := range spec.ErrorHandlers {
		if !errorHandler.IsResolved() {
			return nil, errors.Errorf("assert failed: unresolved error handler [%s] for [%s]", errorHandler.Name(), path)
		}

		errorHandlers = append(errorHandlers, errorHandler.ErrorHandler())
	}

	return NewTarget(spec.Methods, chain, errorHandlers), nil
}
