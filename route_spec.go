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

	"github.com/pkg/errors"
)

// RouteSpec is one node of a declared route tree. A branch node carries
// child Routes; a leaf node carries Targets; declaring both or neither is a
// validation error. Middleware declared on a branch is inherited by every
// leaf beneath it: inbound middleware runs outside-in (ancestors before
// self), outbound middleware and error handlers run inside-out (self before
// ancestors). RouteSpec transforms (MergeParent, Flatten, AssignMiddleware)
// are pure and return new specs, leaving their receivers untouched, so a
// routing table built from a spec tree never shares mutable state with it.
type RouteSpec struct {
	Name               string
	Pattern            string
	InboundMiddleware  []*MiddlewareSpec
	OutboundMiddleware []*MiddlewareSpec
	ErrorHandlers      []*ErrorHandlerSpec
	Routes             []*RouteSpec
	Targets            []*TargetSpec
}

// ParseRouteSpec parses a route tree node, recursively parsing any children.
func ParseRouteSpec(routeMap map[interface{}]interface{}) (*RouteSpec, error) {
	spec := &RouteSpec{}

	//parse name, required, string
	if nameInterface, ok := routeMap["name"]; ok {
		if name, ok := nameInterface.(string); ok {
			spec.Name = name
		} else {
			return nil, errors.New("name is required to be a string")
		}
	} else {
		return nil, errors.New("name is required")
	}

	//parse pattern, required, string
	if patternInterface, ok := routeMap["pattern"]; ok {
		if pattern, ok := patternInterface.(string); ok {
			spec.Pattern = pattern
		} else {
			return nil, errors.New("pattern is required to be a string")
		}
	} else {
		return nil, errors.New("pattern is required")
	}

	if inboundInterface, ok := routeMap["inboundMiddleware"]; ok {
		inbound, err := parseMiddlewareList(inboundInterface, "inboundMiddleware")

		if err != nil {
			return nil, err
		}

		spec.InboundMiddleware = inbound
	}

	if outboundInterface, ok := routeMap["outboundMiddleware"]; ok {
		outbound, err := parseMiddlewareList(outboundInterface, "outboundMiddleware")

		if err != nil {
			return nil, err
		}

		spec.OutboundMiddleware = outbound
	}

	if errorHandlersInterface, ok := routeMap["errorHandlers"]; ok {
		errorHandlers, err := parseErrorHandlerList(errorHandlersInterface, "errorHandlers")

		if err != nil {
			return nil, err
		}

		spec.ErrorHandlers = errorHandlers
	}

	routesInterface, hasRoutes := routeMap["routes"]
	targetsInterface, hasTargets := routeMap["targets"]

	if hasRoutes == hasTargets {
		return nil, fmt.Errorf("route [%s] must declare exactly one of routes or targets", spec.Name)
	}

	if hasRoutes {
		routeArray, ok := routesInterface.([]interface{})

		if !ok {
			return nil, errors.New("routes must be an array")
		}

		for i, childInterface := range routeArray {
			childMap, ok := childInterface.(map[interface{}]interface{})

			if !ok {
				return nil, fmt.Errorf("error parsing route at index [%d]: not a map", i)
			}

			child, err := ParseRouteSpec(childMap)

			if err != nil {
				return nil, fmt.Errorf("error parsing route at index [%d]: %v", i, err)
			}

			spec.Routes = append(spec.Routes, child)
		}
	}

	if hasTargets {
		targetArray, ok := targetsInterface.([]interface{})

		if !ok {
			return nil, errors.New("targets must be an array")
		}

		for i, targetInterface := range targetArray {
			targetMap, ok := targetInterface.(map[interface{}]interface{})

			if !ok {
				return nil, fmt.Errorf("error parsing target at index [%d]: not a map", i)
			}

			target, err := ParseTargetSpec(targetMap)

			if err != nil {
				return nil, fmt.Errorf("error parsing target at index [%d]: %v", i, err)
			}

			spec.Targets = append(spec.Targets, target)
		}
	}

	return spec, nil
}

func parseMiddlewareList(value interface{}, section string) ([]*MiddlewareSpec, error) {
	array, ok := value.([]interface{})

	if !ok {
		return nil, fmt.Errorf("%s if declared must be an array", section)
	}

	var specs []*MiddlewareSpec

	for i, entry := range array {
		spec, err := ParseMiddlewareSpec(entry)

		if err != nil {
			return nil, fmt.Errorf("error parsing %s at index [%d]: %v", section, i, err)
		}

		specs = append(specs, spec)
	}

	return specs, nil
}

func parseErrorHandlerList(value interface{}, section string) ([]*ErrorHandlerSpec, error) {
	array, ok := value.([]interface{})

	if !ok {
		return nil, fmt.Errorf("%s if declared must be an array", section)
	}

	var specs []*ErrorHandlerSpec

	for i, entry := range array {
		spec, err := ParseErrorHandlerSpec(entry)

		if err != nil {
			return nil, fmt.Errorf("error parsing %s at index [%d]: %v", section, i, err)
		}

		specs = append(specs, spec)
	}

	return specs, nil
}

// Validate checks this node and every node beneath it. All failures are
// load-time failures; nothing is deferred to request time.
func (spec *RouteSpec) Validate() error {
	if spec.Name == "" {
		return errors.New("name must not be empty")
	}

	if spec.Pattern == "" {
		return errors.New("pattern must not be empty")
	}

	if _, err := CompilePathnamePattern(spec.Pattern); err != nil {
		return fmt.Errorf("invalid pattern for route [%s]: %v", spec.Name, err)
	}

	hasRoutes := len(spec.Routes) > 0
	hasTargets := len(spec.Targets) > 0

	if hasRoutes == hasTargets {
		return fmt.Errorf("route [%s] must declare exactly one of routes or targets", spec.Name)
	}

	for i, child := range spec.Routes {
		if err := child.Validate(); err != nil {
			return fmt.Errorf("invalid route at index [%d] under [%s]: %v", i, spec.Name, err)
		}
	}

	for i, target := range spec.Targets {
		if err := target.Validate(); err != nil {
			return fmt.Errorf("invalid target at index [%d] under [%s]: %v", i, spec.Name, err)
		}
	}

	return nil
}

// MergeParent returns a new RouteSpec representing this node composed under
// parent. The merged pattern is the concatenation of the two with adjacent
// separators collapsed; a wildcard on either side is transparent, letting
// the other side's pattern through unmodified. Inbound middleware merges
// ancestors-then-self, outbound middleware and error handlers merge
// self-then-ancestors, and the merged name is the dotted ancestor chain.
// Neither spec is modified.
func (spec *RouteSpec) MergeParent(parent *RouteSpec) *RouteSpec {
	merged := &RouteSpec{
		Name:    spec.Name,
		Pattern: joinPatterns(parent.Pattern, spec.Pattern),
		Routes:  spec.Routes,
		Targets: spec.Targets,
	}

	if parent.Name != "" {
		merged.Name = parent.Name + "." + spec.Name
	}

	merged.InboundMiddleware = append(append([]*MiddlewareSpec{}, parent.InboundMiddleware...), spec.InboundMiddleware...)
	merged.OutboundMiddleware = append(append([]*MiddlewareSpec{}, spec.OutboundMiddleware...), parent.OutboundMiddleware...)
	merged.ErrorHandlers = append(append([]*ErrorHandlerSpec{}, spec.ErrorHandlers...), parent.ErrorHandlers...)

	return merged
}

func joinPatterns(parent, child string) string {
	if parent == WildcardPattern {
		return child
	}

	if child == WildcardPattern {
		return parent
	}

	return strings.TrimSuffix(parent, "/") + "/" + strings.TrimPrefix(child, "/")
}

// Flatten collapses the route tree into its leaves: one merged spec per
// root-to-leaf path, each carrying the full ancestor pattern, middleware,
// and error-handler inheritance. The receiver tree is left untouched.
func (spec *RouteSpec) Flatten() []*RouteSpec {
	if len(spec.Routes) == 0 {
		return []*RouteSpec{spec}
	}

	var flattened []*RouteSpec

	for _, child := range spec.Routes {
		flattened = append(flattened, child.MergeParent(spec).Flatten()...)
	}

	return flattened
}

// AssignMiddleware returns a new spec tree with every symbolic middleware,
// handler, and error-handler reference resolved against the supplied
// registries. Already-resolved entries pass through, so repeated assignment
// is harmless. contextName prefixes the dotted reporting path.
func (spec *RouteSpec) AssignMiddleware(registries *Registries, contextName string) (*RouteSpec, error) {
	path := spec.Name

	if contextName != "" {
		path = contextName + "." + spec.Name
	}

	resolved := &RouteSpec{
		Name:    spec.Name,
		Pattern: spec.Pattern,
	}

	for _, middleware := range spec.InboundMiddleware {
		resolvedMiddleware, err := middleware.Resolve(registries.Middleware, path)

		if err != nil {
			return nil, err
		}

		resolved.InboundMiddleware = append(resolved.InboundMiddleware, resolvedMiddleware)
	}

	for _, middleware := range spec.OutboundMiddleware {
		resolvedMiddleware, err := middleware.Resolve(registries.Middleware, path)

		if err != nil {
			return nil, err
		}

		resolved.OutboundMiddleware = append(resolved.OutboundMiddleware, resolvedMiddleware)
	}

	for _, errorHandler := range spec.ErrorHandlers {
		resolvedErrorHandler, err := errorHandler.Resolve(registries.ErrorHandlers, path)

		if err != nil {
			return nil, err
		}

		resolved.ErrorHandlers = append(resolved.ErrorHandlers, resolvedErrorHandler)
	}

	for _, target := range spec.Targets {
		resolvedTarget, err := target.Resolve(registries, path)

		if err != nil {
			return nil, err
		}

		resolved.Targets = append(resolved.Targets, resolvedTarget)
	}

	for _, child := range spec.Routes {
		resolvedChild, err := child.AssignMiddleware(registries, path)

		if err != nil {
			return nil, err
		}

		resolved.Routes = append(resolved.Routes, resolvedChild)
	}

	return resolved, nil
}

// ToHttpRoute converts a flattened, resolved leaf spec into a runtime Route,
// compiling the pathname pattern and composing each target's chain.
func (spec *RouteSpec) ToHttpRoute(contextName string) (*Route, error) {
	path := spec.Name

	if contextName != "" {
		path = contextName + "." + spec.Name
	}

	if len(spec.Routes) > 0 {
		return nil, errors.Errorf("assert failed: route [%s] is a branch node, flatten before converting", path)
	}

	if len(spec.Targets) == 0 {
		return nil, errors.Errorf("assert failed: route [%s] has no targets", path)
	}

	matcher, err := CompilePathnamePattern(spec.Pattern)

	if err != nil {
		return nil, errors.Wrapf(err, "error compiling pattern for route [%s]", path)
	}

	var targets []*Target

	for i, targetSpec := range spec.Targets {
		target, err := targetSpec.ToHttpTarget(spec.InboundMiddleware, spec.OutboundMiddleware, path)

		if err != nil {
			return nil, fmt.Errorf("error converting target at index [%d] for route [%s]: %v", i, path, err)
		}

		targets = append(targets, target)
	}

	var errorHandlers []ErrorHandler

	for _, errorHandlerSpec := range spec.ErrorHandlers {
		if !errorHandlerSpec.IsResolved() {
			return nil, errors.Errorf("assert failed: unresolved error handler [%s] for [%s]", errorHandlerSpec.Name(), path)
		}

		errorHandlers = append(errorHandlers, errorHandlerSpec.ErrorHandler())
	}

	return NewRoute(path, matcher, targets, errorHandlers), nil
}
