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

	"github.com/pkg/errors"
)

// RouteSetResolver resolves a route-set reference from a virtual host
// declaration into the route specs it names. Resolvers are supplied by the
// configuration layer; the compiler treats them as an opaque capability.
type RouteSetResolver interface {
	ResolveRouteSet(ref string) ([]*RouteSpec, error)
}

// RouteSetMap is a map-backed RouteSetResolver.
type RouteSetMap map[string][]*RouteSpec

func (routeSets RouteSetMap) ResolveRouteSet(ref string) ([]*RouteSpec, error) {
	routes, found := routeSets[ref]

	if !found {
		return nil, errors.Errorf("no route set registered as [%s]", ref)
	}

	return routes, nil
}

var _ RouteSetResolver = RouteSetMap{}

// VirtualHostSpec declares one virtual host: a name, exactly one of an exact
// hostname or a hostname pattern, and the route trees it serves. Route
// entries are either inline route maps or string references resolved through
// a RouteSetResolver at parse time.
type VirtualHostSpec struct {
	Name     string
	Hostname string
	Pattern  string
	Routes   []*RouteSpec
}

// ParseVirtualHostSpec parses a virtual host declaration. resolver may be
// nil when the declaration uses only inline routes.
func ParseVirtualHostSpec(configMap map[interface{}]interface{}, resolver RouteSetResolver) (*VirtualHostSpec, error) {
	spec := &VirtualHostSpec{}

	//parse name, required, string
	if nameInterface, ok := configMap["name"]; ok {
		if name, ok := nameInterface.(string); ok {
			spec.Name = name
		} else {
			return nil, errors.New("name is required to be a string")
		}
	} else {
		return nil, errors.New("name is required")
	}

	//parse hostname/pattern, exactly one
	hostnameInterface, hasHostname := configMap["hostname"]
	patternInterface, hasPattern := configMap["pattern"]

	if hasHostname == hasPattern {
		return nil, fmt.Errorf("virtual host [%s] must declare exactly one of hostname or pattern", spec.Name)
	}

	if hasHostname {
		if hostname, ok := hostnameInterface.(string); ok {
			spec.Hostname = hostname
		} else {
			return nil, errors.New("hostname is required to be a string")
		}
	}

	if hasPattern {
		if pattern, ok := patternInterface.(string); ok {
			spec.Pattern = pattern
		} else {
			return nil, errors.New("pattern is required to be a string")
		}
	}

	//parse routes, required, array of inline maps or route set references
	if routesInterface, ok := configMap["routes"]; ok {
		routeArray, ok := routesInterface.([]interface{})

		if !ok {
			return nil, errors.New("routes must be an array")
		}

		for i, routeInterface := range routeArray {
			switch typed := routeInterface.(type) {
			case string:
				if resolver == nil {
					return nil, fmt.Errorf("error resolving route set [%s] at index [%d]: no route set resolver available", typed, i)
				}

				routes, err := resolver.ResolveRouteSet(typed)

				if err != nil {
					return nil, fmt.Errorf("error resolving route set [%s] at index [%d]: %v", typed, i, err)
				}

				spec.Routes = append(spec.Routes, routes...)

			case map[interface{}]interface{}:
				route, err := ParseRouteSpec(typed)

				if err != nil {
					return nil, fmt.Errorf("error parsing route at index [%d]: %v", i, err)
				}

				spec.Routes = append(spec.Routes, route)

			default:
				return nil, fmt.Errorf("error parsing route at index [%d]: must be a map or a route set reference", i)
			}
		}
	} else {
		return nil, errors.New("routes section is required")
	}

	return spec, nil
}

// Validate checks the virtual host and every route tree beneath it. All
// failures are load-time failures.
func (spec *VirtualHostSpec) Validate() error {
	if spec.Name == "" {
		return errors.New("name must not be empty")
	}

	hasHostname := spec.Hostname != ""
	hasPattern := spec.Pattern != ""

	if hasHostname == hasPattern {
		return fmt.Errorf("virtual host [%s] must declare exactly one of hostname or pattern", spec.Name)
	}

	if hasPattern {
		if _, err := CompileHostnamePattern(spec.Pattern); err != nil {
			return fmt.Errorf("invalid pattern for virtual host [%s]: %v", spec.Name, err)
		}
	}

	if len(spec.Routes) == 0 {
		return fmt.Errorf("virtual host [%s] has no routes, must specify at least one", spec.Name)
	}

	for i, route := range spec.Routes {
		if err := route.Validate(); err != nil {
			return fmt.Errorf("invalid route at index [%d] under virtual host [%s]: %v", i, spec.Name, err)
		}
	}

	return nil
}

// AssignMiddleware returns a new spec with every symbolic reference in every
// route tree resolved against the supplied registries.
func (spec *VirtualHostSpec) AssignMiddleware(registries *Registries) (*VirtualHostSpec, error) {
	resolved := &VirtualHostSpec{
		Name:     spec.Name,
		Hostname: spec.Hostname,
		Pattern:  spec.Pattern,
	}

	for _, route := range spec.Routes {
		resolvedRoute, err := route.AssignMiddleware(registries, spec.Name)

		if err != nil {
			return nil, err
		}

		resolved.Routes = append(resolved.Routes, resolvedRoute)
	}

	return resolved, nil
}

// ToVirtualHost validates the spec, resolves it against the registries,
// flattens the route trees into leaves, and builds the immutable runtime
// VirtualHost. The receiver is left untouched; a failure here aborts the
// whole load attempt and never produces a partially-built host.
func (spec *VirtualHostSpec) ToVirtualHost(registries *Registries) (*VirtualHost, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	resolved, err := spec.AssignMiddleware(registries)

	if err != nil {
		return nil, err
	}

	var routes []*Route

	for _, routeSpec := range resolved.Routes {
		for _, leaf := range routeSpec.Flatten() {
			route, err := leaf.ToHttpRoute(spec.Name)

			if err != nil {
				return nil, err
			}

			routes = append(routes, route)
		}
	}

	if spec.Hostname != "" {
		return NewExactVirtualHost(spec.Name, spec.Hostname, routes), nil
	}

	matcher, err := CompileHostnamePattern(spec.Pattern)

	if err != nil {
		return nil, errors.Wrapf(err, "error compiling hostname pattern for virtual host [%s]", spec.Name)
	}

	return NewPatternVirtualHost(spec.Name, matcher, routes), nil
}
