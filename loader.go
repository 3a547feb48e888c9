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
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	DefaultConfigSection = "router"

	DefaultHttpWriteTimeout = time.Second * 10
	DefaultHttpReadTimeout  = time.Second * 5
	DefaultHttpIdleTimeout  = time.Second * 5
	DefaultMaxHeaderBytes   = 1 << 20
)

// RouterConfig is the root configuration used to build a Router's routing
// table: an array of virtual host declarations, an optional map of named
// route sets the declarations may reference, and serving options. One
// RouterConfig is parsed per load attempt (startup or hot reload) and
// discarded when replaced.
type RouterConfig struct {
	SourceConfig map[interface{}]interface{}

	VirtualHostSpecs []*VirtualHostSpec
	RouteSets        RouteSetMap
	Options          RouterOptions

	Section string

	enabled bool
}

// LoadRouterConfig parses a YAML document and extracts the named section
// into a RouterConfig. An empty section selects DefaultConfigSection.
func LoadRouterConfig(yamlBytes []byte, section string) (*RouterConfig, error) {
	configMap := map[interface{}]interface{}{}

	if err := yaml.Unmarshal(yamlBytes, &configMap); err != nil {
		return nil, errors.Wrap(err, "error parsing configuration YAML")
	}

	if section == "" {
		section = DefaultConfigSection
	}

	config := &RouterConfig{Section: section}

	if err := config.Parse(configMap); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadRouterConfigFile reads path and parses it via LoadRouterConfig.
func LoadRouterConfigFile(path, section string) (*RouterConfig, error) {
	yamlBytes, err := os.ReadFile(path)

	if err != nil {
		return nil, errors.Wrapf(err, "error reading configuration file [%s]", path)
	}

	return LoadRouterConfig(yamlBytes, section)
}

// Parse parses a configuration map, looking for the configured section that
// defines options, named route sets, and an array of virtual hosts. Route
// sets are parsed first so virtual host declarations can reference them.
func (config *RouterConfig) Parse(configMap map[interface{}]interface{}) error {
	config.SourceConfig = configMap

	if config.Section == "" {
		return errors.New("router section not specified for configuration")
	}

	sectionInterface, ok := configMap[config.Section]

	if !ok {
		return fmt.Errorf("router section [%s] must be defined", config.Section)
	}

	sectionMap, ok := sectionInterface.(map[interface{}]interface{})

	if !ok {
		return fmt.Errorf("router section [%s] must be a map", config.Section)
	}

	//parse options
	config.Options = RouterOptions{}
	config.Options.Default()

	if optionsInterface, ok := sectionMap["options"]; ok {
		if optionsMap, ok := optionsInterface.(map[interface{}]interface{}); ok {
			if err := config.Options.Parse(optionsMap); err != nil {
				return fmt.Errorf("error parsing options section: %v", err)
			}
		} //no else, options are optional
	}

	//parse routeSets, optional, map of name -> array of route maps
	config.RouteSets = RouteSetMap{}

	if routeSetsInterface, ok := sectionMap["routeSets"]; ok {
		routeSetsMap, ok := routeSetsInterface.(map[interface{}]interface{})

		if !ok {
			return errors.New("routeSets if declared must be a map")
		}

		for nameInterface, routesInterface := range routeSetsMap {
			name, ok := nameInterface.(string)

			if !ok {
				return errors.New("route set names must be strings")
			}

			routeArray, ok := routesInterface.([]interface{})

			if !ok {
				return fmt.Errorf("route set [%s] must be an array", name)
			}

			var routes []*RouteSpec

			for i, routeInterface := range routeArray {
				routeMap, ok := routeInterface.(map[interface{}]interface{})

				if !ok {
					return fmt.Errorf("error parsing route set [%s] at index [%d]: not a map", name, i)
				}

				route, err := ParseRouteSpec(routeMap)

				if err != nil {
					return fmt.Errorf("error parsing route set [%s] at index [%d]: %v", name, i, err)
				}

				routes = append(routes, route)
			}

			config.RouteSets[name] = routes
		}
	}

	//parse virtualHosts, required, array of maps
	if virtualHostsInterface, ok := sectionMap["virtualHosts"]; ok {
		virtualHostArray, ok := virtualHostsInterface.([]interface{})

		if !ok {
			return errors.New("virtualHosts section must be an array")
		}

		for i, virtualHostInterface := range virtualHostArray {
			virtualHostMap, ok := virtualHostInterface.(map[interface{}]interface{})

			if !ok {
				return fmt.Errorf("error parsing virtual host configuration at index [%d]: not a map", i)
			}

			virtualHost, err := ParseVirtualHostSpec(virtualHostMap, config.RouteSets)

			if err != nil {
				return fmt.Errorf("error parsing virtual host configuration at index [%d]: %v", i, err)
			}

			config.VirtualHostSpecs = append(config.VirtualHostSpecs, virtualHost)
		}
	} else {
		return errors.New("virtualHosts section is required")
	}

	return nil
}

// Validate checks every virtual host declaration and dry-runs symbolic
// resolution against the supplied registries, so unknown names and failing
// factories surface at load time rather than at table build. Factories must
// therefore tolerate repeated invocation.
func (config *RouterConfig) Validate(registries *Registries) error {
	if len(config.VirtualHostSpecs) == 0 {
		return errors.New("no virtualHosts specified, must specify at least one")
	}

	if err := config.Options.Validate(); err != nil {
		return fmt.Errorf("invalid options: %v", err)
	}

	for i, virtualHostSpec := range config.VirtualHostSpecs {
		if err := virtualHostSpec.Validate(); err != nil {
			return fmt.Errorf("could not validate virtual host at virtualHosts[%d]: %v", i, err)
		}

		if _, err := virtualHostSpec.AssignMiddleware(registries); err != nil {
			return fmt.Errorf("could not resolve virtual host at virtualHosts[%d]: %v", i, err)
		}
	}

	//enabled only after validation passes
	config.enabled = true

	return nil
}

// Enabled returns whether this configuration passed validation.
func (config *RouterConfig) Enabled() bool {
	return config.enabled
}

// BuildVirtualHosts compiles every declaration into its runtime VirtualHost.
// It returns either the complete table or an error; a partial table is never
// returned, so callers can hand the result straight to
// Router.ResetVirtualHosts.
func (config *RouterConfig) BuildVirtualHosts(registries *Registries) ([]*VirtualHost, error) {
	var virtualHosts []*VirtualHost

	for _, virtualHostSpec := range config.VirtualHostSpecs {
		virtualHost, err := virtualHostSpec.ToVirtualHost(registries)

		if err != nil {
			return nil, errors.Wrapf(err, "error building virtual host [%s]", virtualHostSpec.Name)
		}

		virtualHosts = append(virtualHosts, virtualHost)
	}

	return virtualHosts, nil
}

// RouterOptions is the shared serving options for a routing table.
type RouterOptions struct {
	TimeoutOptions
	MaxHeaderBytes int
	TracingHeader  string
}

// Default provides defaults for all necessary values.
func (options *RouterOptions) Default() {
	options.TimeoutOptions.Default()
	options.MaxHeaderBytes = DefaultMaxHeaderBytes
	options.TracingHeader = DefaultTracingHeader
}

// Parse parses a configuration map.
func (options *RouterOptions) Parse(optionsMap map[interface{}]interface{}) error {
	if err := options.TimeoutOptions.Parse(optionsMap); err != nil {
		return fmt.Errorf("error parsing options: %v", err)
	}

	if interfaceVal, ok := optionsMap["maxHeaderBytes"]; ok {
		if maxHeaderBytes, ok := interfaceVal.(int); ok {
			options.MaxHeaderBytes = maxHeaderBytes
		} else {
			return errors.New("could not use value for maxHeaderBytes, not an integer")
		}
	}

	if interfaceVal, ok := optionsMap["tracingHeader"]; ok {
		if tracingHeader, ok := interfaceVal.(string); ok {
			options.TracingHeader = tracingHeader
		} else {
			return errors.New("could not use value for tracingHeader, not a string")
		}
	}

	return nil
}

// Validate validates all settings and returns nil or an error.
func (options *RouterOptions) Validate() error {
	if err := options.TimeoutOptions.Validate(); err != nil {
		return fmt.Errorf("invalid timeout option: %v", err)
	}

	if options.MaxHeaderBytes <= 0 {
		return fmt.Errorf("value [%d] for maxHeaderBytes too low, must be positive", options.MaxHeaderBytes)
	}

	if options.TracingHeader == "" {
		return errors.New("tracingHeader must not be empty")
	}

	return nil
}

// TimeoutOptions represents http timeout options.
type TimeoutOptions struct {
	ReadTimeout  time.Duration
	IdleTimeout  time.Duration
	WriteTimeout time.Duration
}

// Default defaults all HTTP timeout options.
func (timeoutOptions *TimeoutOptions) Default() {
	timeoutOptions.WriteTimeout = DefaultHttpWriteTimeout
	timeoutOptions.ReadTimeout = DefaultHttpReadTimeout
	timeoutOptions.IdleTimeout = DefaultHttpIdleTimeout
}

// Parse parses a config map.
func (timeoutOptions *TimeoutOptions) Parse(config map[interface{}]interface{}) error {
	if err := parseDuration(config, "readTimeout", &timeoutOptions.ReadTimeout); err != nil {
		return err
	}

	if err := parseDuration(config, "idleTimeout", &timeoutOptions.IdleTimeout); err != nil {
		return err
	}

	return parseDuration(config, "writeTimeout", &timeoutOptions.WriteTimeout)
}

// Validate validates all settings and returns nil or an error.
func (timeoutOptions *TimeoutOptions) Validate() error {
	if timeoutOptions.WriteTimeout <= 0 {
		return fmt.Errorf("value [%s] for writeTimeout too low, must be positive", timeoutOptions.WriteTimeout.String())
	}

	if timeoutOptions.ReadTimeout <= 0 {
		return fmt.Errorf("value [%s] for readTimeout too low, must be positive", timeoutOptions.ReadTimeout.String())
	}

	if timeoutOptions.IdleTimeout <= 0 {
		return fmt.Errorf("value [%s] for idleTimeout too low, must be positive", timeoutOptions.IdleTimeout.String())
	}

	return nil
}

func parseDuration(config map[interface{}]interface{}, key string, into *time.Duration) error {
	if interfaceVal, ok := config[key]; ok {
		durationStr, ok := interfaceVal.(string)

		if !ok {
			return fmt.Errorf("could not use value for %s, not a string", key)
		}

		duration, err := time.ParseDuration(durationStr)

		if err != nil {
			return fmt.Errorf("could not parse %s %s as a duration (e.g. 1m): %v", key, durationStr, err)
		}

		*into = duration
	}

	return nil
}
