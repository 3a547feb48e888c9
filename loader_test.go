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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const loaderTestYaml = `
router:
  options:
    readTimeout: 2s
    writeTimeout: 20s
    idleTimeout: 45s
    maxHeaderBytes: 4096
    tracingHeader: X-Trace-Id

  routeSets:
    ops:
      - name: health
        pattern: /healthz
        targets:
          - methods:
              - GET
              - HEAD
            handlers:
              - health

  virtualHosts:
    - name: public
      hostname: api.example.com
      routes:
        - ops
        - name: users
          pattern: /users
          targets:
            - methods: "*"
              handlers:
                - listUsers
`

func Test_LoadRouterConfig(t *testing.T) {

	t.Run("parses options, route sets, and virtual hosts", func(t *testing.T) {
		config, err := LoadRouterConfig([]byte(loaderTestYaml), "")

		req := require.New(t)
		req.NoError(err)
		req.Equal(DefaultConfigSection, config.Section)

		req.Equal(2*time.Second, config.Options.ReadTimeout)
		req.Equal(20*time.Second, config.Options.WriteTimeout)
		req.Equal(45*time.Second, config.Options.IdleTimeout)
		req.Equal(4096, config.Options.MaxHeaderBytes)
		req.Equal("X-Trace-Id", config.Options.TracingHeader)

		req.Len(config.RouteSets["ops"], 1)

		req.Len(config.VirtualHostSpecs, 1)
		virtualHost := config.VirtualHostSpecs[0]
		req.Equal("public", virtualHost.Name)

		//the route set reference expanded into the virtual host's routes
		req.Len(virtualHost.Routes, 2)
		req.Equal("health", virtualHost.Routes[0].Name)
		req.Equal([]string{"GET", "HEAD"}, virtualHost.Routes[0].Targets[0].Methods)
		req.Equal(AllHttpMethods(), virtualHost.Routes[1].Targets[0].Methods)
	})

	t.Run("omitted options keep their defaults", func(t *testing.T) {
		config, err := LoadRouterConfig([]byte(`
router:
  virtualHosts:
    - name: public
      hostname: api.example.com
      routes:
        - name: users
          pattern: /users
          targets:
            - methods: ["GET"]
              handlers: [listUsers]
`), "")

		req := require.New(t)
		req.NoError(err)
		req.Equal(DefaultHttpReadTimeout, config.Options.ReadTimeout)
		req.Equal(DefaultHttpWriteTimeout, config.Options.WriteTimeout)
		req.Equal(DefaultHttpIdleTimeout, config.Options.IdleTimeout)
		req.Equal(DefaultMaxHeaderBytes, config.Options.MaxHeaderBytes)
		req.Equal(DefaultTracingHeader, config.Options.TracingHeader)
	})

	t.Run("a custom section name selects that section", func(t *testing.T) {
		config, err := LoadRouterConfig([]byte(`
edge:
  virtualHosts:
    - name: public
      hostname: api.example.com
      routes:
        - name: users
          pattern: /users
          targets:
            - methods: ["GET"]
              handlers: [listUsers]
`), "edge")

		req := require.New(t)
		req.NoError(err)
		req.Equal("edge", config.Section)
		req.Len(config.VirtualHostSpecs, 1)
	})

	t.Run("a missing section is an error", func(t *testing.T) {
		_, err := LoadRouterConfig([]byte(`other: {}`), "")

		req := require.New(t)
		req.Error(err)
		req.Contains(err.Error(), "router section [router] must be defined")
	})

	t.Run("unparsable YAML is an error", func(t *testing.T) {
		_, err := LoadRouterConfig([]byte("router: [unbalanced"), "")

		req := require.New(t)
		req.Error(err)
		req.Contains(err.Error(), "error parsing configuration YAML")
	})

	t.Run("the virtualHosts section is required", func(t *testing.T) {
		_, err := LoadRouterConfig([]byte(`
router:
  options:
    readTimeout: 2s
`), "")

		req := require.New(t)
		req.Error(err)
		req.Contains(err.Error(), "virtualHosts section is required")
	})

	t.Run("an unparsable duration is an error", func(t *testing.T) {
		_, err := LoadRouterConfig([]byte(`
router:
  options:
    readTimeout: soonish
  virtualHosts: []
`), "")

		req := require.New(t)
		req.Error(err)
		req.Contains(err.Error(), "could not parse readTimeout")
	})
}

func Test_RouterConfig_Validate(t *testing.T) {

	t.Run("passes when every symbolic reference resolves", func(t *testing.T) {
		registries := NewRegistries()

		req := require.New(t)
		req.NoError(registries.Handlers.Add("health", func(Options) (Middleware, error) {
			return noopMiddleware, nil
		}))
		req.NoError(registries.Handlers.Add("listUsers", func(Options) (Middleware, error) {
			return noopMiddleware, nil
		}))

		config, err := LoadRouterConfig([]byte(loaderTestYaml), "")
		req.NoError(err)
		req.False(config.Enabled())

		req.NoError(config.Validate(&registries))
		req.True(config.Enabled())
	})

	t.Run("an unknown name fails validation and the config stays disabled", func(t *testing.T) {
		registries := NewRegistries()

		config, err := LoadRouterConfig([]byte(loaderTestYaml), "")

		req := require.New(t)
		req.NoError(err)

		err = config.Validate(&registries)
		req.Error(err)
		req.Contains(err.Error(), "could not resolve virtual host at virtualHosts[0]")
		req.Contains(err.Error(), "[health]")
		req.False(config.Enabled())
	})

	t.Run("at least one virtual host is required", func(t *testing.T) {
		registries := NewRegistries()

		config := &RouterConfig{}
		config.Options.Default()

		err := config.Validate(&registries)

		req := require.New(t)
		req.Error(err)
		req.Contains(err.Error(), "no virtualHosts specified")
	})

	t.Run("invalid options fail validation", func(t *testing.T) {
		registries := NewRegistries()

		config, err := LoadRouterConfig([]byte(loaderTestYaml), "")

		req := require.New(t)
		req.NoError(err)

		config.Options.WriteTimeout = -time.Second

		err = config.Validate(&registries)
		req.Error(err)
		req.Contains(err.Error(), "writeTimeout too low")
	})
}

func Test_RouterConfig_BuildVirtualHosts(t *testing.T) {

	t.Run("builds the complete table", func(t *testing.T) {
		registries := NewRegistries()

		req := require.New(t)
		req.NoError(registries.Handlers.Add("health", func(Options) (Middleware, error) {
			return noopMiddleware, nil
		}))
		req.NoError(registries.Handlers.Add("listUsers", func(Options) (Middleware, error) {
			return noopMiddleware, nil
		}))

		config, err := LoadRouterConfig([]byte(loaderTestYaml), "")
		req.NoError(err)
		req.NoError(config.Validate(&registries))

		virtualHosts, err := config.BuildVirtualHosts(&registries)
		req.NoError(err)
		req.Len(virtualHosts, 1)
		req.Len(virtualHosts[0].Routes(), 2)
		req.Equal("public.health", virtualHosts[0].Routes()[0].Name())
		req.Equal("public.users", virtualHosts[0].Routes()[1].Name())
	})

	t.Run("any failure yields no table at all", func(t *testing.T) {
		registries := NewRegistries()

		req := require.New(t)
		req.NoError(registries.Handlers.Add("health", func(Options) (Middleware, error) {
			return noopMiddleware, nil
		}))

		//listUsers is never registered, so the only virtual host cannot build
		config, err := LoadRouterConfig([]byte(loaderTestYaml), "")
		req.NoError(err)

		virtualHosts, err := config.BuildVirtualHosts(&registries)
		req.Error(err)
		req.Nil(virtualHosts)
		req.Contains(err.Error(), "error building virtual host [public]")
	})

	t.Run("factories run once per reference per build", func(t *testing.T) {
		registries := NewRegistries()
		invocations := 0

		req := require.New(t)
		req.NoError(registries.Handlers.Add("health", func(Options) (Middleware, error) {
			invocations++
			return noopMiddleware, nil
		}))
		req.NoError(registries.Handlers.Add("listUsers", func(Options) (Middleware, error) {
			return noopMiddleware, nil
		}))

		config, err := LoadRouterConfig([]byte(loaderTestYaml), "")
		req.NoError(err)

		//validation dry-runs resolution, then each build resolves fresh
		req.NoError(config.Validate(&registries))
		req.Equal(1, invocations)

		_, err = config.BuildVirtualHosts(&registries)
		req.NoError(err)
		req.Equal(2, invocations)
	})
}
