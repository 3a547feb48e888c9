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

package main

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// environment is the process-level settings read from XROUTER_* environment
// variables. Routing configuration itself lives in the YAML document; the
// environment only decides where to listen and how to log.
type environment struct {
	ConfigFile    string `split_words:"true"`
	ListenAddress string `split_words:"true" default:"0.0.0.0:8080"`
	AdminAddress  string `split_words:"true" default:"127.0.0.1:9090"`
	SentryDsn     string `split_words:"true"`
	Debug         bool
}

func loadEnvironment() (*environment, error) {
	//.env is optional, ignore a missing file
	_ = godotenv.Load()

	env := &environment{}

	if err := envconfig.Process("xrouter", env); err != nil {
		return nil, errors.Wrap(err, "error processing environment")
	}

	if err := validateHostPort(env.ListenAddress); err != nil {
		return nil, fmt.Errorf("invalid listen address [%s]: %v", env.ListenAddress, err)
	}

	if err := validateHostPort(env.AdminAddress); err != nil {
		return nil, fmt.Errorf("invalid admin address [%s]: %v", env.AdminAddress, err)
	}

	return env, nil
}

func validateHostPort(address string) error {
	address = strings.TrimSpace(address)

	if address == "" {
		return errors.New("must not be an empty string or unspecified")
	}

	host, port, err := net.SplitHostPort(address)

	if err != nil {
		return errors.Errorf("could not split host and port: %v", err)
	}

	if host == "" {
		return errors.New("host must be specified")
	}

	if port == "" {
		return errors.New("port must be specified")
	}

	if port, err := strconv.ParseInt(port, 10, 32); err != nil {
		return errors.New("invalid port, must be a integer")
	} else if port < 1 || port > 65535 {
		return errors.New("invalid port, must 1-65535")
	}

	return nil
}

// defaultConfigYaml is served when no configuration file is supplied. It
// exercises route sets, nested routes, hostname captures, and the stock
// middleware set.
const defaultConfigYaml = `
router:
  options:
    readTimeout: 5s
    writeTimeout: 10s
    idleTimeout: 30s

  routeSets:
    ops:
      - name: health
        pattern: /healthz
        targets:
          - methods: [GET, HEAD]
            handlers:
              - health

  virtualHosts:
    - name: api
      hostname: localhost
      routes:
        - ops
        - name: api
          pattern: /api
          inboundMiddleware:
            - requestTimer
          outboundMiddleware:
            - name: compression
              options:
                minSize: 512
            - securityHeaders
            - metrics
            - requestLogger
          routes:
            - name: echo
              pattern: "/echo/:word"
              targets:
                - methods: "*"
                  handlers:
                    - echo
            - name: sessions
              pattern: /sessions
              errorHandlers:
                - plainTextErrors
              targets:
                - methods: [POST]
                  handlers:
                    - newSession

    - name: tenants
      pattern: ":tenant.demo.local"
      routes:
        - name: home
          pattern: /
          inboundMiddleware:
            - requestTimer
          outboundMiddleware:
            - metrics
            - requestLogger
          targets:
            - methods: [GET, HEAD]
              handlers:
                - tenantHome
`
