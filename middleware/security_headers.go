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

package middleware

import (
	"context"
	"fmt"
	"strconv"

	"github.com/openziti/xrouter"
	"github.com/pkg/errors"
)

// SecurityHeadersOptions configures the security-headers middleware. Setting
// a value to the empty string disables that header.
type SecurityHeadersOptions struct {
	XFrameOptions         string
	ContentTypeNosniff    string
	ReferrerPolicy        string
	ContentSecurityPolicy string

	HstsMaxAgeSeconds     int
	HstsIncludeSubdomains bool
}

// Default provides defaults for all necessary values.
func (options *SecurityHeadersOptions) Default() {
	options.XFrameOptions = "DENY"
	options.ContentTypeNosniff = "nosniff"
	options.ReferrerPolicy = "strict-origin-when-cross-origin"
	options.ContentSecurityPolicy = "default-src 'self'"
	options.HstsMaxAgeSeconds = 31536000
	options.HstsIncludeSubdomains = false
}

// Parse parses a configuration map.
func (options *SecurityHeadersOptions) Parse(optionsMap xrouter.Options) error {
	if err := parseOptionalString(optionsMap, "xFrameOptions", &options.XFrameOptions); err != nil {
		return err
	}

	if err := parseOptionalString(optionsMap, "contentTypeNosniff", &options.ContentTypeNosniff); err != nil {
		return err
	}

	if err := parseOptionalString(optionsMap, "referrerPolicy", &options.ReferrerPolicy); err != nil {
		return err
	}

	if err := parseOptionalString(optionsMap, "contentSecurityPolicy", &options.ContentSecurityPolicy); err != nil {
		return err
	}

	if interfaceVal, ok := optionsMap["hstsMaxAgeSeconds"]; ok {
		if maxAge, ok := interfaceVal.(int); ok {
			options.HstsMaxAgeSeconds = maxAge
		} else {
			return errors.New("could not use value for hstsMaxAgeSeconds, not an integer")
		}
	}

	if interfaceVal, ok := optionsMap["hstsIncludeSubdomains"]; ok {
		if include, ok := interfaceVal.(bool); ok {
			options.HstsIncludeSubdomains = include
		} else {
			return errors.New("could not use value for hstsIncludeSubdomains, not a boolean")
		}
	}

	return nil
}

func parseOptionalString(optionsMap xrouter.Options, key string, into *string) error {
	if interfaceVal, ok := optionsMap[key]; ok {
		value, ok := interfaceVal.(string)

		if !ok {
			return fmt.Errorf("could not use value for %s, not a string", key)
		}

		*into = value
	}

	return nil
}

// NewSecurityHeaders creates outbound middleware applying the configured
// browser security headers. Strict-Transport-Security is only set for
// requests that arrived over https.
func NewSecurityHeaders(options SecurityHeadersOptions) xrouter.Middleware {
	return func(ctx context.Context, request *xrouter.Request, response *xrouter.Response) (xrouter.Outcome, error) {
		if options.XFrameOptions != "" {
			response.SetHeader("X-Frame-Options", options.XFrameOptions)
		}

		if options.ContentTypeNosniff != "" {
			response.SetHeader("X-Content-Type-Options", options.ContentTypeNosniff)
		}

		if options.ReferrerPolicy != "" {
			response.SetHeader("Referrer-Policy", options.ReferrerPolicy)
		}

		if options.ContentSecurityPolicy != "" {
			response.SetHeader("Content-Security-Policy", options.ContentSecurityPolicy)
		}

		if options.HstsMaxAgeSeconds > 0 && request.URL().Scheme == "https" {
			value := "max-age=" + strconv.Itoa(options.HstsMaxAgeSeconds)

			if options.HstsIncludeSubdomains {
				value += "; includeSubDomains"
			}

			response.SetHeader("Strict-Transport-Security", value)
		}

		return xrouter.Continue(response), nil
	}
}

// NewSecurityHeadersFactory adapts NewSecurityHeaders to registry
// registration.
func NewSecurityHeadersFactory() xrouter.Factory[xrouter.Middleware] {
	return func(optionsMap xrouter.Options) (xrouter.Middleware, error) {
		options := SecurityHeadersOptions{}
		options.Default()

		if err := options.Parse(optionsMap); err != nil {
			return nil, err
		}

		return NewSecurityHeaders(options), nil
	}
}
