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
	"github.com/openziti/xrouter"
)

// RegisterDefaults adds the stock middleware factories to the middleware
// registry under their conventional names. recorder may be nil, in which
// case no metrics observer is registered.
func RegisterDefaults(registries *xrouter.Registries, recorder *MetricsRecorder) error {
	if err := registries.Middleware.Add("compression", NewCompressionFactory()); err != nil {
		return err
	}

	if err := registries.Middleware.Add("requestLogger", NewRequestLoggerFactory()); err != nil {
		return err
	}

	if err := registries.Middleware.Add("requestTimer", NewRequestTimerFactory()); err != nil {
		return err
	}

	if err := registries.Middleware.Add("securityHeaders", NewSecurityHeadersFactory()); err != nil {
		return err
	}

	if recorder != nil {
		if err := registries.Middleware.Add("metrics", recorder.NewObserverFactory()); err != nil {
			return err
		}
	}

	return nil
}
