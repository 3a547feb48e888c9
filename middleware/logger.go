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
	"time"

	"github.com/michaelquigley/pfxlog"
	"github.com/openziti/xrouter"
	"github.com/sirupsen/logrus"
)

// RequestStartedAtProp is the response prop the request timer records the
// dispatch start time under. Outbound middleware reads it to compute
// durations.
const RequestStartedAtProp = "requestStartedAt"

// NewRequestTimer creates inbound middleware that stamps the dispatch start
// time into the response props.
func NewRequestTimer() xrouter.Middleware {
	return func(ctx context.Context, request *xrouter.Request, response *xrouter.Response) (xrouter.Outcome, error) {
		response.UpdateProps(map[string]interface{}{RequestStartedAtProp: time.Now()})
		return xrouter.Continue(response), nil
	}
}

// NewRequestTimerFactory adapts NewRequestTimer to registry registration.
func NewRequestTimerFactory() xrouter.Factory[xrouter.Middleware] {
	return func(xrouter.Options) (xrouter.Middleware, error) {
		return NewRequestTimer(), nil
	}
}

// NewRequestLogger creates outbound middleware that logs one line per
// completed request with the request identifier, method, hostname, pathname,
// status, and, when a request timer ran, the duration.
func NewRequestLogger(logger *logrus.Entry) xrouter.Middleware {
	return func(ctx context.Context, request *xrouter.Request, response *xrouter.Response) (xrouter.Outcome, error) {
		entry := logger.WithFields(logrus.Fields{
			"requestId": request.Id(),
			"method":    request.Method(),
			"hostname":  request.Hostname(),
			"pathname":  request.Pathname(),
			"status":    response.Status(),
		})

		if startedAt, found := response.Prop(RequestStartedAtProp); found {
			if started, ok := startedAt.(time.Time); ok {
				entry = entry.WithField("duration", time.Since(started).String())
			}
		}

		entry.Info("request completed")

		return xrouter.Continue(response), nil
	}
}

// NewRequestLoggerFactory adapts NewRequestLogger to registry registration.
func NewRequestLoggerFactory() xrouter.Factory[xrouter.Middleware] {
	return func(xrouter.Options) (xrouter.Middleware, error) {
		return NewRequestLogger(pfxlog.Logger().Entry), nil
	}
}
