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
	"context"
	"fmt"
	"html"
	"net/http"

	"github.com/google/uuid"
	"github.com/openziti/xrouter"
	"github.com/pkg/errors"
)

// registerDemoHandlers adds the handlers the embedded configuration refers
// to by name.
func registerDemoHandlers(registries *xrouter.Registries) error {
	if err := registries.Handlers.Add("health", staticHandler(healthHandler)); err != nil {
		return err
	}

	if err := registries.Handlers.Add("echo", staticHandler(echoHandler)); err != nil {
		return err
	}

	if err := registries.Handlers.Add("newSession", staticHandler(newSessionHandler)); err != nil {
		return err
	}

	if err := registries.Handlers.Add("tenantHome", staticHandler(tenantHomeHandler)); err != nil {
		return err
	}

	return registries.ErrorHandlers.Add("plainTextErrors", func(xrouter.Options) (xrouter.ErrorHandler, error) {
		return plainTextErrors, nil
	})
}

func staticHandler(handler xrouter.Middleware) xrouter.Factory[xrouter.Middleware] {
	return func(xrouter.Options) (xrouter.Middleware, error) {
		return handler, nil
	}
}

func healthHandler(_ context.Context, _ *xrouter.Request, response *xrouter.Response) (xrouter.Outcome, error) {
	result, err := response.RespondWithJson(map[string]interface{}{
		"status": "ok",
	})

	if err != nil {
		return xrouter.Outcome{}, err
	}

	return xrouter.Continue(result), nil
}

// echoHandler reflects the routing decision back at the caller, which makes
// it handy for poking at patterns with curl.
func echoHandler(ctx context.Context, request *xrouter.Request, response *xrouter.Response) (xrouter.Outcome, error) {
	result, err := response.RespondWithJson(map[string]interface{}{
		"requestId":      xrouter.RequestIdFromContext(ctx),
		"method":         request.Method(),
		"hostname":       request.Hostname(),
		"pathname":       request.Pathname(),
		"hostnameParams": request.HostnameParams(),
		"pathnameParams": request.PathnameParams(),
		"query":          request.QueryParams(),
	})

	if err != nil {
		return xrouter.Outcome{}, err
	}

	return xrouter.Continue(result), nil
}

func newSessionHandler(_ context.Context, _ *xrouter.Request, response *xrouter.Response) (xrouter.Outcome, error) {
	token := uuid.NewString()

	//insecure cookie, the demo serves plain http
	response.SetCookie("demo_session", token, xrouter.WithCookieMaxAge(1800), xrouter.WithCookieInsecure())

	result, err := response.SetStatus(http.StatusCreated).RespondWithJson(map[string]interface{}{
		"token": token,
	})

	if err != nil {
		return xrouter.Outcome{}, err
	}

	return xrouter.Continue(result), nil
}

func tenantHomeHandler(_ context.Context, request *xrouter.Request, response *xrouter.Response) (xrouter.Outcome, error) {
	tenant := request.HostnameParams()["tenant"]

	page := fmt.Sprintf("<html><body><h1>Welcome, %s</h1></body></html>", html.EscapeString(tenant))

	return xrouter.Continue(response.RespondWithHtml(page)), nil
}

// plainTextErrors renders dispatch errors as text/plain instead of the
// default JSON envelope.
func plainTextErrors(_ context.Context, _ *xrouter.Request, response *xrouter.Response, cause error) *xrouter.Response {
	var httpError *xrouter.HttpError

	if !errors.As(cause, &httpError) {
		return nil
	}

	return response.SetStatus(httpError.Status).RespondWithUtf8("text/plain", fmt.Sprintf("%s: %s\n", httpError.Title, httpError.Detail))
}
