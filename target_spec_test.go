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
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func Test_ParseTargetSpec(t *testing.T) {

	t.Run("the method wildcard expands to the full set", func(t *testing.T) {
		spec, err := ParseTargetSpec(map[interface{}]interface{}{
			"methods":  "*",
			"handlers": []interface{}{"health"},
		})

		req := require.New(t)
		req.NoError(err)
		req.Equal(AllHttpMethods(), spec.Methods)
	})

	t.Run("methods are upper-cased and de-duplicated", func(t *testing.T) {
		spec, err := ParseTargetSpec(map[interface{}]interface{}{
			"methods":  []interface{}{"get", "GET", "post"},
			"handlers": []interface{}{"health"},
		})

		req := require.New(t)
		req.NoError(err)
		req.Equal([]string{"GET", "POST"}, spec.Methods)
	})

	t.Run("an unknown method is an error", func(t *testing.T) {
		_, err := ParseTargetSpec(map[interface{}]interface{}{
			"methods":  []interface{}{"YEET"},
			"handlers": []interface{}{"health"},
		})

		req := require.New(t)
		req.Error(err)
		req.Contains(err.Error(), "unknown method [YEET]")
	})

	t.Run("a non-wildcard string is an error", func(t *testing.T) {
		_, err := ParseTargetSpec(map[interface{}]interface{}{
			"methods":  "GET",
			"handlers": []interface{}{"health"},
		})

		req := require.New(t)
		req.Error(err)
		req.Contains(err.Error(), "methods must be [*] or an array of method names")
	})

	t.Run("methods and handlers are required", func(t *testing.T) {
		req := require.New(t)

		_, err := ParseTargetSpec(map[interface{}]interface{}{
			"handlers": []interface{}{"health"},
		})
		req.Error(err)
		req.Contains(err.Error(), "methods is required")

		_, err = ParseTargetSpec(map[interface{}]interface{}{
			"methods": "*",
		})
		req.Error(err)
		req.Contains(err.Error(), "handlers is required")
	})

	t.Run("error handlers are optional", func(t *testing.T) {
		spec, err := ParseTargetSpec(map[interface{}]interface{}{
			"methods":       []interface{}{"GET"},
			"handlers":      []interface{}{"health"},
			"errorHandlers": []interface{}{"plainTextErrors"},
		})

		req := require.New(t)
		req.NoError(err)
		req.Len(spec.ErrorHandlers, 1)
	})
}

func Test_TargetSpec_Validate(t *testing.T) {

	t.Run("at least one method and one handler are required", func(t *testing.T) {
		req := require.New(t)

		spec := &TargetSpec{Handlers: []*MiddlewareSpec{ResolvedMiddleware(noopMiddleware)}}
		req.Error(spec.Validate())

		spec = &TargetSpec{Methods: []string{"GET"}}
		req.Error(spec.Validate())
	})

	t.Run("directly constructed methods are still checked", func(t *testing.T) {
		spec := &TargetSpec{
			Methods:  []string{"YEET"},
			Handlers: []*MiddlewareSpec{ResolvedMiddleware(noopMiddleware)},
		}

		err := spec.Validate()

		req := require.New(t)
		req.Error(err)
		req.Contains(err.Error(), "unknown method [YEET]")
	})
}

func Test_Target_HandleError(t *testing.T) {

	t.Run("the first handler to claim the error wins", func(t *testing.T) {
		var consulted []string

		declining := func(_ context.Context, _ *Request, _ *Response, _ error) *Response {
			consulted = append(consulted, "declining")
			return nil
		}

		claiming := func(_ context.Context, _ *Request, response *Response, _ error) *Response {
			consulted = append(consulted, "claiming")
			return response.SetStatus(418)
		}

		unreached := func(_ context.Context, _ *Request, response *Response, _ error) *Response {
			consulted = append(consulted, "unreached")
			return response
		}

		target := NewTarget([]string{"GET"}, nil, []ErrorHandler{declining, claiming, unreached})

		request := testRequest("GET", "https://example.com/", nil, "")
		handled := target.HandleError(context.Background(), request, NewResponse(), errors.New("boom"))

		req := require.New(t)
		req.NotNil(handled)
		req.Equal(418, handled.Status())
		req.Equal([]string{"declining", "claiming"}, consulted)
	})

	t.Run("returns nil when no handler claims", func(t *testing.T) {
		declining := func(_ context.Context, _ *Request, _ *Response, _ error) *Response {
			return nil
		}

		target := NewTarget([]string{"GET"}, nil, []ErrorHandler{declining})

		request := testRequest("GET", "https://example.com/", nil, "")
		handled := target.HandleError(context.Background(), request, NewResponse(), errors.New("boom"))

		req := require.New(t)
		req.Nil(handled)
	})
}

func Test_Target_IsMethodAllowed(t *testing.T) {

	t.Run("only declared methods are allowed", func(t *testing.T) {
		target := NewTarget([]string{"GET", "HEAD"}, nil, nil)

		req := require.New(t)
		req.True(target.IsMethodAllowed("GET"))
		req.True(target.IsMethodAllowed("HEAD"))
		req.False(target.IsMethodAllowed("POST"))
	})
}
