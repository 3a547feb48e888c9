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
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

var _ io.Reader = (*brokenReader)(nil)

type brokenReader struct {
	reads int
}

func (reader *brokenReader) Read([]byte) (int, error) {
	reader.reads++
	return 0, errors.New("stream reset")
}

func testRequest(method, rawUrl string, header http.Header, body string) *Request {
	requestUrl, err := url.Parse(rawUrl)

	if err != nil {
		panic(err)
	}

	var source io.Reader

	if body != "" {
		source = strings.NewReader(body)
	}

	return NewRequest("42", method, header, requestUrl, source)
}

func Test_Request_Hostname(t *testing.T) {

	t.Run("strips the port and lower-cases the host", func(t *testing.T) {
		request := testRequest("GET", "https://Catalog.Example.COM:8443/products", nil, "")

		req := require.New(t)
		req.Equal("catalog.example.com", request.Hostname())
	})

	t.Run("a host without a port is returned as-is, lower-cased", func(t *testing.T) {
		request := testRequest("GET", "https://LOCALHOST/products", nil, "")

		req := require.New(t)
		req.Equal("localhost", request.Hostname())
	})
}

func Test_Request_Pathname(t *testing.T) {

	t.Run("an empty path reads as the root", func(t *testing.T) {
		request := testRequest("GET", "https://example.com", nil, "")

		req := require.New(t)
		req.Equal("/", request.Pathname())
	})

	t.Run("a populated path is returned verbatim", func(t *testing.T) {
		request := testRequest("GET", "https://example.com/products/42", nil, "")

		req := require.New(t)
		req.Equal("/products/42", request.Pathname())
	})
}

func Test_Request_Params(t *testing.T) {

	t.Run("hostname params accept only the first write", func(t *testing.T) {
		request := testRequest("GET", "https://acme.example.com/", nil, "")

		request.SetHostnameParams(Params{"tenant": "acme"})
		request.SetHostnameParams(Params{"tenant": "mallory"})

		req := require.New(t)
		req.Equal(Params{"tenant": "acme"}, request.HostnameParams())
	})

	t.Run("pathname params accept only the first write", func(t *testing.T) {
		request := testRequest("GET", "https://example.com/products/42", nil, "")

		request.SetPathnameParams(Params{"product_id": "42"})
		request.SetPathnameParams(Params{"product_id": "43"})

		req := require.New(t)
		req.Equal(Params{"product_id": "42"}, request.PathnameParams())
	})

	t.Run("a nil first write still claims the slot", func(t *testing.T) {
		request := testRequest("GET", "https://example.com/", nil, "")

		request.SetPathnameParams(nil)
		request.SetPathnameParams(Params{"product_id": "42"})

		req := require.New(t)
		req.Empty(request.PathnameParams())
	})

	t.Run("unmatched requests read empty maps", func(t *testing.T) {
		request := testRequest("GET", "https://example.com/", nil, "")

		req := require.New(t)
		req.Empty(request.HostnameParams())
		req.Empty(request.PathnameParams())
		req.NotNil(request.HostnameParams())
		req.NotNil(request.PathnameParams())
	})
}

func Test_Request_Cookies(t *testing.T) {

	t.Run("parses multiple pairs and keeps '=' inside values", func(t *testing.T) {
		header := http.Header{}
		header.Set("Cookie", "session=abc=def; theme=dark")

		request := testRequest("GET", "https://example.com/", header, "")

		req := require.New(t)
		req.Equal(map[string]string{"session": "abc=def", "theme": "dark"}, request.Cookies())

		value, ok := request.Cookie("session")
		req.True(ok)
		req.Equal("abc=def", value)
	})

	t.Run("a missing cookie reports not present", func(t *testing.T) {
		request := testRequest("GET", "https://example.com/", nil, "")

		_, ok := request.Cookie("session")

		req := require.New(t)
		req.False(ok)
	})
}

func Test_Request_BearerToken(t *testing.T) {

	t.Run("the scheme comparison is case-insensitive", func(t *testing.T) {
		header := http.Header{}
		header.Set("Authorization", "bEaReR abc.def.ghi")

		request := testRequest("GET", "https://example.com/", header, "")

		token, ok := request.BearerToken()

		req := require.New(t)
		req.True(ok)
		req.Equal("abc.def.ghi", token)
	})

	t.Run("other schemes are not bearer tokens", func(t *testing.T) {
		header := http.Header{}
		header.Set("Authorization", "Basic dXNlcjpwYXNz")

		request := testRequest("GET", "https://example.com/", header, "")

		_, ok := request.BearerToken()

		req := require.New(t)
		req.False(ok)
	})

	t.Run("an empty token reports not present", func(t *testing.T) {
		header := http.Header{}
		header.Set("Authorization", "Bearer   ")

		request := testRequest("GET", "https://example.com/", header, "")

		_, ok := request.BearerToken()

		req := require.New(t)
		req.False(ok)
	})
}

func Test_Request_IfNoneMatch(t *testing.T) {

	t.Run("unquotes the first tag and drops a weak prefix", func(t *testing.T) {
		header := http.Header{}
		header.Set("If-None-Match", `W/"etag-1", "etag-2"`)

		request := testRequest("GET", "https://example.com/", header, "")

		tag, ok := request.IfNoneMatch()

		req := require.New(t)
		req.True(ok)
		req.Equal("etag-1", tag)
	})

	t.Run("a missing header reports not present", func(t *testing.T) {
		request := testRequest("GET", "https://example.com/", nil, "")

		_, ok := request.IfNoneMatch()

		req := require.New(t)
		req.False(ok)
	})
}

func Test_Request_IsJson(t *testing.T) {

	t.Run("a json content type wins regardless of pathname", func(t *testing.T) {
		header := http.Header{}
		header.Set("Content-Type", "application/json; charset=utf-8")

		request := testRequest("POST", "https://example.com/submit.html", header, "")

		req := require.New(t)
		req.True(request.IsJson())
	})

	t.Run("a .json pathname suffix counts", func(t *testing.T) {
		request := testRequest("GET", "https://example.com/products.json", nil, "")

		req := require.New(t)
		req.True(request.IsJson())
	})

	t.Run("an accepting client counts", func(t *testing.T) {
		header := http.Header{}
		header.Set("Accept", "application/json")

		request := testRequest("GET", "https://example.com/products", header, "")

		req := require.New(t)
		req.True(request.IsJson())
	})
}

func Test_Request_Body(t *testing.T) {

	t.Run("buffers once and replays the same bytes", func(t *testing.T) {
		request := testRequest("POST", "https://example.com/", nil, `{"name":"anvil"}`)

		first, err := request.Body()

		req := require.New(t)
		req.NoError(err)
		req.Equal(`{"name":"anvil"}`, string(first))

		//the underlying reader is drained; only the cache can answer now
		second, err := request.Body()
		req.NoError(err)
		req.Equal(first, second)
	})

	t.Run("a nil source reads as an empty body", func(t *testing.T) {
		request := testRequest("POST", "https://example.com/", nil, "")

		body, err := request.Body()

		req := require.New(t)
		req.NoError(err)
		req.NotNil(body)
		req.Empty(body)
	})

	t.Run("a read failure is cached and the stream is not re-read", func(t *testing.T) {
		reader := &brokenReader{}
		requestUrl, _ := url.Parse("https://example.com/")
		request := NewRequest("42", "POST", nil, requestUrl, reader)

		_, first := request.Body()
		_, second := request.Body()

		req := require.New(t)
		req.Error(first)
		req.Contains(first.Error(), "error buffering body for request [42]")
		req.Equal(first, second)
		req.Equal(1, reader.reads)
	})
}

func Test_Request_JsonBody(t *testing.T) {

	t.Run("unmarshals into the target", func(t *testing.T) {
		request := testRequest("POST", "https://example.com/", nil, `{"name":"anvil"}`)

		out := map[string]string{}
		err := request.JsonBody(&out)

		req := require.New(t)
		req.NoError(err)
		req.Equal("anvil", out["name"])
	})

	t.Run("a parse failure surfaces as a caller-visible bad request", func(t *testing.T) {
		request := testRequest("POST", "https://example.com/", nil, "{not json")

		err := request.JsonBody(&map[string]string{})

		req := require.New(t)
		req.Error(err)

		httpError := &HttpError{}
		req.True(errors.As(err, &httpError))
		req.Equal(http.StatusBadRequest, httpError.Status)
		req.Equal("request body is not valid JSON", httpError.Detail)
	})
}

func Test_Request_FormBody(t *testing.T) {

	t.Run("decodes repeated keys into ordered lists", func(t *testing.T) {
		request := testRequest("POST", "https://example.com/", nil, "tag=red&tag=blue&name=anvil")

		values, err := request.FormBody()

		req := require.New(t)
		req.NoError(err)
		req.Equal([]string{"red", "blue"}, values["tag"])
		req.Equal("anvil", values.Get("name"))
	})

	t.Run("a decode failure surfaces as a caller-visible bad request", func(t *testing.T) {
		request := testRequest("POST", "https://example.com/", nil, "a=%zz")

		_, err := request.FormBody()

		req := require.New(t)
		req.Error(err)

		httpError := &HttpError{}
		req.True(errors.As(err, &httpError))
		req.Equal(http.StatusBadRequest, httpError.Status)
		req.Equal("request body is not valid form data", httpError.Detail)
	})
}
