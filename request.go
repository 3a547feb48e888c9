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
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Request is the value object that flows through a Target's middleware chain.
// The identifier, method, header map, and parsed URL are fixed at
// construction. The hostname and pathname parameter maps are written exactly
// once by the dispatcher immediately after matching and are treated as
// read-only by all downstream middleware.
//
// A Request lives for exactly one request-response cycle and is never shared
// across requests. Middleware for one request runs strictly sequentially, so
// no internal locking is performed.
type Request struct {
	id     string
	method string
	header http.Header
	url    *url.URL

	hostnameParams Params
	pathnameParams Params

	queryParams url.Values

	source    io.Reader
	bodyRead  bool
	bodyBytes []byte
	bodyErr   error
}

// NewRequest creates a Request. The url is expected to carry the externally
// visible scheme and host, reconstructed by the transport shim when the
// process runs behind a reverse proxy. body may be nil for body-less
// requests.
func NewRequest(id, method string, header http.Header, requestUrl *url.URL, body io.Reader) *Request {
	if header == nil {
		header = http.Header{}
	}

	return &Request{
		id:     id,
		method: method,
		header: header,
		url:    requestUrl,
		source: body,
	}
}

// Id returns the request identifier assigned by the transport shim.
func (request *Request) Id() string {
	return request.id
}

// Method returns the HTTP method verbatim.
func (request *Request) Method() string {
	return request.method
}

// Header returns the request header map. Callers must treat it as read-only.
func (request *Request) Header() http.Header {
	return request.header
}

// URL returns the parsed request URL. Callers must treat it as read-only.
func (request *Request) URL() *url.URL {
	return request.url
}

// Hostname returns the request host lower-cased with any :port suffix
// stripped.
func (request *Request) Hostname() string {
	host := request.url.Host

	if strings.Contains(host, ":") {
		if just, _, err := net.SplitHostPort(host); err == nil {
			host = just
		}
	}

	return strings.ToLower(host)
}

// Pathname returns the URL path, or "/" when the request carried none.
func (request *Request) Pathname() string {
	if request.url.Path == "" {
		return "/"
	}

	return request.url.Path
}

// SetHostnameParams records the parameters extracted by hostname matching.
// Only the first call takes effect; the dispatcher calls it exactly once.
func (request *Request) SetHostnameParams(params Params) {
	if request.hostnameParams != nil {
		return
	}

	if params == nil {
		params = Params{}
	}

	request.hostnameParams = params
}

// SetPathnameParams records the parameters extracted by pathname matching.
// Only the first call takes effect; the dispatcher calls it exactly once.
func (request *Request) SetPathnameParams(params Params) {
	if request.pathnameParams != nil {
		return
	}

	if params == nil {
		params = Params{}
	}

	request.pathnameParams = params
}

// HostnameParams returns the parameters extracted by hostname matching, or an
// empty map if the dispatcher has not matched yet. Treat as read-only.
func (request *Request) HostnameParams() Params {
	if request.hostnameParams == nil {
		return Params{}
	}

	return request.hostnameParams
}

// PathnameParams returns the parameters extracted by pathname matching, or an
// empty map if the dispatcher has not matched yet. Treat as read-only.
func (request *Request) PathnameParams() Params {
	if request.pathnameParams == nil {
		return Params{}
	}

	return request.pathnameParams
}

// QueryParams returns the parsed query string. Repeated keys collect into
// ordered lists. The map is parsed once and cached; treat as read-only.
func (request *Request) QueryParams() url.Values {
	if request.queryParams == nil {
		request.queryParams = request.url.Query()
	}

	return request.queryParams
}

// IsHead returns true for HEAD requests.
func (request *Request) IsHead() bool {
	return request.method == http.MethodHead
}

// IsJson reports whether the request should be treated as JSON. The content
// type is consulted first, then a ".json" pathname suffix, then the Accept
// header, in that priority order.
func (request *Request) IsJson() bool {
	if strings.Contains(request.header.Get("Content-Type"), "application/json") {
		return true
	}

	if strings.HasSuffix(request.Pathname(), ".json") {
		return true
	}

	return strings.Contains(request.header.Get("Accept"), "application/json")
}

// IsFormUrlencoded reports whether the request body is declared as
// application/x-www-form-urlencoded.
func (request *Request) IsFormUrlencoded() bool {
	return strings.Contains(request.header.Get("Content-Type"), "application/x-www-form-urlencoded")
}

// Cookies parses the Cookie header into a name to value map. Values may
// themselves contain '=' characters; everything after the first '=' of a
// pair is preserved as the value.
func (request *Request) Cookies() map[string]string {
	cookies := map[string]string{}

	for _, pair := range strings.Split(request.header.Get("Cookie"), ";") {
		pair = strings.TrimSpace(pair)

		if pair == "" {
			continue
		}

		pieces := strings.SplitN(pair, "=", 2)

		if len(pieces) != 2 || pieces[0] == "" {
			continue
		}

		cookies[pieces[0]] = pieces[1]
	}

	return cookies
}

// Cookie returns the named cookie value and whether it was present.
func (request *Request) Cookie(name string) (string, bool) {
	value, ok := request.Cookies()[name]
	return value, ok
}

// BearerToken extracts the token from a "Bearer" Authorization header. The
// scheme comparison is case-insensitive and the split is limited to two
// parts so tokens with embedded whitespace survive intact.
func (request *Request) BearerToken() (string, bool) {
	authorization := request.header.Get("Authorization")

	if authorization == "" {
		return "", false
	}

	pieces := strings.SplitN(authorization, " ", 2)

	if len(pieces) != 2 || !strings.EqualFold(pieces[0], "bearer") {
		return "", false
	}

	token := strings.TrimSpace(pieces[1])

	if token == "" {
		return "", false
	}

	return token, true
}

// IfModifiedSince parses the If-Modified-Since header. ok is false when the
// header is absent or unparsable.
func (request *Request) IfModifiedSince() (time.Time, bool) {
	value := request.header.Get("If-Modified-Since")

	if value == "" {
		return time.Time{}, false
	}

	when, err := http.ParseTime(value)

	if err != nil {
		return time.Time{}, false
	}

	return when, true
}

// IfNoneMatch returns the first entity tag of a comma separated
// If-None-Match header, unquoted, with any weak-validator prefix removed.
func (request *Request) IfNoneMatch() (string, bool) {
	value := request.header.Get("If-None-Match")

	if value == "" {
		return "", false
	}

	first := strings.TrimSpace(strings.Split(value, ",")[0])
	first = strings.TrimPrefix(first, "W/")
	first = strings.Trim(first, `"`)

	if first == "" {
		return "", false
	}

	return first, true
}

// Body buffers the full request body into memory on first call and caches
// the outcome. Subsequent calls return the identical bytes (and error)
// without re-reading the underlying stream.
func (request *Request) Body() ([]byte, error) {
	if request.bodyRead {
		return request.bodyBytes, request.bodyErr
	}

	request.bodyRead = true

	if request.source == nil {
		request.bodyBytes = []byte{}
		return request.bodyBytes, nil
	}

	request.bodyBytes, request.bodyErr = io.ReadAll(request.source)

	if request.bodyErr != nil {
		request.bodyErr = errors.Wrapf(request.bodyErr, "error buffering body for request [%s]", request.id)
	}

	return request.bodyBytes, request.bodyErr
}

// JsonBody buffers the body and unmarshals it into out. A parse failure
// produces a caller-visible bad request error.
func (request *Request) JsonBody(out interface{}) error {
	body, err := request.Body()

	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return NewBadRequestError("request body is not valid JSON", err)
	}

	return nil
}

// FormBody buffers and decodes an application/x-www-form-urlencoded body.
// Repeated keys collect into ordered lists.
func (request *Request) FormBody() (url.Values, error) {
	body, err := request.Body()

	if err != nil {
		return nil, err
	}

	values, err := url.ParseQuery(string(body))

	if err != nil {
		return nil, NewBadRequestError("request body is not valid form data", err)
	}

	return values, nil
}
