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
	"bytes"
	"compress/gzip"
	"context"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/openziti/xrouter"
	"github.com/pkg/errors"
)

const (
	ContentEncodingBrotli = "br"
	ContentEncodingGzip   = "gzip"

	DefaultCompressionMinSize = 1024
)

// CompressionOptions configures the compression middleware.
type CompressionOptions struct {
	MinSize int
}

// Default provides defaults for all necessary values.
func (options *CompressionOptions) Default() {
	options.MinSize = DefaultCompressionMinSize
}

// Parse parses a configuration map.
func (options *CompressionOptions) Parse(optionsMap xrouter.Options) error {
	if interfaceVal, ok := optionsMap["minSize"]; ok {
		if minSize, ok := interfaceVal.(int); ok {
			options.MinSize = minSize
		} else {
			return errors.New("could not use value for minSize, not an integer")
		}
	}

	return nil
}

// NewCompression creates outbound middleware that compresses buffered
// response bodies with brotli or gzip, whichever the client's
// Accept-Encoding prefers. Streams, already-encoded responses, bodies below
// the minimum size, and bodies that don't shrink are passed through
// untouched.
func NewCompression(options CompressionOptions) xrouter.Middleware {
	return func(ctx context.Context, request *xrouter.Request, response *xrouter.Response) (xrouter.Outcome, error) {
		body := response.BodyBytes()

		if body == nil || len(body) < options.MinSize {
			return xrouter.Continue(response), nil
		}

		if response.Header().Get("Content-Encoding") != "" {
			return xrouter.Continue(response), nil
		}

		encoding := negotiateEncoding(request.Header().Get("Accept-Encoding"))

		if encoding == "" {
			return xrouter.Continue(response), nil
		}

		compressed, err := compress(encoding, body)

		if err != nil {
			return xrouter.Outcome{}, errors.Wrapf(err, "error compressing response body for request [%s]", request.Id())
		}

		if len(compressed) >= len(body) {
			return xrouter.Continue(response), nil
		}

		contentType := response.Header().Get("Content-Type")

		response.SetBody(contentType, compressed)
		response.SetHeader("Content-Encoding", encoding)
		response.AddHeader("Vary", "Accept-Encoding")

		return xrouter.Continue(response), nil
	}
}

// NewCompressionFactory adapts NewCompression to registry registration.
func NewCompressionFactory() xrouter.Factory[xrouter.Middleware] {
	return func(optionsMap xrouter.Options) (xrouter.Middleware, error) {
		options := CompressionOptions{}
		options.Default()

		if err := options.Parse(optionsMap); err != nil {
			return nil, err
		}

		return NewCompression(options), nil
	}
}

// negotiateEncoding picks the best supported encoding from an
// Accept-Encoding header, preferring brotli over gzip.
func negotiateEncoding(acceptEncoding string) string {
	brotliAccepted := false
	gzipAccepted := false

	for _, token := range strings.Split(acceptEncoding, ",") {
		token = strings.TrimSpace(token)

		if i := strings.Index(token, ";"); i >= 0 {
			token = strings.TrimSpace(token[:i])
		}

		switch token {
		case ContentEncodingBrotli:
			brotliAccepted = true
		case ContentEncodingGzip:
			gzipAccepted = true
		}
	}

	if brotliAccepted {
		return ContentEncodingBrotli
	}

	if gzipAccepted {
		return ContentEncodingGzip
	}

	return ""
}

func compress(encoding string, body []byte) ([]byte, error) {
	buf := &bytes.Buffer{}

	switch encoding {
	case ContentEncodingBrotli:
		writer := brotli.NewWriter(buf)

		if _, err := writer.Write(body); err != nil {
			return nil, err
		}

		if err := writer.Close(); err != nil {
			return nil, err
		}

	case ContentEncodingGzip:
		writer := gzip.NewWriter(buf)

		if _, err := writer.Write(body); err != nil {
			return nil, err
		}

		if err := writer.Close(); err != nil {
			return nil, err
		}

	default:
		return nil, errors.Errorf("unsupported content encoding [%s]", encoding)
	}

	return buf.Bytes(), nil
}
