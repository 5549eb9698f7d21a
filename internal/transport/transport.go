// Package transport abstracts the byte source of a download: probe a URL
// for size and range support, then stream byte ranges to local files.
package transport

import (
	"context"
	"strings"

	"github.com/swoopdl/swoop/internal/utils"
)

// WholeResource as the end offset requests an unranged fetch of the entire
// resource.
const WholeResource int64 = -1

// Capability is the result of probing a URL before downloading.
type Capability struct {
	Size           int64
	RangeSupported bool
	Filename       string // server-suggested name, may be empty
}

type Transport interface {
	// Probe determines total size and whether byte-range fetches are
	// supported. A probe error is not fatal for a download; callers fall
	// back to a single unranged fetch.
	Probe(ctx context.Context, url string) (Capability, error)

	// FetchRange streams bytes [start, end] of url into the file at dest,
	// replacing any previous content. end == WholeResource fetches the
	// entire resource.
	FetchRange(ctx context.Context, url string, start, end int64, dest string) error
}

// For picks a transport implementation from the URL scheme.
func For(url string, clientConfig utils.HTTPClientConfig) (Transport, error) {
	if strings.HasPrefix(url, "s3://") {
		return NewS3Transport()
	}
	return NewHTTPTransport(clientConfig), nil
}
