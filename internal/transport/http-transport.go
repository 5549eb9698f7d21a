package transport

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	u "net/url"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/swoopdl/swoop/internal/utils"
)

var filenameRegex = regexp.MustCompile(`[^a-zA-Z0-9_\-\. ]+`)

type HTTPTransport struct {
	client    *http.Client
	userAgent string
	headers   map[string]string
}

func NewHTTPTransport(clientConfig utils.HTTPClientConfig) *HTTPTransport {
	userAgent := clientConfig.UserAgent
	if userAgent == "randomize" {
		userAgent = utils.GetRandomUserAgent()
	}
	return &HTTPTransport{
		client:    utils.CreateHTTPClient(clientConfig),
		userAgent: userAgent,
		headers:   clientConfig.Headers,
	}
}

func (t *HTTPTransport) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("Connection", "keep-alive")
	for key, value := range t.headers {
		req.Header.Set(key, value)
	}
}

func (t *HTTPTransport) Probe(ctx context.Context, url string) (Capability, error) {
	log := utils.GetLogger("http-transport")
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return Capability{}, err
	}
	t.setHeaders(req)
	resp, err := t.client.Do(req)
	if err != nil {
		return Capability{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Capability{}, fmt.Errorf("unexpected status code on HEAD: %d", resp.StatusCode)
	}

	capability := Capability{Filename: suggestedFilename(resp)}
	if contentLength := resp.Header.Get("Content-Length"); contentLength != "" {
		size, err := strconv.ParseInt(contentLength, 10, 64)
		if err == nil && size > 0 {
			capability.Size = size
		}
	}
	if resp.Header.Get("Accept-Ranges") == "bytes" && capability.Size > 0 {
		capability.RangeSupported = true
	} else {
		log.Debug().Str("url", url).Msg("Server does not advertise byte range support")
	}
	return capability, nil
}

func (t *HTTPTransport) FetchRange(ctx context.Context, url string, start, end int64, dest string) error {
	log := utils.GetLogger("http-transport")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	t.setHeaders(req)
	ranged := end != WholeResource
	if ranged {
		rangeHeader := fmt.Sprintf("bytes=%d-%d", start, end)
		req.Header.Set("Range", rangeHeader)
		log.Debug().Str("range", rangeHeader).Msg("Sending range request")
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if ranged {
		if resp.StatusCode != http.StatusPartialContent {
			return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}
		if resp.Header.Get("Content-Range") == "" {
			return fmt.Errorf("missing Content-Range header")
		}
	} else if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	destFile, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("error opening destination file: %v", err)
	}
	defer destFile.Close()

	buffer := make([]byte, utils.DefaultBufferSize)
	written, err := io.CopyBuffer(destFile, resp.Body, buffer)
	if err != nil {
		return fmt.Errorf("error streaming response body: %v", err)
	}
	if ranged {
		expected := end - start + 1
		if written != expected {
			return fmt.Errorf("size mismatch: expected %d bytes, got %d", expected, written)
		}
	}
	log.Debug().Int64("written", written).Str("dest", dest).Msg("Fetch completed")
	return nil
}

func suggestedFilename(resp *http.Response) string {
	contentDisposition := resp.Header.Get("Content-Disposition")
	if contentDisposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentDisposition)
	if err != nil {
		return ""
	}
	if fn, ok := params["filename"]; ok && fn != "" {
		return filenameRegex.ReplaceAllString(fn, "_")
	}
	if fn, ok := params["filename*"]; ok && strings.HasPrefix(fn, "UTF-8''") {
		unescaped, _ := u.PathUnescape(strings.TrimPrefix(fn, "UTF-8''"))
		return filenameRegex.ReplaceAllString(unescaped, "_")
	}
	return ""
}
