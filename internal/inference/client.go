package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"strconv"

	apperrors "split-the-g/internal/errors"
)

// Client represents the hosted vision model.
type Client interface {
	// Analyze runs the full scoring workflow on a captured photo
	Analyze(ctx context.Context, image []byte) (*Analysis, error)
	// Detect runs the lightweight detector used for live auto-capture
	Detect(ctx context.Context, image []byte) (*Detection, error)
}

// Downloader fetches workflow outputs that come back as URLs instead of inline base64
type Downloader interface {
	FetchBytes(ctx context.Context, imageURL string) ([]byte, error)
}

type Options struct {
	BaseURL     string
	APIKey      string
	Workspace   string
	Workflow    string
	DetectModel string
	// MinConfidence is passed to the detector, 0..1
	MinConfidence float64
}

type HTTPClient struct {
	url     *url.URL
	opts    Options
	client  *http.Client
	fetcher Downloader
}

func NewClient(opts Options, client *http.Client, fetcher Downloader) (*HTTPClient, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if opts.Workspace == "" || opts.Workflow == "" {
		return nil, fmt.Errorf("workspace and workflow are required")
	}

	if client == nil {
		client = http.DefaultClient
	}

	return &HTTPClient{url: u, opts: opts, client: client, fetcher: fetcher}, nil
}

func (c *HTTPClient) Analyze(ctx context.Context, image []byte) (*Analysis, error) {
	payload := workflowRequest{
		APIKey: c.opts.APIKey,
		Inputs: map[string]imageInput{
			"image": {Type: "base64", Value: base64.StdEncoding.EncodeToString(image)},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode workflow request: %w", err)
	}

	_url := c.url.JoinPath("infer", "workflows", c.opts.Workspace, c.opts.Workflow).String()
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, _url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	var resp workflowResponse
	if err := c.do(request, &resp); err != nil {
		return nil, err
	}
	if len(resp.Outputs) == 0 {
		return nil, apperrors.NewNetworkError("inference workflow returned no outputs", nil)
	}
	out := resp.Outputs[0]

	splitImage, err := c.decodeImage(ctx, out.SplitVisualization)
	if err != nil {
		return nil, apperrors.NewNetworkError("decode split visualization", err)
	}
	logoImage, err := c.decodeImage(ctx, out.LogoCrop)
	if err != nil {
		return nil, apperrors.NewNetworkError("decode logo crop", err)
	}

	return &Analysis{
		Image:       out.Predictions.Image,
		Predictions: out.Predictions.Predictions,
		SplitImage:  splitImage,
		LogoImage:   logoImage,
	}, nil
}

func (c *HTTPClient) Detect(ctx context.Context, image []byte) (*Detection, error) {
	_url := c.url.JoinPath(c.opts.DetectModel)
	q := _url.Query()
	q.Set("api_key", c.opts.APIKey)
	q.Set("confidence", strconv.Itoa(int(math.Round(c.opts.MinConfidence*100))))
	_url.RawQuery = q.Encode()

	body := base64.StdEncoding.EncodeToString(image)
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, _url.String(), bytes.NewBufferString(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp Detection
	if err := c.do(request, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do sends the request and decodes a 200 body into out, mapping failures to AppErrors
func (c *HTTPClient) do(request *http.Request, out any) error {
	response, err := c.client.Do(request)
	if err != nil {
		err = redactKey(err)
		if isTimeout(err) {
			return apperrors.NewTimeoutError("inference API timed out", err)
		}
		return apperrors.NewNetworkError("send inference request", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return statusError(response.StatusCode, excerpt)
	}

	if err = json.NewDecoder(response.Body).Decode(out); err != nil {
		return apperrors.NewNetworkError("decode inference response", err)
	}
	return nil
}

// statusError maps upstream 5xx to a network error and every 4xx to a
// client error: 400 and 413 blame the upload, the rest are unprocessable.
func statusError(code int, body []byte) error {
	details := fmt.Sprintf("status %d: %s", code, body)
	switch {
	case code >= 500:
		return apperrors.NewNetworkError("inference API unavailable", nil).WithDetails(details)
	case code == http.StatusBadRequest || code == http.StatusRequestEntityTooLarge:
		return apperrors.NewValidationError("inference API refused the image", nil).WithDetails(details)
	default:
		return apperrors.NewUnprocessableError("inference API rejected the request", nil).WithDetails(details)
	}
}

// redactKey strips api_key from the URL that net/http embeds in transport
// errors so the key never reaches logs.
func redactKey(err error) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}
	u, parseErr := url.Parse(urlErr.URL)
	if parseErr != nil {
		return &url.Error{Op: urlErr.Op, URL: "[redacted]", Err: urlErr.Err}
	}
	q := u.Query()
	if q.Has("api_key") {
		q.Set("api_key", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return &url.Error{Op: urlErr.Op, URL: u.String(), Err: urlErr.Err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// decodeImage accepts the shapes a workflow image output can take: an
// object with base64 or url type, a bare URL, or a bare base64 string.
func (c *HTTPClient) decodeImage(ctx context.Context, raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, errors.New("image output missing")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if looksLikeURL(s) {
			return c.download(ctx, s)
		}
		return base64.StdEncoding.DecodeString(s)
	}

	var obj imageInput
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("unexpected image output: %w", err)
	}
	switch obj.Type {
	case "base64":
		return base64.StdEncoding.DecodeString(obj.Value)
	case "url":
		return c.download(ctx, obj.Value)
	default:
		return nil, fmt.Errorf("unsupported image output type %q", obj.Type)
	}
}

func (c *HTTPClient) download(ctx context.Context, imageURL string) ([]byte, error) {
	if c.fetcher == nil {
		return nil, errors.New("image output is a URL but no downloader is configured")
	}
	return c.fetcher.FetchBytes(ctx, imageURL)
}

func looksLikeURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

var _ Client = (*HTTPClient)(nil)
