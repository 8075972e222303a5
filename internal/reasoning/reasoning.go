// Package reasoning sends one document and the instruction contract to the
// reasoning engine and returns its raw textual reply.
package reasoning

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cim-analyzer/internal/contract"
	"github.com/sells-group/cim-analyzer/internal/ingest"
	"github.com/sells-group/cim-analyzer/internal/resilience"
	"github.com/sells-group/cim-analyzer/pkg/anthropic"
)

// DefaultTimeout bounds a single engine call when none is configured.
const DefaultTimeout = 180 * time.Second

// ErrMissingAPIKey is returned when the client is built without credentials.
var ErrMissingAPIKey = errors.New("reasoning: anthropic api key is not configured")

// Kind classifies an engine failure.
type Kind string

// Failure kinds.
const (
	KindUnavailable Kind = "upstream_unavailable"
	KindTimeout     Kind = "upstream_timeout"
	KindRejected    Kind = "upstream_rejected"
)

// Error is an engine failure. StatusCode and Detail are set for rejections.
type Error struct {
	Kind       Kind
	StatusCode int
	Detail     string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindRejected:
		return fmt.Sprintf("reasoning: engine rejected request (status %d)", e.StatusCode)
	case KindTimeout:
		return "reasoning: engine call timed out"
	default:
		if e.Err != nil {
			return "reasoning: engine unavailable: " + e.Err.Error()
		}
		return "reasoning: engine unavailable"
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Reply is the engine's answer for one document.
type Reply struct {
	Text       string
	Model      string
	StopReason string
	Usage      anthropic.TokenUsage
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
}

// Client invokes the engine once per document. It never retries; callers
// that want retries wrap it (see IsRetryable).
type Client struct {
	api     anthropic.Client
	timeout time.Duration
}

// New wraps an existing API client.
func New(api anthropic.Client, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{api: api, timeout: timeout}
}

// Dial builds a Client backed by the Anthropic SDK.
func Dial(apiKey string, opts Options) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	var reqOpts []option.RequestOption
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	return New(anthropic.NewClient(apiKey, reqOpts...), opts), nil
}

// Analyze sends the payload with the contract's instructions and returns the
// reply verbatim. Failures are always *Error.
func (c *Client) Analyze(ctx context.Context, payload *ingest.Payload, k *contract.Contract) (*Reply, error) {
	if payload == nil || k == nil {
		return nil, eris.New("reasoning: payload and contract are required")
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	log := zap.L().With(
		zap.String("model", k.Model),
		zap.String("contract", k.Version),
		zap.String("document_sha256", payload.SHA256),
	)
	log.Debug("reasoning: sending document", zap.Int("bytes", payload.ByteLength))

	start := time.Now()
	resp, err := c.api.CreateMessage(callCtx, anthropic.MessageRequest{
		Model:     k.Model,
		MaxTokens: k.MaxTokens,
		System: []anthropic.SystemBlock{{
			Text:         k.SystemPrompt,
			CacheControl: &anthropic.CacheControl{},
		}},
		Messages: []anthropic.Message{{
			Role:      "user",
			Content:   k.UserInstruction,
			Documents: []anthropic.Document{{Data: payload.Data}},
		}},
	})
	if err != nil {
		rerr := classify(ctx, callCtx, err)
		log.Warn("reasoning: engine call failed",
			zap.String("kind", string(rerr.Kind)),
			zap.Int("status", rerr.StatusCode),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, rerr
	}

	if resp.StopReason == "max_tokens" {
		log.Warn("reasoning: reply truncated at max_tokens", zap.Int64("max_tokens", k.MaxTokens))
	}
	log.Info("reasoning: reply received",
		zap.String("stop_reason", resp.StopReason),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &Reply{
		Text:       resp.Text(),
		Model:      resp.Model,
		StopReason: resp.StopReason,
		Usage:      resp.Usage,
	}, nil
}

// classify maps a transport or API error to a Kind. The parent context is
// checked first so a client disconnect is never reported as a timeout.
func classify(parent, call context.Context, err error) *Error {
	if errors.Is(parent.Err(), context.Canceled) {
		return &Error{Kind: KindUnavailable, Detail: "request cancelled", Err: context.Canceled}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(call.Err(), context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Detail: "no reply within deadline", Err: err}
	}

	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		return &Error{Kind: KindRejected, StatusCode: apiErr.StatusCode, Detail: apiErr.Body, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Detail: netErr.Error(), Err: err}
	}
	return &Error{Kind: KindUnavailable, Detail: err.Error(), Err: err}
}

// IsRetryable reports whether a failed call may be attempted again.
// Rejections retry only on 408, 429 and 5xx.
func IsRetryable(err error) bool {
	var re *Error
	if !errors.As(err, &re) {
		return false
	}
	switch re.Kind {
	case KindTimeout:
		return true
	case KindUnavailable:
		return !errors.Is(re.Err, context.Canceled)
	case KindRejected:
		return resilience.IsTransientHTTPStatus(re.StatusCode)
	default:
		return false
	}
}
