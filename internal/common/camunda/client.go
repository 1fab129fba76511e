// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"loan-origination/internal/common/config"
	"loan-origination/internal/common/errors"

	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Client wraps the Zeebe gRPC client with error mapping and retries.
type Client struct {
	client zbc.Client
	config *ClientConfig
}

type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RequestTimeout         time.Duration
	RetryConfig            *RetryConfig
}

// RetryConfig bounds retries of transient gateway failures.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultRetryConfig = &RetryConfig{
	MaxRetries: 3,
	BaseDelay:  1 * time.Second,
	MaxDelay:   10 * time.Second,
}

// NewClient connects to a plaintext gateway with default timeouts.
func NewClient(address string) (*Client, error) {
	return NewClientWithConfig(&ClientConfig{
		GatewayAddress:         address,
		UsePlaintextConnection: true,
		ConnectionTimeout:      10 * time.Second,
		RequestTimeout:         30 * time.Second,
		RetryConfig:            DefaultRetryConfig,
	})
}

// NewClientFromConfig builds a client from the camunda config section.
func NewClientFromConfig(cfg config.CamundaConfig) (*Client, error) {
	requestTimeout := time.Duration(cfg.RequestTimeout) * time.Millisecond
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	return NewClientWithConfig(&ClientConfig{
		GatewayAddress:         cfg.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      10 * time.Second,
		RequestTimeout:         requestTimeout,
		RetryConfig:            DefaultRetryConfig,
	})
}

// NewClientWithConfig connects and verifies the gateway answers a topology
// request before returning.
func NewClientWithConfig(cfg *ClientConfig) (*Client, error) {
	if cfg.RetryConfig == nil {
		cfg.RetryConfig = DefaultRetryConfig
	}

	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         cfg.GatewayAddress,
		UsePlaintextConnection: cfg.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectionTimeout)
	defer cancel()

	if _, err := zeebeClient.NewTopologyCommand().Send(ctx); err != nil {
		zeebeClient.Close()
		return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", cfg.GatewayAddress, err)
	}

	return &Client{client: zeebeClient, config: cfg}, nil
}

// GetClient returns the raw Zeebe client, used to open job workers.
func (c *Client) GetClient() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

// StartProcess creates an instance of the latest deployed version of
// bpmnProcessID and returns its key.
func (c *Client) StartProcess(ctx context.Context, bpmnProcessID string, variables map[string]interface{}) (int64, error) {
	result, err := c.ExecuteWithRetry(ctx, func(ctx context.Context) (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
		defer cancel()

		cmd, err := c.client.NewCreateInstanceCommand().
			BPMNProcessId(bpmnProcessID).
			LatestVersion().
			VariablesFromMap(variables)
		if err != nil {
			return nil, errors.NewValidationError("invalid process variables", err.Error())
		}
		return cmd.Send(ctx)
	}, "create_instance:"+bpmnProcessID)
	if err != nil {
		return 0, err
	}

	resp, ok := result.(*pb.CreateProcessInstanceResponse)
	if !ok || resp == nil {
		return 0, nil
	}
	return resp.GetProcessInstanceKey(), nil
}

// ExecuteWithRetry runs commandFunc with exponential backoff. Only transient
// errors are retried; the final error is mapped to a StandardError.
func (c *Client) ExecuteWithRetry(
	ctx context.Context,
	commandFunc func(context.Context) (interface{}, error),
	operationName string,
) (interface{}, error) {
	retry := c.config.RetryConfig
	for attempt := 0; ; attempt++ {
		result, err := commandFunc(ctx)
		if err == nil {
			return result, nil
		}
		if _, ok := errors.AsStandard(err); ok {
			return nil, err
		}

		kind := classify(err)
		if !kind.transient() || attempt >= retry.MaxRetries {
			return nil, kind.toStandard(err, operationName, attempt+1)
		}

		timer := time.NewTimer(retry.backoff(attempt))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("operation %s cancelled after %d attempts: %w", operationName, attempt+1, ctx.Err())
		}
	}
}

func (r *RetryConfig) backoff(attempt int) time.Duration {
	d := r.BaseDelay << attempt
	if d <= 0 || d > r.MaxDelay {
		return r.MaxDelay
	}
	return d
}

type failureKind int

const (
	failureUnknown failureKind = iota
	failureUnreachable
	failureTimeout
	failureExhausted
	failureNotFound
	failureExists
	failureDenied
)

func (k failureKind) transient() bool {
	return k == failureUnreachable || k == failureTimeout || k == failureExhausted
}

var grpcKinds = map[codes.Code]failureKind{
	codes.Unavailable:       failureUnreachable,
	codes.DeadlineExceeded:  failureTimeout,
	codes.ResourceExhausted: failureExhausted,
	codes.NotFound:          failureNotFound,
	codes.AlreadyExists:     failureExists,
	codes.PermissionDenied:  failureDenied,
	codes.Unauthenticated:   failureDenied,
}

// Checked in order; the first phrase found in the message wins.
var phraseKinds = []struct {
	phrase string
	kind   failureKind
}{
	{"connection refused", failureUnreachable},
	{"connection reset", failureUnreachable},
	{"unavailable", failureUnreachable},
	{"unreachable", failureUnreachable},
	{"broken pipe", failureUnreachable},
	{"deadline exceeded", failureTimeout},
	{"timeout", failureTimeout},
	{"resource_exhausted", failureExhausted},
	{"not found", failureNotFound},
	{"already exists", failureExists},
	{"permission denied", failureDenied},
	{"unauthorized", failureDenied},
}

// classify prefers the gRPC status code and falls back to the message for
// errors that lost their status on the way up.
func classify(err error) failureKind {
	if st, ok := status.FromError(err); ok {
		if kind, found := grpcKinds[st.Code()]; found {
			return kind
		}
	}
	msg := strings.ToLower(err.Error())
	for _, p := range phraseKinds {
		if strings.Contains(msg, p.phrase) {
			return p.kind
		}
	}
	return failureUnknown
}

func isRetryableZeebeError(err error) bool {
	return classify(err).transient()
}

func (k failureKind) toStandard(err error, operation string, attempts int) error {
	cause := fmt.Errorf("zeebe operation '%s' failed after %d attempt(s): %w", operation, attempts, err)
	switch k {
	case failureTimeout:
		return errors.NewTimeoutError("zeebe", cause)
	case failureNotFound:
		return errors.NewResourceNotFoundError("Process", cause.Error())
	case failureExists:
		return errors.NewBusinessRuleError("Process resource already exists", cause.Error())
	case failureDenied:
		return errors.NewUnauthorizedError(cause.Error())
	default:
		return errors.NewExternalServiceError("zeebe", cause)
	}
}

// HealthCheck sends a topology request to the gateway.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}
