package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service of the orchestration engine.
// Payloads are google.protobuf.Struct on both directions.
const ServiceName = "deepcode.orchestration.v1.OrchestrationEngine"

const (
	methodRunChatPlanningAgent             = "/" + ServiceName + "/RunChatPlanningAgent"
	methodExecuteChatBasedPlanningPipeline = "/" + ServiceName + "/ExecuteChatBasedPlanningPipeline"
)

// Frame types on the pipeline stream.
const (
	frameProgress = "progress"
	frameResult   = "result"
	frameError    = "error"
)

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
	errPipelineFailed           = errors.New("pipeline returned error")
	errNoResult                 = errors.New("pipeline stream ended without a result")
	errEmptyPlan                = errors.New("planning agent returned an empty plan")
	errNotServing               = errors.New("engine is not serving")
)

var pipelineStreamDesc = &grpc.StreamDesc{
	StreamName:    "ExecuteChatBasedPlanningPipeline",
	ServerStreams: true,
}

// GrpcClient talks to the orchestration engine over gRPC.
type GrpcClient struct {
	conn   *grpc.ClientConn
	health healthpb.HealthClient
	addr   string
	logger *slog.Logger
}

// GrpcClientConfig holds configuration for the gRPC client.
type GrpcClientConfig struct {
	Address          string
	ConnectTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
}

// DefaultGrpcClientConfig returns default configuration.
func DefaultGrpcClientConfig() GrpcClientConfig {
	return GrpcClientConfig{
		Address:          "localhost:50051",
		ConnectTimeout:   5 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// NewGrpcClient connects to the orchestration engine. It blocks until the
// connection is ready or cfg.ConnectTimeout elapses.
func NewGrpcClient(cfg GrpcClientConfig, logger *slog.Logger, opts ...grpc.DialOption) (*GrpcClient, error) {
	if logger == nil {
		logger = slog.Default()
	}

	def := DefaultGrpcClientConfig()
	if cfg.Address == "" {
		cfg.Address = def.Address
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.KeepaliveTime <= 0 {
		cfg.KeepaliveTime = def.KeepaliveTime
	}
	if cfg.KeepaliveTimeout <= 0 {
		cfg.KeepaliveTimeout = def.KeepaliveTimeout
	}

	kacp := keepalive.ClientParameters{
		Time:                cfg.KeepaliveTime,
		Timeout:             cfg.KeepaliveTimeout,
		PermitWithoutStream: false,
	}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	}, opts...)

	// Build client connection (no network I/O yet).
	conn, err := grpc.NewClient(cfg.Address, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to orchestration engine at %s: %w", cfg.Address, err)
	}

	// Force a connection attempt during startup so we fail fast on bad endpoints.
	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("orchestration engine at %s not ready: %w", cfg.Address, err)
	}

	logger.Info("Connected to orchestration engine", "address", cfg.Address)

	return &GrpcClient{
		conn:   conn,
		health: healthpb.NewHealthClient(conn),
		addr:   cfg.Address,
		logger: logger,
	}, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Close closes the gRPC connection.
func (c *GrpcClient) Close() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Warn("failed to close gRPC connection", "error", err)
		}
	}
}

// Health checks the engine through the standard gRPC health service.
func (c *GrpcClient) Health(ctx context.Context) error {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: %s", errNotServing, resp.GetStatus())
	}
	return nil
}

// RunChatPlanningAgent asks the engine's planning agent for a technical plan.
func (c *GrpcClient) RunChatPlanningAgent(ctx context.Context, requirements string) (string, error) {
	req, err := structpb.NewStruct(map[string]any{
		"requirements": requirements,
	})
	if err != nil {
		return "", fmt.Errorf("encode planning request: %w", err)
	}

	var resp structpb.Struct
	if err := c.conn.Invoke(ctx, methodRunChatPlanningAgent, req, &resp); err != nil {
		return "", fmt.Errorf("planning request failed: %w", err)
	}

	fields := resp.GetFields()
	if msg := fields["error_message"].GetStringValue(); msg != "" {
		return "", fmt.Errorf("planning agent: %s", msg)
	}
	plan := fields["plan"].GetStringValue()
	if plan == "" {
		return "", errEmptyPlan
	}
	return plan, nil
}

// ExecuteChatBasedPlanningPipeline runs the code-generation pipeline,
// forwarding progress frames to progress and returning the result frame.
func (c *GrpcClient) ExecuteChatBasedPlanningPipeline(ctx context.Context, req PipelineRequest, progress ProgressFunc) (*PipelineResult, error) {
	c.logger.Debug("Executing pipeline via gRPC",
		"input_length", len(req.UserInput),
		"enable_indexing", req.EnableIndexing,
	)

	payload, err := structpb.NewStruct(map[string]any{
		"user_input":      req.UserInput,
		"enable_indexing": req.EnableIndexing,
	})
	if err != nil {
		return nil, fmt.Errorf("encode pipeline request: %w", err)
	}

	var result *PipelineResult
	for frame, err := range c.pipelineFrames(ctx, payload) {
		if err != nil {
			return nil, err
		}

		fields := frame.GetFields()
		switch kind := fields["type"].GetStringValue(); kind {
		case frameProgress:
			progress.emit(ProgressEvent{
				Stage:   fields["stage"].GetStringValue(),
				Message: fields["message"].GetStringValue(),
				Percent: fields["percent"].GetNumberValue(),
			})
		case frameResult:
			result = decodeResult(fields)
		case frameError:
			msg := fields["error_message"].GetStringValue()
			if msg == "" {
				return nil, errPipelineFailed
			}
			return nil, fmt.Errorf("%w: %s", errPipelineFailed, msg)
		default:
			c.logger.Warn("Ignoring unknown pipeline frame", "type", kind)
		}
	}

	if result == nil {
		return nil, errNoResult
	}
	return result, nil
}

// pipelineFrames opens the server stream and yields each frame.
func (c *GrpcClient) pipelineFrames(ctx context.Context, req *structpb.Struct) iter.Seq2[*structpb.Struct, error] {
	return func(yield func(*structpb.Struct, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		stream, err := c.conn.NewStream(ctx, pipelineStreamDesc, methodExecuteChatBasedPlanningPipeline)
		if err != nil {
			yield(nil, fmt.Errorf("pipeline request failed: %w", err))
			return
		}
		if err := stream.SendMsg(req); err != nil {
			yield(nil, fmt.Errorf("send pipeline request: %w", err))
			return
		}
		if err := stream.CloseSend(); err != nil {
			yield(nil, fmt.Errorf("close pipeline send: %w", err))
			return
		}

		for {
			frame := &structpb.Struct{}
			err := stream.RecvMsg(frame)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				c.logger.Error("Pipeline stream error", "error", err)
				yield(nil, fmt.Errorf("pipeline stream error: %w", err))
				return
			}
			if !yield(frame, nil) {
				return
			}
		}
	}
}

func decodeResult(fields map[string]*structpb.Value) *PipelineResult {
	result := &PipelineResult{
		Status:  fields["status"].GetStringValue(),
		Summary: fields["summary"].GetStringValue(),
	}
	if files := fields["files"].GetStructValue(); files != nil {
		result.Files = make(map[string]string, len(files.GetFields()))
		for name, content := range files.GetFields() {
			result.Files[name] = content.GetStringValue()
		}
	}
	return result
}

var _ Engine = (*GrpcClient)(nil)
