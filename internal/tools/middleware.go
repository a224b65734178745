package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/pitabwire/jiramcp/internal/config"
	"github.com/pitabwire/jiramcp/internal/observability"
	"github.com/pitabwire/jiramcp/model"
)

// Tool call outcomes recorded in metrics.
const (
	statusOK      = "ok"
	statusError   = "error"
	statusInvalid = "invalid"
	statusFailed  = "failed"
)

// recoveryMiddleware turns a panicking handler into an internal tool error.
func (s *Server) recoveryMiddleware(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (result *mcp.CallToolResult, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				observability.RequestLogger(ctx, s.logger).Error("panic recovered",
					zap.String("tool", req.Params.Name),
					zap.Any("error", rec),
					zap.Stack("stack"),
				)
				result, err = mcp.NewToolResultError(model.NewInternalError().Message), nil
			}
		}()
		return next(ctx, req)
	}
}

// requestContextMiddleware makes sure every call carries a RequestContext.
// HTTP calls arrive with one from the auth layer; stdio calls get the
// configured operator as subject.
func (s *Server) requestContextMiddleware(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var sessionID string
		if session := server.ClientSessionFromContext(ctx); session != nil {
			sessionID = session.SessionID()
		}

		rctx := model.RequestContextFrom(ctx)
		if rctx == nil {
			rctx = &model.RequestContext{
				SubjectID:     s.operator,
				CorrelationID: uuid.New().String(),
				Transport:     config.TransportStdio,
			}
		} else {
			cp := *rctx
			rctx = &cp
		}
		if rctx.SessionID == "" {
			rctx.SessionID = sessionID
		}
		if rctx.CorrelationID == "" {
			rctx.CorrelationID = uuid.New().String()
		}

		ctx = model.WithRequestContext(ctx, rctx)
		return next(ctx, req)
	}
}

// tracingMiddleware wraps each call in a span.
func (s *Server) tracingMiddleware(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (result *mcp.CallToolResult, err error) {
		ctx, span := observability.StartSpan(ctx, "tool.call",
			observability.AttrTool.String(req.Params.Name),
			observability.AttrSubjectID.String(model.SubjectFrom(ctx)),
		)
		defer func() {
			spanErr := err
			if spanErr == nil && result != nil && result.IsError {
				spanErr = errors.New(resultText(result))
			}
			observability.EndSpanWithError(span, spanErr)
		}()

		if rctx := model.RequestContextFrom(ctx); rctx != nil {
			cp := *rctx
			cp.TraceID = observability.TraceIDFromContext(ctx)
			cp.SpanID = observability.SpanIDFromContext(ctx)
			ctx = model.WithRequestContext(ctx, &cp)
		}
		return next(ctx, req)
	}
}

// observeMiddleware logs each call and records its duration and outcome.
func (s *Server) observeMiddleware(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tool := req.Params.Name
		logger := observability.RequestLogger(ctx, s.logger).With(zap.String("tool", tool))
		ctx = observability.WithLogger(ctx, logger)

		if ce := logger.Check(zap.DebugLevel, "tool call"); ce != nil {
			ce.Write(zap.Any("arguments", observability.RedactBody(req.GetArguments(), nil)))
		}

		start := time.Now()
		result, err := next(ctx, req)
		duration := time.Since(start)

		status := statusOK
		switch {
		case err != nil:
			status = statusFailed
			logger.Error("tool call failed", zap.Duration("duration", duration), zap.Error(err))
		case result != nil && result.IsError:
			status = statusError
			if result.Meta != nil && result.Meta.AdditionalFields[metaValidation] == true {
				status = statusInvalid
			}
			logger.Warn("tool call returned error",
				zap.Duration("duration", duration),
				zap.String("message", resultText(result)),
			)
		default:
			logger.Info("tool call completed", zap.Duration("duration", duration))
		}
		s.metrics.RecordToolCall(tool, status, duration)

		return result, err
	}
}

// timeoutMiddleware bounds each call by the configured call timeout. The
// deadline lives on the handler context only, so the transport can still
// deliver the error result after it expires.
func (s *Server) timeoutMiddleware(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if s.callTimeout <= 0 {
			return next(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
		defer cancel()
		return next(ctx, req)
	}
}

// metaValidation marks results produced by argument validation.
const metaValidation = "validationFailed"

// validationMiddleware rejects calls whose arguments do not match the tool's
// input schema before the handler runs.
func (s *Server) validationMiddleware(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		errs := s.schemas.Validate(req.Params.Name, req.GetArguments())
		if len(errs) == 0 {
			return next(ctx, req)
		}

		s.metrics.RecordToolValidationFailure(req.Params.Name)

		parts := make([]string, 0, len(errs))
		for _, fe := range errs {
			if fe.Field == "" {
				parts = append(parts, fe.Message)
				continue
			}
			parts = append(parts, fe.Field+": "+fe.Message)
		}
		result := mcp.NewToolResultError(fmt.Sprintf("Invalid arguments for %s: %s",
			req.Params.Name, strings.Join(parts, "; ")))
		result.Meta = mcp.NewMetaFromMap(map[string]any{metaValidation: true})
		return result, nil
	}
}

// resultText returns the text of the first text content item.
func resultText(result *mcp.CallToolResult) string {
	for _, c := range result.Content {
		if tc, ok := mcp.AsTextContent(c); ok {
			return tc.Text
		}
	}
	return ""
}
