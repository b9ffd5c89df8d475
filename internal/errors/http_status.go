package errors

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/dl-alexandre/sheetport/internal/logging"
	"github.com/dl-alexandre/sheetport/internal/types"
	"github.com/dl-alexandre/sheetport/internal/utils"
)

// ClassifyHTTPResponse turns a non-2xx answer (or a 2xx answer whose
// envelope reported success=false, status 0 then) into an AppError.
// Login failures are always AUTH_ERROR; import failures are
// APPLICATION_FAILURE.
func ClassifyHTTPResponse(status int, message string, reqCtx *types.RequestContext, logger logging.Logger) *utils.AppError {
	if message == "" {
		message = utils.DefaultErrorMessage
	}

	code := utils.ErrCodeApplicationFailure
	if reqCtx.RequestType == types.RequestTypeLogin {
		code = utils.ErrCodeAuth
	}
	retryable := status == 429 || status >= 500

	logger.Error("API error classified",
		logging.F("httpStatus", status),
		logging.F("errorCode", code),
		logging.F("retryable", retryable),
		logging.F("message", message),
		logging.F("traceId", reqCtx.TraceID),
		logging.F("requestType", string(reqCtx.RequestType)),
	)

	text := message
	if status != 0 {
		text = fmt.Sprintf("status %d: %s", status, message)
	}
	builder := utils.NewCLIError(code, text).
		WithHTTPStatus(status).
		WithRetryable(retryable).
		WithContext("traceId", reqCtx.TraceID).
		WithContext("requestType", string(reqCtx.RequestType))

	if reqCtx.FilePath != "" {
		builder.WithContext("path", reqCtx.FilePath)
	}

	switch {
	case status == 401 || status == 403:
		if reqCtx.RequestType == types.RequestTypeLogin {
			builder.WithContext("suggestedAction", "check the username and password, or run 'sheetport auth save'")
		} else {
			builder.WithContext("suggestedAction", "the session token was rejected, rerun to log in again")
		}
	case status == 404:
		builder.WithContext("suggestedAction", "verify the server URL points at the import service")
	case status == 413:
		builder.WithContext("suggestedAction", "the workbook exceeds the server upload limit")
	case retryable:
		builder.WithContext("suggestedAction", "server unavailable, rerun the batch later")
	}

	return utils.NewAppError(builder.Build())
}

// ClassifyTransportError maps a failed exchange (no usable response) to
// TIMEOUT when a deadline expired and NETWORK_ERROR otherwise.
func ClassifyTransportError(err error, reqCtx *types.RequestContext, logger logging.Logger) *utils.AppError {
	code := utils.ErrCodeNetworkError
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		code = utils.ErrCodeTimeout
	}
	if reqCtx.RequestType == types.RequestTypeLogin {
		code = utils.ErrCodeAuth
	}

	logger.Error("Request failed",
		logging.F("error", err.Error()),
		logging.F("errorCode", code),
		logging.F("traceId", reqCtx.TraceID),
		logging.F("requestType", string(reqCtx.RequestType)),
	)

	builder := utils.NewCLIError(code, err.Error()).
		WithRetryable(true).
		WithContext("traceId", reqCtx.TraceID).
		WithContext("requestType", string(reqCtx.RequestType))
	if reqCtx.FilePath != "" {
		builder.WithContext("path", reqCtx.FilePath)
	}
	return utils.WrapAppError(builder.Build(), err)
}
