package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dl-alexandre/sheetport/internal/errors"
	"github.com/dl-alexandre/sheetport/internal/logging"
	"github.com/dl-alexandre/sheetport/internal/types"
	"github.com/dl-alexandre/sheetport/internal/utils"
)

// maxErrorBody bounds how much of a failed response is kept as its message
const maxErrorBody = 1 << 20

// unreadableBody stands in for a failed response whose body could not be read
const unreadableBody = "unable to read error body"

// Client talks to the remote import service. It never retries: a failed
// login is fatal and a failed import is recorded by the caller.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     logging.Logger
}

// NewClient creates a client for baseURL. A nil httpClient uses a client
// without a global timeout; callers bound each call through its context.
func NewClient(baseURL string, httpClient *http.Client, logger logging.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// BaseURL returns the normalised service URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// NewRequestContext creates a new request context with trace ID
func NewRequestContext(profile string, requestType types.RequestType) *types.RequestContext {
	return &types.RequestContext{
		Profile:     profile,
		RequestType: requestType,
		TraceID:     uuid.New().String(),
	}
}

// WithFile records the local file an import concerns
func WithFile(reqCtx *types.RequestContext, path string) *types.RequestContext {
	reqCtx.FilePath = path
	return reqCtx
}

// envelope is the response shape shared by every endpoint
type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    *T     `json:"data"`
	Message string `json:"message"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginData struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a bearer token. Every failure is an
// AUTH_ERROR.
func (c *Client) Login(ctx context.Context, reqCtx *types.RequestContext, username, password string) (string, error) {
	logger := c.logger.WithTraceID(reqCtx.TraceID)
	logger.Info("Login starting",
		logging.F("requestType", reqCtx.RequestType),
		logging.F("username", username),
		logging.F("server", c.baseURL),
	)
	start := time.Now()

	body, err := json.Marshal(loginRequest{Username: username, Password: password})
	if err != nil {
		return "", utils.WrapAppError(utils.NewCLIError(utils.ErrCodeAuth, "failed to encode login request").Build(), err)
	}

	req, err := http.NewRequestWithContext(logging.ContextWithTraceID(ctx, reqCtx.TraceID),
		http.MethodPost, c.baseURL+utils.LoginPath, bytes.NewReader(body))
	if err != nil {
		return "", utils.WrapAppError(utils.NewCLIError(utils.ErrCodeAuth, fmt.Sprintf("invalid login request: %v", err)).Build(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.ClassifyTransportError(err, reqCtx, c.logger)
	}
	defer resp.Body.Close()

	if !isSuccessStatus(resp.StatusCode) {
		return "", errors.ClassifyHTTPResponse(resp.StatusCode, readErrorBody(resp.Body), reqCtx, c.logger)
	}

	var env envelope[loginData]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		logger.Error("Login response not decodable", logging.F("error", err.Error()))
		return "", utils.WrapAppError(utils.NewCLIError(utils.ErrCodeAuth,
			fmt.Sprintf("failed to decode login response: %v", err)).
			WithHTTPStatus(resp.StatusCode).
			WithContext("traceId", reqCtx.TraceID).
			Build(), err)
	}
	if !env.Success || env.Data == nil || env.Data.Token == "" {
		return "", errors.ClassifyHTTPResponse(0, env.Message, reqCtx, c.logger)
	}

	logger.Info("Login completed", logging.F("duration_ms", time.Since(start).Milliseconds()))
	return env.Data.Token, nil
}

// Ping posts an empty login to the service and returns the status it
// answered with. Any HTTP response counts as reachable, including a
// rejected login; only a failed exchange is an error.
func (c *Client) Ping(ctx context.Context, reqCtx *types.RequestContext) (int, error) {
	logger := c.logger.WithTraceID(reqCtx.TraceID)

	req, err := http.NewRequestWithContext(logging.ContextWithTraceID(ctx, reqCtx.TraceID),
		http.MethodPost, c.baseURL+utils.LoginPath, strings.NewReader(`{}`))
	if err != nil {
		return 0, utils.WrapAppError(utils.NewCLIError(utils.ErrCodeInvalidArgument, fmt.Sprintf("invalid server URL: %v", err)).Build(), err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, errors.ClassifyTransportError(err, reqCtx, c.logger)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))

	logger.Debug("Ping answered", logging.F("status", resp.StatusCode))
	return resp.StatusCode, nil
}

// ImportRequest is one workbook upload
type ImportRequest struct {
	Token              string
	FileName           string
	Content            []byte
	OnlyValidInvention bool
}

// Import posts one workbook as a single-part multipart body. Refusals
// (non-2xx or success=false) are APPLICATION_FAILURE errors whose context
// carries the raw server message under "serverMessage"; anything else is
// a transport error.
func (c *Client) Import(ctx context.Context, reqCtx *types.RequestContext, in ImportRequest) (types.ImportCounts, error) {
	logger := c.logger.WithTraceID(reqCtx.TraceID)
	start := time.Now()

	body, contentType, err := multipartBody(in.FileName, in.Content)
	if err != nil {
		return types.ImportCounts{}, utils.WrapAppError(utils.NewCLIError(utils.ErrCodeIO,
			fmt.Sprintf("failed to build upload body: %v", err)).Build(), err)
	}

	endpoint, err := url.Parse(c.baseURL + utils.ImportPath)
	if err != nil {
		return types.ImportCounts{}, errors.ClassifyTransportError(err, reqCtx, c.logger)
	}
	query := endpoint.Query()
	query.Set(utils.ImportFlagParam, strconv.FormatBool(in.OnlyValidInvention))
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(logging.ContextWithTraceID(ctx, reqCtx.TraceID),
		http.MethodPost, endpoint.String(), body)
	if err != nil {
		return types.ImportCounts{}, errors.ClassifyTransportError(err, reqCtx, c.logger)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+in.Token)
	req.Header.Set("Accept", "application/json")

	logger.Info("Import starting",
		logging.F("file", in.FileName),
		logging.F("bytes", len(in.Content)),
		logging.F("onlyValidInvention", in.OnlyValidInvention),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.ImportCounts{}, errors.ClassifyTransportError(err, reqCtx, c.logger)
	}
	defer resp.Body.Close()

	if !isSuccessStatus(resp.StatusCode) {
		message := readErrorBody(resp.Body)
		appErr := errors.ClassifyHTTPResponse(resp.StatusCode, message, reqCtx, c.logger)
		appErr.CLIError.Context["serverMessage"] = message
		return types.ImportCounts{}, appErr
	}

	var env envelope[types.ImportCounts]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return types.ImportCounts{}, errors.ClassifyTransportError(
			fmt.Errorf("failed to decode import response: %w", err), reqCtx, c.logger)
	}
	if !env.Success {
		message := env.Message
		if message == "" {
			message = utils.DefaultErrorMessage
		}
		appErr := errors.ClassifyHTTPResponse(0, message, reqCtx, c.logger)
		appErr.CLIError.Context["serverMessage"] = message
		return types.ImportCounts{}, appErr
	}

	var counts types.ImportCounts
	if env.Data != nil {
		counts = *env.Data
	}
	logger.Info("Import completed",
		logging.F("file", in.FileName),
		logging.F("modifiedCount", counts.ModifiedCount),
		logging.F("upsertedCount", counts.UpsertedCount),
		logging.F("excelCount", counts.ExcelCount),
		logging.F("duration_ms", time.Since(start).Milliseconds()),
	)
	return counts, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// multipartBody encodes content as the single "file" part. The part is
// always labelled as an xlsx workbook regardless of the file name.
func multipartBody(fileName string, content []byte) (io.Reader, string, error) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		utils.ImportFileField, quoteEscaper.Replace(fileName)))
	header.Set("Content-Type", utils.SpreadsheetMimeType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(content); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return buf, writer.FormDataContentType(), nil
}

func readErrorBody(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil {
		return unreadableBody
	}
	return string(data)
}

func isSuccessStatus(status int) bool {
	return status >= 200 && status < 300
}
