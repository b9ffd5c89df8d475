package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/dl-alexandre/sheetport/internal/api"
	"github.com/dl-alexandre/sheetport/internal/logging"
	"github.com/dl-alexandre/sheetport/internal/types"
	"github.com/dl-alexandre/sheetport/internal/utils"
)

// Session performs the one login a batch needs
type Session struct {
	httpClient *http.Client
	timeout    time.Duration
	profile    string
	logger     logging.Logger
}

// NewSession creates a session. timeout bounds the login request; zero
// means utils.DefaultRequestTimeout.
func NewSession(httpClient *http.Client, timeout time.Duration, profile string, logger logging.Logger) *Session {
	if timeout <= 0 {
		timeout = utils.DefaultRequestTimeout
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Session{
		httpClient: httpClient,
		timeout:    timeout,
		profile:    profile,
		logger:     logger,
	}
}

// Login authenticates against baseURL. There is no retry: any failure is
// an AUTH_ERROR and fatal to the batch.
func (s *Session) Login(ctx context.Context, baseURL, username, password string) (Token, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	client := api.NewClient(baseURL, s.httpClient, s.logger)
	reqCtx := api.NewRequestContext(s.profile, types.RequestTypeLogin)

	raw, err := client.Login(ctx, reqCtx, username, password)
	if err != nil {
		return Token{}, err
	}
	return NewToken(raw), nil
}
