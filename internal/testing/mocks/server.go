// Package mocks provides an in-process stand-in for the import service
package mocks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/dl-alexandre/sheetport/internal/types"
	"github.com/dl-alexandre/sheetport/internal/utils"
)

// Token is the bearer token handed out by a successful login
const Token = "mock-token"

// ImportCall records one request to the import endpoint
type ImportCall struct {
	FileName           string
	OnlyValidInvention string
	Authorization      string
	Content            []byte
	// Header is the first row of the first sheet, nil when the upload
	// was not a readable workbook
	Header []string
}

// ImportResponse is what ImportFunc tells the server to send back
type ImportResponse struct {
	Status int
	Body   string
	// Hang blocks until the client abandons the request
	Hang bool
}

// ImportService is an httptest server speaking the login and import
// endpoints. Behaviour is controlled through the Func fields.
type ImportService struct {
	Server *httptest.Server

	// LoginFunc decides the login outcome; nil accepts every user
	LoginFunc func(username, password string) (token string, message string)
	// ImportFunc decides the response per call; nil succeeds with counts
	// of one
	ImportFunc func(call ImportCall) ImportResponse

	mu     sync.Mutex
	logins int
	calls  []ImportCall
}

// NewImportService starts a server that is closed when t finishes
func NewImportService(t *testing.T) *ImportService {
	t.Helper()
	s := &ImportService{}
	mux := http.NewServeMux()
	mux.HandleFunc(utils.LoginPath, s.handleLogin)
	mux.HandleFunc(utils.ImportPath, s.handleImport)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Server.Close)
	return s
}

// URL is the base URL of the server
func (s *ImportService) URL() string { return s.Server.URL }

// Client returns an http.Client configured for the server
func (s *ImportService) Client() *http.Client { return s.Server.Client() }

// Logins returns the number of login requests seen
func (s *ImportService) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

// Calls returns a copy of every import request seen, in arrival order
func (s *ImportService) Calls() []ImportCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ImportCall(nil), s.calls...)
}

// FileNames returns the uploaded file names in arrival order
func (s *ImportService) FileNames() []string {
	calls := s.Calls()
	names := make([]string, len(calls))
	for i, c := range calls {
		names[i] = c.FileName
	}
	return names
}

// Success is the body of an accepted import
func Success(counts types.ImportCounts) ImportResponse {
	data, _ := json.Marshal(map[string]any{"success": true, "data": counts})
	return ImportResponse{Status: http.StatusOK, Body: string(data)}
}

// Refusal is a non-2xx response carrying message as plain text
func Refusal(status int, message string) ImportResponse {
	return ImportResponse{Status: status, Body: message}
}

func (s *ImportService) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.logins++
	s.mu.Unlock()

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	token, message := Token, ""
	if s.LoginFunc != nil {
		token, message = s.LoginFunc(req.Username, req.Password)
	}
	if token == "" {
		writeJSON(w, map[string]any{"success": false, "message": message})
		return
	}
	writeJSON(w, map[string]any{"success": true, "data": map[string]string{"token": token}})
}

func (s *ImportService) handleImport(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile(utils.ImportFileField)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	content, err := io.ReadAll(file)
	_ = file.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	call := ImportCall{
		FileName:           header.Filename,
		OnlyValidInvention: r.URL.Query().Get(utils.ImportFlagParam),
		Authorization:      r.Header.Get("Authorization"),
		Content:            content,
		Header:             firstRow(content),
	}
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()

	resp := Success(types.ImportCounts{ModifiedCount: 1, UpsertedCount: 1, ExcelCount: 1})
	if s.ImportFunc != nil {
		resp = s.ImportFunc(call)
	}
	if resp.Hang {
		<-r.Context().Done()
		return
	}
	if resp.Status == 0 {
		resp.Status = http.StatusOK
	}
	w.WriteHeader(resp.Status)
	fmt.Fprint(w, resp.Body)
}

func firstRow(content []byte) []string {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil
	}
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil || len(rows) == 0 {
		return nil
	}
	return rows[0]
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
