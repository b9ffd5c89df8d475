package mocks_test

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/dl-alexandre/sheetport/internal/api"
	testhelpers "github.com/dl-alexandre/sheetport/internal/testing"
	"github.com/dl-alexandre/sheetport/internal/testing/mocks"
	"github.com/dl-alexandre/sheetport/internal/types"
	"github.com/dl-alexandre/sheetport/internal/utils"
)

func TestImportService_LoginAndImport(t *testing.T) {
	service := mocks.NewImportService(t)
	client := api.NewClient(service.URL(), service.Client(), nil)

	token, err := client.Login(context.Background(), testhelpers.TestRequestContext(types.RequestTypeLogin), "admin", "pw")
	testhelpers.AssertNoError(t, err, "login")
	testhelpers.AssertEqual(t, token, mocks.Token, "token")

	path := filepath.Join(t.TempDir(), "a.xlsx")
	testhelpers.WriteWorkbook(t, path, [][]string{{"X", "B"}})
	content, err := os.ReadFile(path)
	testhelpers.AssertNoError(t, err, "reading workbook")

	counts, err := client.Import(context.Background(), testhelpers.TestRequestContext(types.RequestTypeImport), api.ImportRequest{
		Token:              token,
		FileName:           "a.xlsx",
		Content:            content,
		OnlyValidInvention: true,
	})
	testhelpers.AssertNoError(t, err, "import")
	testhelpers.AssertEqual(t, counts.ModifiedCount, 1, "modified count")

	calls := service.Calls()
	testhelpers.AssertEqual(t, len(calls), 1, "calls")
	testhelpers.AssertEqual(t, calls[0].Authorization, "Bearer "+mocks.Token, "authorization")
	testhelpers.AssertEqual(t, calls[0].OnlyValidInvention, "true", "flag")
	testhelpers.AssertEqual(t, len(calls[0].Header), 2, "header width")
	testhelpers.AssertEqual(t, calls[0].Header[0], "X", "first header cell")
}

func TestImportService_Refusal(t *testing.T) {
	service := mocks.NewImportService(t)
	service.LoginFunc = func(username, password string) (string, string) {
		return "", "wrong password"
	}
	service.ImportFunc = func(call mocks.ImportCall) mocks.ImportResponse {
		return mocks.Refusal(http.StatusBadRequest, "rejected "+call.FileName)
	}
	client := api.NewClient(service.URL(), service.Client(), nil)

	_, err := client.Login(context.Background(), testhelpers.TestRequestContext(types.RequestTypeLogin), "admin", "bad")
	testhelpers.AssertError(t, err, "login")
	testhelpers.AssertEqual(t, utils.ErrorCode(err), utils.ErrCodeAuth, "login error code")

	_, err = client.Import(context.Background(), testhelpers.TestRequestContext(types.RequestTypeImport), api.ImportRequest{
		Token:    "t",
		FileName: "b.xlsx",
		Content:  []byte("raw"),
	})
	testhelpers.AssertError(t, err, "import")
	testhelpers.AssertEqual(t, utils.ErrorCode(err), utils.ErrCodeApplicationFailure, "import error code")
	testhelpers.AssertEqual(t, utils.AsCLIError(err).Context["serverMessage"], "rejected b.xlsx", "server message")

	calls := service.Calls()
	testhelpers.AssertEqual(t, len(calls), 1, "calls")
	if calls[0].Header != nil {
		t.Errorf("raw upload should have no parsed header, got %v", calls[0].Header)
	}
}
