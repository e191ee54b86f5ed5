package server

import (
	"bytes"
	"chat-functions/internal/functions"
	"chat-functions/internal/storage/badgerdb"
	mytesting "chat-functions/internal/testing"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/valyala/fastjson"
	"go.uber.org/zap"
)

func bootstrapServer(t *testing.T, opts ...Option) http.Handler {
	logger := zap.NewNop().Sugar()
	store, err := badgerdb.New(logger, badgerdb.Config{})
	require.NoError(t, err)
	t.Cleanup(store.Close)

	srv, err := NewServer(logger,
		functions.NewAccounts(logger, store),
		functions.NewMessages(logger, store),
		opts...,
	)
	require.NoError(t, err)

	return srv.Handler()
}

// call posts body to path and returns status code with parsed response body
func call(t *testing.T, h http.Handler, path, body string) (int, *fastjson.Value) {
	t.Helper()

	req, err := http.NewRequest("POST", path, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	require.NotEmpty(t, rr.Header().Get(requestIDHeader))

	raw, err := io.ReadAll(rr.Body)
	require.NoError(t, err)

	var p fastjson.Parser
	v, err := p.ParseBytes(raw)
	require.NoError(t, err)

	return rr.Code, v
}

func statusOkHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestEnforcePostJson(t *testing.T) {
	t.Parallel()

	payload := bytes.NewBuffer([]byte(`{"data":{"userId":"` + mytesting.RandString() + `"}}`))
	req, err := http.NewRequest("POST", "/", payload)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	handler := enforcePostJson(http.HandlerFunc(statusOkHandler), 0)

	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
}

func TestEnforcePostJson_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		maxBody     int64
		code        int
		message     string
	}{
		{
			name:        "not POST",
			method:      "GET",
			contentType: "application/json",
			body:        `{"data":{}}`,
			code:        http.StatusMethodNotAllowed,
			message:     http.StatusText(http.StatusMethodNotAllowed),
		},
		{
			name:        "malformed content type",
			method:      "POST",
			contentType: "1:2\n+/-",
			body:        `{"data":{}}`,
			code:        http.StatusBadRequest,
			message:     "Malformed Content-Type header",
		},
		{
			name:        "unsupported content type",
			method:      "POST",
			contentType: "text/plain",
			body:        `{"data":{}}`,
			code:        http.StatusUnsupportedMediaType,
			message:     "Content-Type header must be application/json",
		},
		{
			name:        "no body",
			method:      "POST",
			contentType: "application/json",
			code:        http.StatusBadRequest,
			message:     "No body provided",
		},
		{
			name:        "malformed JSON",
			method:      "POST",
			contentType: "application/json",
			// missing opening quotation mark after colon
			body:    `{"data":{"userId":` + mytesting.RandString() + `"}}`,
			code:    http.StatusBadRequest,
			message: "Malformed JSON",
		},
		{
			name:        "body too large",
			method:      "POST",
			contentType: "application/json",
			body:        `{"data":{"text":"` + strings.Repeat("a", 64) + `"}}`,
			maxBody:     16,
			code:        http.StatusRequestEntityTooLarge,
			message:     "Request body too large",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req, err := http.NewRequest(tt.method, "/", bytes.NewBufferString(tt.body))
			require.NoError(t, err)
			req.Header.Set("Content-Type", tt.contentType)

			rr := httptest.NewRecorder()
			handler := enforcePostJson(http.HandlerFunc(statusOkHandler), tt.maxBody)

			handler.ServeHTTP(rr, req)

			require.Equal(t, tt.code, rr.Code)
			require.Equal(t, tt.message+"\n", rr.Body.String())
		})
	}
}

func TestEnforcePostJson_NoContentType(t *testing.T) {
	t.Parallel()

	payload := bytes.NewBuffer([]byte(`{"data":{}}`))
	req, err := http.NewRequest("POST", "/", payload)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	handler := enforcePostJson(http.HandlerFunc(statusOkHandler), 0)

	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "application/json", req.Header.Get("Content-Type"))
}

func TestRegister(t *testing.T) {
	t.Parallel()

	h := bootstrapServer(t)
	body := `{"data":{"userId":"` + mytesting.RandString() + `"}}`

	code, v := call(t, h, "/register", body)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "User has successfully registered", string(v.GetStringBytes("result", "status")))

	code, v = call(t, h, "/register", body)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "User account already exists", string(v.GetStringBytes("result", "status")))
}

func TestRegisterMissingUserID(t *testing.T) {
	t.Parallel()

	h := bootstrapServer(t)

	for _, body := range []string{`{}`, `{"data":{}}`, `{"data":{"userId":""}}`, `{"data":{"userId":42}}`, `[1,2]`} {
		code, v := call(t, h, "/register", body)
		require.Equal(t, http.StatusBadRequest, code, body)
		require.Equal(t, "INVALID_ARGUMENT", string(v.GetStringBytes("error", "status")))
		require.Equal(t, "Required fields (userId) are missing", string(v.GetStringBytes("error", "message")))
		require.False(t, v.Get("error").Exists("details"))
	}
}

func TestLoginLogout(t *testing.T) {
	t.Parallel()

	h := bootstrapServer(t)
	body := `{"data":{"userId":"` + mytesting.RandString() + `"}}`

	code, v := call(t, h, "/login", body)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "User does not exist", string(v.GetStringBytes("result", "status")))

	code, v = call(t, h, "/logout", body)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "User does not exist", string(v.GetStringBytes("result", "status")))

	code, _ = call(t, h, "/register", body)
	require.Equal(t, http.StatusOK, code)

	code, v = call(t, h, "/logout", body)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "User has successfully logged out", string(v.GetStringBytes("result", "status")))

	code, v = call(t, h, "/login", body)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "User has successfully logged in", string(v.GetStringBytes("result", "status")))
}

func TestRenameUserID(t *testing.T) {
	t.Parallel()

	h := bootstrapServer(t)
	oldID, newID := mytesting.RandString(), mytesting.RandString()

	code, _ := call(t, h, "/register", `{"data":{"userId":"`+oldID+`"}}`)
	require.Equal(t, http.StatusOK, code)

	for _, path := range []string{"/renameUserId", "/updateUserId"} {
		code, v := call(t, h, path, `{"data":{"oldUserId":"`+oldID+`","newUserId":"`+newID+`"}}`)
		require.Equal(t, http.StatusOK, code)
		// rename answers with a bare body, no "result" envelope
		require.False(t, v.Exists("result"))
		require.Equal(t, "User has successfully updated", string(v.GetStringBytes("status")))

		oldID, newID = newID, oldID
	}

	// the user is back under its original id
	code, v := call(t, h, "/register", `{"data":{"userId":"`+oldID+`"}}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "User account already exists", string(v.GetStringBytes("result", "status")))

	code, v = call(t, h, "/login", `{"data":{"userId":"`+newID+`"}}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "User does not exist", string(v.GetStringBytes("result", "status")))
}

func TestRenameUserIDNotExist(t *testing.T) {
	t.Parallel()

	h := bootstrapServer(t)

	code, v := call(t, h, "/renameUserId", `{"data":{"oldUserId":"a","newUserId":"b"}}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "User does not exist", string(v.GetStringBytes("status")))
}

func TestRenameUserIDMissingFields(t *testing.T) {
	t.Parallel()

	h := bootstrapServer(t)

	code, v := call(t, h, "/renameUserId", `{"data":{"oldUserId":"a"}}`)
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "INVALID_ARGUMENT", string(v.GetStringBytes("error", "status")))
	require.Equal(t, "Required fields (newUserId) are missing", string(v.GetStringBytes("error", "message")))
}

func TestPostMessageAndGetChat(t *testing.T) {
	t.Parallel()

	h := bootstrapServer(t)
	userID := mytesting.RandString()

	ids := make([]string, 0, 2)
	for _, path := range []string{"/postMessage", "/addMessage"} {
		code, v := call(t, h, path, `{"data":{"text":"hello","userId":"`+userID+`"}}`)
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, "success", string(v.GetStringBytes("result", "status")))

		id := string(v.GetStringBytes("result", "messageId"))
		require.NotEmpty(t, id)
		ids = append(ids, id)
	}

	code, v := call(t, h, "/getChat", `{"data":{"userId":"`+userID+`"}}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "success", string(v.GetStringBytes("result", "status")))

	messages := v.GetArray("result", "messages")
	require.Len(t, messages, 2)
	for i, m := range messages {
		require.Equal(t, ids[i], string(m.GetStringBytes("id")))
		require.Equal(t, "hello", string(m.GetStringBytes("text")))
		require.Equal(t, userID, string(m.GetStringBytes("userId")))
		require.NotEmpty(t, m.GetStringBytes("timestamp"))
	}
}

func TestPostMessageMissingText(t *testing.T) {
	t.Parallel()

	h := bootstrapServer(t)

	code, v := call(t, h, "/postMessage", `{"data":{"userId":"u1"}}`)
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "INVALID_ARGUMENT", string(v.GetStringBytes("error", "status")))
	require.Equal(t, "Required fields (text) are missing", string(v.GetStringBytes("error", "message")))

	code, v = call(t, h, "/getChat", `{"data":{"userId":"u1"}}`)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, v.GetArray("result", "messages"), 0)
}

func TestStoreFailureIsUnknown(t *testing.T) {
	t.Parallel()

	logger := zap.NewNop().Sugar()
	store, err := badgerdb.New(logger, badgerdb.Config{})
	require.NoError(t, err)

	srv, err := NewServer(logger, functions.NewAccounts(logger, store), functions.NewMessages(logger, store))
	require.NoError(t, err)

	store.Close()

	code, v := call(t, srv.Handler(), "/register", `{"data":{"userId":"u1"}}`)
	require.Equal(t, http.StatusInternalServerError, code)
	require.Equal(t, "UNKNOWN", string(v.GetStringBytes("error", "status")))
	require.Equal(t, "An error occurred while registering", string(v.GetStringBytes("error", "message")))
	require.NotEmpty(t, v.GetStringBytes("error", "details"))
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	h := bootstrapServer(t)
	code, _ := call(t, h, "/login", `{"data":{"userId":"u1"}}`)
	require.Equal(t, http.StatusOK, code)

	req, err := http.NewRequest("GET", "/metrics", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `chat_functions_requests_total{code="200",function="login"}`)
}

func TestFunctionName(t *testing.T) {
	require.Equal(t, "register", functionName("/register"))
}
