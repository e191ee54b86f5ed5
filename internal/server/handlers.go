package server

import (
	"chat-functions/internal/functions"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/valyala/fastjson"
	"go.uber.org/zap"
)

type handler struct {
	logger   *zap.SugaredLogger
	accounts *functions.Accounts
	messages *functions.Messages
	parsers  fastjson.ParserPool
}

type errorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// dataFields reads string fields of the "data" object from the callable request body.
// Absent or non-string fields are returned as empty strings.
func (h *handler) dataFields(r *http.Request, names ...string) (map[string]string, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	parser := h.parsers.Get()
	defer h.parsers.Put(parser)

	v, err := parser.ParseBytes(body)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]string, len(names))
	for _, name := range names {
		fields[name] = string(v.GetStringBytes("data", name))
	}

	return fields, nil
}

func (h *handler) writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, err = w.Write(body)
	if err != nil {
		h.logger.Errorf("writing marshaled data to ResponseWriter: %v", err)
	}
}

// writeResult wraps result into callable response envelope
func (h *handler) writeResult(w http.ResponseWriter, result interface{}) {
	h.writeJSON(w, http.StatusOK, struct {
		Result interface{} `json:"result"`
	}{result})
}

// writeError wraps err into callable error envelope, errors other than *functions.Error are reported as unknown
func (h *handler) writeError(w http.ResponseWriter, err error) {
	var ferr *functions.Error
	if !errors.As(err, &ferr) {
		ferr = &functions.Error{Code: functions.CodeUnknown, Message: "Internal error", Details: err.Error()}
	}

	code := http.StatusInternalServerError
	if ferr.Code == functions.CodeInvalidArgument {
		code = http.StatusBadRequest
	}

	h.writeJSON(w, code, struct {
		Error errorBody `json:"error"`
	}{errorBody{
		Status:  strings.ToUpper(strings.ReplaceAll(string(ferr.Code), "-", "_")),
		Message: ferr.Message,
		Details: ferr.Details,
	}})
}

// register handles HTTP requests on "/register" endpoint
func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	fields, err := h.dataFields(r, "userId")
	if err != nil {
		h.writeError(w, err)
		return
	}

	res, err := h.accounts.Register(r.Context(), functions.UserRequest{UserID: fields["userId"]})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeResult(w, res)
}

// login handles HTTP requests on "/login" endpoint
func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	fields, err := h.dataFields(r, "userId")
	if err != nil {
		h.writeError(w, err)
		return
	}

	res, err := h.accounts.Login(r.Context(), functions.UserRequest{UserID: fields["userId"]})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeResult(w, res)
}

// logout handles HTTP requests on "/logout" endpoint
func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	fields, err := h.dataFields(r, "userId")
	if err != nil {
		h.writeError(w, err)
		return
	}

	res, err := h.accounts.Logout(r.Context(), functions.UserRequest{UserID: fields["userId"]})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeResult(w, res)
}

// renameUserID handles HTTP requests on "/renameUserId" and "/updateUserId" endpoints.
// It is a plain request function: its result is written as is, without the "result" envelope.
func (h *handler) renameUserID(w http.ResponseWriter, r *http.Request) {
	fields, err := h.dataFields(r, "oldUserId", "newUserId")
	if err != nil {
		h.writeError(w, err)
		return
	}

	res, err := h.accounts.RenameUserID(r.Context(), functions.RenameRequest{
		OldUserID: fields["oldUserId"],
		NewUserID: fields["newUserId"],
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, res)
}

// postMessage handles HTTP requests on "/postMessage" and "/addMessage" endpoints
func (h *handler) postMessage(w http.ResponseWriter, r *http.Request) {
	fields, err := h.dataFields(r, "text", "userId")
	if err != nil {
		h.writeError(w, err)
		return
	}

	res, err := h.messages.PostMessage(r.Context(), functions.PostMessageRequest{
		Text:   fields["text"],
		UserID: fields["userId"],
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeResult(w, res)
}

// getChat handles HTTP requests on "/getChat" endpoint
func (h *handler) getChat(w http.ResponseWriter, r *http.Request) {
	fields, err := h.dataFields(r, "userId")
	if err != nil {
		h.writeError(w, err)
		return
	}

	res, err := h.messages.GetChat(r.Context(), functions.UserRequest{UserID: fields["userId"]})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeResult(w, res)
}
