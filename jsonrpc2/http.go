package jsonrpc2

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

const httpContentType = "application/json"

var _ http.Handler = &HTTPServer{}

// HTTPServer provides a JSONRPC2 server over HTTP by implementing http.Handler.
// Each POST body carries one frame. Notifications are answered with 204.
type HTTPServer struct {
	Server

	// MaxContentLength is the request size limit (optional)
	MaxContentLength int64
}

func (h *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet && r.ContentLength == 0 && r.URL.RawQuery == "" {
		// Ignore empty GET requests
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.MaxContentLength > 0 && r.ContentLength > h.MaxContentLength {
		http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
		return
	}

	var body io.Reader = r.Body
	if h.MaxContentLength > 0 {
		// One extra byte tells an oversized body without a length apart
		body = io.LimitReader(r.Body, h.MaxContentLength+1)
	}
	frame, err := io.ReadAll(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if h.MaxContentLength > 0 && int64(len(frame)) > h.MaxContentLength {
		http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
		return
	}

	msg := Decode(frame)
	if msg.Kind != KindRequest {
		e := msg.Err
		if e == nil {
			e = Errorf(ErrCodeInvalidRequest, "expected a request, got a %s", msg.Kind)
		}
		h.writeFrame(w, http.StatusBadRequest, nil, e)
		return
	}

	resp := h.Server.Dispatch(r.Context(), msg.Request)
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	out, err := encodeResponse(resp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", httpContentType)
	w.Write(out)
}

func (h *HTTPServer) writeFrame(w http.ResponseWriter, status int, id []byte, e *ErrResponse) {
	out, err := EncodeError(id, e.Code, e.Message, e.Data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", httpContentType)
	w.WriteHeader(status)
	w.Write(out)
}

var _ Service = &HTTPService{}

// HTTPService calls methods on an HTTPServer endpoint, one POST per call.
type HTTPService struct {
	Client
	HTTPClient http.Client

	// Endpoint is the HTTP URL to dial for RPC calls.
	Endpoint string
	// MaxContentLength is the response size limit (optional)
	MaxContentLength int64
}

func (service *HTTPService) Call(ctx context.Context, result interface{}, method string, params interface{}) error {
	msg, err := service.Client.Request(method, params)
	if err != nil {
		return Errorf(ErrCodeInvalidParams, "failed to encode params: %s", err)
	}
	resp, err := service.post(ctx, msg)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if service.MaxContentLength > 0 && resp.ContentLength > service.MaxContentLength {
		return HTTPRequestError{
			Response: resp,
			Reason:   "response too large",
		}
	}
	var r io.Reader = resp.Body
	if service.MaxContentLength > 0 {
		r = io.LimitReader(resp.Body, service.MaxContentLength)
	}
	frame, err := io.ReadAll(r)
	if err != nil {
		return Errorf(ErrCodeTransport, "failed to read response: %s", err)
	}

	reply := Decode(frame)
	switch reply.Kind {
	case KindResponse, KindError:
		return reply.Response.UnmarshalResult(result)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return HTTPRequestError{
			Response: resp,
			Reason:   fmt.Sprintf("bad status code: %d", resp.StatusCode),
		}
	}
	if reply.Err != nil {
		return reply.Err
	}
	return Errorf(ErrCodeInvalidRequest, "unexpected %s in http response", reply.Kind)
}

// Notify sends a notification. The server answers with an empty body.
func (service *HTTPService) Notify(ctx context.Context, method string, params interface{}) error {
	msg, err := service.Client.Request(method, params)
	if err != nil {
		return Errorf(ErrCodeInvalidParams, "failed to encode params: %s", err)
	}
	msg.ID = nil
	resp, err := service.post(ctx, msg)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return HTTPRequestError{
			Response: resp,
			Reason:   fmt.Sprintf("bad status code: %d", resp.StatusCode),
		}
	}
	return nil
}

func (service *HTTPService) post(ctx context.Context, msg *Request) (*http.Response, error) {
	body, err := EncodeRequest(msg.Method, msg.Params, msg.ID)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, service.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", httpContentType)
	req.Header.Set("Accept", httpContentType)

	resp, err := service.HTTPClient.Do(req)
	if err != nil {
		return nil, Errorf(ErrCodeTransport, "http rpc request failed: %s", err)
	}
	return resp, nil
}

// HTTPRequestError is used when RPC over HTTP encounters an error during transport.
type HTTPRequestError struct {
	Response *http.Response
	Reason   string
}

func (err HTTPRequestError) Error() string {
	return fmt.Sprintf("http rpc request error: %s", err.Reason)
}
