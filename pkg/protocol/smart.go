package protocol

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/livrasand/gitdeposit/internal/git"
)

// Service is one of the two Smart HTTP services.
type Service string

const (
	UploadPack  Service = "git-upload-pack"
	ReceivePack Service = "git-receive-pack"
)

// Action is the suffix of the response content type.
type Action string

const (
	Advertisement Action = "advertisement"
	Result        Action = "result"
)

// ParseService validates a service name taken from a request.
func ParseService(name string) (Service, bool) {
	switch Service(name) {
	case UploadPack, ReceivePack:
		return Service(name), true
	}
	return "", false
}

// ContentType returns application/x-{service}-{action}.
func ContentType(service Service, action Action) string {
	return fmt.Sprintf("application/x-%s-%s", service, action)
}

const hexDigits = "0123456789abcdef"

// PacketLength returns the 4-digit lowercase hex pkt-line prefix for payload,
// which counts the prefix itself.
func PacketLength(payload string) string {
	n := len(payload) + 4
	return string([]byte{
		hexDigits[(n>>12)&0xf],
		hexDigits[(n>>8)&0xf],
		hexDigits[(n>>4)&0xf],
		hexDigits[n&0xf],
	})
}

// FlushPkt terminates a pkt-line section.
const FlushPkt = "0000"

// WritePktLine writes data as a pkt-line; empty data writes a flush-pkt.
func WritePktLine(w io.Writer, data string) error {
	if data == "" {
		_, err := io.WriteString(w, FlushPkt)
		return err
	}
	_, err := io.WriteString(w, PacketLength(data)+data)
	return err
}

// Backend is what the responder needs from a repository.
type Backend interface {
	AdvertiseRefs(ctx context.Context, service string) (string, error)
	UploadPack(ctx context.Context, payload []byte) ([]byte, error)
	ReceivePack(ctx context.Context, payload []byte) ([]byte, error)
}

// Response is a fully buffered Smart HTTP reply.
type Response struct {
	Status int
	Header http.Header
	Body   []byte

	// Err is the backend failure behind a non-200 status. It is never sent.
	Err error
}

// Send writes the response to w.
func (r *Response) Send(w http.ResponseWriter) (int, error) {
	for k, vs := range r.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(r.Status)
	return w.Write(r.Body)
}

// Responder builds Smart HTTP replies for one service and action. A new
// responder is created per request.
type Responder struct {
	Service Service
	Action  Action
	Backend Backend
}

func NewResponder(service Service, action Action, backend Backend) *Responder {
	return &Responder{Service: service, Action: action, Backend: backend}
}

// Headers sets the no-cache headers and the content type on h.
func (r *Responder) Headers(h http.Header) {
	h.Set("Expires", "Fri, 01 Jan 1980 00:00:00 GMT")
	h.Set("Pragma", "no-cache")
	h.Set("Cache-Control", "no-cache, max-age=0, must-revalidate")
	h.Set("Content-Type", ContentType(r.Service, r.Action))
}

func (r *Responder) response() *Response {
	resp := &Response{Status: http.StatusOK, Header: http.Header{}}
	r.Headers(resp.Header)
	return resp
}

// InfoRefs answers GET /info/refs: the service announcement line, a
// flush-pkt, then git's own advertisement.
func (r *Responder) InfoRefs(ctx context.Context) *Response {
	refs, err := r.Backend.AdvertiseRefs(ctx, string(r.Service))
	if err != nil {
		return r.failure(err)
	}

	resp := r.response()
	var body bytes.Buffer
	_ = WritePktLine(&body, fmt.Sprintf("# service=%s\n", r.Service))
	_ = WritePktLine(&body, "")
	body.WriteString(refs)
	resp.Body = body.Bytes()
	return resp
}

// ServiceRPC answers POST /{service} with the raw output of the service run
// on payload.
func (r *Responder) ServiceRPC(ctx context.Context, payload []byte) *Response {
	var (
		out []byte
		err error
	)
	switch r.Service {
	case ReceivePack:
		out, err = r.Backend.ReceivePack(ctx, payload)
	case UploadPack:
		out, err = r.Backend.UploadPack(ctx, payload)
	default:
		err = fmt.Errorf("unsupported service %q", r.Service)
	}
	if err != nil {
		return r.failure(err)
	}

	resp := r.response()
	resp.Body = out
	return resp
}

// failure maps a backend error to 404 when the location is not a
// repository and to 500 otherwise.
func (r *Responder) failure(err error) *Response {
	status := http.StatusInternalServerError
	if git.IsNotRepository(err) {
		status = http.StatusNotFound
	}
	resp := r.response()
	resp.Status = status
	resp.Err = err
	resp.Header.Set("Content-Type", "text/plain; charset=utf-8")
	resp.Body = []byte(http.StatusText(status) + "\n")
	return resp
}
