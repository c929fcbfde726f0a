package httpx

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/valyala/fasthttp"
)

// ToFastHTTP adapts a HandlerFunc into a fasthttp.RequestHandler, used
// when AdminConfig.Transport is "fasthttp" instead of the net/http
// default.
func ToFastHTTP(h HandlerFunc) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		cctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		hdr := make(http.Header)
		ctx.Request.Header.VisitAll(func(k, v []byte) {
			key := string(k)
			hdr[key] = append(hdr[key], string(v))
		})

		bodyBytes := ctx.PostBody()
		var body io.ReadCloser
		if len(bodyBytes) > 0 {
			body = io.NopCloser(bytes.NewReader(bodyBytes))
		} else {
			body = io.NopCloser(bytes.NewReader(nil))
		}

		req := &Request{
			Ctx:        cctx,
			Method:     string(ctx.Method()),
			Path:       string(ctx.Path()),
			Header:     hdr,
			Body:       body,
			RemoteAddr: ctx.RemoteAddr().String(),
			Raw:        ctx,
		}

		rw := &fastHTTPResponseWriter{ctx: ctx, header: make(http.Header)}
		ctx.Response.Header.VisitAll(func(k, v []byte) {
			rw.header[string(k)] = append(rw.header[string(k)], string(v))
		})

		h(rw, req)
		if req.Body != nil {
			_ = req.Body.Close()
		}
	}
}

// NewFastHTTPMux builds a fasthttp.RequestHandler that dispatches on exact
// path match against a path->handler table, mirroring NewNetHTTPMux's
// contract for the net/http transport.
func NewFastHTTPMux(routes map[string]HandlerFunc) fasthttp.RequestHandler {
	compiled := make(map[string]fasthttp.RequestHandler, len(routes))
	for path, h := range routes {
		compiled[path] = ToFastHTTP(h)
	}
	return func(ctx *fasthttp.RequestCtx) {
		if rh, ok := compiled[string(ctx.Path())]; ok {
			rh(ctx)
			return
		}
		ctx.SetStatusCode(http.StatusNotFound)
	}
}

type fastHTTPResponseWriter struct {
	ctx    *fasthttp.RequestCtx
	header http.Header
	status int
}

func (f *fastHTTPResponseWriter) Header() http.Header { return f.header }

func (f *fastHTTPResponseWriter) WriteHeader(status int) {
	f.status = status
	for k, vals := range f.header {
		for _, v := range vals {
			f.ctx.Response.Header.Add(k, v)
		}
	}
	f.ctx.SetStatusCode(status)
}

func (f *fastHTTPResponseWriter) Write(b []byte) (int, error) {
	if f.status == 0 {
		f.WriteHeader(http.StatusOK)
	}
	return f.ctx.Write(b)
}
