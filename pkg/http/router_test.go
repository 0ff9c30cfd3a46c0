package xhttp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
)

func TestDefaultRouter_JSONErrors(t *testing.T) {
	r := CreateDefaultRouter()
	r.GET("/customers", func(ctx *RequestCtx) { ctx.SetStatusCode(StatusOK) })

	cases := []struct {
		method, path string
		code         int
		body         string
	}{
		{"GET", "/nowhere", StatusNotFound, `{"error":"Not Found"}`},
		{"DELETE", "/customers", StatusMethodNotAllowed, `{"error":"Method Not Allowed"}`},
	}
	for _, tc := range cases {
		ctx := &fasthttp.RequestCtx{}
		ctx.Request.Header.SetMethod(tc.method)
		ctx.Request.SetRequestURI(tc.path)
		r.Handler(ctx)

		assert.Equal(t, tc.code, ctx.Response.StatusCode(), tc.path)
		assert.JSONEq(t, tc.body, string(ctx.Response.Body()))
		assert.Contains(t, string(ctx.Response.Header.ContentType()), "application/json")
	}
}
