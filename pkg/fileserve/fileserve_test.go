package fileserve

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/vango-dev/duplex/pkg/conn"
	"github.com/vango-dev/duplex/pkg/httpmsg"
)

func serve(t *testing.T, h conn.Handler, uri string) (httpmsg.Reply, bool) {
	t.Helper()
	var rep httpmsg.Reply
	ok := h.Handle(context.Background(), nil, &httpmsg.Request{Method: "GET", URI: uri}, &rep)
	return rep, ok
}

func TestMimeType(t *testing.T) {
	tests := map[string]string{
		"html": "text/html",
		"HTM":  "text/html",
		"Js":   "text/javascript",
		"png":  "image/png",
		"gz":   "application/gzip",
		"svg":  "image/svg+xml",
		"exe":  "text/plain",
		"":     "text/plain",
	}
	for ext, want := range tests {
		if got := MimeType(ext); got != want {
			t.Errorf("MimeType(%q) = %q, want %q", ext, got, want)
		}
	}
}

func TestExtension(t *testing.T) {
	tests := map[string]string{
		"/a/b.html":     "html",
		"/a.dir/file":   "",
		"/archive.t.gz": "gz",
		"/noext":        "",
	}
	for in, want := range tests {
		if got := extension(in); got != want {
			t.Errorf("extension(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCheckURI(t *testing.T) {
	for _, uri := range []string{"", "relative", "/a/../b", "/.."} {
		if _, ok := serve(t, Virtual(""), uri); ok {
			t.Errorf("%q accepted", uri)
		}
		if rep, _ := serve(t, Virtual(""), uri); rep.Status != httpmsg.StatusBadRequest {
			t.Errorf("%q: status = %d, want 400", uri, rep.Status)
		}
	}
}

func TestVirtual_Registry(t *testing.T) {
	h := Virtual("static")
	if !h.Add("app.js", "text/javascript", []byte("let a")) {
		t.Fatal("Add failed")
	}
	if h.Add("app.js", "text/plain", nil) {
		t.Error("duplicate Add succeeded")
	}

	rep, ok := serve(t, h, "/static/app.js?v=2")
	if !ok || rep.Status != httpmsg.StatusOK {
		t.Fatalf("serve = (%d, %v)", rep.Status, ok)
	}
	if string(rep.Body) != "let a" || rep.Header.Get("Content-Type") != "text/javascript" || rep.Header.Get("Content-Length") != "5" {
		t.Errorf("reply = %+v", rep)
	}

	if rep, _ := serve(t, h, "/other/app.js"); rep.Status != httpmsg.StatusBadRequest {
		t.Errorf("outside dir: status = %d, want 400", rep.Status)
	}
	if rep, _ := serve(t, h, "/static/missing.js"); rep.Status != httpmsg.StatusNotFound {
		t.Errorf("missing: status = %d, want 404", rep.Status)
	}

	if !h.Erase("app.js") || h.Erase("app.js") {
		t.Error("Erase semantics")
	}
	if rep, _ := serve(t, h, "/static/app.js"); rep.Status != httpmsg.StatusNotFound {
		t.Errorf("after Erase: status = %d", rep.Status)
	}
	if !h.Add("app.js", "text/javascript", nil) {
		t.Error("re-Add after Erase failed")
	}

	h.Add("b.css", "text/css", nil)
	if got := h.Names(); len(got) != 2 || got[0] != "app.js" {
		t.Errorf("Names = %v", got)
	}
	h.Clear()
	if len(h.Names()) != 0 {
		t.Error("Clear left files")
	}
}

func TestVirtual_RootDir(t *testing.T) {
	h := Virtual("")
	h.Add("index.html", "text/html", []byte("<p>"))
	if rep, ok := serve(t, h, "/index.html"); !ok || string(rep.Body) != "<p>" {
		t.Errorf("reply = %+v", rep)
	}
}

func TestCallback(t *testing.T) {
	h := Callback("api")
	calls := 0
	h.Add("time", "text/plain", func(req *httpmsg.Request) []byte {
		calls++
		return []byte("uri=" + req.URI)
	})
	if h.Add("time", "text/plain", nil) {
		t.Error("duplicate Add succeeded")
	}

	rep, ok := serve(t, h, "/api/time")
	if !ok || string(rep.Body) != "uri=/api/time" || calls != 1 {
		t.Errorf("reply = %+v, calls %d", rep, calls)
	}

	if !h.Erase("time") {
		t.Error("Erase failed")
	}
	if rep, _ := serve(t, h, "/api/time"); rep.Status != httpmsg.StatusNotFound {
		t.Errorf("after Erase: status = %d", rep.Status)
	}
	h.Clear()
}

func TestStatic(t *testing.T) {
	h := FS(fstest.MapFS{
		"index.html":      {Data: []byte("home")},
		"css/site.css":    {Data: []byte("body{}")},
		"docs/index.html": {Data: []byte("docs")},
	})

	tests := []struct {
		uri      string
		wantOK   bool
		wantBody string
		wantType string
	}{
		{"/", true, "home", "text/html"},
		{"/css/site.css", true, "body{}", "text/css"},
		{"/docs/", true, "docs", "text/html"},
		{"/missing.txt", false, "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.uri, func(t *testing.T) {
			rep, ok := serve(t, h, tc.uri)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, status %d", ok, rep.Status)
			}
			if !ok {
				if rep.Status != httpmsg.StatusNotFound {
					t.Errorf("status = %d, want 404", rep.Status)
				}
				return
			}
			if string(rep.Body) != tc.wantBody || rep.Header.Get("Content-Type") != tc.wantType {
				t.Errorf("reply = %+v", rep)
			}
		})
	}
}

type fakeS3 struct {
	objects map[string]string
	err     error
	lastKey string
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.lastKey = aws.ToString(in.Key)
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.objects[f.lastKey]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestS3(t *testing.T) {
	client := &fakeS3{objects: map[string]string{
		"site/index.html": "<h1>hi</h1>",
		"site/big.bin":    strings.Repeat("x", 64),
	}}
	h := S3(client, "bucket", "site/")

	rep, ok := serve(t, h, "/")
	if !ok || string(rep.Body) != "<h1>hi</h1>" || rep.Header.Get("Content-Type") != "text/html" {
		t.Errorf("index: %+v", rep)
	}
	if client.lastKey != "site/index.html" {
		t.Errorf("key = %q", client.lastKey)
	}

	if rep, _ := serve(t, h, "/nope"); rep.Status != httpmsg.StatusNotFound {
		t.Errorf("missing: status = %d", rep.Status)
	}

	h.WithMaxSize(10)
	if rep, _ := serve(t, h, "/big.bin"); rep.Status != httpmsg.StatusInternalServerError {
		t.Errorf("oversized: status = %d", rep.Status)
	}

	client.err = &smithy.GenericAPIError{Code: "NotFound"}
	if rep, _ := serve(t, h, "/x"); rep.Status != httpmsg.StatusNotFound {
		t.Errorf("NotFound code: status = %d", rep.Status)
	}
	client.err = &smithy.GenericAPIError{Code: "AccessDenied"}
	if rep, _ := serve(t, h, "/x"); rep.Status != httpmsg.StatusInternalServerError {
		t.Errorf("AccessDenied: status = %d", rep.Status)
	}
	client.err = errors.New("network down")
	if rep, _ := serve(t, h, "/x"); rep.Status != httpmsg.StatusInternalServerError {
		t.Errorf("transport error: status = %d", rep.Status)
	}
}

type shutdownRecorder struct {
	conn.HandlerFunc
	calls int
}

func (s *shutdownRecorder) Shutdown() { s.calls++ }

func TestChain(t *testing.T) {
	api := Virtual("api")
	api.Add("v", "text/plain", []byte("1"))
	root := Virtual("")
	root.Add("index.html", "text/html", []byte("home"))
	ch := Chain(api, root)

	if rep, ok := serve(t, ch, "/api/v"); !ok || string(rep.Body) != "1" {
		t.Errorf("api: %+v", rep)
	}
	if rep, ok := serve(t, ch, "/index.html"); !ok || string(rep.Body) != "home" {
		t.Errorf("root: %+v", rep)
	}
	rep, ok := serve(t, ch, "/missing")
	if ok || rep.Status != httpmsg.StatusNotFound {
		t.Errorf("missing: ok %v status %d", ok, rep.Status)
	}

	rec := &shutdownRecorder{HandlerFunc: func(context.Context, *conn.Conn, *httpmsg.Request, *httpmsg.Reply) bool { return false }}
	Chain(rec, root).Shutdown()
	if rec.calls != 1 {
		t.Errorf("Shutdown calls = %d", rec.calls)
	}
}
