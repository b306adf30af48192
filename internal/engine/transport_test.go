package engine

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// closedServerURL returns the address of a server that is no longer
// listening, so every request to it fails at connect time.
func closedServerURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()
	return addr
}

func TestTransportGetSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/health/live" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("User-Agent") != userAgent {
			t.Errorf("User-Agent: got %q", r.Header.Get("User-Agent"))
		}
		w.Write([]byte(`{"alive":true}`))
	}))
	defer srv.Close()

	tr := NewTransport(srv.URL+"/", time.Second, true)
	res := tr.Get(context.Background(), "/health/live")
	if !res.Succeeded || res.StatusCode != 200 || res.Error != "" {
		t.Fatalf("got %+v", res)
	}
	if string(res.Body) != `{"alive":true}` {
		t.Errorf("Body: got %q", res.Body)
	}
}

func TestTransportPostSendsJSON(t *testing.T) {
	var gotType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	tr := NewTransport(srv.URL, time.Second, true)
	res := tr.Post(context.Background(), "/api/engine/news", []byte(`{"items":[]}`))
	if !res.Succeeded || res.StatusCode != http.StatusAccepted {
		t.Fatalf("got %+v", res)
	}
	if gotType != "application/json" {
		t.Errorf("Content-Type: got %q, want %q", gotType, "application/json")
	}
	if gotBody != `{"items":[]}` {
		t.Errorf("body: got %q", gotBody)
	}

	// nil body still goes out as JSON
	res = tr.Post(context.Background(), "/api/engine/news", nil)
	if gotType != "application/json" || gotBody != "" {
		t.Errorf("nil body: type %q body %q", gotType, gotBody)
	}
	if !res.Succeeded {
		t.Errorf("nil body: got %+v", res)
	}
}

func TestTransportNon2xxLeavesErrorEmpty(t *testing.T) {
	for _, code := range []int{http.StatusNotFound, http.StatusInternalServerError, http.StatusServiceUnavailable} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
			w.Write([]byte(`{"detail":"nope"}`))
		}))
		res := NewTransport(srv.URL, time.Second, true).Get(context.Background(), "/x")
		srv.Close()

		if res.Succeeded {
			t.Errorf("%d: Succeeded should be false", code)
		}
		if res.StatusCode != code {
			t.Errorf("%d: StatusCode got %d", code, res.StatusCode)
		}
		if res.Error != "" {
			t.Errorf("%d: Error should be empty, got %q", code, res.Error)
		}
		if string(res.Body) != `{"detail":"nope"}` {
			t.Errorf("%d: Body should be kept, got %q", code, res.Body)
		}
	}
}

func TestTransportOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"summary":"`))
		w.Write([]byte(strings.Repeat("x", maxBodyBytes)))
		w.Write([]byte(`","essay":"tail"}`))
	}))
	defer srv.Close()

	res := NewTransport(srv.URL, 5*time.Second, true).Get(context.Background(), "/")
	if res.Succeeded {
		t.Fatalf("oversized body should not succeed, got status %d", res.StatusCode)
	}
	if res.Error != "response body exceeds 8 MiB" {
		t.Errorf("Error: got %q", res.Error)
	}
	if len(res.Body) != 0 {
		t.Errorf("Body: got %d bytes, want none", len(res.Body))
	}
}

func TestTransportBodyAtLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", maxBodyBytes)))
	}))
	defer srv.Close()

	res := NewTransport(srv.URL, 5*time.Second, true).Get(context.Background(), "/")
	if !res.Succeeded || len(res.Body) != maxBodyBytes {
		t.Errorf("got Succeeded=%v len=%d Error=%q", res.Succeeded, len(res.Body), res.Error)
	}
}

func TestTransportConnectFailure(t *testing.T) {
	tr := NewTransport(closedServerURL(t), time.Second, true)
	res := tr.Get(context.Background(), "/health/live")
	if res.Succeeded || res.StatusCode != 0 || res.Error == "" {
		t.Fatalf("got %+v", res)
	}
	if !strings.Contains(res.Error, "/health/live") {
		t.Errorf("error should name the URL: %q", res.Error)
	}
}

func TestTransportBadBaseURL(t *testing.T) {
	res := NewTransport("http://bad host", time.Second, true).Get(context.Background(), "/x")
	if res.Succeeded || !strings.HasPrefix(res.Error, "create request:") {
		t.Fatalf("got %+v", res)
	}
}

func TestTransportTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	tr := NewTransport(srv.URL, 50*time.Millisecond, true)
	start := time.Now()
	res := tr.Get(context.Background(), "/slow")
	if res.Succeeded || res.StatusCode != 0 {
		t.Fatalf("got %+v", res)
	}
	if !strings.HasPrefix(res.Error, "timeout was reached") {
		t.Errorf("Error: got %q", res.Error)
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("timeout not honoured: took %v", time.Since(start))
	}
}

func TestTransportContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := NewTransport(srv.URL, 0, true).Get(ctx, "/")
	if res.Succeeded || res.Error == "" {
		t.Fatalf("got %+v", res)
	}
}

func TestTransportSetTimeout(t *testing.T) {
	tr := NewTransport("http://localhost", 30*time.Second, true)
	tr.SetTimeout(0)
	if tr.Timeout() != 0 {
		t.Errorf("Timeout: got %v, want 0", tr.Timeout())
	}
	tr.SetTimeout(-time.Second)
	if tr.Timeout() != -time.Second {
		t.Errorf("Timeout: got %v, want -1s", tr.Timeout())
	}
	if tr.client().Timeout != -time.Second {
		t.Error("client should carry the current timeout")
	}
}

func TestTransportRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusFound)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"alive":true}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	follow := NewTransport(srv.URL, time.Second, true)
	if res := follow.Get(context.Background(), "/old"); !res.Succeeded || res.StatusCode != 200 {
		t.Errorf("follow=true: got %+v", res)
	}
	if res := follow.Post(context.Background(), "/old", []byte(`{}`)); res.StatusCode != 200 {
		t.Errorf("follow=true POST: got %+v", res)
	}

	noFollow := NewTransport(srv.URL, time.Second, false)
	if noFollow.FollowRedirects() {
		t.Error("FollowRedirects: got true")
	}
	res := noFollow.Get(context.Background(), "/old")
	if res.Succeeded || res.StatusCode != http.StatusFound || res.Error != "" {
		t.Errorf("follow=false: got %+v", res)
	}
}

func TestInitShutdown(t *testing.T) {
	Init()
	Init()
	rt, ok := roundTripper().(*http.Transport)
	if !ok || !rt.DisableKeepAlives {
		t.Fatalf("shared transport: got %#v", roundTripper())
	}

	Shutdown()
	Shutdown()
	sharedMu.Lock()
	isNil := shared == nil
	sharedMu.Unlock()
	if !isNil {
		t.Error("Shutdown should release the shared transport")
	}

	// Lazily re-initialized on next use.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()
	if res := NewTransport(srv.URL, time.Second, true).Get(context.Background(), "/"); !res.Succeeded {
		t.Errorf("after Shutdown: got %+v", res)
	}
}

func TestRoundTripperDuringShutdown(t *testing.T) {
	defer Init()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				Shutdown()
			}
		}
	}()

	for i := 0; i < 2000; i++ {
		rt, ok := roundTripper().(*http.Transport)
		if !ok || rt == nil {
			t.Errorf("iteration %d: got %#v, want shared transport", i, rt)
			break
		}
		if !rt.DisableKeepAlives {
			t.Errorf("iteration %d: keep-alives enabled", i)
			break
		}
	}
	close(stop)
	wg.Wait()
}
