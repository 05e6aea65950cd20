package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Suhaibinator/SOnion/pkg/common"
	"github.com/Suhaibinator/SOnion/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestApp(middlewares ...common.Middleware) *App {
	return New(AppConfig{
		Logger:      zap.NewNop(),
		Middlewares: middlewares,
	})
}

func do(a *App, method, target string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	a.ServeHTTP(rr, httptest.NewRequest(method, target, nil))
	return rr
}

// TestOnionOrdering tests the canonical 1-2-3-4-5 body through the server shell
func TestOnionOrdering(t *testing.T) {
	delay := func() { time.Sleep(20 * time.Millisecond) }

	a := newTestApp()
	a.Use(func(c *common.Context, next common.Next) error {
		c.Body = "1"
		if err := next(); err != nil {
			return err
		}
		c.Body = c.Body.(string) + "5"
		return nil
	})
	a.Use(func(c *common.Context, next common.Next) error {
		c.Body = c.Body.(string) + "2"
		delay()
		if err := next(); err != nil {
			return err
		}
		c.Body = c.Body.(string) + "4"
		return nil
	})
	a.Use(func(c *common.Context, next common.Next) error {
		c.Body = c.Body.(string) + "3"
		return nil
	})

	rr := do(a, "GET", "/")

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, rr.Code)
	}
	if rr.Body.String() != "12345" {
		t.Errorf("Expected body %q, got %q", "12345", rr.Body.String())
	}
}

func TestEmptyChainEmptyBody(t *testing.T) {
	rr := do(newTestApp(), "GET", "/nothing")

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, rr.Code)
	}
	if rr.Body.Len() != 0 {
		t.Errorf("Expected empty body, got %q", rr.Body.String())
	}
}

func TestStatusAndHeadersReachTransport(t *testing.T) {
	a := newTestApp(func(c *common.Context, next common.Next) error {
		c.SetStatus(http.StatusCreated)
		c.Set("X-Custom", "v")
		c.Body = map[string]string{"id": "1"}
		return next()
	})

	rr := do(a, "POST", "/items")

	if rr.Code != http.StatusCreated {
		t.Errorf("Expected status code %d, got %d", http.StatusCreated, rr.Code)
	}
	if rr.Header().Get("x-custom") != "v" {
		t.Errorf("Expected X-Custom header, got %q", rr.Header().Get("X-Custom"))
	}
	if rr.Body.String() != `{"id":"1"}` {
		t.Errorf("Expected JSON body, got %q", rr.Body.String())
	}
}

func TestHTTPErrorResponse(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	a := New(AppConfig{Logger: zap.New(core)})
	a.Use(func(c *common.Context, next common.Next) error {
		c.Body = "discarded"
		return c.Throw(http.StatusTeapot, "short and stout")
	})

	rr := do(a, "GET", "/tea")

	if rr.Code != http.StatusTeapot {
		t.Errorf("Expected status code %d, got %d", http.StatusTeapot, rr.Code)
	}
	if rr.Body.String() != "short and stout" {
		t.Errorf("Expected error message body, got %q", rr.Body.String())
	}
	if logs.FilterMessage("Middleware chain failed").Len() != 1 {
		t.Errorf("Expected one warning log, got %d", logs.Len())
	}
}

func TestGenericErrorResponse(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	a := New(AppConfig{Logger: zap.New(core)})
	a.Use(func(c *common.Context, next common.Next) error {
		c.Set("Content-Type", "application/json")
		return errors.New("database unreachable")
	})

	rr := do(a, "GET", "/")

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("Expected status code %d, got %d", http.StatusInternalServerError, rr.Code)
	}
	if rr.Body.String() != "Internal Server Error" {
		t.Errorf("Expected generic message, got %q", rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("Expected text/plain error content type, got %q", ct)
	}
	entries := logs.FilterMessage("Middleware chain failed").All()
	if len(entries) != 1 {
		t.Fatalf("Expected one error log, got %d", len(entries))
	}
	if entries[0].ContextMap()["error"] != "database unreachable" {
		t.Errorf("Expected logged error, got %v", entries[0].ContextMap()["error"])
	}
}

func TestPanicRecovery(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	a := New(AppConfig{Logger: zap.New(core)})
	a.Use(func(c *common.Context, next common.Next) error {
		panic("something went wrong")
	})

	rr := do(a, "GET", "/panic")

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("Expected status code %d, got %d", http.StatusInternalServerError, rr.Code)
	}
	if logs.FilterMessage("Panic recovered").Len() != 1 {
		t.Errorf("Expected panic to be logged")
	}
}

func TestUnencodableBody(t *testing.T) {
	a := newTestApp(func(c *common.Context, next common.Next) error {
		c.Body = map[string]any{"ch": make(chan int)}
		return nil
	})

	rr := do(a, "GET", "/")

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("Expected status code %d, got %d", http.StatusInternalServerError, rr.Code)
	}
}

func TestInvalidStatusBecomesServerError(t *testing.T) {
	tests := []struct {
		name string
		mw   common.Middleware
	}{
		{"http error without status", func(c *common.Context, next common.Next) error {
			return &common.HTTPError{Message: "bad"}
		}},
		{"status above range", func(c *common.Context, next common.Next) error {
			c.SetStatus(1000)
			c.Body = "ok"
			return nil
		}},
		{"status below range", func(c *common.Context, next common.Next) error {
			c.SetStatus(42)
			return nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector, err := metrics.NewCollector(nil, metrics.DefaultMetricsConfig())
			if err != nil {
				t.Fatalf("NewCollector() returned error: %v", err)
			}
			core, logs := observer.New(zap.ErrorLevel)
			a := New(AppConfig{Logger: zap.New(core), Metrics: collector})
			a.Use(tt.mw)

			rr := do(a, "GET", "/")

			if rr.Code != http.StatusInternalServerError {
				t.Errorf("Expected status code %d, got %d", http.StatusInternalServerError, rr.Code)
			}
			if rr.Body.String() == "bad" {
				t.Error("Expected the error message to be replaced")
			}
			if logs.FilterMessage("Invalid response status").Len() != 1 {
				t.Error("Expected the invalid status to be logged")
			}

			expected := `
# HELP sonion_http_requests_in_flight Number of requests currently being served.
# TYPE sonion_http_requests_in_flight gauge
sonion_http_requests_in_flight 0
`
			if err := testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected), "sonion_http_requests_in_flight"); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestRequestTimeout(t *testing.T) {
	released := make(chan struct{})
	a := New(AppConfig{
		Logger:         zap.NewNop(),
		RequestTimeout: 50 * time.Millisecond,
	})
	a.Use(func(c *common.Context, next common.Next) error {
		defer close(released)
		<-c.Context().Done()
		time.Sleep(10 * time.Millisecond)
		c.Set("X-Late", "1")
		c.Body = "too late"
		return nil
	})

	rr := do(a, "GET", "/slow")

	if rr.Code != http.StatusRequestTimeout {
		t.Errorf("Expected status code %d, got %d", http.StatusRequestTimeout, rr.Code)
	}
	if rr.Body.String() != "Request Timeout" {
		t.Errorf("Expected timeout body, got %q", rr.Body.String())
	}

	<-released
	if rr.Header().Get("X-Late") != "" {
		t.Error("Expected header written after the timeout to be dropped")
	}
}

func TestTimeoutHeaderReadsAfterCommit(t *testing.T) {
	finished := make(chan struct{})
	a := New(AppConfig{
		Logger:         zap.NewNop(),
		RequestTimeout: 5 * time.Millisecond,
	})
	a.Use(func(c *common.Context, next common.Next) error {
		defer close(finished)
		c.Set("Content-Type", "application/json")
		time.Sleep(4 * time.Millisecond)
		for deadline := time.Now().Add(30 * time.Millisecond); time.Now().Before(deadline); {
			_ = c.Response.Get("Content-Type")
			_ = c.Response.Header().Get("Content-Length")
			_ = c.Get("X-Anything")
			c.Set("X-Late", "1")
		}
		return nil
	})

	rr := do(a, "GET", "/slow")
	<-finished

	if rr.Code != http.StatusRequestTimeout {
		t.Errorf("Expected status code %d, got %d", http.StatusRequestTimeout, rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("Expected text/plain timeout content type, got %q", ct)
	}
}

type closeTracker struct {
	once   sync.Once
	closed chan struct{}
}

func (b *closeTracker) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}

func TestTimeoutClosesAbandonedBody(t *testing.T) {
	body := &closeTracker{closed: make(chan struct{})}
	a := New(AppConfig{
		Logger:         zap.NewNop(),
		RequestTimeout: 10 * time.Millisecond,
	})
	a.Use(func(c *common.Context, next common.Next) error {
		<-c.Context().Done()
		time.Sleep(5 * time.Millisecond)
		c.Body = body
		return nil
	})

	rr := do(a, "GET", "/static/big.bin")
	if rr.Code != http.StatusRequestTimeout {
		t.Errorf("Expected status code %d, got %d", http.StatusRequestTimeout, rr.Code)
	}

	select {
	case <-body.closed:
	case <-time.After(time.Second):
		t.Fatal("Expected the abandoned body to be closed")
	}
}

func TestUseAfterServePanics(t *testing.T) {
	a := newTestApp()
	do(a, "GET", "/")

	defer func() {
		if recover() == nil {
			t.Error("Expected Use after serving to panic")
		}
	}()
	a.Use(func(c *common.Context, next common.Next) error { return next() })
}

// TestConcurrentRequestIsolation tests that in-flight requests never observe each other's state
func TestConcurrentRequestIsolation(t *testing.T) {
	a := newTestApp(
		func(c *common.Context, next common.Next) error {
			id := c.Request.Query("id")
			c.Set("X-Request", id)
			c.State["id"] = id
			c.Body = "in:" + id
			// Yield so many requests interleave
			time.Sleep(5 * time.Millisecond)
			if err := next(); err != nil {
				return err
			}
			c.Body = c.Body.(string) + ":out:" + c.State["id"].(string)
			return nil
		},
		func(c *common.Context, next common.Next) error {
			time.Sleep(5 * time.Millisecond)
			c.Body = c.Body.(string) + ":" + c.Response.Get("x-request")
			return nil
		},
	)

	server := httptest.NewServer(a)
	defer server.Close()

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprint(i)
			resp, err := http.Get(server.URL + "/?id=" + id)
			if err != nil {
				errs <- err
				return
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)

			want := "in:" + id + ":" + id + ":out:" + id
			if string(body) != want {
				errs <- fmt.Errorf("request %s: expected body %q, got %q", id, want, body)
			}
			if got := resp.Header.Get("X-Request"); got != id {
				errs <- fmt.Errorf("request %s: expected header %q, got %q", id, id, got)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestMetricsRecorded(t *testing.T) {
	collector, err := metrics.NewCollector(nil, metrics.DefaultMetricsConfig())
	if err != nil {
		t.Fatalf("NewCollector() returned error: %v", err)
	}
	a := New(AppConfig{Logger: zap.NewNop(), Metrics: collector})
	a.Use(func(c *common.Context, next common.Next) error {
		if c.URL() == "/fail" {
			return c.Throw(http.StatusNotFound, "")
		}
		c.Body = "ok"
		return nil
	})

	do(a, "GET", "/")
	do(a, "GET", "/fail")

	expected := `
# HELP sonion_http_request_errors_total Total number of requests answered with a status of 400 or above.
# TYPE sonion_http_request_errors_total counter
sonion_http_request_errors_total{code="404",method="GET"} 1
`
	if err := testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected), "sonion_http_request_errors_total"); err != nil {
		t.Error(err)
	}
	count, err := testutil.GatherAndCount(collector.Registry(), "sonion_http_requests_total")
	if err != nil {
		t.Fatalf("GatherAndCount() returned error: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 request series, got %d", count)
	}
}

func TestServeAndShutdown(t *testing.T) {
	a := newTestApp(func(c *common.Context, next common.Next) error {
		c.Body = "hello"
		return nil
	})

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	if err := a.Ready(); err != nil {
		t.Fatalf("Expected a fresh app to be ready, got %v", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- a.Serve(l)
	}()

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + l.Addr().String() + "/")
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "hello" {
		t.Errorf("Expected body %q, got %q", "hello", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() returned error: %v", err)
	}
	if err := <-serveErr; err != nil {
		t.Errorf("Expected Serve to return nil after shutdown, got %v", err)
	}

	if !errors.Is(a.Ready(), ErrShuttingDown) {
		t.Errorf("Expected Ready to report shutdown, got %v", a.Ready())
	}

	// Requests reaching the handler after shutdown are rejected
	rr := do(a, "GET", "/")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status code %d, got %d", http.StatusServiceUnavailable, rr.Code)
	}
}

func TestShutdownWaitsForInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	a := newTestApp(func(c *common.Context, next common.Next) error {
		close(started)
		<-release
		c.Body = "done"
		return nil
	})

	go do(a, "GET", "/")
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := a.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded while a request is in flight, got %v", err)
	}

	close(release)
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	if err := a.Shutdown(ctx2); err != nil {
		t.Errorf("Expected shutdown to complete, got %v", err)
	}
}

func TestShutdownDuringRequests(t *testing.T) {
	a := newTestApp(func(c *common.Context, next common.Next) error {
		c.Body = "ok"
		return nil
	})

	var wg sync.WaitGroup
	codes := make(chan int, 400)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				codes <- do(a, "GET", "/").Code
			}
		}()
	}

	time.Sleep(time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		t.Errorf("Expected shutdown to complete, got %v", err)
	}

	wg.Wait()
	close(codes)
	for code := range codes {
		if code != http.StatusOK && code != http.StatusServiceUnavailable {
			t.Errorf("Expected 200 or 503, got %d", code)
		}
	}
}
