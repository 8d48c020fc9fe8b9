package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/httpay/httpay-sdk-go/pkg/model"
	"github.com/httpay/httpay-sdk-go/pkg/sdkerrors"
)

type served struct {
	calls  int
	escrow *model.Escrow
}

func okHandler(s *served, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls++
		s.escrow, _ = FromContext(r.Context())
		w.WriteHeader(status)
		_, _ = w.Write([]byte("analysis"))
	})
}

func newMiddleware(t *testing.T, cfg MiddlewareConfig) func(http.Handler) http.Handler {
	t.Helper()
	mw, err := Middleware(cfg)
	if err != nil {
		t.Fatalf("Middleware: %v", err)
	}
	return mw
}

func request(escrowID, token string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/sentiment", nil)
	if escrowID != "" {
		r.Header.Set(EscrowIDHeader, escrowID)
	}
	if token != "" {
		r.Header.Set(AuthTokenHeader, token)
	}
	return r
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type %q", ct)
	}
	var b errorBody
	if err := json.NewDecoder(rec.Body).Decode(&b); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return b
}

func TestMiddlewareRejections(t *testing.T) {
	f := newFixture(t)
	id := strconv.FormatUint(f.putEscrow("tok", "1000", 1050), 10)

	tests := []struct {
		name string
		req  *http.Request
		want string
	}{
		{"no credentials", request("", ""), "Missing escrow credentials: send X-Escrow-Id and X-Auth-Token"},
		{"no token", request(id, ""), "Missing escrow credentials: send X-Escrow-Id and X-Auth-Token"},
		{"bad id", request("one", "tok"), ReasonInvalidEscrowID},
		{"unknown escrow", request("404", "tok"), ReasonEscrowNotFound},
		{"wrong token", request(id, "other"), ReasonInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &served{}
			rec := httptest.NewRecorder()
			newMiddleware(t, MiddlewareConfig{Verifier: f.verifier, Provider: providerAddr})(okHandler(s, http.StatusOK)).ServeHTTP(rec, tt.req)

			if rec.Code != http.StatusPaymentRequired {
				t.Fatalf("status = %d", rec.Code)
			}
			b := decodeBody(t, rec)
			if b.Success || b.Error != "Payment Required" || b.Message != tt.want {
				t.Fatalf("body = %+v", b)
			}
			if s.calls != 0 {
				t.Fatal("handler must not run")
			}
		})
	}
}

func TestMiddlewareAcceptsHeadersAndQuery(t *testing.T) {
	f := newFixture(t)
	id := strconv.FormatUint(f.putEscrow("tok", "1000", 1050), 10)
	mw := newMiddleware(t, MiddlewareConfig{Verifier: f.verifier, Provider: providerAddr})

	byQuery := httptest.NewRequest(http.MethodGet, "/sentiment?escrowId="+id+"&authToken=tok", nil)
	mixed := httptest.NewRequest(http.MethodGet, "/sentiment?authToken=tok", nil)
	mixed.Header.Set(EscrowIDHeader, id)

	for name, req := range map[string]*http.Request{"headers": request(id, "tok"), "query": byQuery, "mixed": mixed} {
		t.Run(name, func(t *testing.T) {
			s := &served{}
			rec := httptest.NewRecorder()
			mw(okHandler(s, http.StatusOK)).ServeHTTP(rec, req)

			if rec.Code != http.StatusOK || rec.Body.String() != "analysis" {
				t.Fatalf("status %d body %q", rec.Code, rec.Body.String())
			}
			if s.calls != 1 || s.escrow == nil || strconv.FormatUint(s.escrow.EscrowID, 10) != id {
				t.Fatalf("escrow not in context: %+v", s)
			}
		})
	}
}

func TestMiddlewareLedgerFailure(t *testing.T) {
	f := newFixture(t)
	id := strconv.FormatUint(f.putEscrow("tok", "1000", 1050), 10)
	f.l.FailWith(sdkerrors.Network(errors.New("dial tcp: connection refused"), "query failed"))

	s := &served{}
	rec := httptest.NewRecorder()
	newMiddleware(t, MiddlewareConfig{Verifier: f.verifier, Provider: providerAddr})(okHandler(s, http.StatusOK)).ServeHTTP(rec, request(id, "tok"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if b := decodeBody(t, rec); b.Error != "Internal Server Error" || b.Success {
		t.Fatalf("body = %+v", b)
	}
	if s.calls != 0 {
		t.Fatal("handler must not run")
	}
}

func TestMiddlewarePostsUsageAfterSuccess(t *testing.T) {
	f := newFixture(t)
	id := f.putEscrow("tok", "1000", 1050)
	rep, _ := NewReporter(f.provider)
	var feeFor *model.Escrow
	mw := newMiddleware(t, MiddlewareConfig{
		Verifier: f.verifier,
		Provider: providerAddr,
		Guard:    NewMemoryGuard(0),
		Reporter: rep,
		UsageFee: func(_ *http.Request, e *model.Escrow) string {
			feeFor = e
			return "300"
		},
	})

	rec := httptest.NewRecorder()
	mw(okHandler(&served{}, http.StatusOK)).ServeHTTP(rec, request(strconv.FormatUint(id, 10), "tok"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if feeFor == nil || feeFor.EscrowID != id {
		t.Fatalf("fee callback got %+v", feeFor)
	}
	if got := f.l.Received(providerAddr, "untrn"); got != "300" {
		t.Fatalf("provider received %s", got)
	}
	if f.l.EscrowCount() != 0 {
		t.Fatal("escrow should be released")
	}
}

func TestMiddlewareSkipsUsageOnFailure(t *testing.T) {
	f := newFixture(t)
	n := f.putEscrow("tok", "1000", 1050)
	id := strconv.FormatUint(n, 10)
	rep, _ := NewReporter(f.provider)
	guard := NewMemoryGuard(0)
	mw := newMiddleware(t, MiddlewareConfig{
		Verifier: f.verifier,
		Provider: providerAddr,
		Guard:    guard,
		Reporter: rep,
		UsageFee: func(*http.Request, *model.Escrow) string { return "300" },
	})

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		mw(okHandler(&served{}, http.StatusBadGateway)).ServeHTTP(rec, request(id, "tok"))
		if rec.Code != http.StatusBadGateway {
			t.Fatalf("attempt %d: status = %d", i, rec.Code)
		}
	}
	if len(f.l.Executes()) != 0 {
		t.Fatal("usage must not be posted for failed responses")
	}
	if ok, _ := guard.Acquire(context.Background(), n); !ok {
		t.Fatal("guard should be released after a failed response")
	}
}

func TestMiddlewareRejectsConcurrentReuse(t *testing.T) {
	f := newFixture(t)
	id := strconv.FormatUint(f.putEscrow("tok", "1000", 1050), 10)
	mw := newMiddleware(t, MiddlewareConfig{Verifier: f.verifier, Provider: providerAddr, Guard: NewMemoryGuard(0)})

	entered := make(chan struct{})
	release := make(chan struct{})
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusOK)
	})

	done := make(chan int)
	go func() {
		rec := httptest.NewRecorder()
		mw(slow).ServeHTTP(rec, request(id, "tok"))
		done <- rec.Code
	}()
	<-entered

	rec := httptest.NewRecorder()
	mw(okHandler(&served{}, http.StatusOK)).ServeHTTP(rec, request(id, "tok"))
	close(release)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("second request status = %d", rec.Code)
	}
	if b := decodeBody(t, rec); b.Message != "Escrow already in use" {
		t.Fatalf("body = %+v", b)
	}
	if code := <-done; code != http.StatusOK {
		t.Fatalf("first request status = %d", code)
	}
}

func TestMiddlewareConfigValidate(t *testing.T) {
	f := newFixture(t)
	rep, _ := NewReporter(f.provider)
	fee := func(*http.Request, *model.Escrow) string { return "1" }

	tests := []struct {
		name    string
		cfg     MiddlewareConfig
		wantErr bool
	}{
		{"minimal", MiddlewareConfig{Verifier: f.verifier, Provider: providerAddr}, false},
		{"with usage", MiddlewareConfig{Verifier: f.verifier, Provider: providerAddr, Reporter: rep, UsageFee: fee}, false},
		{"no verifier", MiddlewareConfig{Provider: providerAddr}, true},
		{"no provider", MiddlewareConfig{Verifier: f.verifier}, true},
		{"fee without reporter", MiddlewareConfig{Verifier: f.verifier, Provider: providerAddr, UsageFee: fee}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Middleware(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, sdkerrors.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
}
