package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/httpay/httpay-sdk-go/pkg/model"
	"github.com/httpay/httpay-sdk-go/pkg/sdkerrors"
	"go.uber.org/zap"
)

// MiddlewareConfig configures Middleware.
type MiddlewareConfig struct {
	// Verifier checks the presented credentials. Required.
	Verifier *Verifier
	// Provider is the address escrows must name as provider. Required.
	Provider string
	// Guard prevents concurrent reuse of one escrow. Optional.
	Guard Guard
	// Reporter and UsageFee together enable automatic usage posting after
	// the wrapped handler answered with a 2xx status. UsageFee returning ""
	// skips posting for that request.
	Reporter *Reporter
	UsageFee func(r *http.Request, e *model.Escrow) string
}

// Validate checks the required fields.
func (c MiddlewareConfig) Validate() error {
	if c.Verifier == nil {
		return sdkerrors.Configuration("middleware requires a verifier")
	}
	if c.Provider == "" {
		return sdkerrors.Configuration("middleware requires the provider address")
	}
	if c.UsageFee != nil && c.Reporter == nil {
		return sdkerrors.Configuration("usage fee callback set without a reporter")
	}
	return nil
}

type escrowCtxKey struct{}

// FromContext returns the escrow verified by Middleware for this request.
func FromContext(ctx context.Context) (*model.Escrow, bool) {
	e, ok := ctx.Value(escrowCtxKey{}).(*model.Escrow)
	return e, ok
}

// Middleware guards a handler behind escrow verification. Requests without
// valid credentials get 402 Payment Required; ledger failures get 500.
func Middleware(cfg MiddlewareConfig) (func(http.Handler) http.Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			escrowID, token := credentials(r)
			if escrowID == "" || token == "" {
				writePaymentRequired(w, "Missing escrow credentials: send "+EscrowIDHeader+" and "+AuthTokenHeader)
				return
			}

			res, err := cfg.Verifier.Verify(ctx, VerifyParams{EscrowID: escrowID, AuthToken: token, ProviderAddr: cfg.Provider})
			if err != nil {
				zap.L().Error("escrow verification failed", zap.String("escrow_id", escrowID), zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, "Internal Server Error", err.Error())
				return
			}
			if !res.IsValid {
				writePaymentRequired(w, res.Error)
				return
			}
			id := res.Escrow.EscrowID

			if cfg.Guard != nil {
				ok, err := cfg.Guard.Acquire(ctx, id)
				if err != nil {
					zap.L().Error("escrow guard failed", zap.Uint64("escrow_id", id), zap.Error(err))
					writeJSON(w, http.StatusInternalServerError, "Internal Server Error", "escrow guard unavailable")
					return
				}
				if !ok {
					writePaymentRequired(w, "Escrow already in use")
					return
				}
			}

			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r.WithContext(context.WithValue(ctx, escrowCtxKey{}, res.Escrow)))

			if sw.status() < 200 || sw.status() > 299 {
				if cfg.Guard != nil {
					if err := cfg.Guard.Release(context.WithoutCancel(ctx), id); err != nil {
						zap.L().Warn("failed to release escrow guard", zap.Uint64("escrow_id", id), zap.Error(err))
					}
				}
				return
			}
			if cfg.Reporter == nil || cfg.UsageFee == nil {
				return
			}
			fee := cfg.UsageFee(r, res.Escrow)
			if fee == "" {
				return
			}
			// The response is already written; the release must not die with the request.
			if _, err := cfg.Reporter.PostUsage(context.WithoutCancel(ctx), cfg.Provider, PostUsageParams{
				EscrowID: strconv.FormatUint(id, 10),
				UsageFee: fee,
			}); err != nil {
				zap.L().Error("automatic usage posting failed", zap.Uint64("escrow_id", id), zap.String("usage_fee", fee), zap.Error(err))
			}
		})
	}, nil
}

func credentials(r *http.Request) (escrowID, token string) {
	escrowID = r.Header.Get(EscrowIDHeader)
	token = r.Header.Get(AuthTokenHeader)
	if escrowID == "" || token == "" {
		q := r.URL.Query()
		if escrowID == "" {
			escrowID = q.Get(EscrowIDParam)
		}
		if token == "" {
			token = q.Get(AuthTokenParam)
		}
	}
	return escrowID, token
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writePaymentRequired(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusPaymentRequired, "Payment Required", message)
}

func writeJSON(w http.ResponseWriter, code int, errText, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorBody{Success: false, Error: errText, Message: message})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (s *statusWriter) WriteHeader(code int) {
	if s.code == 0 {
		s.code = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusWriter) Write(b []byte) (int, error) {
	if s.code == 0 {
		s.code = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusWriter) Unwrap() http.ResponseWriter { return s.ResponseWriter }

func (s *statusWriter) status() int {
	if s.code == 0 {
		return http.StatusOK
	}
	return s.code
}
