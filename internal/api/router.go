package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/example/swachh-infra/internal/khata"
	"github.com/example/swachh-infra/internal/registry"
	"github.com/example/swachh-infra/internal/security"
	"github.com/example/swachh-infra/pkg/audit"
)

// Ledger is the surface the router needs from the stock ledger service.
type Ledger interface {
	Dashboard(ctx context.Context, date string) (*khata.Dashboard, error)
	AddStock(ctx context.Context, date string, amount int64) (*khata.Result, error)
	SellStock(ctx context.Context, date string, amount int64) (*khata.Result, error)
	Reset(ctx context.Context) error
}

type Auditor interface {
	Append(payload string) *audit.LogEntry
	Entries() []*audit.LogEntry
	Verify() bool
}

type Dependencies struct {
	Logger   *slog.Logger
	Ledger   Ledger
	Registry *registry.Registry

	Auditor        Auditor
	RateLimiter    *security.RedisTokenBucket
	AdminAllowlist []*net.IPNet
	MaxBodyBytes   int64
}

// NewRouter builds the HTTP surface: the Mo Khata ledger routes at the root
// and the registry CRUD resources under /v1.
func NewRouter(deps Dependencies) (http.Handler, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	stockActionV, err := security.NewJSONSchemaValidator(stockActionSchema)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(security.CorrelationID)
	r.Use(RequestLogger(deps.Logger))
	r.Use(security.BodySizeLimit(deps.MaxBodyBytes))
	if deps.RateLimiter != nil {
		r.Use(security.RateLimitMiddleware(deps.RateLimiter, rateLimitKeyByIP))
	}
	if deps.Auditor != nil {
		r.Use(AuditMiddleware(deps.Auditor))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Get("/dashboard", handleDashboard(deps))
	r.With(stockActionV.Middleware).Post("/add", handleAdd(deps))
	r.With(stockActionV.Middleware).Post("/sell", handleSell(deps))
	r.Get("/report", handleReport(deps))

	// Administrative surface, gated by CIDR allowlist.
	admin := r.With(security.IPAllowlist(deps.AdminAllowlist))
	admin.Post("/reset", handleReset(deps))
	admin.Get("/auditz", handleAuditTrail(deps))

	if deps.Registry != nil {
		r.Route("/v1", func(r chi.Router) {
			r.Route("/wards", func(r chi.Router) { mountResource(r, deps.Registry.Wards) })
			r.Route("/supervisors", func(r chi.Router) { mountResource(r, deps.Registry.Supervisors) })
			r.Route("/vehicles", func(r chi.Router) { mountResource(r, deps.Registry.Vehicles) })
			r.Route("/fuel", func(r chi.Router) { mountResource(r, deps.Registry.Fuel) })
			r.Route("/waste", func(r chi.Router) { mountResource(r, deps.Registry.Waste) })
			r.Route("/defects", func(r chi.Router) { mountResource(r, deps.Registry.Defects) })
			r.Route("/centers", func(r chi.Router) { mountResource(r, deps.Registry.Centers) })
		})
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		security.WriteJSONError(w, r, http.StatusNotFound, "not found")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		security.WriteJSONError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r, nil
}

func rateLimitKeyByIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return ""
	}
	return "ip:" + host
}
