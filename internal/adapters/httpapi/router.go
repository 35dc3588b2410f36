// Package httpapi exposes the bizdesk use cases as a JSON API over chi.
package httpapi

import (
	"bizdesk/internal/auth"
	"bizdesk/internal/core"
	"bizdesk/internal/export"
	"bizdesk/internal/notify"
	"bizdesk/internal/settings"
	"bizdesk/pkg/domain"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Dependencies are the collaborators the router dispatches to. Exports and
// Metrics are optional; their routes are only mounted when set.
type Dependencies struct {
	Service      *core.Service
	Auth         *auth.Authenticator
	Settings     *settings.Provider
	Mailer       notify.Mailer
	Exports      *export.Worker
	Metrics      http.Handler
	Logger       *slog.Logger
	CookieSecure bool
	Now          func() time.Time
}

// Handler serves the API.
type Handler struct {
	svc      *core.Service
	auth     *auth.Authenticator
	gate     *auth.Gate
	settings *settings.Provider
	mailer   notify.Mailer
	exports  *export.Worker
	logger   *slog.Logger
	now      func() time.Time
}

// NewRouter wires every route. Each API route is served both at the root and
// under /api.
func NewRouter(deps Dependencies) http.Handler {
	h := &Handler{
		svc:      deps.Service,
		auth:     deps.Auth,
		settings: deps.Settings,
		mailer:   deps.Mailer,
		exports:  deps.Exports,
		logger:   deps.Logger,
		now:      deps.Now,
	}
	if h.logger == nil {
		h.logger = slog.New(slog.DiscardHandler)
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.settings == nil {
		h.settings = settings.NewProvider(settings.Defaults(), h.logger)
	}
	if h.mailer == nil {
		h.mailer = notify.NewSimulatedMailer(h.logger)
	}
	h.gate = auth.NewGate(deps.Auth, h.deny, deps.CookieSecure)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(accessLog(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Group(h.routes)
	r.Route("/api", h.routes)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, "Not found")
	})
	return r
}

func (h *Handler) routes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/demo_login", h.handleDemoLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/check_auth", h.handleCheckAuth)

	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequireSession)

		r.Get("/users", h.handleListUsers)

		mountCollection(r, h, collection[domain.Client, core.ClientInput]{
			entity: domain.EntityClient, verb: "added",
			list: h.svc.ListClients, get: h.svc.GetClient,
			create: h.svc.CreateClient, update: h.svc.UpdateClient,
		})
		mountCollection(r, h, collection[domain.Service, core.ServiceInput]{
			entity: domain.EntityService, verb: "added",
			list: h.svc.ListServices, get: h.svc.GetService,
			create: h.svc.CreateService, update: h.svc.UpdateService,
		})
		mountCollection(r, h, collection[domain.Quote, core.QuoteInput]{
			entity: domain.EntityQuote, verb: "created",
			list: h.svc.ListQuotes, get: h.svc.GetQuote,
			create: h.svc.CreateQuote, update: h.svc.UpdateQuote,
		})
		mountCollection(r, h, collection[domain.Project, core.ProjectInput]{
			entity: domain.EntityProject, verb: "added",
			list: h.svc.ListProjects, get: h.svc.GetProject,
			create: h.svc.CreateProject, update: h.svc.UpdateProject,
		})
		mountCollection(r, h, collection[domain.Invoice, core.InvoiceInput]{
			entity: domain.EntityInvoice, verb: "created",
			list: h.svc.ListInvoices, get: h.svc.GetInvoice,
			create: h.svc.CreateInvoice, update: h.svc.UpdateInvoice,
		})
		mountCollection(r, h, collection[domain.Task, core.TaskInput]{
			entity: domain.EntityTask, verb: "added",
			list: h.svc.ListTasks, get: h.svc.GetTask,
			create: h.svc.CreateTask, update: h.svc.UpdateTask,
		})
		mountCollection(r, h, collection[domain.Bug, core.BugInput]{
			entity: domain.EntityBug, verb: "added",
			list: h.svc.ListBugs, get: h.svc.GetBug,
			create: h.svc.CreateBug, update: h.svc.UpdateBug,
		})

		r.Get("/user_settings/{id}", h.handleGetSettings)
		r.With(h.gate.RequireWriter).Put("/user_settings/{id}", h.handleUpdateSettings)
		r.With(h.gate.BlockDemo(auth.ErrDemoEmail)).Post("/send-test-project-reminder/{id}", h.handleTestReminder)

		if h.exports != nil {
			r.With(h.gate.RequireWriter).Post("/exports", h.handleCreateExport)
			r.Get("/exports", h.handleListExports)
			r.Get("/exports/{exportID}", h.handleGetExport)
			r.Get("/exports/{exportID}/archive", h.handleDownloadExport)
		}
	})
}
