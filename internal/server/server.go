package server

import (
	"database/sql"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/dukerupert/kinkeeper/internal/auth"
	"github.com/dukerupert/kinkeeper/internal/categorize"
	"github.com/dukerupert/kinkeeper/internal/events"
	"github.com/dukerupert/kinkeeper/internal/export"
	"github.com/dukerupert/kinkeeper/internal/handler"
	"github.com/dukerupert/kinkeeper/internal/metrics"
	"github.com/dukerupert/kinkeeper/internal/middleware"
	"github.com/dukerupert/kinkeeper/internal/milk"
	"github.com/dukerupert/kinkeeper/internal/push"
	"github.com/dukerupert/kinkeeper/internal/report"
	"github.com/dukerupert/kinkeeper/internal/resolver"
	"github.com/dukerupert/kinkeeper/internal/store"
	ws "github.com/dukerupert/kinkeeper/internal/websocket"
)

// Options carries the optional integrations. Nil fields are disabled.
type Options struct {
	BaseURL     string
	Secret      string
	SessionTTL  time.Duration
	Google      *auth.GoogleProvider
	Categorizer *categorize.Client
	Publisher   events.Publisher
	Sheets      *export.SheetsWriter
	Push        *push.Service
}

type Server struct {
	db             *sql.DB
	hub            *ws.Hub
	originPatterns []string
	authH          *handler.AuthHandler
	sessionH       *handler.SessionHandler
	householdH     *handler.HouseholdHandler
	expenseH       *handler.ExpenseHandler
	milkmanH       *handler.MilkmanHandler
	milkH          *handler.MilkHandler
	reportH        *handler.ReportHandler
	pushH          *handler.PushHandler
	notifier       *push.Notifier
	sessionStore   *store.SessionStore
	userStore      *store.UserStore
	householdStore *store.HouseholdStore
	profileStore   *store.ProfileStore
	cache          *resolver.HouseholdCache
	rateLimiter    *middleware.RateLimiter
	logger         *slog.Logger
}

func New(db *sql.DB, opts Options, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	profileStore := store.NewProfileStore(db)
	householdStore := store.NewHouseholdStore(db)
	sessionStore := store.NewSessionStore(db, opts.SessionTTL)
	expenseStore := store.NewExpenseStore(db)
	milkmanStore := store.NewMilkmanStore(db)
	ledger := milk.NewLedger(store.NewMilkStore(db))
	reports := report.NewService(expenseStore, ledger, milkmanStore)
	cache := resolver.NewHouseholdCache()

	categorizer := opts.Categorizer
	if categorizer == nil {
		categorizer = categorize.NewClient("", "", categorize.WithLogger(logger.With("component", "categorize")))
	}
	pushStore := store.NewPushStore(db)
	var publishers events.Multi
	if opts.Publisher != nil {
		publishers = append(publishers, opts.Publisher)
	}
	var notifier *push.Notifier
	if opts.Push != nil {
		notifier = push.NewNotifier(opts.Push, pushStore, logger.With("component", "push"))
		publishers = append(publishers, notifier)
	}
	fanout := events.NewFanout(hub, publishers, logger.With("component", "events"))

	var origins []string
	if u, err := url.Parse(opts.BaseURL); err == nil && u.Host != "" {
		origins = []string{u.Host}
	}

	authH := handler.NewAuthHandler(userStore, profileStore, sessionStore, cache,
		opts.Google, auth.NewStateSigner(opts.Secret), opts.BaseURL, logger.With("component", "auth"))

	return &Server{
		db:             db,
		hub:            hub,
		originPatterns: origins,
		authH:          authH,
		sessionH:       handler.NewSessionHandler(profileStore, cache, logger.With("component", "resolver")),
		householdH:     handler.NewHouseholdHandler(householdStore, profileStore, userStore, cache, logger.With("component", "household")),
		expenseH:       handler.NewExpenseHandler(expenseStore, categorizer, fanout, logger.With("component", "expense")),
		milkmanH:       handler.NewMilkmanHandler(milkmanStore, fanout, logger.With("component", "milkman")),
		milkH:          handler.NewMilkHandler(ledger, milkmanStore, fanout, logger.With("component", "milk")),
		reportH:        handler.NewReportHandler(reports, opts.Sheets, logger.With("component", "report")),
		pushH:          handler.NewPushHandler(pushStore, opts.Push, logger.With("component", "push")),
		notifier:       notifier,
		sessionStore:   sessionStore,
		userStore:      userStore,
		householdStore: householdStore,
		profileStore:   profileStore,
		cache:          cache,
		rateLimiter:    middleware.NewRateLimiter(),
		logger:         logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Notifier returns the push notifier, or nil when push is disabled. Its Run
// loop must be started for notifications to go out.
func (s *Server) Notifier() *push.Notifier {
	return s.notifier
}

func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /login", s.authH.LoginPage)
	outerMux.HandleFunc("POST /api/auth/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /auth/google", s.authH.GoogleStart)
	outerMux.HandleFunc("GET /auth/google/callback", s.authH.GoogleCallback)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.Handle("GET /metrics", metrics.Handler())

	// The resolver decides for signed-out visitors too.
	loadAuth := middleware.LoadAuth(s.sessionStore, s.userStore)
	outerMux.Handle("GET /{$}", loadAuth(http.HandlerFunc(s.sessionH.Root)))
	outerMux.Handle("GET /api/session", loadAuth(http.HandlerFunc(s.sessionH.Session)))

	// Signed in, household optional
	sessionMux := http.NewServeMux()
	sessionMux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	sessionMux.HandleFunc("POST /api/households", s.householdH.Create)
	sessionMux.HandleFunc("POST /api/households/join", s.rateLimitedHandler(s.householdH.Join))

	// Signed in with a verified household membership
	householdMux := http.NewServeMux()
	s.registerHouseholdRoutes(householdMux)

	requireHousehold := middleware.RequireHousehold(s.householdStore, s.profileStore, s.cache)
	sessionMux.Handle("/", requireHousehold(householdMux))

	requireAuth := middleware.RequireAuth(s.sessionStore, s.userStore)
	outerMux.Handle("/", requireAuth(sessionMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write([]byte(`{"status":"` + status + `"}`))
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.ByIP, 10, time.Minute)
	return rl(h).ServeHTTP
}

func (s *Server) registerHouseholdRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/household", s.householdH.Get)
	mux.HandleFunc("POST /api/household/leave", s.householdH.Leave)

	// Expenses
	mux.HandleFunc("GET /api/expenses", s.expenseH.List)
	mux.HandleFunc("POST /api/expenses", s.expenseH.Create)
	mux.HandleFunc("POST /api/expenses/categorize", s.expenseH.Categorize)
	mux.HandleFunc("GET /api/expenses/{id}", s.expenseH.Get)
	mux.HandleFunc("PUT /api/expenses/{id}", s.expenseH.Update)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.expenseH.Delete)

	// Milkmen
	mux.HandleFunc("GET /api/milkmen", s.milkmanH.List)
	mux.HandleFunc("POST /api/milkmen", s.milkmanH.Create)
	mux.HandleFunc("PUT /api/milkmen/{id}", s.milkmanH.Update)
	mux.HandleFunc("DELETE /api/milkmen/{id}", s.milkmanH.Delete)

	// Milk ledger
	mux.HandleFunc("GET /api/milk", s.milkH.List)
	mux.HandleFunc("GET /api/milk/{date}", s.milkH.Day)
	mux.HandleFunc("PUT /api/milk/{date}", s.milkH.Save)

	// Reports
	mux.HandleFunc("GET /api/reports/summary", s.reportH.Summary)
	mux.HandleFunc("GET /api/reports/export", s.reportH.Export)
	mux.HandleFunc("POST /api/reports/export/sheets", s.reportH.ExportSheets)

	// Push notifications
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.List)
	mux.HandleFunc("POST /api/push/subscriptions", s.pushH.Subscribe)
	mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
	mux.HandleFunc("POST /api/push/test", s.pushH.Test)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.originPatterns, s.logger.With("component", "websocket")))
}
