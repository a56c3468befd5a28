package stubapi

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"faydo/pkg/telemetry"
	"faydo/services/portal/internal/account"
	"faydo/services/portal/internal/apiclient"
)

const (
	defaultAccessTTL  = 5 * time.Minute
	defaultRefreshTTL = 24 * time.Hour

	// devOTPCode is the code "sent" for every OTP request. The stub never
	// talks to an SMS gateway.
	devOTPCode = "12345"
)

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "faydo_stubapi_requests_total",
	Help: "Stub API requests by method.",
}, []string{"method"})

// userRecord is one seeded or registered account.
type userRecord struct {
	User     account.RemoteUser
	Profile  *account.RemoteProfile
	Password string
}

// Server is an in-memory stand-in for the remote Faydo API. It exists for
// local development and end-to-end tests of the portal; nothing survives a
// restart.
type Server struct {
	logger *log.Logger
	tokens *tokenStore

	mu       sync.Mutex
	users    map[string]*userRecord
	nextID   int64
	otps     map[string]string
	packages []apiclient.Package
	comments map[int64][]apiclient.Comment
	likes    map[int64]map[string]bool
	nextCID  int64
}

// New builds a Server seeded with a handful of accounts and packages.
func New(logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	s := &Server{
		logger:   logger,
		tokens:   newTokenStore(defaultAccessTTL, defaultRefreshTTL),
		users:    make(map[string]*userRecord),
		nextID:   1,
		otps:     make(map[string]string),
		comments: make(map[int64][]apiclient.Comment),
		likes:    make(map[int64]map[string]bool),
		nextCID:  1,
	}
	s.seed()
	return s
}

// Routes constructs the chi router for every stub endpoint. Paths mirror the
// production API so the portal client needs no special casing.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(telemetry.Middleware("faydo-stubapi", s.logger))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestsTotal.WithLabelValues(r.Method).Inc()
			next.ServeHTTP(w, r)
		})
	})

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/accounts/auth", func(r chi.Router) {
		r.Post("/login/", s.handleLogin)
		r.Post("/register/", s.handleRegisterCustomer)
		r.Post("/register/business/", s.handleRegisterBusiness)
		r.Post("/refresh/", s.handleRefresh)
		r.Post("/logout/", s.handleLogout)
		r.Post("/send-otp/", s.handleSendOTP)
		r.Post("/verify-otp/", s.handleVerifyOTP)
		r.With(s.requireAccess).Get("/profile/", s.handleProfile)
	})

	r.Route("/packages", func(r chi.Router) {
		r.Use(s.requireAccess)
		r.Get("/packages/", s.handleListPackages)
		r.Get("/packages/{id}/", s.handleGetPackage)
		r.Get("/comments/", s.handleListComments)
		r.Post("/comments/", s.handleCreateComment)
		r.Post("/comments/{id}/like/", s.handleLikeComment)
	})

	return r
}

// ExpireAccessTokens invalidates every access token for username so the next
// authenticated call is forced through the refresh path.
func (s *Server) ExpireAccessTokens(username string) {
	s.tokens.expireAccess(username)
}

type contextKey string

const usernameKey contextKey = "stubapi.username"

// requireAccess resolves the bearer token and stashes the username in the
// request context.
func (s *Server) requireAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		username, ok := s.tokens.userForAccess(token)
		if !ok {
			respondError(w, http.StatusUnauthorized, "Given token not valid for any token type")
			return
		}
		ctx := contextWithUsername(r.Context(), username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, map[string]string{"detail": detail})
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(out); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

func (s *Server) seed() {
	complete := true
	s.addUser(&userRecord{
		User: account.RemoteUser{
			Username:    "maryam",
			Email:       "maryam@example.com",
			FirstName:   "Maryam",
			LastName:    "Saei",
			PhoneNumber: "09120000001",
			Role:        string(account.RoleCustomer),
		},
		Profile: &account.RemoteProfile{
			Gender:            "female",
			BirthDate:         "1995-02-11",
			City:              &account.RemoteCity{ID: 1, Name: "Tehran"},
			IsProfileComplete: &complete,
		},
		Password: "faydo1234",
	})

	s.addUser(&userRecord{
		User: account.RemoteUser{
			Username:    "sina",
			Email:       "sina@example.com",
			PhoneNumber: "09120000002",
			Role:        string(account.RoleCustomer),
		},
		Profile:  &account.RemoteProfile{},
		Password: "faydo1234",
	})

	s.addUser(&userRecord{
		User: account.RemoteUser{
			Username:    "golestan",
			Email:       "golestan@example.com",
			PhoneNumber: "09120000003",
			Role:        string(account.RoleBusiness),
		},
		Profile: &account.RemoteProfile{
			Name:          "Golestan Restaurant",
			BusinessPhone: "02188880000",
			City:          &account.RemoteCity{ID: 1, Name: "Tehran"},
			Category:      &account.RemoteCategory{ID: 3, Name: "restaurant"},
		},
		Password: "faydo1234",
	})

	s.addUser(&userRecord{
		User: account.RemoteUser{
			Username:    "admin",
			Email:       "admin@faydo.ir",
			FirstName:   "Site",
			LastName:    "Admin",
			PhoneNumber: "09120000004",
			Role:        string(account.RoleAdmin),
		},
		Password: "faydo1234",
	})

	s.packages = []apiclient.Package{
		{ID: 1, BusinessName: "Golestan Restaurant", IsActive: true, Status: "active", StartDate: "2025-01-01", EndDate: "2025-12-31"},
		{ID: 2, BusinessName: "Cafe Naderi", IsActive: false, Status: "pending", StartDate: "2025-06-01"},
	}
	s.comments[1] = []apiclient.Comment{
		{ID: s.nextCommentID(), Text: "Great discounts", UserName: "maryam", CreatedAt: "2025-03-01T10:00:00Z"},
	}
}

// addUser assigns the next id and indexes the record by username.
func (s *Server) addUser(rec *userRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.User.ID = s.nextID
	s.nextID++
	s.users[rec.User.Username] = rec
}

func (s *Server) lookup(username string) (*userRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[username]
	return rec, ok
}

func (s *Server) nextCommentID() int64 {
	id := s.nextCID
	s.nextCID++
	return id
}
