package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cfg "github.com/example/studentapi/internal/config"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	_ "modernc.org/sqlite"
)

// App wires the token subsystem and the student registry together.
type App struct {
	cfg      *cfg.Config
	Students StudentStore
	Users    *UserDirectory

	store TokenStore
	local *LocalAuthority
	// authority is what request handling talks to: the local authority, or
	// the remote one wrapped with fallback when centralized mode is on.
	authority TokenAuthority

	rateLimiter *RateLimiter
	validate    *validator.Validate

	storageType string
	startedAt   time.Time
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("write json: %v", err)
	}
}

func newStudentStore(c *cfg.Config) (StudentStore, error) {
	switch c.DBAdapter {
	case "sqlite":
		return NewSQLiteStudentStore(c.SQLiteFile)
	case "postgres":
		logger.Info("Applying database migrations...")
		if err := ApplyMigrations("./migrations", c.PostgresDSN); err != nil {
			logger.Warnf("migrations warning: %v", err)
		}
		return NewPostgresStudentStore(c.PostgresDSN)
	case "memory":
		logger.Warn("Using in-memory student store (not recommended for production)")
		return NewMemoryStudentStore(), nil
	default:
		logger.Fatalf("unsupported DB_ADAPTER: %s (supported: postgres, sqlite, memory)", c.DBAdapter)
		return nil, nil
	}
}

// newTokenStore selects the token store backend. With persistence enabled it
// requires a reachable Redis unless the in-process fallback is allowed.
func newTokenStore(c *cfg.Config) (TokenStore, string) {
	if !c.PersistentStore {
		return NewMemoryTokenStore(), "IN_MEMORY"
	}
	store := NewRedisTokenStore(c.RedisAddr, c.RedisPassword, c.RedisDB)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if store.Ping(ctx) {
		logger.Infof("Connected to Redis token store at %s", c.RedisAddr)
		return store, "REDIS"
	}
	if c.StoreFallback {
		logger.Warnf("Redis unreachable at %s, falling back to in-process token store", c.RedisAddr)
		return NewMemoryTokenStore(), "IN_MEMORY"
	}
	logger.Fatalf("Redis unreachable at %s and TOKEN_STORE_FALLBACK is disabled", c.RedisAddr)
	return nil, ""
}

func (a *App) routes() *mux.Router {
	r := mux.NewRouter()

	r.Use(SecurityHeaders)
	r.Use(a.Logging)
	r.Use(a.CORS)
	r.Use(a.JWTAuth)

	// Health check endpoints (no auth required)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
	r.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ready := a.store.Ping(r.Context())
		if p, ok := a.Students.(interface{ ping() bool }); ok {
			ready = ready && p.ping()
		}
		if !ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"ready": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ready": true})
	}).Methods("GET")

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.Use(a.RateLimit)

	// Authentication endpoints
	v1.HandleFunc("/auth/login", a.HandleLogin).Methods("POST")
	v1.HandleFunc("/auth/logout", a.HandleLogout).Methods("POST")
	v1.HandleFunc("/auth/validate", a.HandleValidate).Methods("POST")

	// Centralized JWT service surface
	jwt := v1.PathPrefix("/jwt").Subrouter()
	jwt.HandleFunc("/generate", a.HandleJWTGenerate).Methods("POST")
	jwt.HandleFunc("/validate", a.HandleJWTValidate).Methods("POST")
	jwt.HandleFunc("/validate", a.HandleJWTValidateHeader).Methods("GET")
	jwt.HandleFunc("/revoke", a.HandleJWTRevoke).Methods("POST")
	jwt.HandleFunc("/status", a.HandleJWTStatus).Methods("GET")
	jwt.HandleFunc("/user/{username}/stats", a.HandleJWTUserStats).Methods("GET")

	// Student registry (authenticated; delete is admin-only)
	students := v1.PathPrefix("/students").Subrouter()
	students.Use(RequireAuth)
	students.HandleFunc("", a.HandleListStudents).Methods("GET")
	students.HandleFunc("", a.HandleCreateStudent).Methods("POST")
	students.HandleFunc("/{id}", a.HandleGetStudent).Methods("GET")
	students.HandleFunc("/{id}", a.HandleUpdateStudent).Methods("PUT")
	students.Handle("/{id}", RequireRole("ADMIN")(http.HandlerFunc(a.HandleDeleteStudent))).Methods("DELETE")

	return r
}

func main() {
	c, err := cfg.New()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	initLogger(c.LogLevel)

	students, err := newStudentStore(c)
	if err != nil {
		logger.Fatalf("student store init: %v", err)
	}

	store, storageType := newTokenStore(c)
	codec := NewTokenCodec([]byte(c.JwtSecret), c.JwtTTL, c.JwtIssuer)
	local := NewLocalAuthority(codec, store)

	var authority TokenAuthority = local
	if c.JWTService.Enabled {
		remote := NewRemoteAuthority(c.JWTService.BaseURL, c.JWTService.MaxRetries, c.JWTService.RetryBase, c.JWTService.RetryCap)
		authority = NewFallbackAuthority(remote, local, c.JWTService.EnableFallback)
		logger.Infof("Centralized JWT service enabled at %s (fallback: %v)", c.JWTService.BaseURL, c.JWTService.EnableFallback)
	}

	app := &App{
		cfg:         c,
		Students:    students,
		Users:       NewUserDirectory(),
		store:       store,
		local:       local,
		authority:   authority,
		rateLimiter: NewRateLimiter(c.RateLimitPerMinute),
		validate:    validator.New(),
		storageType: storageType,
		startedAt:   time.Now(),
	}

	srv := &http.Server{
		Handler:      app.routes(),
		Addr:         ":" + c.Port,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Starting server on %s", c.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if closer, ok := app.Students.(interface{ close() error }); ok {
		_ = closer.close()
	}
	if closer, ok := app.store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("shutdown failed: %+v", err)
	}
	logger.Info("Server exited properly")
}
