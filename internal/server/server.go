package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/thusconnect/apiserver/config"
	"github.com/thusconnect/apiserver/internal/auth"
	"github.com/thusconnect/apiserver/internal/db"
	"github.com/thusconnect/apiserver/internal/guard"
	"github.com/thusconnect/apiserver/internal/handlers"
	"github.com/thusconnect/apiserver/internal/mq"
	"github.com/thusconnect/apiserver/internal/notify"
	"github.com/thusconnect/apiserver/internal/services"
	"github.com/thusconnect/apiserver/internal/session"
	"github.com/thusconnect/apiserver/internal/storage"
	"github.com/thusconnect/apiserver/internal/store"
	"github.com/thusconnect/apiserver/types"
)

// Server wraps the HTTP server and its external resources.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
}

// New constructs a Server: identity directory on Postgres, session state
// on the configured KV backend, notifications on the configured broker,
// and the guarded route table on top.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	sessionKV, err := openSessionKV(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	queue, err := openNotifyQueue(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	jwtSecret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if jwtSecret == "" {
		_ = dbConn.Close()
		_ = queue.Close()
		return nil, errors.New("JWT_SECRET is required")
	}

	directory := services.NewDirectoryService(store.NewIdentityRepository(dbConn))
	notifier := notify.New(queue, cfg.Notify.Channel)
	sessions := session.NewManager(func(sid string) *session.Store {
		return session.NewStore(sessionKV, "sessions/"+sid+"/")
	})
	authService := auth.NewService(sessions, directory, notifier, jwtSecret)
	authGuard := handlers.NewGuard(sessions, authService.Secret())

	router := NewRouter(authService, authGuard)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		queue:      queue,
	}, nil
}

// NewRouter assembles the route table: public auth routes, the three
// role-guarded view subtrees, and the catch-all not-found view.
func NewRouter(authService *auth.Service, authGuard *handlers.Guard) *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)

	router.Get("/healthz", handlers.Healthz)
	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, guard.LoginPath, http.StatusTemporaryRedirect)
	})
	router.Get(guard.LoginPath, handlers.PublicView("login"))
	router.Get("/register", handlers.PublicView("register"))

	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authService, authGuard)
	})

	router.Route("/driver", func(r chi.Router) {
		r.Use(authGuard.Require(types.RoleDriver))
		handlers.DriverRouter(r)
	})
	router.Route("/technician", func(r chi.Router) {
		r.Use(authGuard.Require(types.RoleTechnician))
		handlers.TechnicianRouter(r)
	})
	router.Route("/admin", func(r chi.Router) {
		r.Use(authGuard.Require(types.RoleAdmin))
		handlers.AdminRouter(r)
	})

	router.NotFound(handlers.NotFound)
	return router
}

func openSessionKV(ctx context.Context, cfg config.Config) (*storage.Store, error) {
	var backend storage.KV
	switch cfg.Session.Backend {
	case "file", "":
		fileKV, err := storage.NewFileKV(cfg.Session.Dir)
		if err != nil {
			return nil, err
		}
		backend = fileKV
	case "minio":
		minioKV, err := storage.NewMinioKV(cfg.Minio)
		if err != nil {
			return nil, err
		}
		backend = minioKV
	case "gcs":
		gcsKV, err := storage.NewGCSKV(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		backend = gcsKV
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}

	kv := storage.NewStore(backend)
	if err := kv.Ensure(ctx); err != nil {
		return nil, err
	}
	return kv, nil
}

func openNotifyQueue(ctx context.Context, cfg config.Config) (*mq.MQ, error) {
	switch cfg.Notify.Backend {
	case "none", "":
		return mq.New(mq.NoopBackend{}), nil
	case "rabbitmq":
		client, err := mq.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return mq.New(client), nil
	case "pubsub":
		client, err := mq.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return mq.New(client), nil
	default:
		return nil, fmt.Errorf("unknown notify backend %q", cfg.Notify.Backend)
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.queue != nil {
		_ = s.queue.Close()
	}
	return s.httpServer.Close()
}
