package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/date-night/backend/internal/handler/plan"
	"github.com/zhouzirui/date-night/backend/internal/handler/watch"
	"github.com/zhouzirui/date-night/backend/internal/logger"
	middlewarePkg "github.com/zhouzirui/date-night/backend/internal/middleware"
	"github.com/zhouzirui/date-night/backend/internal/service/pairing"
	"github.com/zhouzirui/date-night/backend/pkg/utils"
)

// NewRouter wires HTTP routes to the pairing service. watchPoll is how often
// watch connections re-read the store.
func NewRouter(svc *pairing.Service, log *logger.Logger, watchPoll time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	plan.New(svc, log).RegisterRoutes(r)
	watch.New(svc, log).WithPollInterval(watchPoll).RegisterRoutes(r)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// 未知路径与不支持的方法统一返回 404
	notFound := func(w http.ResponseWriter, r *http.Request) {
		utils.RespondError(w, http.StatusNotFound, "Not Found")
	}
	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	return r
}
