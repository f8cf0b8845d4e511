package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"tanalyzer_go/internal/analysis"
	"tanalyzer_go/internal/redis"
	"tanalyzer_go/pkg/logger"
)

// Router gerencia as rotas da API
type Router struct {
	handler     *Handler
	router      *mux.Router
	basePath    string
	middlewares []Middleware
}

// NewRouter cria um novo router para a API
func NewRouter(analysisService *analysis.Service, redisService *redis.Service, basePath string) *Router {
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	basePath = strings.TrimSuffix(basePath, "/")

	return &Router{
		handler:  NewHandler(analysisService, redisService),
		router:   mux.NewRouter(),
		basePath: basePath,
		middlewares: []Middleware{
			RecoveryMiddleware,
			CorsMiddleware,
		},
	}
}

// Setup configura todas as rotas
func (r *Router) Setup() {
	api := r.router.PathPrefix(r.basePath).Subrouter()

	api.HandleFunc("/runs", r.handler.StartRun).Methods(http.MethodPost)
	api.HandleFunc("/runs", r.handler.ListRuns).Methods(http.MethodGet)
	// latest antes de {id}
	api.HandleFunc("/runs/latest", r.handler.GetLatestRun).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}", r.handler.GetRun).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}/cycles", r.handler.GetCycles).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}/output", r.handler.GetOutput).Methods(http.MethodGet)
	api.HandleFunc("/files", r.handler.ListFiles).Methods(http.MethodGet)
	api.HandleFunc("/status", r.handler.GetStatus).Methods(http.MethodGet)

	r.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.handler.respondWithError(w, http.StatusMethodNotAllowed, "Método não permitido")
	})

	logger.Infof("API configurada com base path: %s", r.basePath)
}

// Mount registra a API em outro router, sob o base path
func (r *Router) Mount(parent *mux.Router) {
	parent.PathPrefix(r.basePath + "/").Handler(r.Handler())
}

// Handler retorna o handler HTTP final com todos os middlewares aplicados
func (r *Router) Handler() http.Handler {
	return r.applyMiddleware(r.router)
}

// applyMiddleware aplica todos os middlewares ao handler
func (r *Router) applyMiddleware(handler http.Handler) http.Handler {
	if len(r.middlewares) == 0 {
		return handler
	}

	return Chain(r.middlewares...)(handler)
}

// ServeHTTP implementa a interface http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.Handler().ServeHTTP(w, req)
}
