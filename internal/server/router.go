package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ooXavier/moowapp-server/internal/livefeed"
	"github.com/ooXavier/moowapp-server/internal/query"
)

var startTime = time.Now()

// NewRouter wires the stats query endpoints, the admin endpoints, the
// catch-all 404 route, and the ambient /healthz and /storage/usage
// endpoints into a gorilla/mux router, grounded on
// pkg/server/handlers.go's SetupRoutes. hub is nil when the live feed is
// disabled.
func NewRouter(handler *query.Handler, monitor *StorageMonitor, hub *livefeed.Hub) *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)

	router.HandleFunc("/stats_app_intra", handler.Intra).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc("/stats_app_day", handler.Day).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc("/stats_app_week", handler.Week).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc("/stats_app_month", handler.Month).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc("/stats_modules_list", handler.ModulesList).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc("/stats_admin_do_mergemodules", handler.AdminDoMergeModules).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc("/stats_admin_list_mergemodules", handler.AdminListMergeModules).Methods(http.MethodGet, http.MethodPost)

	router.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/storage/usage", handleStorageUsage(monitor)).Methods(http.MethodGet)

	if hub != nil {
		router.HandleFunc("/ws/live", livefeed.HandleWebSocket(hub)).Methods(http.MethodGet)
	}

	router.NotFoundHandler = http.HandlerFunc(query.NotFound)

	return router
}

// corsMiddleware matches the original moowapp_server.cpp's response
// headers: every endpoint, not just the stats ones, allows any origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(healthResponse{
		Status: "ok",
		Uptime: time.Since(startTime).String(),
	})
}

func handleStorageUsage(monitor *StorageMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		usage, err := monitor.Usage()
		if err != nil {
			http.Error(w, "failed to calculate storage usage", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(usage)
	}
}
