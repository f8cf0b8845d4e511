package server

import (
	"encoding/json"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"

	"tanalyzer_go/internal/api"
	"tanalyzer_go/internal/discovery"
	"tanalyzer_go/internal/websocket"
	"tanalyzer_go/pkg/logger"
)

// setupRoutes configura todas as rotas do servidor
func (s *Server) setupRoutes() {
	wsHandler := websocket.NewHandler(s.wsHub)

	s.router.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/info", s.infoHandler).Methods(http.MethodGet)

	// registrada antes do Mount para não cair no prefixo /api/
	s.router.HandleFunc("/api/discover", s.discoverHandler).Methods(http.MethodGet)

	s.router.Handle("/ws", wsHandler)
	s.router.HandleFunc("/ws/health", wsHandler.GetHealthHandler())

	apiRouter := api.NewRouter(s.analysisService, s.redisService, "/api")
	apiRouter.Setup()
	apiRouter.Mount(s.router)

	s.handler = api.Chain(api.LoggingMiddleware, api.RecoveryMiddleware, api.CorsMiddleware)(s.router)
}

// healthHandler responde com o status de saúde do servidor
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	redisStatus := "disabled"
	if s.config.Redis.Enabled {
		redisStatus = "offline"
		if s.redisService != nil && s.redisService.IsConnected() {
			redisStatus = "ok"
		}
	}

	storageStatus := "disabled"
	if s.recorder != nil {
		storageStatus = "ok"
		if err := s.recorder.PingContext(r.Context()); err != nil {
			storageStatus = "offline"
		}
	}

	plcStatus := "disabled"
	if s.plcService != nil {
		plcStatus = "ok"
		if s.plcService.LastError() != nil {
			plcStatus = "degraded"
		}
	}

	discoveryStatus := "disabled"
	if s.discoveryService != nil {
		discoveryStatus = "offline"
		if s.discoveryService.IsRunning() {
			discoveryStatus = "ok"
		}
	}

	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now(),
		"analysis":  s.analysisService.Status(),
		"services": map[string]string{
			"redis":     redisStatus,
			"storage":   storageStatus,
			"plc":       plcStatus,
			"websocket": "ok",
			"discovery": discoveryStatus,
		},
	}

	// os destinos são opcionais: o status geral só degrada
	if redisStatus == "offline" || storageStatus == "offline" || plcStatus == "degraded" {
		response["status"] = "degraded"
	}

	writeJSON(w, http.StatusOK, response)
}

// infoHandler retorna informações do servidor e do processo
func (s *Server) infoHandler(w http.ResponseWriter, r *http.Request) {
	info := s.GetServerInfo()
	uptime := time.Since(info.StartTime).Round(time.Second)

	response := map[string]interface{}{
		"name":        discovery.ServiceName,
		"version":     info.Version,
		"ip":          info.IP,
		"port":        info.Port,
		"websocket":   info.WebSocketURL,
		"api":         info.APIURL,
		"startTime":   info.StartTime,
		"uptime":      uptime.String(),
		"connections": info.Connections,
		"inputDir":    s.config.Paths.InputDir,
		"outputDir":   s.config.Paths.OutputDir,
		"process":     processInfo(),
	}

	if summary, ok := s.lastSummary(); ok {
		response["lastSummary"] = summary
	}

	writeJSON(w, http.StatusOK, response)
}

// discoverHandler fornece informações para descoberta manual
func (s *Server) discoverHandler(w http.ResponseWriter, r *http.Request) {
	info := s.GetServerInfo()

	response := map[string]interface{}{
		"name":        discovery.ServiceName,
		"ip":          info.IP,
		"port":        info.Port,
		"wsUrl":       info.WebSocketURL,
		"apiUrl":      info.APIURL,
		"version":     info.Version,
		"wsEndpoint":  "/ws",
		"apiEndpoint": "/api",
	}

	if s.discoveryService != nil {
		response["instanceName"] = s.discoveryService.GetInstanceName()
		response["serviceType"] = discovery.ServiceType
	}

	writeJSON(w, http.StatusOK, response)
}

// processInfo métricas do próprio processo
func processInfo() map[string]interface{} {
	info := map[string]interface{}{
		"pid":        os.Getpid(),
		"goroutines": runtime.NumGoroutine(),
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return info
	}
	if mem, err := proc.MemoryInfo(); err == nil {
		info["rssBytes"] = mem.RSS
	}
	if cpu, err := proc.CPUPercent(); err == nil {
		info["cpuPercent"] = cpu
	}
	return info
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Errorf("Erro ao codificar resposta JSON: %v", err)
	}
}
