package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"tanalyzer_go/internal/analysis"
	"tanalyzer_go/internal/config"
	"tanalyzer_go/internal/cycle"
	"tanalyzer_go/internal/discovery"
	"tanalyzer_go/internal/models"
	"tanalyzer_go/internal/plc"
	"tanalyzer_go/internal/redis"
	"tanalyzer_go/internal/storage"
	"tanalyzer_go/internal/websocket"
	"tanalyzer_go/pkg/logger"
)

// Version versão exibida no banner e em /info (sobrescrita via -ldflags)
var Version = "1.0.0"

// Server encapsula o servidor HTTP com todos os componentes
type Server struct {
	config           *config.Config
	httpServer       *http.Server
	router           *mux.Router
	handler          http.Handler
	analysisService  *analysis.Service
	redisService     *redis.Service
	recorder         *storage.Recorder
	plcService       *plc.PLCService
	wsHub            *websocket.Hub
	discoveryService *discovery.DiscoveryService
	serverInfo       ServerInfo
}

// ServerInfo contém informações sobre o servidor
type ServerInfo struct {
	IP           string
	Port         int
	StartTime    time.Time
	Connections  int
	Version      string
	WebSocketURL string
	APIURL       string
}

// NewServer cria uma nova instância do servidor
func NewServer(cfg *config.Config) (*Server, error) {
	server := &Server{
		config: cfg,
		router: mux.NewRouter(),
		serverInfo: ServerInfo{
			StartTime: time.Now(),
			Version:   Version,
			Port:      cfg.Server.Port,
		},
	}

	ip, err := discovery.LocalIP()
	if err != nil {
		logger.Warnf("%v, usando localhost", err)
		ip = "localhost"
	}
	server.serverInfo.IP = ip
	server.serverInfo.WebSocketURL = fmt.Sprintf("ws://%s:%d/ws", ip, cfg.Server.Port)
	server.serverInfo.APIURL = fmt.Sprintf("http://%s:%d/api", ip, cfg.Server.Port)

	if err := server.initComponents(); err != nil {
		return nil, err
	}

	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.handler,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     logger.GetLogger(),
	}

	return server, nil
}

// initComponents inicializa todos os componentes do servidor
func (s *Server) initComponents() error {
	s.wsHub = websocket.NewHub()
	go s.wsHub.Run()

	redisService, err := redis.NewService(s.config.Redis, s.config.Server.HistorySize)
	if err != nil {
		return fmt.Errorf("erro ao inicializar serviço Redis: %w", err)
	}
	s.redisService = redisService

	sinks := []analysis.Sink{s.redisService}

	if s.config.Storage.Enabled {
		recorder, err := storage.Open(s.config.Storage.Path)
		if err != nil {
			return fmt.Errorf("erro ao inicializar gravação SQLite: %w", err)
		}
		s.recorder = recorder
		sinks = append(sinks, recorder)
	}

	if s.config.PLC.Enabled {
		s.plcService = plc.NewPLCService(s.config.PLC)
		sinks = append(sinks, s.plcService)
	}

	s.analysisService = analysis.NewService(s.config, sinks...)
	s.analysisService.RegisterRunStartedHandler(s.wsHub.BroadcastRunStarted)
	s.analysisService.RegisterRunFinishedHandler(s.wsHub.BroadcastRunFinished)
	s.analysisService.RegisterProgressHandler(s.wsHub.BroadcastProgress)
	s.analysisService.RegisterCycleHandler(func(runID string, entry cycle.Entry) {
		s.wsHub.BroadcastCycle(runID, entry)
	})
	s.wsHub.SetStatusProvider(func() interface{} {
		return s.analysisService.Status()
	})

	if s.config.Server.Discovery {
		s.discoveryService = discovery.NewDiscoveryService(s.config.Server.Port, Version)
	}

	return nil
}

// Handler retorna o roteador HTTP completo
func (s *Server) Handler() http.Handler {
	return s.handler
}

// AnalysisService serviço de análise usado pelo servidor
func (s *Server) AnalysisService() *analysis.Service {
	return s.analysisService
}

// Start inicia o servidor e bloqueia até o encerramento
func (s *Server) Start() error {
	if s.discoveryService != nil {
		if err := s.discoveryService.Start(); err != nil {
			logger.Warnf("Erro ao iniciar serviço de descoberta: %v", err)
		}
	}

	s.logServerInfo()

	logger.Infof("Iniciando servidor HTTP na porta %d", s.config.Server.Port)
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("erro ao iniciar servidor HTTP: %w", err)
	}

	return nil
}

// Shutdown encerra graciosamente o servidor e todos os serviços
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Iniciando shutdown do servidor")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		logger.Errorf("Erro ao encerrar servidor HTTP: %v", err)
	}

	if s.discoveryService != nil {
		s.discoveryService.Stop()
	}

	// a análise em andamento é cancelada antes de fechar os destinos
	if s.analysisService != nil {
		s.analysisService.Shutdown()
	}

	if s.plcService != nil {
		s.plcService.Shutdown()
	}

	if s.wsHub != nil {
		s.wsHub.Shutdown()
	}

	if s.redisService != nil {
		s.redisService.Shutdown()
	}

	if s.recorder != nil {
		if err := s.recorder.Close(); err != nil {
			logger.Errorf("Erro ao fechar banco SQLite: %v", err)
		}
	}

	logger.Info("Shutdown completo")
	return nil
}

// GetServerInfo retorna informações sobre o servidor
func (s *Server) GetServerInfo() ServerInfo {
	info := s.serverInfo
	info.Connections = s.wsHub.ClientCount()
	return info
}

// lastSummary resumo da última análise concluída, se houver
func (s *Server) lastSummary() (models.Summary, bool) {
	run, err := s.analysisService.LatestRun()
	if err != nil || run.Status != models.RunDone {
		return models.Summary{}, false
	}
	ds, err := s.analysisService.GetDataset(run.ID)
	if err != nil {
		return models.Summary{}, false
	}
	return models.NewSummary(&run, ds), true
}

// logServerInfo exibe informações do servidor no log
func (s *Server) logServerInfo() {
	logger.Info("===============================================")
	logger.Info("              TAnalyzer Server                 ")
	logger.Info("===============================================")
	logger.Infof("Versão: %s", s.serverInfo.Version)
	logger.Infof("Endereço IP: %s", s.serverInfo.IP)
	logger.Infof("Porta HTTP: %d", s.serverInfo.Port)
	logger.Infof("WebSocket URL: %s", s.serverInfo.WebSocketURL)
	logger.Infof("API URL: %s", s.serverInfo.APIURL)
	logger.Infof("Diretório de entrada: %s", s.config.Paths.InputDir)
	if s.discoveryService != nil {
		logger.Infof("mDNS: %s.%s.%s (%s)",
			s.discoveryService.GetInstanceName(),
			discovery.ServiceType,
			discovery.ServiceDomain,
			s.discoveryService.GetServerIP())
	}
	logger.Info("===============================================")
	logger.Info("Servidor pronto para conexões!")
}
