// Package discovery anuncia o servidor de análise na rede local via mDNS.
package discovery

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/grandcat/zeroconf"

	"tanalyzer_go/pkg/logger"
)

const (
	// ServiceName nome exibido nos metadados
	ServiceName = "TAnalyzer"

	// ServiceDomain é o domínio para descoberta na rede
	ServiceDomain = "local."

	// ServiceType define o tipo de serviço
	ServiceType = "_tanalyzer._tcp"
)

// ErrNoAddress nenhuma interface IPv4 fora do loopback
var ErrNoAddress = errors.New("não foi possível determinar o endereço IP local")

// DiscoveryService gerencia a descoberta do serviço na rede local
type DiscoveryService struct {
	server       *zeroconf.Server
	mutex        sync.Mutex
	instanceName string
	port         int
	version      string
	running      bool
	serverIP     string
}

// NewDiscoveryService cria um novo serviço de descoberta
func NewDiscoveryService(port int, version string) *DiscoveryService {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "host"
	}

	return &DiscoveryService{
		port:         port,
		version:      version,
		instanceName: InstanceName(hostname),
	}
}

// InstanceName nome da instância mDNS para um host
func InstanceName(hostname string) string {
	return fmt.Sprintf("%s-tanalyzer", hostname)
}

// TXTRecords metadados anunciados junto com o serviço
func TXTRecords(version, ip string, port int) []string {
	return []string{
		"version=" + version,
		"ip=" + ip,
		"name=" + ServiceName,
		"ws=" + fmt.Sprintf("ws://%s:%d/ws", ip, port),
		"api=" + fmt.Sprintf("http://%s:%d/api", ip, port),
	}
}

// Start inicia o serviço de descoberta
func (s *DiscoveryService) Start() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.running {
		return nil
	}

	ip, err := LocalIP()
	if err != nil {
		return err
	}
	s.serverIP = ip

	server, err := zeroconf.Register(
		s.instanceName,
		ServiceType,
		ServiceDomain,
		s.port,
		TXTRecords(s.version, ip, s.port),
		nil, // todas as interfaces
	)
	if err != nil {
		return fmt.Errorf("erro ao registrar serviço de descoberta: %w", err)
	}

	s.server = server
	s.running = true

	logger.Infof("Serviço de descoberta iniciado em %s:%d (mDNS: %s.%s)",
		ip, s.port, s.instanceName, ServiceType)

	return nil
}

// Stop para o serviço de descoberta
func (s *DiscoveryService) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.running {
		return
	}

	if s.server != nil {
		s.server.Shutdown()
		s.server = nil
	}
	s.running = false

	logger.Info("Serviço de descoberta parado")
}

// GetServerIP retorna o IP anunciado
func (s *DiscoveryService) GetServerIP() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.serverIP
}

// GetInstanceName retorna o nome da instância do serviço
func (s *DiscoveryService) GetInstanceName() string {
	return s.instanceName
}

// IsRunning verifica se o serviço está em execução
func (s *DiscoveryService) IsRunning() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.running
}

// LocalIP retorna o primeiro IPv4 fora do loopback
func LocalIP() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}

	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				return ipnet.IP.String(), nil
			}
		}
	}

	return "", ErrNoAddress
}
