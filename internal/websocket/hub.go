package websocket

import (
	"context"
	"sync"
	"time"

	"tanalyzer_go/internal/cycle"
	"tanalyzer_go/internal/models"
	"tanalyzer_go/pkg/logger"
)

// intervalo mínimo entre mensagens de progresso da mesma análise
const progressThrottle = 50 * time.Millisecond

// StatusFunc fornece o estado atual do servidor para o comando get_status
type StatusFunc func() interface{}

// Hub gerencia todas as conexões WebSocket e distribuição de mensagens
type Hub struct {
	// Clientes registrados
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	commands   chan models.ClientCommand

	mu sync.RWMutex

	// Controle de taxa das mensagens de progresso
	lastProgress     time.Time
	lastProgressLock sync.Mutex

	status     StatusFunc
	statusLock sync.RWMutex

	stats struct {
		totalMessages int64
		totalClients  int64
	}
	statsLock sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub cria uma nova instância do Hub
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		commands:   make(chan models.ClientCommand, 100),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SetStatusProvider define quem responde ao comando get_status
func (h *Hub) SetStatusProvider(fn StatusFunc) {
	h.statusLock.Lock()
	h.status = fn
	h.statusLock.Unlock()
}

// Run inicia o loop principal do hub para gerenciar clientes e mensagens
func (h *Hub) Run() {
	logger.Info("Iniciando WebSocket Hub")

	statsTicker := time.NewTicker(30 * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			logger.Info("Encerrando WebSocket Hub")
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mu.Unlock()

			logger.Infof("Novo cliente WebSocket conectado. ID: %s. Total: %d", client.id, clientCount)

			h.statsLock.Lock()
			h.stats.totalClients++
			h.statsLock.Unlock()

			h.sendWelcome(client)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				logger.Infof("Cliente WebSocket desconectado. ID: %s. Total: %d", client.id, len(h.clients))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.statsLock.Lock()
			h.stats.totalMessages++
			h.statsLock.Unlock()

			h.mu.RLock()
			deadClients := make([]*Client, 0, 4)
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// canal cheio: cliente lento é desconectado
					deadClients = append(deadClients, client)
				}
			}
			h.mu.RUnlock()

			for _, client := range deadClients {
				h.removeClient(client)
			}

		case cmd := <-h.commands:
			h.handleClientCommand(cmd)

		case <-statsTicker.C:
			if !logger.IsDebugEnabled() {
				continue
			}
			h.statsLock.Lock()
			total := h.stats.totalMessages
			h.statsLock.Unlock()

			logger.Debugf("Estatísticas WebSocket: %d clientes, total: %d mensagens", h.ClientCount(), total)
		}
	}
}

// removeClient desregistra um cliente direto do loop do hub
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		logger.Warnf("Cliente WebSocket %s removido por lentidão", client.id)
	}
}

// publish serializa e enfileira para broadcast. Bloqueia até o hub aceitar
// ou ser encerrado.
func (h *Hub) publish(message interface{}) {
	data, err := SerializeMessage(message)
	if err != nil {
		logger.Error("Erro ao serializar mensagem WebSocket", err)
		return
	}

	select {
	case h.broadcast <- data:
	case <-h.ctx.Done():
	}
}

// BroadcastRunStarted anuncia uma nova análise
func (h *Hub) BroadcastRunStarted(run models.Run) {
	h.lastProgressLock.Lock()
	h.lastProgress = time.Time{}
	h.lastProgressLock.Unlock()

	h.publish(NewRunMessage(models.MessageRunStarted, run))
}

// BroadcastProgress envia o progresso, limitado a uma mensagem a cada 50ms.
// A última linha sempre é enviada.
func (h *Hub) BroadcastProgress(runID string, line, total int) {
	h.lastProgressLock.Lock()
	if line < total && time.Since(h.lastProgress) < progressThrottle {
		h.lastProgressLock.Unlock()
		return
	}
	h.lastProgress = time.Now()
	h.lastProgressLock.Unlock()

	h.publish(NewProgressMessage(runID, line, total))
}

// BroadcastCycle envia um ciclo confirmado
func (h *Hub) BroadcastCycle(runID string, entry cycle.Entry) {
	h.publish(NewCycleMessage(runID, entry))
}

// BroadcastRunFinished anuncia o fim de uma análise, com sucesso ou falha
func (h *Hub) BroadcastRunFinished(run models.Run) {
	kind := models.MessageRunFinished
	if run.Status == models.RunFailed {
		kind = models.MessageRunFailed
	}
	h.publish(NewRunMessage(kind, run))
}

// handleClientCommand processa comandos recebidos dos clientes
func (h *Hub) handleClientCommand(cmd models.ClientCommand) {
	logger.Debugf("Comando recebido do cliente %s: %s", cmd.ClientID, cmd.Command)

	client := h.getClientByID(cmd.ClientID)
	if client == nil {
		return
	}

	switch cmd.Command {
	case "get_status":
		h.statusLock.RLock()
		fn := h.status
		h.statusLock.RUnlock()

		msg := models.WebSocketMessage{
			Type:      models.MessageStatus,
			Timestamp: time.Now(),
		}
		if fn != nil {
			msg.Data = fn()
		}
		h.sendTo(client, msg)
	default:
		logger.Warnf("Comando desconhecido: %s", cmd.Command)
		h.sendTo(client, NewErrorMessage("Comando desconhecido: "+cmd.Command, "unknown_command"))
	}
}

// sendTo envia uma mensagem apenas para um cliente
func (h *Hub) sendTo(client *Client, message interface{}) {
	data, err := SerializeMessage(message)
	if err != nil {
		logger.Error("Erro ao serializar mensagem WebSocket", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

// sendWelcome envia a mensagem de boas-vindas para um novo cliente
func (h *Hub) sendWelcome(client *Client) {
	h.sendTo(client, models.WebSocketMessage{
		Type:      models.MessageWelcome,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"message":  "Conectado ao servidor TAnalyzer",
			"clientId": client.id,
		},
	})
}

// Shutdown encerra graciosamente o hub
func (h *Hub) Shutdown() {
	h.cancel()
	time.Sleep(100 * time.Millisecond)
}

// closeAllClients fecha todas as conexões dos clientes
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	logger.Info("Fechando todas as conexões de clientes WebSocket")
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// ClientCount retorna o número atual de clientes conectados
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// getClientByID retorna um cliente pelo seu ID
func (h *Hub) getClientByID(clientID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.id == clientID {
			return client
		}
	}
	return nil
}
