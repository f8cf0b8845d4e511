package models

import (
	"time"

	"tanalyzer_go/internal/cycle"
)

// Tipos de mensagem enviados pelo servidor
const (
	MessageWelcome     = "welcome"
	MessageRunStarted  = "run_started"
	MessageProgress    = "progress"
	MessageCycle       = "cycle"
	MessageRunFinished = "run_finished"
	MessageRunFailed   = "run_failed"
	MessageStatus      = "status"
	MessagePong        = "pong"
	MessageError       = "error"
)

// WebSocketMessage representa a estrutura base de todas as mensagens WebSocket
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// RunMessage início, fim ou falha de uma análise
type RunMessage struct {
	WebSocketMessage
	Run Run `json:"run"`
}

// ProgressMessage progresso da leitura do arquivo
type ProgressMessage struct {
	WebSocketMessage
	RunID   string  `json:"runId"`
	Line    int     `json:"line"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

// CycleMessage ciclo confirmado durante a análise
type CycleMessage struct {
	WebSocketMessage
	RunID string      `json:"runId"`
	Cycle cycle.Entry `json:"cycle"`
}

// CommandMessage é uma mensagem de comando do cliente para o servidor
type CommandMessage struct {
	Type   string      `json:"type"`             // "ping", "get_status"
	Params interface{} `json:"params,omitempty"` // Parâmetros adicionais
	ID     string      `json:"id,omitempty"`     // ID opcional para correlacionar solicitações/respostas
}

// ClientCommand representa um comando enviado pelo cliente
type ClientCommand struct {
	Command  string      `json:"command"`
	Params   interface{} `json:"params,omitempty"`
	ClientID string      `json:"-"`
}

// PongMessage representa um pong enviado pelo servidor
type PongMessage struct {
	WebSocketMessage
	Time       int64 `json:"time"`       // Timestamp original do ping
	ServerTime int64 `json:"serverTime"` // Timestamp do servidor em milissegundos
}
