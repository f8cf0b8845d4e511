package websocket

import (
	"encoding/json"
	"time"

	"tanalyzer_go/internal/cycle"
	"tanalyzer_go/internal/models"
	"tanalyzer_go/pkg/utils"
)

// NewRunMessage cria uma mensagem de ciclo de vida da análise
// (run_started, run_finished, run_failed)
func NewRunMessage(kind string, run models.Run) *models.RunMessage {
	msg := &models.RunMessage{
		WebSocketMessage: models.WebSocketMessage{
			Type:      kind,
			Timestamp: time.Now(),
		},
		Run: run,
	}
	if kind == models.MessageRunFailed {
		msg.Error = run.Error
	}
	return msg
}

// NewProgressMessage cria uma mensagem de progresso
func NewProgressMessage(runID string, line, total int) *models.ProgressMessage {
	percent := 100.0
	if total > 0 {
		percent = float64(line) * 100 / float64(total)
	}
	return &models.ProgressMessage{
		WebSocketMessage: models.WebSocketMessage{
			Type:      models.MessageProgress,
			Timestamp: time.Now(),
		},
		RunID:   runID,
		Line:    line,
		Total:   total,
		Percent: percent,
	}
}

// NewCycleMessage cria uma mensagem de ciclo confirmado
func NewCycleMessage(runID string, entry cycle.Entry) *models.CycleMessage {
	return &models.CycleMessage{
		WebSocketMessage: models.WebSocketMessage{
			Type:      models.MessageCycle,
			Timestamp: time.Now(),
		},
		RunID: runID,
		Cycle: entry,
	}
}

// NewErrorMessage cria uma nova mensagem de erro
func NewErrorMessage(message string, errorCode string) models.WebSocketMessage {
	return models.WebSocketMessage{
		Type:      models.MessageError,
		Timestamp: time.Now(),
		Error:     message,
		Data: map[string]string{
			"code": errorCode,
		},
	}
}

// CreatePongResponse cria uma resposta para um ping do cliente
func CreatePongResponse(pingTime int64) *models.PongMessage {
	return &models.PongMessage{
		WebSocketMessage: models.WebSocketMessage{
			Type:      models.MessagePong,
			Timestamp: time.Now(),
		},
		Time:       pingTime,
		ServerTime: utils.UnixMillis(time.Now()),
	}
}

// SerializeMessage serializa uma mensagem para JSON
func SerializeMessage(message interface{}) ([]byte, error) {
	return json.Marshal(message)
}

// ParseClientCommand analisa um comando recebido do cliente
func ParseClientCommand(data []byte) (models.CommandMessage, error) {
	var command models.CommandMessage
	err := json.Unmarshal(data, &command)
	return command, err
}
