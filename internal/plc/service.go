package plc

import (
	"context"
	"fmt"
	"math"
	"sync"

	"tanalyzer_go/internal/config"
	"tanalyzer_go/internal/cycle"
	"tanalyzer_go/internal/models"
	"tanalyzer_go/pkg/logger"
	"tanalyzer_go/pkg/utils"
)

// Layout do resumo no DB (offsets em bytes)
const (
	OffsetCycles      = 0  // DINT
	OffsetDiscarded   = 4  // DINT
	OffsetLines       = 8  // DINT
	OffsetLastMin     = 12 // REAL
	OffsetLastMax     = 16 // REAL
	OffsetLastSamples = 20 // DINT
	OffsetFlags       = 24 // BYTE

	SummarySize = 26
)

// Bits de OffsetFlags
const (
	FlagLastEmpty byte = 1 << 0
)

// BlockWriter escreve bytes num DB do PLC
type BlockWriter interface {
	WriteDataBlock(dbNumber int, startOffset int, data []byte) error
}

// PLCService publica o resumo de cada análise num DB do PLC
type PLCService struct {
	writer BlockWriter
	client *S7Client
	config config.PLCConfig
	mutex  sync.Mutex
	last   *models.Summary
	err    error
}

// NewPLCService cria um novo serviço de PLC usando o cliente S7
func NewPLCService(cfg config.PLCConfig) *PLCService {
	client := NewS7Client(cfg)
	return &PLCService{
		writer: client,
		client: client,
		config: cfg,
	}
}

// NewPLCServiceWithWriter cria o serviço sobre um BlockWriter já pronto
func NewPLCServiceWithWriter(cfg config.PLCConfig, w BlockWriter) *PLCService {
	return &PLCService{
		writer: w,
		config: cfg,
	}
}

// Name identifica o destino nos logs
func (s *PLCService) Name() string {
	return "plc"
}

// Record envia o resumo da análise. Desabilitado por configuração, não faz nada.
func (s *PLCService) Record(ctx context.Context, run *models.Run, ds *cycle.Dataset) error {
	if !s.config.Enabled {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	summary := models.NewSummary(run, ds)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.writer.WriteDataBlock(s.config.DBNumber, 0, EncodeSummary(summary)); err != nil {
		s.err = fmt.Errorf("erro ao enviar resumo ao PLC: %w", err)
		return s.err
	}

	s.last = &summary
	s.err = nil
	logger.Debugf("Resumo da análise %s enviado ao DB%d", run.ID, s.config.DBNumber)
	return nil
}

// LastSummary retorna o último resumo enviado
func (s *PLCService) LastSummary() (models.Summary, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.last == nil {
		return models.Summary{}, false
	}
	return *s.last, true
}

// LastError erro da última escrita, nil se ela teve sucesso
func (s *PLCService) LastError() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.err
}

// Shutdown encerra a conexão com o PLC
func (s *PLCService) Shutdown() {
	if s.client != nil {
		s.client.Disconnect()
	}
}

// EncodeSummary serializa o resumo no layout do DB
func EncodeSummary(summary models.Summary) []byte {
	buf := make([]byte, SummarySize)
	copy(buf[OffsetCycles:], utils.Int32ToBytes(clampInt32(summary.Cycles)))
	copy(buf[OffsetDiscarded:], utils.Int32ToBytes(clampInt32(summary.Discarded)))
	copy(buf[OffsetLines:], utils.Int32ToBytes(clampInt32(summary.Lines)))
	// faixa vazia vai como NaN, nunca como 0..0
	lastMin, lastMax := summary.LastMin, summary.LastMax
	if summary.LastEmpty {
		lastMin = float32(math.NaN())
		lastMax = float32(math.NaN())
		buf[OffsetFlags] |= FlagLastEmpty
	}
	copy(buf[OffsetLastMin:], utils.Float32ToBytes(lastMin))
	copy(buf[OffsetLastMax:], utils.Float32ToBytes(lastMax))
	copy(buf[OffsetLastSamples:], utils.Int32ToBytes(clampInt32(summary.LastSamples)))
	return buf
}

func clampInt32(v int) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(v)
}
