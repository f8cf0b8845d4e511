package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"tanalyzer_go/internal/config"
	"tanalyzer_go/internal/cycle"
	"tanalyzer_go/internal/models"
	"tanalyzer_go/pkg/logger"
	"tanalyzer_go/pkg/utils"
)

// ErrNotFound a chave pedida não existe no Redis
var ErrNotFound = errors.New("não encontrado no Redis")

// ErrOffline o serviço está desabilitado ou sem conexão
var ErrOffline = errors.New("Redis não conectado ou desabilitado")

// Service espelha as análises no Redis. Layout das chaves:
//
//	<prefix>:run:<id>         hash com o estado da análise
//	<prefix>:run:<id>:cycles  lista de ciclos em JSON, na ordem dos índices
//	<prefix>:runs             sorted set de ids pelo horário de início
//	<prefix>:latest_run       id da última análise concluída
//	<prefix>:summary          resumo JSON da última análise
type Service struct {
	client    *redis.Client
	ctx       context.Context
	cancel    context.CancelFunc
	prefix    string
	config    config.RedisConfig
	connected bool
	mutex     sync.RWMutex

	maxRuns int
}

// NewService cria um novo serviço Redis
func NewService(cfg config.RedisConfig, maxRuns int) (*Service, error) {
	if maxRuns <= 0 {
		maxRuns = 50
	}

	if !cfg.Enabled {
		logger.Info("Serviço Redis desabilitado por configuração")
		return &Service{
			config:  cfg,
			prefix:  cfg.Prefix,
			maxRuns: maxRuns,
		}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	service := &Service{
		client:  client,
		ctx:     ctx,
		cancel:  cancel,
		prefix:  cfg.Prefix,
		config:  cfg,
		maxRuns: maxRuns,
	}

	if err := service.TestConnection(); err != nil {
		logger.Warnf("Aviso: %v. O Redis será utilizado em modo offline.", err)
		return service, nil
	}

	return service, nil
}

// Name identifica o destino nos logs
func (s *Service) Name() string {
	return "redis"
}

// TestConnection testa a conexão com o Redis
func (s *Service) TestConnection() error {
	if !s.config.Enabled {
		return fmt.Errorf("serviço Redis desabilitado")
	}

	result, err := s.client.Ping(s.ctx).Result()
	if err != nil {
		s.setConnected(false)
		return fmt.Errorf("erro ao conectar ao Redis: %w", err)
	}

	logger.Infof("Conexão com o Redis estabelecida. Resposta: %s", result)
	s.setConnected(true)
	return nil
}

// pingTimeout limite da nova tentativa de conexão feita em IsConnected
const pingTimeout = 2 * time.Second

// IsConnected verifica se o serviço está conectado. Sem conexão, tenta um
// novo ping antes de desistir.
func (s *Service) IsConnected() bool {
	if !s.config.Enabled || s.client == nil {
		return false
	}

	s.mutex.RLock()
	connected := s.connected
	s.mutex.RUnlock()
	if connected {
		return true
	}

	ctx, cancel := context.WithTimeout(s.ctx, pingTimeout)
	defer cancel()

	if _, err := s.client.Ping(ctx).Result(); err != nil {
		return false
	}

	logger.Info("Conexão com o Redis restabelecida")
	s.setConnected(true)
	return true
}

func (s *Service) setConnected(v bool) {
	s.mutex.Lock()
	s.connected = v
	s.mutex.Unlock()
}

func (s *Service) key(parts ...interface{}) string {
	k := s.prefix
	for _, p := range parts {
		k += fmt.Sprintf(":%v", p)
	}
	return k
}

// Record grava a análise concluída, seus ciclos e o resumo numa única pipeline
func (s *Service) Record(ctx context.Context, run *models.Run, ds *cycle.Dataset) error {
	if !s.config.Enabled {
		return nil
	}
	if !s.IsConnected() {
		logger.Warnf("Redis offline, análise %s não gravada", run.ID)
		return nil
	}

	runJSON, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("erro ao serializar análise %s: %w", run.ID, err)
	}
	summaryJSON, err := json.Marshal(models.NewSummary(run, ds))
	if err != nil {
		return fmt.Errorf("erro ao serializar resumo %s: %w", run.ID, err)
	}

	runKey := s.key("run", run.ID)
	cyclesKey := s.key("run", run.ID, "cycles")

	pipe := s.client.TxPipeline()

	pipe.HSet(ctx, runKey, map[string]interface{}{
		"id":         run.ID,
		"file":       run.File,
		"status":     string(run.Status),
		"lines":      run.Lines,
		"cycles":     run.Cycles,
		"discarded":  run.Discarded,
		"elapsed_ms": run.ElapsedMs,
		"json":       string(runJSON),
	})

	pipe.Del(ctx, cyclesKey)
	entries := ds.Entries()
	if len(entries) > 0 {
		values := make([]interface{}, 0, len(entries))
		for _, entry := range entries {
			data, err := json.Marshal(entry)
			if err != nil {
				return fmt.Errorf("erro ao serializar ciclo %d: %w", entry.Index, err)
			}
			values = append(values, string(data))
		}
		pipe.RPush(ctx, cyclesKey, values...)
	}

	if ttl := s.config.TTL.Duration; ttl > 0 {
		pipe.Expire(ctx, runKey, ttl)
		pipe.Expire(ctx, cyclesKey, ttl)
	}

	// índice limitado aos últimos maxRuns
	runsKey := s.key("runs")
	pipe.ZAdd(ctx, runsKey, &redis.Z{
		Score:  float64(utils.UnixMillis(run.StartedAt)),
		Member: run.ID,
	})
	pipe.ZRemRangeByRank(ctx, runsKey, 0, int64(-1*(s.maxRuns+1)))

	pipe.Set(ctx, s.key("latest_run"), run.ID, 0)
	pipe.Set(ctx, s.key("summary"), string(summaryJSON), 0)

	if _, err := pipe.Exec(ctx); err != nil {
		s.setConnected(false)
		return fmt.Errorf("erro ao escrever análise no Redis: %w", err)
	}

	logger.Debugf("Análise %s gravada no Redis (%d ciclos)", run.ID, len(entries))
	return nil
}

// GetRun lê uma análise gravada
func (s *Service) GetRun(ctx context.Context, id string) (*models.Run, error) {
	if !s.IsConnected() {
		return nil, ErrOffline
	}

	data, err := s.client.HGet(ctx, s.key("run", id), "json").Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("análise %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("erro ao obter análise %s: %w", id, err)
	}

	var run models.Run
	if err := json.Unmarshal([]byte(data), &run); err != nil {
		return nil, fmt.Errorf("erro ao decodificar análise %s: %w", id, err)
	}
	return &run, nil
}

// GetCycles reconstrói o Dataset de uma análise
func (s *Service) GetCycles(ctx context.Context, id string) (*cycle.Dataset, error) {
	if !s.IsConnected() {
		return nil, ErrOffline
	}

	values, err := s.client.LRange(ctx, s.key("run", id, "cycles"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("erro ao obter ciclos da análise %s: %w", id, err)
	}

	ds := cycle.NewDataset()
	for _, v := range values {
		var entry cycle.Entry
		if err := json.Unmarshal([]byte(v), &entry); err != nil {
			return nil, fmt.Errorf("erro ao decodificar ciclo: %w", err)
		}
		if err := ds.Insert(entry); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// GetLatestRun retorna a última análise concluída
func (s *Service) GetLatestRun(ctx context.Context) (*models.Run, error) {
	if !s.IsConnected() {
		return nil, ErrOffline
	}

	id, err := s.client.Get(ctx, s.key("latest_run")).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("última análise: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("erro ao obter última análise: %w", err)
	}
	return s.GetRun(ctx, id)
}

// ListRunIDs retorna os ids indexados, do mais recente para o mais antigo
func (s *Service) ListRunIDs(ctx context.Context, limit int) ([]string, error) {
	if !s.IsConnected() {
		return nil, ErrOffline
	}
	if limit <= 0 {
		limit = s.maxRuns
	}

	ids, err := s.client.ZRevRange(ctx, s.key("runs"), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("erro ao listar análises: %w", err)
	}
	return ids, nil
}

// Shutdown encerra graciosamente o serviço Redis
func (s *Service) Shutdown() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	if s.client != nil {
		if err := s.client.Close(); err != nil {
			logger.Errorf("Erro ao fechar conexão com Redis: %v", err)
		} else {
			logger.Info("Conexão com o Redis fechada")
		}
	}

	s.connected = false
}
