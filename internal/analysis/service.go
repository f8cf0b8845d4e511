// Package analysis executa a análise de um arquivo de log: contagem de
// linhas, agregação dos ciclos, gravação do .trd e envio para os destinos
// configurados (Redis, SQLite, PLC).
package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/process"

	"tanalyzer_go/internal/config"
	"tanalyzer_go/internal/cycle"
	"tanalyzer_go/internal/models"
	"tanalyzer_go/internal/output"
	"tanalyzer_go/pkg/logger"
	"tanalyzer_go/pkg/utils"
)

var (
	// ErrBusy já existe uma análise em execução
	ErrBusy = errors.New("análise em andamento")

	// ErrNotFound análise desconhecida
	ErrNotFound = errors.New("análise não encontrada")
)

// Sink recebe cada análise concluída com sucesso
type Sink interface {
	Name() string
	Record(ctx context.Context, run *models.Run, ds *cycle.Dataset) error
}

// RunHandler recebe o início e o fim de cada análise
type RunHandler func(run models.Run)

// ProgressHandler recebe o progresso da leitura
type ProgressHandler func(runID string, line, total int)

// CycleHandler recebe cada ciclo confirmado
type CycleHandler func(runID string, entry cycle.Entry)

// OutputProgressHandler recebe o progresso da escrita do .trd
type OutputProgressHandler func(runID string, written, total int)

// Service executa análises, uma de cada vez, e guarda um histórico limitado
type Service struct {
	analysis config.AnalysisConfig
	paths    config.PathsConfig
	sinks    []Sink

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mutex    sync.RWMutex
	current  *models.Run
	history  []*models.Run
	datasets map[string]*cycle.Dataset
	maxRuns  int

	handlersLock     sync.RWMutex
	startedHandlers  []RunHandler
	finishedHandlers []RunHandler
	progressHandlers []ProgressHandler
	cycleHandlers    []CycleHandler
	outputHandlers   []OutputProgressHandler
}

// NewService cria o serviço de análise
func NewService(cfg *config.Config, sinks ...Sink) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	maxRuns := cfg.Server.HistorySize
	if maxRuns <= 0 {
		maxRuns = 50
	}

	return &Service{
		analysis: cfg.Analysis,
		paths:    cfg.Paths,
		sinks:    sinks,
		ctx:      ctx,
		cancel:   cancel,
		datasets: make(map[string]*cycle.Dataset),
		maxRuns:  maxRuns,
	}
}

// RegisterRunStartedHandler registra uma função chamada no início de cada análise
func (s *Service) RegisterRunStartedHandler(handler RunHandler) {
	s.handlersLock.Lock()
	defer s.handlersLock.Unlock()
	s.startedHandlers = append(s.startedHandlers, handler)
}

// RegisterRunFinishedHandler registra uma função chamada ao fim de cada análise
func (s *Service) RegisterRunFinishedHandler(handler RunHandler) {
	s.handlersLock.Lock()
	defer s.handlersLock.Unlock()
	s.finishedHandlers = append(s.finishedHandlers, handler)
}

// RegisterProgressHandler registra uma função para o progresso da leitura
func (s *Service) RegisterProgressHandler(handler ProgressHandler) {
	s.handlersLock.Lock()
	defer s.handlersLock.Unlock()
	s.progressHandlers = append(s.progressHandlers, handler)
}

// RegisterCycleHandler registra uma função para cada ciclo confirmado
func (s *Service) RegisterCycleHandler(handler CycleHandler) {
	s.handlersLock.Lock()
	defer s.handlersLock.Unlock()
	s.cycleHandlers = append(s.cycleHandlers, handler)
}

// RegisterOutputProgressHandler registra uma função para o progresso da escrita
func (s *Service) RegisterOutputProgressHandler(handler OutputProgressHandler) {
	s.handlersLock.Lock()
	defer s.handlersLock.Unlock()
	s.outputHandlers = append(s.outputHandlers, handler)
}

// InputDir diretório de onde os arquivos são lidos
func (s *Service) InputDir() string {
	return s.paths.InputDir
}

// Analyze executa a análise de path e só retorna ao final
func (s *Service) Analyze(ctx context.Context, path string) (models.Run, *cycle.Dataset, error) {
	run, err := s.begin(path)
	if err != nil {
		return models.Run{}, nil, err
	}

	ds, err := s.execute(ctx, run)
	return s.snapshot(run), ds, err
}

// Start inicia a análise de um arquivo do diretório de entrada em segundo
// plano. Retorna ErrBusy se outra análise estiver em execução.
func (s *Service) Start(name string) (models.Run, error) {
	path, err := ResolveInput(s.paths.InputDir, name)
	if err != nil {
		return models.Run{}, err
	}

	run, err := s.begin(path)
	if err != nil {
		return models.Run{}, err
	}

	snap := s.snapshot(run)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.execute(s.ctx, run); err != nil {
			logger.Errorf("Análise %s falhou: %v", run.ID, err)
		}
	}()

	return snap, nil
}

// begin reserva o serviço para uma nova análise
func (s *Service) begin(path string) (*models.Run, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.current != nil {
		return nil, fmt.Errorf("%w: %s", ErrBusy, s.current.ID)
	}

	s.current = &models.Run{
		ID:         uuid.New().String(),
		File:       path,
		Status:     models.RunRunning,
		Thresholds: s.analysis.Thresholds(),
		StartedAt:  time.Now(),
	}
	return s.current, nil
}

// execute roda a análise reservada por begin
func (s *Service) execute(ctx context.Context, run *models.Run) (*cycle.Dataset, error) {
	th := run.Thresholds
	logger.Infof("Campo de pressão: %s | limiar: %s", th.PressureField, utils.FormatFloat32(th.PressureThreshold))
	logger.Infof("Campo de deslocamento: %s | campo min/max: %s", th.DisplacementField, th.MinMaxField)
	logger.Infof("Lendo arquivo %s", run.File)

	total, err := CountFileLines(run.File)
	if err != nil {
		// run_failed sempre depois de um run_started
		s.notifyStarted(s.snapshot(run))
		return nil, s.fail(run, err)
	}
	s.update(run, func(r *models.Run) { r.TotalLines = total })
	logger.Infof("Datapoints: %d", total)

	s.notifyStarted(s.snapshot(run))

	ds, err := s.aggregate(ctx, run, total)
	if err != nil {
		return nil, s.fail(run, err)
	}

	outPath, err := output.WriteFile(s.paths.OutputDir, time.Now(), ds, func(written, size int) {
		s.notifyOutput(run.ID, written, size)
	})
	if err != nil {
		return nil, s.fail(run, err)
	}

	finished := time.Now()
	s.update(run, func(r *models.Run) {
		r.Status = models.RunDone
		r.Cycles = ds.Len()
		r.OutputPath = outPath
		r.FinishedAt = &finished
		r.ElapsedMs = finished.Sub(r.StartedAt).Milliseconds()
		r.RSSBytes = residentMemory()
	})

	final := s.snapshot(run)
	logger.Infof("Análise concluída em %s: %d ciclos, %d descartados, saída em %s",
		utils.FormatDuration(finished.Sub(final.StartedAt)), final.Cycles, final.Discarded, outPath)
	if final.RSSBytes > 0 {
		logger.Debugf("Memória residente: %.1f MB", float64(final.RSSBytes)/(1<<20))
	}

	s.record(ctx, &final, ds)
	s.complete(run, ds)
	s.notifyFinished(final)

	return ds, nil
}

// aggregate abre o arquivo de novo e alimenta o agregador
func (s *Service) aggregate(ctx context.Context, run *models.Run, total int) (*cycle.Dataset, error) {
	file, err := os.Open(run.File)
	if err != nil {
		return nil, fmt.Errorf("erro ao abrir %s: %w", run.File, err)
	}
	defer file.Close()

	discarded := 0
	ds, err := cycle.Aggregate(&contextReader{ctx: ctx, r: file}, run.Thresholds, cycle.Options{
		TotalLines: total,
		OnProgress: func(line, total int) {
			s.update(run, func(r *models.Run) { r.Lines = line })
			s.notifyProgress(run.ID, line, total)
		},
		OnCycle: func(entry cycle.Entry) {
			s.update(run, func(r *models.Run) { r.Cycles = entry.Index })
			s.notifyCycle(run.ID, entry)
		},
		OnDiscard: func(line, samples int) {
			discarded++
			logger.Debugf("Ciclo descartado na linha %d: %d amostras", line, samples)
		},
	})

	s.update(run, func(r *models.Run) {
		r.Discarded = discarded
		if err == nil {
			r.Lines = total
		}
	})
	return ds, err
}

// record envia a análise para os destinos. Falhas são apenas registradas.
func (s *Service) record(ctx context.Context, run *models.Run, ds *cycle.Dataset) {
	for _, sink := range s.sinks {
		if err := sink.Record(ctx, run, ds); err != nil {
			logger.Errorf("Erro ao gravar análise %s em %s: %v", run.ID, sink.Name(), err)
		}
	}
}

// fail marca a análise como falha e libera o serviço
func (s *Service) fail(run *models.Run, err error) error {
	finished := time.Now()
	s.update(run, func(r *models.Run) {
		r.Status = models.RunFailed
		r.Error = err.Error()
		r.FinishedAt = &finished
		r.ElapsedMs = finished.Sub(r.StartedAt).Milliseconds()
	})
	logger.Errorf("Erro na análise de %s: %v", run.File, err)

	s.complete(run, nil)
	s.notifyFinished(s.snapshot(run))
	return err
}

// complete move a análise para o histórico
func (s *Service) complete(run *models.Run, ds *cycle.Dataset) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.current == run {
		s.current = nil
	}

	s.history = append(s.history, run)
	if ds != nil {
		s.datasets[run.ID] = ds
	}

	for len(s.history) > s.maxRuns {
		delete(s.datasets, s.history[0].ID)
		s.history = s.history[1:]
	}
}

func (s *Service) update(run *models.Run, fn func(r *models.Run)) {
	s.mutex.Lock()
	fn(run)
	s.mutex.Unlock()
}

func (s *Service) snapshot(run *models.Run) models.Run {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return *run
}

// GetRun retorna uma análise em execução ou do histórico
func (s *Service) GetRun(id string) (models.Run, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.current != nil && s.current.ID == id {
		return *s.current, nil
	}
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].ID == id {
			return *s.history[i], nil
		}
	}
	return models.Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// GetDataset retorna os ciclos de uma análise concluída
func (s *Service) GetDataset(id string) (*cycle.Dataset, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	ds, ok := s.datasets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return ds, nil
}

// LatestRun retorna a última análise concluída
func (s *Service) LatestRun() (models.Run, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.history) == 0 {
		return models.Run{}, ErrNotFound
	}
	return *s.history[len(s.history)-1], nil
}

// History retorna as análises concluídas, da mais recente para a mais antiga
func (s *Service) History() []models.Run {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	runs := make([]models.Run, 0, len(s.history))
	for i := len(s.history) - 1; i >= 0; i-- {
		runs = append(runs, *s.history[i])
	}
	return runs
}

// Status estado resumido para o comando get_status e /health
type Status struct {
	Busy    bool        `json:"busy"`
	Current *models.Run `json:"current,omitempty"`
	Runs    int         `json:"runs"`
}

// Status retorna o estado atual do serviço
func (s *Service) Status() Status {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	st := Status{Busy: s.current != nil, Runs: len(s.history)}
	if s.current != nil {
		run := *s.current
		st.Current = &run
	}
	return st
}

// Shutdown cancela a análise em andamento e aguarda seu término
func (s *Service) Shutdown() {
	s.cancel()
	s.wg.Wait()
}

func (s *Service) notifyStarted(run models.Run) {
	s.handlersLock.RLock()
	defer s.handlersLock.RUnlock()
	for _, h := range s.startedHandlers {
		h(run)
	}
}

func (s *Service) notifyFinished(run models.Run) {
	s.handlersLock.RLock()
	defer s.handlersLock.RUnlock()
	for _, h := range s.finishedHandlers {
		h(run)
	}
}

func (s *Service) notifyProgress(runID string, line, total int) {
	s.handlersLock.RLock()
	defer s.handlersLock.RUnlock()
	for _, h := range s.progressHandlers {
		h(runID, line, total)
	}
}

func (s *Service) notifyCycle(runID string, entry cycle.Entry) {
	s.handlersLock.RLock()
	defer s.handlersLock.RUnlock()
	for _, h := range s.cycleHandlers {
		h(runID, entry)
	}
}

func (s *Service) notifyOutput(runID string, written, total int) {
	s.handlersLock.RLock()
	defer s.handlersLock.RUnlock()
	for _, h := range s.outputHandlers {
		h(runID, written, total)
	}
}

// contextReader interrompe a leitura quando ctx é cancelado
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// residentMemory memória residente do processo, 0 se indisponível
func residentMemory() uint64 {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0
	}
	mem, err := proc.MemoryInfo()
	if err != nil {
		return 0
	}
	return mem.RSS
}

