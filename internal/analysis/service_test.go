package analysis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tanalyzer_go/internal/config"
	"tanalyzer_go/internal/cycle"
	"tanalyzer_go/internal/models"
	"tanalyzer_go/internal/output"
)

type recordingSink struct {
	mu      sync.Mutex
	name    string
	err     error
	block   chan struct{}
	runs    []models.Run
	lengths []int
}

func (r *recordingSink) Name() string { return r.name }

func (r *recordingSink) Record(ctx context.Context, run *models.Run, ds *cycle.Dataset) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, *run)
	r.lengths = append(r.lengths, ds.Len())
	return r.err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Analysis = config.AnalysisConfig{
		PressureField:     "P",
		DisplacementField: "D",
		MinMaxField:       "T",
		PressureThreshold: 101,
	}
	cfg.Paths = config.PathsConfig{
		InputDir:  filepath.Join(root, "input"),
		OutputDir: filepath.Join(root, "output"),
	}
	require.NoError(t, os.MkdirAll(cfg.Paths.InputDir, 0755))
	return cfg
}

// cycleLog gera um log com um ciclo por tamanho pedido. Cada ciclo tem
// n-1 linhas positivas e fecha com uma linha negativa seguida de uma positiva.
func cycleLog(sizes ...int) string {
	var sb strings.Builder
	sb.WriteString("P;90;D;1;T;0\n")
	sb.WriteString("P;105;D;2.5;T;0\n")
	for c, n := range sizes {
		for i := 0; i < n-1; i++ {
			fmt.Fprintf(&sb, "P;50;D;1;T;%d\n", c+i%3)
		}
		sb.WriteString("P;50;D;-1;T;-1\n")
		sb.WriteString("P;50;D;1;T;0\n")
	}
	return sb.String()
}

func writeInput(t *testing.T, cfg *config.Config, name, content string) string {
	t.Helper()
	path := filepath.Join(cfg.Paths.InputDir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestAnalyzeWritesOutputAndRecords(t *testing.T) {
	cfg := testConfig(t)
	path := writeInput(t, cfg, "log.txt", cycleLog(200, 20, 300))

	sink := &recordingSink{name: "fake"}
	failing := &recordingSink{name: "broken", err: errors.New("offline")}
	svc := NewService(cfg, sink, failing)

	var (
		started, finished []models.Run
		cycles            []cycle.Entry
		progress          []int
		written           []int
	)
	svc.RegisterRunStartedHandler(func(run models.Run) { started = append(started, run) })
	svc.RegisterRunFinishedHandler(func(run models.Run) { finished = append(finished, run) })
	svc.RegisterCycleHandler(func(id string, e cycle.Entry) { cycles = append(cycles, e) })
	svc.RegisterProgressHandler(func(id string, line, total int) { progress = append(progress, line) })
	svc.RegisterOutputProgressHandler(func(id string, w, total int) { written = append(written, w) })

	run, ds, err := svc.Analyze(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, models.RunDone, run.Status)
	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, 2, run.Cycles)
	assert.Equal(t, 1, run.Discarded)
	total := strings.Count(cycleLog(200, 20, 300), "\n")
	assert.Equal(t, total, run.TotalLines)
	assert.Equal(t, total, run.Lines)
	require.NotNil(t, run.FinishedAt)

	require.Len(t, started, 1)
	assert.Equal(t, total, started[0].TotalLines)
	require.Len(t, finished, 1)
	assert.Equal(t, run.ID, finished[0].ID)
	assert.Len(t, cycles, 2)
	assert.Equal(t, total, progress[len(progress)-1])
	assert.Equal(t, 2, written[len(written)-1])

	// os dois destinos são chamados; a falha de um não derruba a análise
	assert.Len(t, sink.runs, 1)
	assert.Equal(t, []int{2}, sink.lengths)
	assert.Len(t, failing.runs, 1)

	data, err := os.ReadFile(run.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, output.Render(ds), string(data))
	assert.True(t, strings.HasPrefix(filepath.Base(run.OutputPath), "output-"))

	got, err := svc.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, run, got)

	latest, err := svc.LatestRun()
	require.NoError(t, err)
	assert.Equal(t, run.ID, latest.ID)

	back, err := svc.GetDataset(run.ID)
	require.NoError(t, err)
	assert.Equal(t, ds, back)
}

func TestAnalyzeParseErrorFailsRun(t *testing.T) {
	cfg := testConfig(t)
	path := writeInput(t, cfg, "bad.txt", "P;105;D;1;T;0\nP;50;D;1;T;abc\n")

	sink := &recordingSink{name: "fake"}
	svc := NewService(cfg, sink)

	var finished []models.Run
	svc.RegisterRunFinishedHandler(func(run models.Run) { finished = append(finished, run) })

	run, ds, err := svc.Analyze(context.Background(), path)
	require.Error(t, err)
	assert.Nil(t, ds)

	var perr *cycle.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 2, perr.Line)

	assert.Equal(t, models.RunFailed, run.Status)
	assert.Contains(t, run.Error, "linha 2")
	assert.Empty(t, sink.runs)
	require.Len(t, finished, 1)
	assert.Equal(t, models.RunFailed, finished[0].Status)

	_, err = os.Stat(cfg.Paths.OutputDir)
	assert.True(t, os.IsNotExist(err), "nenhuma saída deve ser criada")

	// o serviço fica livre para a próxima análise
	assert.False(t, svc.Status().Busy)
	_, err = svc.GetDataset(run.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAnalyzeMissingFile(t *testing.T) {
	cfg := testConfig(t)
	svc := NewService(cfg)

	var events []string
	svc.RegisterRunStartedHandler(func(run models.Run) {
		events = append(events, "started:"+run.ID)
	})
	svc.RegisterRunFinishedHandler(func(run models.Run) {
		events = append(events, "finished:"+run.ID+":"+string(run.Status))
	})

	run, _, err := svc.Analyze(context.Background(), filepath.Join(cfg.Paths.InputDir, "nada"))
	require.Error(t, err)
	assert.Equal(t, models.RunFailed, run.Status)
	assert.Equal(t, []string{"started:" + run.ID, "finished:" + run.ID + ":failed"}, events)
}

func TestAnalyzeCanceled(t *testing.T) {
	cfg := testConfig(t)
	path := writeInput(t, cfg, "log.txt", cycleLog(200))
	svc := NewService(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := svc.Analyze(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStartRejectsConcurrentRuns(t *testing.T) {
	cfg := testConfig(t)
	writeInput(t, cfg, "log.txt", cycleLog(200))

	sink := &recordingSink{name: "slow", block: make(chan struct{})}
	svc := NewService(cfg, sink)
	defer svc.Shutdown()

	done := make(chan models.Run, 1)
	svc.RegisterRunFinishedHandler(func(run models.Run) { done <- run })

	first, err := svc.Start("log.txt")
	require.NoError(t, err)
	assert.Equal(t, models.RunRunning, first.Status)

	_, err = svc.Start("log.txt")
	assert.ErrorIs(t, err, ErrBusy)
	assert.True(t, svc.Status().Busy)

	close(sink.block)

	select {
	case run := <-done:
		assert.Equal(t, first.ID, run.ID)
		assert.Equal(t, models.RunDone, run.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("análise não terminou")
	}

	_, err = svc.Start("log.txt")
	assert.NoError(t, err)
}

func TestStartRejectsInvalidName(t *testing.T) {
	svc := NewService(testConfig(t))

	_, err := svc.Start("../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidFile)
	assert.False(t, svc.Status().Busy)
}

func TestHistoryIsBounded(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.HistorySize = 2
	path := writeInput(t, cfg, "log.txt", cycleLog(160))
	svc := NewService(cfg)

	var ids []string
	for i := 0; i < 3; i++ {
		run, _, err := svc.Analyze(context.Background(), path)
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	history := svc.History()
	require.Len(t, history, 2)
	assert.Equal(t, ids[2], history[0].ID)
	assert.Equal(t, ids[1], history[1].ID)

	_, err := svc.GetRun(ids[0])
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.GetDataset(ids[0])
	assert.ErrorIs(t, err, ErrNotFound)
}
