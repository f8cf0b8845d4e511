package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"tanalyzer_go/internal/analysis"
	"tanalyzer_go/internal/config"
	"tanalyzer_go/internal/models"
	"tanalyzer_go/internal/plc"
	"tanalyzer_go/internal/redis"
	"tanalyzer_go/internal/storage"
	"tanalyzer_go/pkg/logger"
	"tanalyzer_go/pkg/utils"
)

func newAnalyzeCommand(a *app) *cobra.Command {
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "analyze [arquivo]",
		Short: "Analisa um arquivo de log e grava o .trd com os ciclos.",
		Long: "Sem argumento, lista o diretório de entrada e pergunta qual arquivo " +
			"analisar. O argumento pode ser um nome dentro do diretório de entrada " +
			"ou um caminho.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.inputPath(args, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return a.analyze(ctx, path, cmd.OutOrStdout(), !noProgress)
		},
	}

	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "não desenha as barras de progresso")
	return cmd
}

// inputPath resolve o argumento ou pergunta pelo arquivo
func (a *app) inputPath(args []string, out io.Writer) (string, error) {
	if len(args) == 1 {
		name := args[0]
		if strings.ContainsRune(name, filepath.Separator) || strings.Contains(name, "/") {
			info, err := os.Stat(name)
			if err != nil {
				return "", fmt.Errorf("%w: %v", analysis.ErrInvalidFile, err)
			}
			if !info.Mode().IsRegular() {
				return "", fmt.Errorf("%w: %s não é um arquivo", analysis.ErrInvalidFile, name)
			}
			return name, nil
		}
		return analysis.ResolveInput(a.cfg.Paths.InputDir, name)
	}

	files, err := analysis.ListInputFiles(a.cfg.Paths.InputDir)
	if err != nil {
		return "", err
	}
	file, err := PickFile(files, a.in, out)
	if err != nil {
		return "", err
	}
	return filepath.Join(a.cfg.Paths.InputDir, file.Name), nil
}

// analyze roda a análise em primeiro plano com os destinos configurados
func (a *app) analyze(ctx context.Context, path string, out io.Writer, showProgress bool) error {
	sinks, closeSinks, err := openSinks(a.cfg)
	if err != nil {
		return err
	}
	defer closeSinks()

	svc := analysis.NewService(a.cfg, sinks...)
	defer svc.Shutdown()

	if showProgress {
		attachProgressBars(svc, out)
	}

	started := time.Now()
	run, _, err := svc.Analyze(ctx, path)
	if err != nil {
		return err
	}

	printFooter(out, run, time.Since(started))
	return nil
}

// openSinks abre os destinos habilitados. O fechamento é idempotente e
// também fica registrado no atexit.
func openSinks(cfg *config.Config) ([]analysis.Sink, func(), error) {
	var (
		sinks   []analysis.Sink
		closers []func()
	)

	if cfg.Redis.Enabled {
		redisService, err := redis.NewService(cfg.Redis, cfg.Server.HistorySize)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, redisService)
		closers = append(closers, redisService.Shutdown)
	}

	if cfg.Storage.Enabled {
		recorder, err := storage.Open(cfg.Storage.Path)
		if err != nil {
			for _, c := range closers {
				c()
			}
			return nil, nil, err
		}
		sinks = append(sinks, recorder)
		closers = append(closers, func() {
			if err := recorder.Close(); err != nil {
				logger.Errorf("Erro ao fechar banco SQLite: %v", err)
			}
		})
	}

	if cfg.PLC.Enabled {
		plcService := plc.NewPLCService(cfg.PLC)
		sinks = append(sinks, plcService)
		closers = append(closers, plcService.Shutdown)
	}

	var once sync.Once
	closeAll := func() {
		once.Do(func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		})
	}
	atexit.Register(closeAll)

	return sinks, closeAll, nil
}

// attachProgressBars desenha uma barra para a leitura e outra para a escrita
func attachProgressBars(svc *analysis.Service, out io.Writer) {
	var (
		readBar, writeBar *progressbar.ProgressBar
		writeDone         bool
	)

	svc.RegisterRunStartedHandler(func(run models.Run) {
		readBar = newBar(out, run.TotalLines, "Lendo")
	})
	svc.RegisterProgressHandler(func(runID string, line, total int) {
		if readBar != nil {
			readBar.Set(line)
		}
	})
	svc.RegisterOutputProgressHandler(func(runID string, written, total int) {
		if readBar != nil {
			readBar.Finish()
			readBar = nil
		}
		if writeDone {
			return
		}
		if writeBar == nil {
			writeBar = newBar(out, total, "Gravando")
			if writeBar == nil {
				return
			}
		}
		writeBar.Set(written)
		if written == total {
			writeBar.Finish()
			writeDone = true
		}
	})
}

// newBar retorna nil para max zero: não há o que desenhar
func newBar(out io.Writer, max int, description string) *progressbar.ProgressBar {
	if max <= 0 {
		return nil
	}
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(out) }),
	)
}

func printFooter(out io.Writer, run models.Run, elapsed time.Duration) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Arquivo:     %s\n", run.File)
	fmt.Fprintf(out, "Datapoints:  %d\n", run.TotalLines)
	fmt.Fprintf(out, "Ciclos:      %d\n", run.Cycles)
	fmt.Fprintf(out, "Descartados: %d\n", run.Discarded)
	fmt.Fprintf(out, "Saída:       %s\n", run.OutputPath)
	fmt.Fprintf(out, "Tempo:       %d ms (%s)\n", run.ElapsedMs, utils.FormatDuration(elapsed))
}
