package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tanalyzer_go/internal/server"
	"tanalyzer_go/pkg/logger"
)

func newServeCommand(a *app) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Sobe o servidor HTTP/WebSocket para disparar e acompanhar análises.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port > 0 {
				a.cfg.Server.Port = port
			}

			displayBanner(cmd.OutOrStdout())
			logger.Info("Iniciando TAnalyzer")
			logger.Infof("Campos: pressão=%s deslocamento=%s min/max=%s",
				a.cfg.Analysis.PressureField, a.cfg.Analysis.DisplacementField, a.cfg.Analysis.MinMaxField)

			srv, err := server.NewServer(a.cfg)
			if err != nil {
				return fmt.Errorf("erro ao criar servidor: %w", err)
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(quit)

			select {
			case err := <-errCh:
				if err != nil {
					srv.Shutdown(context.Background())
					return err
				}
			case <-quit:
			}

			logger.Info("Desligando servidor...")

			ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("Erro durante o shutdown do servidor", err)
			}

			logger.Info("Servidor encerrado com sucesso")
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "porta HTTP (sobrescreve a configuração)")
	return cmd
}

// displayBanner exibe um banner de inicialização
func displayBanner(out io.Writer) {
	banner := `
 _____  _                 _
|_   _|/ \   _ __   __ _ | | _   _  ____  ___  _ __
  | | / _ \ | '_ \ / _' || || | | ||_  / / _ \| '__|
  | |/ ___ \| | | | (_| || || |_| | / / |  __/| |
  |_/_/   \_\_| |_|\__,_||_| \__, |/___| \___||_|
                             |___/   v` + server.Version + `
`
	fmt.Fprintln(out, banner)
	fmt.Fprintf(out, "Iniciando em %s\n\n", time.Now().Format("2006-01-02 15:04:05"))
}
