// Package cli implementa os comandos de linha do tanalyzer.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"tanalyzer_go/internal/config"
	"tanalyzer_go/pkg/logger"
)

// app estado compartilhado entre os comandos
type app struct {
	configPath string
	logLevel   string
	cfg        *config.Config
	in         io.Reader
}

// NewRootCommand monta a árvore de comandos lendo respostas interativas de in
func NewRootCommand(in io.Reader, out io.Writer) *cobra.Command {
	a := &app{in: in}

	rootCmd := &cobra.Command{
		Use:   "tanalyzer",
		Short: "Detecta ciclos em logs de sensores e exporta os extremos por ciclo.",
		Long: `tanalyzer lê logs no formato nome;valor;nome;valor, detecta ciclos ` +
			`pelo cruzamento de zero do deslocamento e grava min/max de cada ciclo ` +
			`num arquivo .trd. Também pode rodar como servidor HTTP/WebSocket.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	rootCmd.SetIn(in)
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", config.DefaultPath, "arquivo de configuração (.json, .toml ou .yaml)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "nível de log (DEBUG, INFO, WARN, ERROR)")

	rootCmd.AddCommand(
		newAnalyzeCommand(a),
		newFilesCommand(a),
		newServeCommand(a),
		newConfigCommand(a),
		newVersionCommand(),
	)

	return rootCmd
}

// setup carrega a configuração e prepara o logger antes de qualquer comando
func (a *app) setup(cmd *cobra.Command, args []string) error {
	// config init escreve o arquivo, não depende de um válido
	if cmd.Annotations["skipConfig"] == "true" {
		return nil
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.Log.Level
	if a.logLevel != "" {
		level = a.logLevel
	}
	parsed, err := logger.ParseLevel(level)
	if err != nil {
		return err
	}
	logger.SetLevel(parsed)

	if cfg.Log.File {
		if err := logger.EnableFileLogging(cfg.Log.Dir, "tanalyzer"); err != nil {
			logger.Warnf("Log em arquivo desabilitado: %v", err)
		}
	}

	return nil
}

// Execute roda a linha de comando e encerra o processo
func Execute() {
	logger.Init()
	atexit.Register(logger.Sync)

	if err := NewRootCommand(os.Stdin, os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Erro:", err)
		atexit.Exit(1)
	}
	atexit.Exit(0)
}
