// Package output serializa um Dataset no formato de texto .trd:
//
//	{índice};min;{min};max;{max};cycles;{amostras};
package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tanalyzer_go/internal/cycle"
	"tanalyzer_go/pkg/utils"
)

const (
	// Extension extensão dos arquivos gerados
	Extension = ".trd"

	// BufferSize tamanho do buffer de escrita (2^14)
	BufferSize = 1 << 14

	progressSteps = 20
)

// ProgressFunc recebe quantas linhas já foram escritas e o total
type ProgressFunc func(written, total int)

// FormatEntry formata um ciclo. position é o índice sequencial de saída
// (1..N), independente da chave interna. Um Extremum vazio sai com campos
// vazios em vez de ±inf.
func FormatEntry(position int, entry cycle.Entry) string {
	var minStr, maxStr string
	if min, max, ok := entry.Extremum.Range(); ok {
		minStr = utils.FormatFloat32(min)
		maxStr = utils.FormatFloat32(max)
	}
	return fmt.Sprintf("%d;min;%s;max;%s;cycles;%d;\n", position, minStr, maxStr, entry.Samples)
}

// Write escreve o Dataset ordenado por índice
func Write(w io.Writer, ds *cycle.Dataset, onProgress ProgressFunc) error {
	entries := ds.Entries()
	size := len(entries)

	step := size
	if step > progressSteps {
		step = progressSteps
	}
	interval := 1
	if step > 0 {
		interval = size / step
	}

	bw := bufio.NewWriterSize(w, BufferSize)
	for i, entry := range entries {
		if _, err := bw.WriteString(FormatEntry(i+1, entry)); err != nil {
			return fmt.Errorf("erro ao escrever ciclo %d: %w", entry.Index, err)
		}
		if onProgress != nil && i%interval == 0 {
			onProgress(i+1, size)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("erro ao gravar saída: %w", err)
	}
	if onProgress != nil {
		onProgress(size, size)
	}
	return nil
}

// Render retorna o conteúdo .trd completo
func Render(ds *cycle.Dataset) string {
	var sb strings.Builder
	for i, entry := range ds.Entries() {
		sb.WriteString(FormatEntry(i+1, entry))
	}
	return sb.String()
}

// FileName retorna o nome output-YYYY-MM-DD-HH-MM-SS.trd
func FileName(now time.Time) string {
	return "output-" + utils.FormatOutputTimestamp(now) + Extension
}

// WriteFile cria <dir>/output-<timestamp>.trd e retorna o caminho
func WriteFile(dir string, now time.Time, ds *cycle.Dataset, onProgress ProgressFunc) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("erro ao criar diretório de saída: %w", err)
	}

	path := filepath.Join(dir, FileName(now))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("erro ao criar arquivo de saída: %w", err)
	}

	if err := Write(file, ds, onProgress); err != nil {
		file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("erro ao fechar arquivo de saída: %w", err)
	}

	return path, nil
}
