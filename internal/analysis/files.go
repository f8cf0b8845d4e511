package analysis

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"tanalyzer_go/internal/cycle"
	"tanalyzer_go/internal/models"
)

// ErrInvalidFile nome de arquivo fora do diretório de entrada
var ErrInvalidFile = errors.New("arquivo de entrada inválido")

// ListInputFiles lista os arquivos regulares de dir, ordenados por nome
func ListInputFiles(dir string) ([]models.FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("erro ao listar %s: %w", dir, err)
	}

	files := make([]models.FileInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, models.FileInfo{
			Name:     entry.Name(),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	for i := range files {
		files[i].Index = i
	}
	return files, nil
}

// ResolveInput valida um nome simples dentro de dir e retorna o caminho
func ResolveInput(dir, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidFile, name)
	}

	path := filepath.Join(dir, name)
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s não é um arquivo", ErrInvalidFile, name)
	}
	return path, nil
}

// CountLines conta as linhas de r do mesmo jeito que o leitor do agregador:
// uma última linha sem '\n' também conta
func CountLines(r io.Reader) (int, error) {
	br := bufio.NewReaderSize(r, cycle.BufferSize)
	buf := make([]byte, cycle.BufferSize)

	count := 0
	var last byte = '\n'
	for {
		n, err := br.Read(buf)
		if n > 0 {
			count += bytes.Count(buf[:n], []byte{'\n'})
			last = buf[n-1]
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return count, fmt.Errorf("erro ao contar linhas: %w", err)
		}
	}

	if last != '\n' {
		count++
	}
	return count, nil
}

// CountFileLines abre path e conta suas linhas
func CountFileLines(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("erro ao abrir %s: %w", path, err)
	}
	defer file.Close()

	return CountLines(file)
}
