package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"tanalyzer_go/internal/models"
)

var (
	// ErrNoFiles diretório de entrada vazio
	ErrNoFiles = errors.New("nenhum arquivo no diretório de entrada")

	// ErrInvalidChoice resposta fora de [0..n-1]
	ErrInvalidChoice = errors.New("escolha inválida")
)

// PickFile escolhe o arquivo a analisar. Com um único arquivo não pergunta.
func PickFile(files []models.FileInfo, in io.Reader, out io.Writer) (models.FileInfo, error) {
	switch len(files) {
	case 0:
		return models.FileInfo{}, ErrNoFiles
	case 1:
		fmt.Fprintf(out, "Arquivo selecionado: %s\n", files[0].Name)
		return files[0], nil
	}

	fmt.Fprintln(out, "Arquivos disponíveis:")
	for _, f := range files {
		fmt.Fprintf(out, "  [%d] %s\n", f.Index, f.Name)
	}
	fmt.Fprintf(out, "Escolha o arquivo [0..%d]: ", len(files)-1)

	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && answer != "") {
		return models.FileInfo{}, fmt.Errorf("%w: sem resposta", ErrInvalidChoice)
	}

	idx, err := strconv.Atoi(strings.TrimSpace(answer))
	if err != nil || idx < 0 || idx >= len(files) {
		return models.FileInfo{}, fmt.Errorf("%w: %q", ErrInvalidChoice, strings.TrimSpace(answer))
	}
	return files[idx], nil
}
