package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tanalyzer_go/internal/config"
	"tanalyzer_go/internal/models"
)

func cycleLog() string {
	var sb strings.Builder
	sb.WriteString("P;105;D;2.5;T;0\n")
	for i := 0; i < 199; i++ {
		fmt.Fprintf(&sb, "P;50;D;1;T;%d\n", i%4)
	}
	sb.WriteString("P;50;D;-1;T;-1\n")
	return sb.String()
}

// workspace grava config.json e os arquivos de entrada num diretório temporário
func workspace(t *testing.T, inputs map[string]string) (string, *config.Config) {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Analysis = config.AnalysisConfig{PressureField: "P", DisplacementField: "D", MinMaxField: "T", PressureThreshold: 101}
	cfg.Paths = config.PathsConfig{InputDir: filepath.Join(root, "input"), OutputDir: filepath.Join(root, "output")}
	cfg.Log.File = false

	require.NoError(t, os.MkdirAll(cfg.Paths.InputDir, 0755))
	for name, content := range inputs {
		require.NoError(t, os.WriteFile(filepath.Join(cfg.Paths.InputDir, name), []byte(content), 0644))
	}

	path := filepath.Join(root, "config.json")
	require.NoError(t, config.Save(path, cfg))
	return path, cfg
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewRootCommand(strings.NewReader(stdin), &out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func outputFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "output-*.trd"))
	require.NoError(t, err)
	return matches
}

func TestPickFile(t *testing.T) {
	files := []models.FileInfo{{Index: 0, Name: "a.txt"}, {Index: 1, Name: "b.txt"}, {Index: 2, Name: "c.txt"}}

	t.Run("nenhum arquivo", func(t *testing.T) {
		_, err := PickFile(nil, strings.NewReader(""), &bytes.Buffer{})
		assert.ErrorIs(t, err, ErrNoFiles)
	})

	t.Run("um arquivo não pergunta", func(t *testing.T) {
		var out bytes.Buffer
		f, err := PickFile(files[:1], strings.NewReader(""), &out)
		require.NoError(t, err)
		assert.Equal(t, "a.txt", f.Name)
		assert.NotContains(t, out.String(), "Escolha")
	})

	t.Run("escolha válida", func(t *testing.T) {
		var out bytes.Buffer
		f, err := PickFile(files, strings.NewReader("1\n"), &out)
		require.NoError(t, err)
		assert.Equal(t, "b.txt", f.Name)
		assert.Contains(t, out.String(), "[2] c.txt")
		assert.Contains(t, out.String(), "[0..2]")
	})

	t.Run("sem quebra de linha", func(t *testing.T) {
		f, err := PickFile(files, strings.NewReader(" 2 "), &bytes.Buffer{})
		require.NoError(t, err)
		assert.Equal(t, "c.txt", f.Name)
	})

	for _, answer := range []string{"3\n", "-1\n", "abc\n", "\n", ""} {
		_, err := PickFile(files, strings.NewReader(answer), &bytes.Buffer{})
		assert.ErrorIs(t, err, ErrInvalidChoice, "resposta %q", answer)
	}
}

func TestAnalyzeByName(t *testing.T) {
	path, cfg := workspace(t, map[string]string{"log.txt": cycleLog()})

	out, err := run(t, "", "--config", path, "analyze", "log.txt", "--no-progress")
	require.NoError(t, err)
	assert.Contains(t, out, "Ciclos:      1")
	assert.Contains(t, out, "Datapoints:  201")

	files := outputFiles(t, cfg.Paths.OutputDir)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, "1;min;-1;max;3;cycles;200;\n", string(data))
}

func TestAnalyzeByPath(t *testing.T) {
	path, cfg := workspace(t, nil)
	logPath := filepath.Join(t.TempDir(), "fora.log")
	require.NoError(t, os.WriteFile(logPath, []byte(cycleLog()), 0644))

	_, err := run(t, "", "--config", path, "analyze", logPath, "--no-progress")
	require.NoError(t, err)
	assert.Len(t, outputFiles(t, cfg.Paths.OutputDir), 1)
}

func TestAnalyzeInteractive(t *testing.T) {
	path, cfg := workspace(t, map[string]string{
		"a.txt": "P;105\n",
		"b.txt": cycleLog(),
	})

	out, err := run(t, "1\n", "--config", path, "analyze")
	require.NoError(t, err)
	assert.Contains(t, out, "[1] b.txt")
	assert.Contains(t, out, "Lendo")
	assert.Len(t, outputFiles(t, cfg.Paths.OutputDir), 1)
}

func TestAnalyzeInvalidChoice(t *testing.T) {
	path, cfg := workspace(t, map[string]string{"a.txt": cycleLog(), "b.txt": cycleLog()})

	_, err := run(t, "7\n", "--config", path, "analyze")
	assert.ErrorIs(t, err, ErrInvalidChoice)
	assert.Empty(t, outputFiles(t, cfg.Paths.OutputDir))
}

func TestAnalyzeParseError(t *testing.T) {
	path, cfg := workspace(t, map[string]string{"bad.txt": "P;105\n"})

	_, err := run(t, "", "--config", path, "analyze", "bad.txt", "--no-progress")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "linha 1")
	assert.NoDirExists(t, cfg.Paths.OutputDir)
}

func TestAnalyzeRejectsTraversal(t *testing.T) {
	path, _ := workspace(t, nil)

	_, err := run(t, "", "--config", path, "analyze", "..", "--no-progress")
	assert.Error(t, err)
}

func TestAnalyzeWithSQLite(t *testing.T) {
	path, cfg := workspace(t, map[string]string{"log.txt": cycleLog()})
	cfg.Storage = config.StorageConfig{Enabled: true, Path: filepath.Join(filepath.Dir(path), "runs.sqlite3")}
	require.NoError(t, config.Save(path, cfg))

	_, err := run(t, "", "--config", path, "analyze", "log.txt", "--no-progress")
	require.NoError(t, err)
	assert.FileExists(t, cfg.Storage.Path)
}

func TestFilesCommand(t *testing.T) {
	path, _ := workspace(t, map[string]string{"b.txt": "x\n", "a.txt": "y\n"})

	out, err := run(t, "", "--config", path, "files")
	require.NoError(t, err)
	assert.Contains(t, out, "ARQUIVO")
	assert.Less(t, strings.Index(out, "a.txt"), strings.Index(out, "b.txt"))
}

func TestFilesEmpty(t *testing.T) {
	path, _ := workspace(t, nil)

	out, err := run(t, "", "--config", path, "files")
	require.NoError(t, err)
	assert.Contains(t, out, "Nenhum arquivo")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tanalyzer.toml")

	out, err := run(t, "", "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Analysis, loaded.Analysis)

	_, err = run(t, "", "config", "init", path)
	assert.ErrorContains(t, err, "já existe")

	_, err = run(t, "", "config", "init", path, "--force")
	assert.NoError(t, err)
}

func TestConfigShow(t *testing.T) {
	path, _ := workspace(t, nil)
	t.Setenv(config.EnvPrefix+"PRESSURE_THRESHOLD", "55.5")

	out, err := run(t, "", "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "55.5")
}

func TestInvalidLogLevel(t *testing.T) {
	path, _ := workspace(t, nil)

	_, err := run(t, "", "--config", path, "--log-level", "verboso", "files")
	assert.ErrorContains(t, err, "nível de log desconhecido")
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "tanalyzer "))
}
