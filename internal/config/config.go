package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tanalyzer_go/internal/cycle"
	"tanalyzer_go/pkg/logger"
)

// DefaultPath arquivo de configuração procurado quando nenhum é informado
const DefaultPath = "config.json"

// EnvPrefix prefixo das variáveis de ambiente que sobrescrevem o arquivo
const EnvPrefix = "TANALYZER_"

// Config representa a configuração completa da aplicação
type Config struct {
	Analysis AnalysisConfig `json:"analysis" toml:"analysis" yaml:"analysis"`
	Paths    PathsConfig    `json:"paths" toml:"paths" yaml:"paths"`
	Log      LogConfig      `json:"log" toml:"log" yaml:"log"`
	Server   ServerConfig   `json:"server" toml:"server" yaml:"server"`
	Redis    RedisConfig    `json:"redis" toml:"redis" yaml:"redis"`
	Storage  StorageConfig  `json:"storage" toml:"storage" yaml:"storage"`
	PLC      PLCConfig      `json:"plc" toml:"plc" yaml:"plc"`
}

// AnalysisConfig nomes dos campos e limiar de pressão
type AnalysisConfig struct {
	PressureField     string  `json:"pressure_field" toml:"pressure_field" yaml:"pressure_field"`
	DisplacementField string  `json:"displacement_field" toml:"displacement_field" yaml:"displacement_field"`
	MinMaxField       string  `json:"min_max_field" toml:"min_max_field" yaml:"min_max_field"`
	PressureThreshold float32 `json:"pressure_threshold" toml:"pressure_threshold" yaml:"pressure_threshold"`
}

// PathsConfig diretórios de entrada e saída
type PathsConfig struct {
	InputDir  string `json:"input_dir" toml:"input_dir" yaml:"input_dir"`
	OutputDir string `json:"output_dir" toml:"output_dir" yaml:"output_dir"`
}

// LogConfig nível e diretório dos logs
type LogConfig struct {
	Level string `json:"level" toml:"level" yaml:"level"`
	Dir   string `json:"dir" toml:"dir" yaml:"dir"`
	File  bool   `json:"file" toml:"file" yaml:"file"`
}

// ServerConfig contém configurações do servidor HTTP/WebSocket
type ServerConfig struct {
	Port            int      `json:"port" toml:"port" yaml:"port"`
	ReadTimeout     Duration `json:"read_timeout" toml:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    Duration `json:"write_timeout" toml:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout Duration `json:"shutdown_timeout" toml:"shutdown_timeout" yaml:"shutdown_timeout"`
	Discovery       bool     `json:"discovery" toml:"discovery" yaml:"discovery"`
	HistorySize     int      `json:"history_size" toml:"history_size" yaml:"history_size"`
}

// RedisConfig contém configurações do Redis
type RedisConfig struct {
	Enabled  bool     `json:"enabled" toml:"enabled" yaml:"enabled"`
	Host     string   `json:"host" toml:"host" yaml:"host"`
	Port     int      `json:"port" toml:"port" yaml:"port"`
	Password string   `json:"password" toml:"password" yaml:"password"`
	DB       int      `json:"db" toml:"db" yaml:"db"`
	Prefix   string   `json:"prefix" toml:"prefix" yaml:"prefix"`
	TTL      Duration `json:"ttl" toml:"ttl" yaml:"ttl"`
}

// StorageConfig gravação dos ciclos em SQLite
type StorageConfig struct {
	Enabled bool   `json:"enabled" toml:"enabled" yaml:"enabled"`
	Path    string `json:"path" toml:"path" yaml:"path"`
}

// PLCConfig contém configurações para envio do resumo ao PLC S7
type PLCConfig struct {
	Enabled     bool     `json:"enabled" toml:"enabled" yaml:"enabled"`
	Host        string   `json:"host" toml:"host" yaml:"host"`
	Rack        int      `json:"rack" toml:"rack" yaml:"rack"`
	Slot        int      `json:"slot" toml:"slot" yaml:"slot"`
	DBNumber    int      `json:"db_number" toml:"db_number" yaml:"db_number"`
	Timeout     Duration `json:"timeout" toml:"timeout" yaml:"timeout"`
	IdleTimeout Duration `json:"idle_timeout" toml:"idle_timeout" yaml:"idle_timeout"`
}

// Thresholds converte a seção de análise para o agregador
func (a AnalysisConfig) Thresholds() cycle.Thresholds {
	return cycle.Thresholds{
		PressureField:     a.PressureField,
		DisplacementField: a.DisplacementField,
		MinMaxField:       a.MinMaxField,
		PressureThreshold: a.PressureThreshold,
	}
}

// Validate verifica os campos obrigatórios
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Analysis.PressureField) == "" {
		errs = append(errs, errors.New("analysis.pressure_field vazio"))
	}
	if strings.TrimSpace(c.Analysis.DisplacementField) == "" {
		errs = append(errs, errors.New("analysis.displacement_field vazio"))
	}
	if strings.TrimSpace(c.Analysis.MinMaxField) == "" {
		errs = append(errs, errors.New("analysis.min_max_field vazio"))
	}
	threshold := float64(c.Analysis.PressureThreshold)
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		errs = append(errs, fmt.Errorf("analysis.pressure_threshold inválido: %v", threshold))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port inválida: %d", c.Server.Port))
	}
	if c.Log.Level != "" {
		if _, err := logger.ParseLevel(c.Log.Level); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Load carrega a configuração de path. Se o arquivo não existir ele é criado
// com os valores padrão. Variáveis TANALYZER_* (inclusive de um .env)
// sobrescrevem o arquivo.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warnf("Arquivo .env ignorado: %v", err)
	}

	config := getDefaultConfig()

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := Save(path, &config); err != nil {
			return nil, err
		}
		logger.Warnf("Arquivo de configuração %s criado com valores padrão", path)
	} else if err != nil {
		return nil, fmt.Errorf("erro ao acessar %s: %w", path, err)
	} else if err := decodeFile(path, &config); err != nil {
		return nil, err
	}

	if err := applyEnvironmentOverrides(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuração inválida: %w", err)
	}

	return &config, nil
}

// Default retorna uma cópia da configuração padrão
func Default() *Config {
	config := getDefaultConfig()
	return &config
}

func decodeFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("erro ao ler %s: %w", path, err)
	}

	switch format(path) {
	case "toml":
		err = toml.Unmarshal(data, config)
	case "yaml":
		err = yaml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return fmt.Errorf("erro ao decodificar %s: %w", path, err)
	}
	return nil
}

// Save grava a configuração no formato indicado pela extensão
func Save(path string, config *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("erro ao criar diretório de configuração: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("erro ao criar %s: %w", path, err)
	}
	defer file.Close()

	switch format(path) {
	case "toml":
		err = toml.NewEncoder(file).Encode(config)
	case "yaml":
		enc := yaml.NewEncoder(file)
		enc.SetIndent(2)
		err = enc.Encode(config)
		if err == nil {
			err = enc.Close()
		}
	default:
		enc := json.NewEncoder(file)
		enc.SetIndent("", "  ")
		err = enc.Encode(config)
	}
	if err != nil {
		return fmt.Errorf("erro ao gravar %s: %w", path, err)
	}
	return nil
}

func format(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return "toml"
	case ".yaml", ".yml":
		return "yaml"
	}
	return "json"
}

// applyEnvironmentOverrides sobrescreve configurações com variáveis de ambiente
func applyEnvironmentOverrides(config *Config) error {
	strVars := map[string]*string{
		"PRESSURE_FIELD":     &config.Analysis.PressureField,
		"DISPLACEMENT_FIELD": &config.Analysis.DisplacementField,
		"MIN_MAX_FIELD":      &config.Analysis.MinMaxField,
		"INPUT_DIR":          &config.Paths.InputDir,
		"OUTPUT_DIR":         &config.Paths.OutputDir,
		"LOG_LEVEL":          &config.Log.Level,
		"REDIS_HOST":         &config.Redis.Host,
		"REDIS_PASSWORD":     &config.Redis.Password,
		"PLC_HOST":           &config.PLC.Host,
		"STORAGE_PATH":       &config.Storage.Path,
	}
	for name, target := range strVars {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*target = v
		}
	}

	intVars := map[string]*int{
		"SERVER_PORT": &config.Server.Port,
		"REDIS_PORT":  &config.Redis.Port,
		"REDIS_DB":    &config.Redis.DB,
	}
	for name, target := range intVars {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("variável %s%s inválida: %w", EnvPrefix, name, err)
			}
			*target = n
		}
	}

	boolVars := map[string]*bool{
		"REDIS_ENABLED":   &config.Redis.Enabled,
		"STORAGE_ENABLED": &config.Storage.Enabled,
		"PLC_ENABLED":     &config.PLC.Enabled,
	}
	for name, target := range boolVars {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("variável %s%s inválida: %w", EnvPrefix, name, err)
			}
			*target = b
		}
	}

	if v, ok := os.LookupEnv(EnvPrefix + "PRESSURE_THRESHOLD"); ok {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return fmt.Errorf("variável %sPRESSURE_THRESHOLD inválida: %w", EnvPrefix, err)
		}
		config.Analysis.PressureThreshold = float32(f)
	}

	return nil
}

// Duration aceita "500ms", "10s" nos arquivos de configuração
type Duration struct {
	time.Duration
}

// Dur atalho para construir Duration
func Dur(d time.Duration) Duration {
	return Duration{Duration: d}
}

// MarshalText implementa encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implementa encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("duração inválida %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}
