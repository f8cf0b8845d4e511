package config

import (
	"time"
)

// DefaultStoragePath banco SQLite usado quando a configuração não indica outro
const DefaultStoragePath = "tanalyzer.sqlite3"

// getDefaultConfig retorna uma configuração padrão
func getDefaultConfig() Config {
	return Config{
		Analysis: AnalysisConfig{
			PressureField:     "F_pri_pressure_bar",
			DisplacementField: "Displacement_A_mm",
			MinMaxField:       "Displacement_A_mm",
			PressureThreshold: 101,
		},
		Paths: PathsConfig{
			InputDir:  "input",
			OutputDir: "output",
		},
		Log: LogConfig{
			Level: "INFO",
			Dir:   "logs",
			File:  false,
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Dur(30 * time.Second),
			WriteTimeout:    Dur(30 * time.Second),
			ShutdownTimeout: Dur(10 * time.Second),
			Discovery:       false,
			HistorySize:     50,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Host:     "localhost",
			Port:     6379,
			Password: "",
			DB:       0,
			Prefix:   "tanalyzer",
			TTL:      Dur(7 * 24 * time.Hour),
		},
		Storage: StorageConfig{
			Enabled: false,
			// nome fixo: execuções sucessivas acumulam no mesmo banco
			Path: DefaultStoragePath,
		},
		PLC: PLCConfig{
			Enabled:     false,
			Host:        "192.168.1.100",
			Rack:        0,
			Slot:        1,
			DBNumber:    10,
			Timeout:     Dur(5 * time.Second),
			IdleTimeout: Dur(70 * time.Second),
		},
	}
}
