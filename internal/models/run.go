package models

import (
	"time"

	"tanalyzer_go/internal/cycle"
)

// RunStatus estado de uma análise
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunDone    RunStatus = "done"
	RunFailed  RunStatus = "failed"
)

// Run representa uma análise de um arquivo de log
type Run struct {
	ID         string           `json:"id"`
	File       string           `json:"file"`
	Status     RunStatus        `json:"status"`
	Thresholds cycle.Thresholds `json:"thresholds"`
	TotalLines int              `json:"totalLines"`
	Lines      int              `json:"lines"`
	Cycles     int              `json:"cycles"`
	Discarded  int              `json:"discarded"`
	OutputPath string           `json:"outputPath,omitempty"`
	Error      string           `json:"error,omitempty"`
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt *time.Time       `json:"finishedAt,omitempty"`
	ElapsedMs  int64            `json:"elapsedMs"`
	RSSBytes   uint64           `json:"rssBytes,omitempty"`
}

// IsFinished indica se a análise terminou, com sucesso ou falha
func (r *Run) IsFinished() bool {
	return r.Status == RunDone || r.Status == RunFailed
}

// Summary resumo enviado para sistemas externos (PLC, Redis)
type Summary struct {
	RunID       string  `json:"runId"`
	Cycles      int     `json:"cycles"`
	Discarded   int     `json:"discarded"`
	Lines       int     `json:"lines"`
	LastMin     float32 `json:"lastMin"`
	LastMax     float32 `json:"lastMax"`
	LastSamples int     `json:"lastSamples"`
	// LastEmpty sem ciclos ou último ciclo sem min/max; LastMin e LastMax
	// ficam zerados e não devem ser lidos
	LastEmpty bool `json:"lastEmpty"`
}

// NewSummary monta o resumo de uma análise concluída
func NewSummary(run *Run, ds *cycle.Dataset) Summary {
	s := Summary{
		RunID:     run.ID,
		Cycles:    run.Cycles,
		Discarded: run.Discarded,
		Lines:     run.Lines,
		LastEmpty: true,
	}
	if last, ok := ds.Last(); ok {
		if min, max, ok := last.Extremum.Range(); ok {
			s.LastMin = min
			s.LastMax = max
			s.LastEmpty = false
		}
		s.LastSamples = last.Samples
	}
	return s
}

// FileInfo arquivo disponível no diretório de entrada
type FileInfo struct {
	Index    int       `json:"index"`
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}
