package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"tanalyzer_go/internal/analysis"
	"tanalyzer_go/internal/cycle"
	"tanalyzer_go/internal/models"
	"tanalyzer_go/internal/output"
	"tanalyzer_go/internal/redis"
	"tanalyzer_go/pkg/logger"
)

// limite do corpo de POST /runs
const maxRequestBody = 64 * 1024

// Handler contém os handlers HTTP para a API
type Handler struct {
	analysisService *analysis.Service
	redisService    *redis.Service
}

// NewHandler cria um novo handler de API. redisService pode ser nil.
func NewHandler(analysisService *analysis.Service, redisService *redis.Service) *Handler {
	return &Handler{
		analysisService: analysisService,
		redisService:    redisService,
	}
}

// StartRunRequest corpo de POST /runs
type StartRunRequest struct {
	File string `json:"file"`
}

// StartRun inicia a análise de um arquivo do diretório de entrada
func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	var req StartRunRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Corpo inválido: esperado {\"file\": \"nome\"}")
		return
	}

	run, err := h.analysisService.Start(req.File)
	switch {
	case errors.Is(err, analysis.ErrBusy):
		h.respondWithError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, analysis.ErrInvalidFile):
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/runs/%s", run.ID))
	h.respondWithJSON(w, http.StatusAccepted, run)
}

// ListRuns retorna as análises da mais recente para a mais antiga. Sem
// histórico em memória (servidor reiniciado), usa o índice do Redis.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs := h.analysisService.History()
	if len(runs) > 0 || h.redisService == nil || !h.redisService.IsConnected() {
		h.respondWithJSON(w, http.StatusOK, runs)
		return
	}

	ids, err := h.redisService.ListRunIDs(r.Context(), 0)
	if err != nil {
		logger.Warnf("Erro ao listar análises no Redis: %v", err)
		h.respondWithJSON(w, http.StatusOK, runs)
		return
	}
	for _, id := range ids {
		stored, err := h.redisService.GetRun(r.Context(), id)
		if err != nil {
			continue
		}
		runs = append(runs, *stored)
	}
	h.respondWithJSON(w, http.StatusOK, runs)
}

// GetRun retorna o estado de uma análise
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	run, err := h.findRun(r, id)
	if err != nil {
		h.respondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	h.respondWithJSON(w, http.StatusOK, run)
}

// GetLatestRun retorna a última análise concluída
func (h *Handler) GetLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.analysisService.LatestRun()
	if err == nil {
		h.respondWithJSON(w, http.StatusOK, run)
		return
	}

	if h.redisService != nil && h.redisService.IsConnected() {
		if stored, rerr := h.redisService.GetLatestRun(r.Context()); rerr == nil {
			h.respondWithJSON(w, http.StatusOK, stored)
			return
		}
	}

	h.respondWithError(w, http.StatusNotFound, "Nenhuma análise concluída")
}

// GetCycles retorna os ciclos confirmados de uma análise
func (h *Handler) GetCycles(w http.ResponseWriter, r *http.Request) {
	ds, err := h.findDataset(r, mux.Vars(r)["id"])
	if err != nil {
		h.respondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	h.respondWithJSON(w, http.StatusOK, ds.Entries())
}

// GetOutput retorna o conteúdo .trd de uma análise
func (h *Handler) GetOutput(w http.ResponseWriter, r *http.Request) {
	ds, err := h.findDataset(r, mux.Vars(r)["id"])
	if err != nil {
		h.respondWithError(w, http.StatusNotFound, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := output.Write(w, ds, nil); err != nil {
		logger.Errorf("Erro ao enviar saída: %v", err)
	}
}

// ListFiles lista os arquivos disponíveis para análise
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := analysis.ListInputFiles(h.analysisService.InputDir())
	if err != nil {
		h.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.respondWithJSON(w, http.StatusOK, files)
}

// GetStatus retorna se há análise em andamento
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, h.analysisService.Status())
}

// findRun procura em memória e depois no Redis
func (h *Handler) findRun(r *http.Request, id string) (models.Run, error) {
	run, err := h.analysisService.GetRun(id)
	if err == nil {
		return run, nil
	}

	if h.redisService != nil && h.redisService.IsConnected() {
		stored, rerr := h.redisService.GetRun(r.Context(), id)
		if rerr == nil {
			return *stored, nil
		}
	}
	return models.Run{}, err
}

// findDataset procura em memória e depois no Redis
func (h *Handler) findDataset(r *http.Request, id string) (*cycle.Dataset, error) {
	ds, err := h.analysisService.GetDataset(id)
	if err == nil {
		return ds, nil
	}

	if h.redisService != nil && h.redisService.IsConnected() {
		if _, rerr := h.redisService.GetRun(r.Context(), id); rerr == nil {
			if stored, rerr := h.redisService.GetCycles(r.Context(), id); rerr == nil {
				return stored, nil
			}
		}
	}
	return nil, err
}

// respondWithError responde com erro em formato JSON
func (h *Handler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithJSON responde com JSON
func (h *Handler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Errorf("Erro ao codificar resposta JSON: %v", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":"Erro interno ao processar resposta"}`)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}
