package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cascadeio/cascade/checkpoint"
)

type operatorResponse struct {
	OperatorID   int64           `json:"operatorId"`
	OperatorName string          `json:"operatorName"`
	Version      int32           `json:"formatVersion"`
	StateStores  []storeResponse `json:"stateStores"`
}

type storeResponse struct {
	StoreName        string `json:"storeName"`
	NumColsPrefixKey int32  `json:"numColsPrefixKey"`
	NumPartitions    int32  `json:"numPartitions"`
}

func toResponse(m checkpoint.OperatorStateMetadata) operatorResponse {
	resp := operatorResponse{
		OperatorID:   m.OperatorInfo.OperatorID,
		OperatorName: m.OperatorInfo.OperatorName,
		Version:      m.Version,
		StateStores:  make([]storeResponse, 0, len(m.StateStores)),
	}
	for _, store := range m.StateStores {
		resp.StateStores = append(resp.StateStores, storeResponse(store))
	}
	return resp
}

// handleListOperators returns the persisted metadata of every operator
// under the checkpoint root.
func (s *Server) handleListOperators(w http.ResponseWriter, r *http.Request) {
	ids, err := checkpoint.ListOperators(s.checkpointRoot)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	operators := make([]operatorResponse, 0, len(ids))
	for _, id := range ids {
		m, found, err := checkpoint.NewMetadataReader(s.checkpointRoot, id).Read()
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		if !found {
			continue
		}
		operators = append(operators, toResponse(m))
	}

	s.writeJSON(w, http.StatusOK, operators)
}

// handleGetOperator returns the persisted metadata of one operator.
func (s *Server) handleGetOperator(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "operatorID"), 10, 64)
	if err != nil || id < 0 {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid operator id"))
		return
	}

	m, found, err := checkpoint.NewMetadataReader(s.checkpointRoot, id).Read()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		s.writeError(w, http.StatusNotFound, errors.New("no metadata for operator"))
		return
	}

	s.writeJSON(w, http.StatusOK, toResponse(m))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Err(err).Int("status", status).Msg("admin request failed")
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
