package server

import (
	"errors"
	"net/http"

	"github.com/leapstack-labs/manifestkit/pkg/formula"
)

type evaluateRequest struct {
	Formula string            `json:"formula"`
	Row     map[string]string `json:"row"`
}

type evaluateResponse struct {
	Value string `json:"value"`
}

type validateResponse struct {
	Valid    bool   `json:"valid"`
	Error    string `json:"error,omitempty"`
	Position *int   `json:"position,omitempty"`
}

// formulaError renders a formula failure, carrying its position when known.
func formulaError(err error) errorResponse {
	resp := errorResponse{Error: err.Error()}
	var ferr *formula.Error
	if errors.As(err, &ferr) && ferr.Pos >= 0 {
		pos := ferr.Pos
		resp.Position = &pos
	}
	return resp
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	value, err := formula.Evaluate(req.Formula, req.Row)
	if err != nil {
		s.metrics.FormulaEvaluations.WithLabelValues("error").Inc()
		writeJSON(w, http.StatusUnprocessableEntity, formulaError(err))
		return
	}

	s.metrics.FormulaEvaluations.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, evaluateResponse{Value: value})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := formula.Validate(req.Formula); err != nil {
		fe := formulaError(err)
		writeJSON(w, http.StatusOK, validateResponse{Error: fe.Error, Position: fe.Position})
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{Valid: true})
}
