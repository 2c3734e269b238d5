package server

import (
	"net/http"

	"github.com/me/schedsim/internal/scheduler"
	"github.com/me/schedsim/pkg/model"
)

type policiesResponse struct {
	Schedulers []model.SchedulerKind `json:"schedulers"`
	Producers  []model.ProducerKind  `json:"producers"`
	Consumers  []model.ConsumerKind  `json:"consumers"`
	Displays   []model.DisplayKind   `json:"displays"`
}

func (s *Server) handlePolicies(w http.ResponseWriter, r *http.Request) {
	respondOK(w, RequestIDFromContext(r.Context()), policiesResponse{
		Schedulers: scheduler.Kinds(),
		Producers:  model.ProducerKinds(),
		Consumers:  model.ConsumerKinds(),
		Displays:   model.DisplayKinds(),
	})
}
