package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "schedsim API",
		Version:     "v1",
		Description: "CPU job scheduling simulator: launch simulations and inspect their results",
		Endpoints: []endpointInfo{
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
			{"/api/v1/policies", []string{"GET"}, "Registered schedulers, producers, consumers and displays"},
			{"/api/v1/runs", []string{"GET", "POST"}, "Run management. POST accepts a simulation config and starts a virtual-time run"},
			{"/api/v1/runs/{id}", []string{"GET"}, "Single Run with its summary"},
			{"/api/v1/runs/{id}/jobs", []string{"GET"}, "Per-job results of a Run in finish order"},
			{"/api/v1/sse/runs/{id}", []string{"GET"}, "Server-Sent Events stream of Run state changes"},
			{"/metrics", []string{"GET"}, "Prometheus metrics"},
			{"/ui/", []string{"GET"}, "HTML dashboard of runs"},
		},
	})
}
