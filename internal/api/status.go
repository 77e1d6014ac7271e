package api

import (
	"net/http"
)

// Service identity reported on the root endpoint. The name and version are
// part of the contract with the main service's health checks.
const (
	serviceName    = "Art Analysis Async Service"
	serviceVersion = "1.0.0"
)

type identityResponse struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Status  string `json:"status"`
}

type healthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, identityResponse{
		Service: serviceName,
		Version: serviceVersion,
		Status:  "running",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "healthy"})
}
