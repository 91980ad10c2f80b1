package http

import "net/http"

const healthPath = "/health"

// handleHealth answers health checks with an empty 200
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
