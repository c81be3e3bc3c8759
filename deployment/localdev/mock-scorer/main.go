package main

import (
	"encoding/json"
	"log"
	"net/http"
	"time"
)

type featureVector struct {
	RequestRate            float64 `json:"request_rate"`
	UniqueEndpointCount    int     `json:"unique_endpoint_count"`
	ErrorRate              float64 `json:"error_rate"`
	RepeatedParameterRatio float64 `json:"repeated_parameter_ratio"`
	UserAgentEntropy       float64 `json:"user_agent_entropy"`
	AvgPayloadSize         float64 `json:"avg_payload_size"`
	AvgResponseTimeMs      float64 `json:"avg_response_time_ms"`
}

type scoreResponse struct {
	OutlierScore       float64 `json:"outlier_score"`
	MisuseProbability  float64 `json:"misuse_probability"`
	ClusterID          int     `json:"cluster_id"`
	FailureProbability float64 `json:"failure_probability"`
}

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/v1/score", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var v featureVector
		if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		// Crude heuristics so pipeline behaviour is observable end to end.
		resp := scoreResponse{ClusterID: 0}
		if v.ErrorRate > 0.3 || v.AvgResponseTimeMs > 800 {
			resp.OutlierScore = 0.85
			resp.FailureProbability = 0.7
			resp.ClusterID = 1
		}
		if v.RepeatedParameterRatio > 0.7 && v.UserAgentEntropy < 0.2 {
			resp.MisuseProbability = 0.9
			resp.ClusterID = 2
		}
		writeJSON(w, resp)
	})

	logger := log.New(log.Writer(), "scorer-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    ":9901",
		Handler: logRequests(logger, mux),
	}

	logger.Println("listening on :9901")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
