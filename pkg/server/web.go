package server

import (
	"encoding/json"
	"net/http"

	"github.com/appscode/pat"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// startWeb brings up the HTTP monitoring API (spec's DOMAIN STACK:
// appscode/pat is the teacher's router of choice, wired here the way
// cmd/server.go's --web-addr flag always intended). Listens only when
// WebAddress is non-empty.
func (s *Server) startWeb() {
	if s.cfg.WebAddress == "" {
		return
	}
	mux := pat.New()
	mux.Get("/status", http.HandlerFunc(s.webStatus))
	mux.Get("/workers", http.HandlerFunc(s.webWorkers))
	mux.Get("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(s.cfg.WebAddress, mux); err != nil {
			s.log.Errorf("gearhulk: web interface stopped: %v", err)
		}
	}()
}

type functionStatus struct {
	Name     string `json:"function"`
	Queued   int    `json:"queued"`
	Running  int    `json:"running"`
	Workers  int    `json:"workers"`
	Sleeping int    `json:"sleeping"`
}

// webStatus reports per-function queue/worker counts, the JSON
// equivalent of the admin "status" verb (spec §8 *Administrative
// protocol*).
func (s *Server) webStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]functionStatus, 0, len(s.functions.entries))
	for name, fe := range s.functions.entries {
		running := 0
		for _, j := range s.jobs.byHandle {
			if j.Function == name && j.State == jobRunning {
				running++
			}
		}
		out = append(out, functionStatus{
			Name:     name,
			Queued:   fe.queueLen(),
			Running:  running,
			Workers:  len(fe.workers),
			Sleeping: fe.sleeping.len(),
		})
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

type workerInfo struct {
	Functions []string `json:"functions"`
}

func (s *Server) webWorkers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	seen := make(map[*Connection]*workerInfo)
	for name, fe := range s.functions.entries {
		for conn := range fe.workers {
			wi, ok := seen[conn]
			if !ok {
				wi = &workerInfo{}
				seen[conn] = wi
			}
			wi.Functions = append(wi.Functions, name)
		}
	}
	out := make([]*workerInfo, 0, len(seen))
	for _, wi := range seen {
		out = append(out, wi)
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}
