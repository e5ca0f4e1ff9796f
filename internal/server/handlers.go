package server

import (
	"encoding/json"
	"net/http"

	"github.com/jfoltran/intake/internal/config"
	"github.com/jfoltran/intake/internal/metrics"
)

type handlers struct {
	collector *metrics.Collector
	cfg       *config.Config
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	snap := h.collector.Snapshot()
	writeJSON(w, snap)
}

func (h *handlers) configHandler(w http.ResponseWriter, r *http.Request) {
	if h.cfg == nil {
		writeJSON(w, map[string]string{"error": "no config available"})
		return
	}
	// source.url may embed credentials; redact it from the API response.
	redacted := struct {
		Source  redactedSource       `json:"source"`
		Segment config.SegmentConfig `json:"segment"`
		Output  config.OutputConfig  `json:"output"`
	}{
		Source:  redactSource(h.cfg.Source),
		Segment: h.cfg.Segment,
		Output:  h.cfg.Output,
	}
	writeJSON(w, redacted)
}

func (h *handlers) logs(w http.ResponseWriter, r *http.Request) {
	entries := h.collector.Logs()
	writeJSON(w, entries)
}

type redactedSource struct {
	Driver      string `json:"driver"`
	State       string `json:"state"`
	Publication string `json:"publication"`
}

func redactSource(s config.SourceConfig) redactedSource {
	return redactedSource{
		Driver:      s.Driver,
		State:       s.State,
		Publication: s.Publication,
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
