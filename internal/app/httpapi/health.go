package httpapi

import (
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

type healthResponse struct {
	Status     string  `json:"status"`
	Uptime     string  `json:"uptime"`
	Goroutines int     `json:"goroutines"`
	Hostname   string  `json:"hostname,omitempty"`
	Platform   string  `json:"platform,omitempty"`
	MemUsedPct float64 `json:"mem_used_pct,omitempty"`
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:     "ok",
		Uptime:     time.Since(h.started).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
	}

	// Host and memory stats are informational only; failures never flip the
	// health status.
	if info, err := host.Info(); err == nil {
		resp.Hostname = info.Hostname
		resp.Platform = info.Platform
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		resp.MemUsedPct = vm.UsedPercent
	}

	writeJSON(w, http.StatusOK, resp)
}
