// Package bus is the concrete transport satisfying spec.md §6.2's bus
// contract: JSON objects with string keys, unsigned-integer ids, epoch-
// millisecond timestamps, and explicit narrowing of the three-way numeric
// sum type "the bus" is specified to carry (signed/unsigned/float).
//
// Grounded on the teacher's pkg/client/client.go (HTTP client shape,
// timeouts, optional TLS transport) generalized from provisr's one daemon
// API to Guillotine's two RPC surfaces (host and node).
package bus

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/guillotine-sh/guillotine/internal/procspec"
)

// Envelope is embedded in every RPC request shape: the payload fields stay
// top-level JSON keys, plus a correlation id used only for
// logging/tracing a command across the host→node hop (spec.md §9 numeric
// variants note is handled per-field below, not at the envelope level).
type Envelope struct {
	CorrelationID string `json:"correlationId,omitempty"`
}

// --- Node RPC surface request/response shapes (spec.md §4.5) ---

type ModuleIDRequest struct {
	Envelope
	ModuleID uint64 `json:"moduleId"`
}

type PathRequest struct {
	Envelope
	Path string `json:"path"`
}

type SuccessResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type AddResponse struct {
	SuccessResponse
	ModuleID uint64 `json:"moduleId,omitempty"`
}

type LogsResponse struct {
	Success bool   `json:"success"`
	Stdout  string `json:"stdout,omitempty"`
	Stderr  string `json:"stderr,omitempty"`
	Error   string `json:"error,omitempty"`
}

// --- Host RPC surface request/response shapes (spec.md §4.6) ---

type RegisterNodeRequest struct {
	Envelope
	Name string `json:"name"`
	Addr string `json:"addr"` // base URL of the node's own RPC surface
}

type RegisterProcessRequest struct {
	Envelope
	Node          string           `json:"node"`
	Config        procspec.Config  `json:"config"`
	LogDir        string           `json:"logDir,omitempty"`
	WorkingDir    string           `json:"workingDir"`
	Status        procspec.Status  `json:"status"`
	LastStartedAt Number           `json:"lastStartedAt"`
	CreatedAt     Number           `json:"createdAt"`
}

type RegisterProcessResponse struct {
	Success  bool   `json:"success"`
	ModuleID uint64 `json:"moduleId,omitempty"`
	Error    string `json:"error,omitempty"`
}

type OnProcessExitedRequest struct {
	Envelope
	Node     string `json:"node"`
	ModuleID uint64 `json:"moduleId"`
	Crash    bool   `json:"crash"`
}

type OnProcessExitedResponse struct {
	Success       bool   `json:"success"`
	ShouldRestart bool   `json:"shouldRestart"`
	WaitDuration  Number `json:"waitDuration"`
}

type OnProcessRunningRequest struct {
	Envelope
	Node          string `json:"node"`
	ModuleID      uint64 `json:"moduleId"`
	LastSpawnedAt Number `json:"lastSpawnedAt"`
}

// ProcessView is the response shape for any endpoint returning process
// objects (spec.md §4.6: "Each process object in responses includes id,
// name, status, node, restarts, uptime, crashes, createdAt, plus logDir,
// workingDir, config{…} for the info endpoint").
type ProcessView struct {
	ID        uint64          `json:"id"`
	Name      string          `json:"name"`
	Status    procspec.Status `json:"status"`
	Node      string          `json:"node"`
	Restarts  int64           `json:"restarts"`
	Uptime    uint64          `json:"uptime"`
	Crashes   uint64          `json:"crashes"`
	CreatedAt uint64          `json:"createdAt"`

	LogDir     string          `json:"logDir,omitempty"`
	WorkingDir string          `json:"workingDir,omitempty"`
	Config     *procspec.Config `json:"config,omitempty"`
}

// FromRecord projects a procspec.Record into the wire shape, optionally
// including the detail-only fields (getProcessInfo vs. list endpoints).
func FromRecord(r *procspec.Record, nowMillis uint64, detailed bool) ProcessView {
	v := ProcessView{
		ID:        r.ModuleID,
		Name:      r.Config.Name,
		Status:    r.Status,
		Node:      r.NodeName,
		Restarts:  r.Restarts,
		Uptime:    r.Uptime(nowMillis),
		Crashes:   r.Crashes,
		CreatedAt: r.CreatedAt,
	}
	if detailed {
		v.LogDir = r.LogDir
		v.WorkingDir = r.WorkingDir
		cfg := r.Config
		v.Config = &cfg
	}
	return v
}

type NodeView struct {
	Name      string   `json:"name"`
	Connected bool     `json:"connected"`
	Modules   []string `json:"modules"`
}

type ListNodesResponse struct {
	Success bool       `json:"success"`
	Nodes   []NodeView `json:"nodes"`
}

type ListProcessesResponse struct {
	Success   bool          `json:"success"`
	Processes []ProcessView `json:"processes"`
}

type GetProcessInfoResponse struct {
	Success bool        `json:"success"`
	Process ProcessView `json:"process"`
	Error   string      `json:"error,omitempty"`
}

type ListModulesResponse struct {
	Success bool     `json:"success"`
	Modules []string `json:"modules"`
}

// Number is the explicit-narrowing numeric wire type (spec.md §9): it
// decodes JSON numbers without assuming signed/unsigned/float, and the
// destination type narrows explicitly via the Uint64 accessor instead of a
// direct float64 cast.
type Number struct {
	raw json.Number
}

func NumberFromUint64(v uint64) Number { return Number{raw: json.Number(fmt.Sprintf("%d", v))} }

func (n Number) MarshalJSON() ([]byte, error) { return []byte(n.raw), nil }

func (n *Number) UnmarshalJSON(b []byte) error {
	var raw json.Number
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	n.raw = raw
	return nil
}

// Uint64 narrows to an unsigned 64-bit integer, rejecting negative or
// fractional values explicitly rather than truncating silently.
func (n Number) Uint64() (uint64, error) {
	if n.raw == "" {
		return 0, nil
	}
	i, err := n.raw.Int64()
	if err != nil {
		f, ferr := n.raw.Float64()
		if ferr != nil {
			return 0, fmt.Errorf("bus: numeric field %q is neither an integer nor a float", n.raw)
		}
		if f < 0 {
			return 0, fmt.Errorf("bus: numeric field %q is negative, cannot narrow to uint64", n.raw)
		}
		if f != math.Trunc(f) {
			return 0, fmt.Errorf("bus: numeric field %q is fractional, cannot narrow to uint64", n.raw)
		}
		return uint64(f), nil
	}
	if i < 0 {
		return 0, fmt.Errorf("bus: numeric field %q is negative, cannot narrow to uint64", n.raw)
	}
	return uint64(i), nil
}
