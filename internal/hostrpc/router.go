// Package hostrpc exposes the host's RPC surface over HTTP (spec.md §4.6),
// mounted at /guillotine. Grounded on the teacher's internal/server/router.go
// (gin.Engine construction, one handler func per endpoint, JSON in/out).
package hostrpc

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/guillotine-sh/guillotine/internal/bus"
	"github.com/guillotine-sh/guillotine/internal/hostloop"
	"github.com/guillotine-sh/guillotine/internal/procspec"
)

// nowMillis stamps response uptimes; epoch-millisecond per spec.md §9.
func nowMillis() uint64 { return uint64(time.Now().UnixMilli()) }

// New builds the gin router for the host, mounted under "/guillotine".
func New(l *hostloop.Loop) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	g := r.Group("/guillotine")
	g.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	// Node → host events.
	g.POST("/registerNode", handleRegisterNode(l))
	g.POST("/registerProcess", handleRegisterProcess(l))
	g.POST("/onProcessExited", handleProcessExited(l))
	g.POST("/onProcessRunning", handleProcessRunning(l))

	// CLI → host queries.
	g.POST("/listNodes", handleListNodes(l))
	g.POST("/listAllProcesses", handleListAllProcesses(l))
	g.POST("/listProcesses", handleListProcesses(l))
	g.POST("/getProcessInfo", handleGetProcessInfo(l))
	g.POST("/listModules", handleListModules(l))

	// CLI → host commands, routed to the owning node.
	g.POST("/restartProcess", handleRouted(l, hostloop.MsgRestartProcess))
	g.POST("/startProcess", handleRouted(l, hostloop.MsgStartProcess))
	g.POST("/stopProcess", handleRouted(l, hostloop.MsgStopProcess))
	g.POST("/deleteProcess", handleRouted(l, hostloop.MsgDeleteProcess))
	g.POST("/getProcessLogs", handleGetLogs(l))
	g.POST("/addProcess", handleAddProcess(l))

	return r
}

func ask(l *hostloop.Loop, m hostloop.Msg) hostloop.Reply {
	reply := make(chan hostloop.Reply, 1)
	m.Reply = reply
	l.Submit(m)
	select {
	case r := <-reply:
		return r
	case <-time.After(30 * time.Second):
		return hostloop.Reply{Err: errTimeout}
	}
}

var errTimeout = &timeoutError{}

type timeoutError struct{}

func (*timeoutError) Error() string { return "host loop did not reply in time" }

func handleRegisterNode(l *hostloop.Loop) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req bus.RegisterNodeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, bus.SuccessResponse{Error: err.Error()})
			return
		}
		addr := req.Addr
		if addr == "" {
			addr = "http://" + c.ClientIP()
		}
		l.Submit(hostloop.Msg{Kind: hostloop.MsgRegisterNode, NodeName: req.Name, NodeAddr: addr})
		c.JSON(http.StatusOK, bus.SuccessResponse{Success: true})
	}
}

func handleRegisterProcess(l *hostloop.Loop) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req bus.RegisterProcessRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, bus.RegisterProcessResponse{Error: err.Error()})
			return
		}
		lastStarted, err := req.LastStartedAt.Uint64()
		if err != nil {
			c.JSON(http.StatusBadRequest, bus.RegisterProcessResponse{Error: err.Error()})
			return
		}
		createdAt, err := req.CreatedAt.Uint64()
		if err != nil {
			c.JSON(http.StatusBadRequest, bus.RegisterProcessResponse{Error: err.Error()})
			return
		}
		r := ask(l, hostloop.Msg{
			Kind:          hostloop.MsgRegisterProcess,
			NodeName:      req.Node,
			Config:        req.Config,
			LogDir:        req.LogDir,
			WorkDir:       req.WorkingDir,
			Status:        req.Status,
			LastStartedAt: lastStarted,
			CreatedAt:     createdAt,
		})
		if r.Err != nil {
			c.JSON(http.StatusOK, bus.RegisterProcessResponse{Error: r.Err.Error()})
			return
		}
		c.JSON(http.StatusOK, bus.RegisterProcessResponse{Success: true, ModuleID: r.ModuleID})
	}
}

func handleProcessExited(l *hostloop.Loop) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req bus.OnProcessExitedRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, bus.OnProcessExitedResponse{})
			return
		}
		r := ask(l, hostloop.Msg{Kind: hostloop.MsgProcessExited, NodeName: req.Node, ModuleID: req.ModuleID, Crash: req.Crash})
		if r.Err != nil {
			c.JSON(http.StatusOK, bus.OnProcessExitedResponse{Success: false})
			return
		}
		c.JSON(http.StatusOK, bus.OnProcessExitedResponse{
			Success:       true,
			ShouldRestart: r.ShouldRestart,
			WaitDuration:  bus.NumberFromUint64(r.WaitMillis),
		})
	}
}

func handleProcessRunning(l *hostloop.Loop) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req bus.OnProcessRunningRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, bus.SuccessResponse{Error: err.Error()})
			return
		}
		last, err := req.LastSpawnedAt.Uint64()
		if err != nil {
			c.JSON(http.StatusBadRequest, bus.SuccessResponse{Error: err.Error()})
			return
		}
		r := ask(l, hostloop.Msg{Kind: hostloop.MsgProcessRunning, NodeName: req.Node, ModuleID: req.ModuleID, AtMillis: last})
		if r.Err != nil {
			c.JSON(http.StatusOK, bus.SuccessResponse{Error: r.Err.Error()})
			return
		}
		c.JSON(http.StatusOK, bus.SuccessResponse{Success: true})
	}
}

func handleListNodes(l *hostloop.Loop) gin.HandlerFunc {
	return func(c *gin.Context) {
		r := ask(l, hostloop.Msg{Kind: hostloop.MsgListNodes})
		views := make([]bus.NodeView, 0, len(r.Nodes))
		for _, n := range r.Nodes {
			names := make([]string, 0, len(n.Processes))
			for _, p := range n.Processes {
				names = append(names, p.Config.Name)
			}
			views = append(views, bus.NodeView{Name: n.Name, Connected: n.Connected, Modules: names})
		}
		c.JSON(http.StatusOK, bus.ListNodesResponse{Success: true, Nodes: views})
	}
}

func handleListAllProcesses(l *hostloop.Loop) gin.HandlerFunc {
	return func(c *gin.Context) {
		r := ask(l, hostloop.Msg{Kind: hostloop.MsgListAllProcesses})
		c.JSON(http.StatusOK, bus.ListProcessesResponse{Success: true, Processes: viewsOf(r.Processes)})
	}
}

func handleListProcesses(l *hostloop.Loop) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req bus.RegisterNodeRequest // reuses {name} shape
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, bus.ListProcessesResponse{})
			return
		}
		r := ask(l, hostloop.Msg{Kind: hostloop.MsgListProcesses, NodeName: req.Name})
		if r.Err != nil {
			c.JSON(http.StatusOK, bus.ListProcessesResponse{Success: false})
			return
		}
		c.JSON(http.StatusOK, bus.ListProcessesResponse{Success: true, Processes: viewsOf(r.Processes)})
	}
}

func handleGetProcessInfo(l *hostloop.Loop) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req bus.ModuleIDRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, bus.GetProcessInfoResponse{Error: err.Error()})
			return
		}
		r := ask(l, hostloop.Msg{Kind: hostloop.MsgGetProcessInfo, ModuleID: req.ModuleID})
		if r.Err != nil {
			c.JSON(http.StatusOK, bus.GetProcessInfoResponse{Error: r.Err.Error()})
			return
		}
		c.JSON(http.StatusOK, bus.GetProcessInfoResponse{Success: true, Process: bus.FromRecord(r.Record, nowMillis(), true)})
	}
}

func handleListModules(l *hostloop.Loop) gin.HandlerFunc {
	return func(c *gin.Context) {
		r := ask(l, hostloop.Msg{Kind: hostloop.MsgListModules})
		c.JSON(http.StatusOK, bus.ListModulesResponse{Success: true, Modules: r.Modules})
	}
}

func handleRouted(l *hostloop.Loop, kind hostloop.MsgKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req bus.ModuleIDRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, bus.SuccessResponse{Error: err.Error()})
			return
		}
		r := ask(l, hostloop.Msg{Kind: kind, ModuleID: req.ModuleID})
		if r.Err != nil {
			c.JSON(http.StatusOK, bus.SuccessResponse{Error: r.Err.Error()})
			return
		}
		c.JSON(http.StatusOK, bus.SuccessResponse{Success: true})
	}
}

func handleGetLogs(l *hostloop.Loop) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req bus.ModuleIDRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, bus.LogsResponse{Error: err.Error()})
			return
		}
		r := ask(l, hostloop.Msg{Kind: hostloop.MsgGetProcessLogs, ModuleID: req.ModuleID})
		if r.Err != nil {
			c.JSON(http.StatusOK, bus.LogsResponse{Error: r.Err.Error()})
			return
		}
		c.JSON(http.StatusOK, bus.LogsResponse{Success: true, Stdout: r.Stdout, Stderr: r.Stderr})
	}
}

func handleAddProcess(l *hostloop.Loop) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Node string `json:"node"`
			Path string `json:"path"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, bus.AddResponse{SuccessResponse: bus.SuccessResponse{Error: err.Error()}})
			return
		}
		r := ask(l, hostloop.Msg{Kind: hostloop.MsgAddProcess, NodeName: req.Node, Path: req.Path})
		if r.Err != nil {
			c.JSON(http.StatusOK, bus.AddResponse{SuccessResponse: bus.SuccessResponse{Error: r.Err.Error()}})
			return
		}
		c.JSON(http.StatusOK, bus.AddResponse{SuccessResponse: bus.SuccessResponse{Success: true}, ModuleID: r.ModuleID})
	}
}

func viewsOf(recs []*procspec.Record) []bus.ProcessView {
	now := nowMillis()
	views := make([]bus.ProcessView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, bus.FromRecord(rec, now, false))
	}
	return views
}

