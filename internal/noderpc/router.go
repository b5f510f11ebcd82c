// Package noderpc exposes one node's RPC surface over HTTP (spec.md §4.5),
// mounted at /guillotine-node-<name>. Grounded on the teacher's
// internal/server/router.go shape, but built on echo rather than gin: the
// pack's go.mod carries both frameworks, and splitting host (gin) from node
// (echo) keeps the two RPC surfaces visibly distinct processes-in-spirit
// even though they may share a binary.
package noderpc

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/guillotine-sh/guillotine/internal/bus"
	"github.com/guillotine-sh/guillotine/internal/node"
)

// New builds the echo router for one node, mounted under
// "/guillotine-node-<name>".
func New(n *node.Node) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	g := e.Group("/guillotine-node-" + n.Name)
	g.GET("/ping", handlePing)
	g.POST("/respawnProcess", handleModuleIDCmd(n, node.CmdRestart))
	g.POST("/startProcess", handleModuleIDCmd(n, node.CmdStart))
	g.POST("/stopProcess", handleModuleIDCmd(n, node.CmdStop))
	g.POST("/deleteProcess", handleModuleIDCmd(n, node.CmdDelete))
	g.POST("/getLogs", handleGetLogs(n))
	g.POST("/addProcess", handleAddProcess(n))
	return e
}

func handlePing(c echo.Context) error { return c.NoContent(http.StatusOK) }

// handleModuleIDCmd covers every command keyed only by moduleId and
// returning {success, error?} (spec.md §4.5).
func handleModuleIDCmd(n *node.Node, typ node.CmdType) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req bus.ModuleIDRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, bus.SuccessResponse{Error: err.Error()})
		}
		reply := make(chan node.Result, 1)
		n.Submit(node.Cmd{Type: typ, ModuleID: req.ModuleID, Reply: reply})
		res := await(reply)
		if res.Err != nil {
			return c.JSON(http.StatusOK, bus.SuccessResponse{Error: res.Err.Error()})
		}
		return c.JSON(http.StatusOK, bus.SuccessResponse{Success: true})
	}
}

func handleGetLogs(n *node.Node) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req bus.ModuleIDRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, bus.LogsResponse{Error: err.Error()})
		}
		reply := make(chan node.Result, 1)
		n.Submit(node.Cmd{Type: node.CmdGetLogs, ModuleID: req.ModuleID, Reply: reply})
		res := await(reply)
		if res.Err != nil {
			return c.JSON(http.StatusOK, bus.LogsResponse{Error: res.Err.Error()})
		}
		return c.JSON(http.StatusOK, bus.LogsResponse{Success: true, Stdout: res.Stdout, Stderr: res.Stderr})
	}
}

func handleAddProcess(n *node.Node) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req bus.PathRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, bus.AddResponse{SuccessResponse: bus.SuccessResponse{Error: err.Error()}})
		}
		reply := make(chan node.Result, 1)
		n.Submit(node.Cmd{Type: node.CmdAdd, Path: req.Path, Reply: reply})
		res := await(reply)
		if res.Err != nil {
			return c.JSON(http.StatusOK, bus.AddResponse{SuccessResponse: bus.SuccessResponse{Error: res.Err.Error()}})
		}
		return c.JSON(http.StatusOK, bus.AddResponse{
			SuccessResponse: bus.SuccessResponse{Success: true},
			ModuleID:        res.ModuleID,
		})
	}
}

// await blocks on a Cmd reply. The node loop always replies when Reply is
// non-nil, but a generous bound keeps a stuck loop from hanging an HTTP
// request forever.
func await(reply chan node.Result) node.Result {
	select {
	case res := <-reply:
		return res
	case <-time.After(30 * time.Second):
		return node.Result{Err: errTimeout}
	}
}

var errTimeout = echo.NewHTTPError(http.StatusGatewayTimeout, "node loop did not reply in time")
