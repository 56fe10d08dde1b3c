package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/softbus/internal/diag"
)

var contentTypes = map[diag.Format]string{
	diag.FormatJSON: "application/json; charset=utf-8",
	diag.FormatYAML: "application/yaml; charset=utf-8",
}

// GetDump returns a diagnostic dump in the requested format.
func (h *Handlers) GetDump(c *gin.Context) {
	kind, format, ok := dumpParams(c)
	if !ok {
		return
	}
	d, err := diag.Collect(h.bus, kind, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	data, err := diag.Encode(d, format)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, contentTypes[format], data)
}

// WriteDump writes a diagnostic dump file on the server and returns its
// path.
func (h *Handlers) WriteDump(c *gin.Context) {
	if h.dumps == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "dump writer disabled"})
		return
	}
	kind, format, ok := dumpParams(c)
	if !ok {
		return
	}
	path, err := h.dumps.Write(h.bus, kind, format)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"path": path, "kind": kind, "format": format})
}

func dumpParams(c *gin.Context) (diag.Kind, diag.Format, bool) {
	kind, err := diag.ParseKind(c.Param("kind"))
	if err != nil {
		badRequest(c, err)
		return "", "", false
	}
	format, err := diag.ParseFormat(c.Query("format"))
	if err != nil {
		badRequest(c, err)
		return "", "", false
	}
	return kind, format, true
}
