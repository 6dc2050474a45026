// Package httpapi exposes a Store over HTTP for console pages and operators.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unkn0wn-root/anthillstore"
	"github.com/unkn0wn-root/anthillstore/wsurl"
)

const maxBody = 4 << 20

type Handler struct {
	Store  anthillstore.Cache
	Logger anthillstore.Logger
}

// Router returns a gin engine with the storage and ws-url routes.
func Router(h *Handler) *gin.Engine {
	if h.Logger == nil {
		h.Logger = anthillstore.NopLogger{}
	}
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	st := r.Group("/storage")
	{
		st.GET("/:key", h.getItem)
		st.PUT("/:key", h.setItem)
		st.POST("/:key/changed", h.changed)
	}
	r.GET("/ws-url", h.wsURL)
	return r
}

func (h *Handler) getItem(c *gin.Context) {
	format, ok := h.format(c)
	if !ok {
		return
	}
	v, err := h.Store.GetItem(c.Request.Context(), c.Param("key"), format)
	if err != nil {
		h.fail(c, err)
		return
	}
	if format == anthillstore.Raw && v != nil {
		c.String(http.StatusOK, "%s", v)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Handler) setItem(c *gin.Context) {
	format, ok := h.format(c)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var value any = string(body)
	if format != anthillstore.Raw {
		if err := json.Unmarshal(body, &value); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
			return
		}
	}
	if err := h.Store.SetItem(c.Request.Context(), c.Param("key"), value, format); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) changed(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	changed, err := h.Store.Changed(c.Request.Context(), c.Param("key"), string(body))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed})
}

func (h *Handler) wsURL(c *gin.Context) {
	loc := wsurl.FromRequest(c.Request)
	c.JSON(http.StatusOK, gin.H{"url": wsurl.Resolve(loc, c.Query("path"))})
}

// format reads ?format=, falling back to the store default when absent.
func (h *Handler) format(c *gin.Context) (anthillstore.Format, bool) {
	f, err := anthillstore.ParseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	if f == "" {
		f = h.Store.Format()
	}
	return f, true
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, anthillstore.ErrUnknownFormat) {
		status = http.StatusBadRequest
	}
	fields := anthillstore.Fields{"path": c.FullPath(), "err": err}
	var opErr *anthillstore.OpError
	if errors.As(err, &opErr) {
		fields["key"] = opErr.Key
		fields["op"] = opErr.Op
	}
	h.Logger.Warn("storage request failed", fields)
	c.JSON(status, gin.H{"error": err.Error()})
}
