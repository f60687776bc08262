package api

import (
	"database/sql"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cskoven/go-flood-panel/internal/flags"
	"github.com/cskoven/go-flood-panel/internal/models"
	"github.com/cskoven/go-flood-panel/internal/repository"
)

type Handler struct {
	events repository.EventRepository
	panel  repository.PanelRepository
}

func NewHandler(events repository.EventRepository, panel repository.PanelRepository) *Handler {
	return &Handler{
		events: events,
		panel:  panel,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/api/events", h.getEvents)
	r.GET("/api/events/:key", h.getEvent)
	r.GET("/api/flags", h.getFlagSummary)
	r.GET("/api/panel", h.getPanel)
	r.GET("/health", h.health)
}

func (h *Handler) getEvents(c *gin.Context) {
	filter := repository.Filter{
		Limit: 50, // Default page size if limit param not supplied
	}

	if a := c.Query("adm1"); a != "" {
		if code, err := strconv.Atoi(a); err == nil {
			filter.Adm1Code = &code
		}
	}
	if m := c.Query("mon_yr"); m != "" {
		filter.MonYr = &m
	}
	if id := c.Query("event_id"); id != "" {
		filter.EventID = &id
	}
	if f := c.Query("flag"); f != "" {
		if code, err := strconv.Atoi(f); err == nil && code >= 1 && code <= 15 {
			fc := models.FlagCode(code)
			filter.Flag = &fc
		}
	}
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= 1000 {
			filter.Limit = lim
		}
	}
	if o := c.Query("offset"); o != "" {
		if off, err := strconv.Atoi(o); err == nil && off >= 0 {
			filter.Offset = off
		}
	}

	events, err := h.events.ListEvents(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch events",
		})
		return
	}

	out := make([]eventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, toEventResponse(ev))
	}
	c.JSON(http.StatusOK, gin.H{"events": out, "count": len(out)})
}

func (h *Handler) getEvent(c *gin.Context) {
	ev, err := h.events.GetEventByKey(c.Request.Context(), c.Param("key"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch event",
		})
		return
	}
	c.JSON(http.StatusOK, toEventResponse(ev))
}

func (h *Handler) getFlagSummary(c *gin.Context) {
	events, err := h.events.ListEvents(c.Request.Context(), repository.Filter{})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch events",
		})
		return
	}

	stats := flags.Summarize(events)
	out := make([]flagStatResponse, 0, len(stats))
	for _, s := range stats {
		out = append(out, flagStatResponse{
			Flag:        int(s.Code),
			SubEvents:   s.SubEvents,
			SubEventPct: round2(s.SubEventPct),
			Events:      s.Events,
			EventPct:    round2(s.EventPct),
		})
	}
	c.JSON(http.StatusOK, gin.H{"flags": out})
}

func (h *Handler) getPanel(c *gin.Context) {
	filter := repository.Filter{
		Limit: 500,
	}

	if a := c.Query("adm1"); a != "" {
		if code, err := strconv.Atoi(a); err == nil {
			filter.Adm1Code = &code
		}
	}
	if m := c.Query("mon_yr"); m != "" {
		filter.MonYr = &m
	}
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= 5000 {
			filter.Limit = lim
		}
	}
	if o := c.Query("offset"); o != "" {
		if off, err := strconv.Atoi(o); err == nil && off >= 0 {
			filter.Offset = off
		}
	}

	cells, err := h.panel.ListPanel(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch panel",
		})
		return
	}

	out := make([]panelResponse, 0, len(cells))
	for _, cell := range cells {
		out = append(out, toPanelResponse(cell))
	}
	c.JSON(http.StatusOK, gin.H{"cells": out, "count": len(out)})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
