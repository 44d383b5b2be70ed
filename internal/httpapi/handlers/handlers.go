package handlers

import (
	"context"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"sdbooth/internal/fanout"
	"sdbooth/internal/pkg/logger"
	"sdbooth/internal/ports"
	"sdbooth/internal/repositories"
	"sdbooth/internal/submission"
)

// DBPinger is satisfied by *pgxpool.Pool.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// RenderService is the part of the ComfyUI client the handlers call directly.
type RenderService interface {
	UploadImage(ctx context.Context, filename, contentType string, r io.Reader) (int, []byte, error)
	Ping(ctx context.Context) error
}

type Deps struct {
	// DB and Redis are nil when the memory store is used or Redis is not configured.
	DB         DBPinger
	Redis      *redis.Client
	Storage    ports.StorageProvider
	Comfy      RenderService
	Submission *submission.Service
	Queue      repositories.RenderQueue
	Registry   *fanout.Registry
	Log        *logger.Logger

	ServiceName    string
	AllowedOrigins []string
	WSKeepAlive    time.Duration
}

type Handler struct {
	db         DBPinger
	rdb        *redis.Client
	sp         ports.StorageProvider
	comfy      RenderService
	submission *submission.Service
	queue      repositories.RenderQueue
	registry   *fanout.Registry
	log        *logger.Logger

	serviceName    string
	allowedOrigins []string
	wsKeepAlive    time.Duration
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	h := &Handler{
		db:             d.DB,
		rdb:            d.Redis,
		sp:             d.Storage,
		comfy:          d.Comfy,
		submission:     d.Submission,
		queue:          d.Queue,
		registry:       d.Registry,
		log:            log.WithComponent("http"),
		serviceName:    d.ServiceName,
		allowedOrigins: d.AllowedOrigins,
		wsKeepAlive:    d.WSKeepAlive,
	}
	if h.serviceName == "" {
		h.serviceName = "sdbooth"
	}
	if h.wsKeepAlive <= 0 {
		h.wsKeepAlive = 120 * time.Second
	}
	if h.registry == nil {
		h.registry = fanout.NewRegistry()
	}
	return h
}

// Log exposes the handler logger for error wrapping in the router.
func (h *Handler) Log() *logger.Logger {
	return h.log
}
