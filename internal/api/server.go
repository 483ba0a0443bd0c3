package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
	"golang.org/x/time/rate"

	"github.com/samcharles93/tilemm/internal/compute"
	"github.com/samcharles93/tilemm/internal/device"
	"github.com/samcharles93/tilemm/internal/logger"
	"github.com/samcharles93/tilemm/internal/matmul"
	"github.com/samcharles93/tilemm/internal/tensor"
)

// DefaultMaxElements bounds each operand accepted over HTTP.
const DefaultMaxElements = 1 << 22

type ServerConfig struct {
	Queue    *compute.Queue
	Devices  []device.Device
	Score    device.ScoreFunc
	Defaults matmul.Config

	// RatePerSecond and Burst admit multiply requests; RatePerSecond <= 0
	// disables the limit.
	RatePerSecond float64
	Burst         int

	MaxElements   int
	StoreCapacity int
	Logger        logger.Logger
}

type Server struct {
	queue    *compute.Queue
	devices  []device.Device
	score    device.ScoreFunc
	defaults matmul.Config
	maxElems int

	store   *ResultStore
	tuner   *matmul.Autotuner
	limiter *rate.Limiter
	log     logger.Logger
	clock   func() time.Time
}

func NewServer(cfg ServerConfig) *Server {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	if cfg.Defaults.TileSize == 0 {
		cfg.Defaults = matmul.DefaultConfig()
	}
	if cfg.MaxElements == 0 {
		cfg.MaxElements = DefaultMaxElements
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	if cfg.Score == nil {
		cfg.Score = device.DefaultScore
	}
	return &Server{
		queue:    cfg.Queue,
		devices:  cfg.Devices,
		score:    cfg.Score,
		defaults: cfg.Defaults,
		maxElems: cfg.MaxElements,
		store:    NewResultStore(cfg.StoreCapacity),
		tuner:    matmul.NewAutotuner(),
		limiter:  rate.NewLimiter(limit, burst),
		log:      cfg.Logger.With("component", "api"),
		clock:    time.Now,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/matmul", s.handleMatmul)
	e.GET("/v1/matmul/:id", s.handleGetResult)
	e.DELETE("/v1/matmul/:id", s.handleDeleteResult)
	e.GET("/v1/devices", s.handleDevices)
}

func (s *Server) handleMatmul(c *echo.Context) error {
	if s.queue == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "compute queue not configured")
	}
	if !s.limiter.Allow() {
		return writeError(c, http.StatusTooManyRequests, "rate_limit_error", "too many multiply requests")
	}

	req, err := decodeJSON[MatmulRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if err := req.validate(s.maxElems); err != nil {
		return writeMatmulError(c, err)
	}

	cfg := s.defaults
	if req.TileSize != nil {
		cfg.TileSize = *req.TileSize
	}
	if req.Strategy != "" {
		strategy, err := matmul.ParseStrategy(req.Strategy)
		if err != nil {
			return writeBadRequest(c, err.Error())
		}
		cfg.Strategy = strategy
	}
	if req.PadRemainder != nil {
		cfg.PadRemainder = *req.PadRemainder
	}

	A, err := req.A.toMat()
	if err != nil {
		return writeBadRequest(c, "a: "+err.Error())
	}
	B, err := req.B.toMat()
	if err != nil {
		return writeBadRequest(c, "b: "+err.Error())
	}

	engine := matmul.New(s.queue, matmul.WithConfig(cfg), matmul.WithLogger(s.log))
	if req.Autotune {
		tuned, err := matmul.Tune(c.Request().Context(), s.tuner, engine, &A, &B)
		if err != nil {
			return writeMatmulError(c, err)
		}
		engine = matmul.New(s.queue, matmul.WithConfig(tuned), matmul.WithLogger(s.log))
	}
	start := s.clock()
	C, err := matmul.Multiply(c.Request().Context(), engine, &A, &B)
	if err != nil {
		s.log.Debug("multiply failed", "m", A.R, "n", B.C, "k", A.C, "err", err)
		return writeMatmulError(c, err)
	}
	elapsed := s.clock().Sub(start)

	resp := MatmulResponse{
		ID:        newResultID(),
		Object:    "matmul",
		CreatedAt: start.Unix(),
		Device:    s.queue.Device().String(),
		Strategy:  string(engine.Config().Strategy),
		TileSize:  engine.Config().TileSize,
		C:         matrixJSON(&C),
		ElapsedMS: float64(elapsed.Microseconds()) / 1000,
	}
	if req.Verify {
		want := tensor.Reference(&A, &B)
		ok := tensor.Verify(&C, &want, tensor.DefaultTolerance) == nil
		resp.Verified = &ok
	}
	if req.Store == nil || *req.Store {
		s.store.Save(resp)
	}
	s.log.Info("multiply", "id", resp.ID, "m", A.R, "n", B.C, "k", A.C, "strategy", resp.Strategy, "elapsed", elapsed)
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetResult(c *echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return writeNotFound(c, "result not found")
	}
	resp, ok := s.store.Get(id)
	if !ok {
		return writeNotFound(c, "result not found")
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDeleteResult(c *echo.Context) error {
	id := c.Param("id")
	if id == "" || !s.store.Delete(id) {
		return writeNotFound(c, "result not found")
	}
	return c.JSON(http.StatusOK, DeleteResultResp{
		ID:      id,
		Object:  "matmul",
		Deleted: true,
	})
}

func (s *Server) handleDevices(c *echo.Context) error {
	var active string
	if s.queue != nil {
		active = s.queue.Device().Name
	}
	ranked := device.Rank(s.devices, s.score)
	list := DeviceList{Object: "list", Data: make([]DeviceEntry, 0, len(ranked))}
	for _, r := range ranked {
		list.Data = append(list.Data, DeviceEntry{
			Device: r.Device,
			Score:  r.Score,
			Active: r.Device.Name == active,
		})
	}
	return c.JSON(http.StatusOK, list)
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	if err := dec.Decode(&out); err != nil {
		if errors.Is(err, io.EOF) {
			return out, newInvalidRequest("empty request body")
		}
		return out, err
	}
	return out, nil
}
