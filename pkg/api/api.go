package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/mineroot/lanshare/pkg/peer"
)

type Manifester interface {
	Manifest() map[string]int64
}

type File struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type Peer struct {
	Address string `json:"address"`
	Port    uint16 `json:"port"`
	Files   []File `json:"files"`
}

func NewRouter(registry peer.SnapshotReader, files Manifester) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger)
	router.GET("/peers", func(c *gin.Context) {
		snapshot := registry.Snapshot()
		peers := make([]Peer, 0, len(snapshot))
		for _, p := range snapshot {
			peers = append(peers, Peer{Address: p.Address, Port: p.Port, Files: sortedFiles(p.Files)})
		}
		c.JSON(http.StatusOK, peers)
	})
	router.GET("/files", func(c *gin.Context) {
		c.JSON(http.StatusOK, sortedFiles(files.Manifest()))
	})
	return router
}

func requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()
	log.Ctx(c.Request.Context()).Debug().
		Str("component", "api").
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Int("status", c.Writer.Status()).
		Dur("took", time.Since(start)).
		Msg("request served")
}

func sortedFiles(m map[string]int64) []File {
	files := make([]File, 0, len(m))
	for name, size := range m {
		files = append(files, File{Name: name, Size: size})
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})
	return files
}

type Server struct {
	*http.Server
}

func NewServer(addr string, handler http.Handler) *Server {
	return &Server{Server: &http.Server{Addr: addr, Handler: handler}}
}

// Run serves until ctx is done. A listen failure is logged and ends only
// the API.
func (s *Server) Run(ctx context.Context) error {
	l := log.Ctx(ctx).With().Str("component", "api").Str("addr", s.Addr).Logger()
	s.BaseContext = func(net.Listener) context.Context { return l.WithContext(context.Background()) }
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()
	l.Info().Msg("status api listening")
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error().Err(err).Msg("status api stopped")
	}
	return nil
}
