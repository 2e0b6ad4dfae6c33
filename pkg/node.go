package pkg

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/mineroot/lanshare/pkg/api"
	"github.com/mineroot/lanshare/pkg/discovery"
	"github.com/mineroot/lanshare/pkg/download"
	"github.com/mineroot/lanshare/pkg/event"
	"github.com/mineroot/lanshare/pkg/peer"
	"github.com/mineroot/lanshare/pkg/share"
	"github.com/mineroot/lanshare/pkg/transfer"
	"github.com/mineroot/lanshare/utils"
)

const DefaultPort uint16 = 12000

var ErrFileNotFound = errors.New("no peer shares this file")

type Config struct {
	SharedDir     string
	Port          uint16 // TCP serving port, 0 picks a free one
	DiscoveryPort uint16
	BroadcastHost string
	Interval      time.Duration
	PeerTTL       time.Duration
	MaxConns      int
	Watch         bool   // re-announce as soon as the shared folder changes
	HTTPAddr      string // status API, disabled when empty
}

func DefaultConfig() Config {
	return Config{
		SharedDir:     ".",
		Port:          DefaultPort,
		DiscoveryPort: discovery.DefaultPort,
		BroadcastHost: discovery.DefaultBroadcastHost,
		Interval:      discovery.DefaultInterval,
		Watch:         true,
	}
}

// Node is one participant of the network: it discovers peers and, when
// sharing, announces and serves its shared folder.
type Node struct {
	cfg       Config
	fs        afero.Fs
	registry  *peer.Registry
	inspector *share.Inspector
}

func NewNode(cfg Config, fs afero.Fs) *Node {
	return &Node{
		cfg:       cfg,
		fs:        fs,
		registry:  peer.NewRegistry(cfg.PeerTTL),
		inspector: share.NewInspector(fs, cfg.SharedDir),
	}
}

func (n *Node) Registry() *peer.Registry {
	return n.registry
}

func (n *Node) Inspector() *share.Inspector {
	return n.inspector
}

// Share serves and announces the shared folder and discovers peers until ctx
// is done. A worker that cannot open its socket is logged and skipped; the
// rest of the node keeps running.
func (n *Node) Share(ctx context.Context) error {
	l := log.Ctx(ctx)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(utils.WithCtx(ctx, n.listener().Run))

	server := transfer.NewServer(n.inspector, transfer.WithMaxConns(n.cfg.MaxConns))
	if err := server.Listen(ctx, fmt.Sprintf(":%d", n.cfg.Port)); err != nil {
		l.Error().Err(err).Msg("files will not be served")
	} else {
		port := uint16(server.Addr().(*net.TCPAddr).Port)
		g.Go(utils.WithCtx(ctx, server.Serve))
		g.Go(utils.WithCtx(ctx, n.broadcaster(ctx, port).Run))
	}

	if n.cfg.HTTPAddr != "" {
		s := api.NewServer(n.cfg.HTTPAddr, api.NewRouter(n.registry, n.inspector))
		g.Go(utils.WithCtx(ctx, s.Run))
	}
	return g.Wait()
}

// Discover only listens for announcements until ctx is done.
func (n *Node) Discover(ctx context.Context) error {
	return n.listener().Run(ctx)
}

// Download fetches filename from the first peer known to share it.
func (n *Node) Download(
	ctx context.Context,
	filename, dest string,
	workers int,
	progress chan<- *event.ProgressRangeRead,
) (*download.Result, error) {
	target, ok := download.TargetFor(n.registry.Snapshot(), filename)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, filename)
	}
	log.Ctx(ctx).Info().
		Str("file", filename).
		Str("remote_peer", target.Endpoint()).
		Int64("size", target.Size).
		Msg("file found")
	return download.NewDownloader(n.fs, &net.Dialer{}, progress).Download(ctx, target, dest, workers)
}

func (n *Node) listener() *discovery.Listener {
	return discovery.NewListener(fmt.Sprintf(":%d", n.cfg.DiscoveryPort), n.registry)
}

func (n *Node) broadcaster(ctx context.Context, servingPort uint16) *discovery.Broadcaster {
	opts := []discovery.BroadcasterOption{discovery.WithInterval(n.cfg.Interval)}
	if n.cfg.Watch {
		changes, err := share.Watch(ctx, n.cfg.SharedDir)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("shared folder is not watched, changes are announced on the next tick")
		} else {
			opts = append(opts, discovery.WithTrigger(changes))
		}
	}
	target := net.JoinHostPort(n.cfg.BroadcastHost, strconv.Itoa(int(n.cfg.DiscoveryPort)))
	return discovery.NewBroadcaster(n.inspector, servingPort, target, opts...)
}
