package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/llehouerou/lineup/internal/config"
	"github.com/llehouerou/lineup/internal/engine"
	"github.com/llehouerou/lineup/internal/lastfm"
	"github.com/llehouerou/lineup/internal/log"
	"github.com/llehouerou/lineup/internal/metrics"
	"github.com/llehouerou/lineup/internal/mpris"
	"github.com/llehouerou/lineup/internal/notify"
	"github.com/llehouerou/lineup/internal/nowplaying"
	"github.com/llehouerou/lineup/internal/playback"
	"github.com/llehouerou/lineup/internal/playlist"
	"github.com/llehouerou/lineup/internal/reconcile"
	"github.com/llehouerou/lineup/internal/resource"
	"github.com/llehouerou/lineup/internal/state"
	"github.com/llehouerou/lineup/internal/tags"
)

const (
	eventTimeout     = 2 * time.Second
	simulatedTrack   = 3 * time.Minute
	simulatedBitrate = 320_000 / 8
)

var errNoDescriptors = errors.New("nothing to play: pass files or URLs, or use --resume")

type playOptions struct {
	window  int
	repeat  string
	steps   int
	resume  bool
	save    bool
	listen  string
	noScrob bool
}

func newPlayCmd(root *rootOptions) *cobra.Command {
	opts := &playOptions{}

	cmd := &cobra.Command{
		Use:   "play [file|url]...",
		Short: "Play files or URLs through a simulated engine",
		Long: "Builds descriptors from local audio files (tags are read) or URLs, " +
			"then advances a simulated engine item by item, printing the engine " +
			"window and per-item metrics.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd.Context(), cmd.OutOrStdout(), root, opts, args)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&opts.window, "window", "w", 0, "engine window length (default from config)")
	f.StringVarP(&opts.repeat, "repeat", "r", "", "repeat mode: off, all, one")
	f.IntVarP(&opts.steps, "steps", "n", 0, "items to advance through (0 plays the whole list)")
	f.BoolVar(&opts.resume, "resume", false, "restore the last saved queue")
	f.BoolVar(&opts.save, "save", false, "save the queue on exit")
	f.StringVar(&opts.listen, "metrics-listen", "", "serve Prometheus metrics on this address")
	f.BoolVar(&opts.noScrob, "no-scrobble", false, "disable Last.fm scrobbling")
	return cmd
}

func runPlay(ctx context.Context, out io.Writer, root *rootOptions, opts *playOptions, args []string) error {
	cfg := root.cfg
	logger := log.WithComponent("cli")
	// Bindings print from the service goroutine.
	out = &syncWriter{w: out}

	queueCfg := cfg.GetQueueConfig()
	window := queueCfg.WindowLength
	if opts.window > 0 {
		window = opts.window
	}
	mode := cfg.RepeatMode()
	if opts.repeat != "" {
		m, err := reconcile.ParseRepeatMode(opts.repeat)
		if err != nil {
			return err
		}
		mode = m
	}

	var store *state.Manager
	if opts.resume || opts.save || (cfg.HasLastfmConfig() && !opts.noScrob) {
		s, err := state.Open(cfg.State.Path)
		if err != nil {
			return fmt.Errorf("open state: %w", err)
		}
		defer s.Close()
		store = s
	}

	bindings := []playlist.BindingFactory{nowplaying.NewMapper(&printSink{out: out}).Binding}
	sinks, closeSinks := desktopSinks(cfg.NowPlaying)
	defer closeSinks()
	for _, sink := range sinks {
		bindings = append(bindings, nowplaying.NewMapper(sink).Binding)
	}
	if tracker := newTracker(root, store, opts.noScrob); tracker != nil {
		defer tracker.Close()
		bindings = append(bindings, tracker.Binding)
	}

	ds, currentID, savedMode, err := loadDescriptors(ctx, store, opts.resume, args, bindings)
	if err != nil {
		return err
	}
	if savedMode != nil && opts.repeat == "" {
		mode = *savedMode
	}
	if len(ds) == 0 {
		return errNoDescriptors
	}

	exporter := metrics.NewExporter(cfg.Metrics.Namespace)
	eng := engine.NewMock()
	svc := playback.New(eng, playback.Options{
		WindowLength:       window,
		RepeatMode:         mode,
		HistorySize:        queueCfg.HistorySize,
		MaxConcurrentLoads: cfg.GetLoaderConfig().MaxConcurrent,
		Resolver:           resolveSaved,
		Exporter:           exporter,
	})
	defer svc.Close()
	sub := svc.Subscribe()

	if err := svc.SetDescriptors(ds); err != nil {
		return err
	}
	if currentID != "" {
		if err := svc.JumpTo(currentID); err != nil {
			logger.Warn().Err(err).Str("id", string(currentID)).Msg("saved current item not restored")
		}
	}

	listen := cfg.Metrics.Listen
	if opts.listen != "" {
		listen = opts.listen
	}

	g, gctx := errgroup.WithContext(ctx)
	simDone := make(chan struct{})
	if listen != "" {
		srv := &http.Server{Addr: listen, Handler: exporter.Handler(), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics endpoint: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			select {
			case <-simDone:
			case <-gctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), eventTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		logger.Info().Str("addr", listen).Msg("serving metrics")
	}
	g.Go(func() error {
		defer close(simDone)
		return simulate(gctx, out, svc, eng, sub, opts.steps, len(ds))
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if opts.save && store != nil {
		var current playlist.ID
		if d, ok := svc.CurrentDescriptor(); ok {
			current = d.ID
		}
		snap := state.Snapshot(svc.Descriptors(), current, svc.RepeatMode())
		if err := store.SaveQueue(ctx, snap); err != nil {
			return fmt.Errorf("save queue: %w", err)
		}
		fmt.Fprintf(out, "saved %d descriptors\n", len(snap.Entries))
	}
	return nil
}

// loadDescriptors builds the list from args, or from the saved queue when
// resuming without args.
func loadDescriptors(
	ctx context.Context,
	store *state.Manager,
	resume bool,
	args []string,
	bindings []playlist.BindingFactory,
) ([]playlist.Descriptor, playlist.ID, *reconcile.RepeatMode, error) {
	if len(args) == 0 && resume && store != nil {
		saved, err := store.GetQueue(ctx)
		if err != nil {
			return nil, "", nil, fmt.Errorf("load queue: %w", err)
		}
		if saved == nil {
			return nil, "", nil, nil
		}
		return saved.Descriptors(bindings...), playlist.ID(saved.CurrentID), &saved.RepeatMode, nil
	}

	logger := log.WithComponent("cli")
	ds := make([]playlist.Descriptor, 0, len(args))
	for _, arg := range args {
		if strings.Contains(arg, "://") {
			ds = append(ds, playlist.New(resource.Simple(arg), playlist.Metadata{
				Title: path.Base(arg),
			}, bindings...))
			continue
		}
		if !tags.IsMusicFile(arg) {
			logger.Warn().Str("path", arg).Msg("skipping unsupported file")
			continue
		}
		d, err := tags.Descriptor(arg, bindings...)
		if err != nil {
			return nil, "", nil, fmt.Errorf("read %s: %w", arg, err)
		}
		ds = append(ds, d)
	}
	return ds, "", nil, nil
}

// resolveSaved rebuilds restored placeholders from their persisted source.
func resolveSaved(_ context.Context, d playlist.Descriptor) (resource.Resource, error) {
	url := d.Metadata.Extra[state.ExtraSourceURL]
	if url == "" {
		return resource.Resource{}, fmt.Errorf("no source for %s", d.ID)
	}
	return resource.Simple(url), nil
}

// desktopSinks opens the configured desktop now playing surfaces.
func desktopSinks(cfg config.NowPlayingConfig) ([]nowplaying.Sink, func()) {
	logger := log.WithComponent("nowplaying")
	var (
		sinks   []nowplaying.Sink
		closers []func() error
	)
	if cfg.Notify {
		n, err := notify.New()
		if err != nil {
			logger.Warn().Err(err).Msg("desktop notifications unavailable")
		} else {
			sinks = append(sinks, notify.NewSink(n, cfg.NotifyTimeout, logger))
		}
	}
	if cfg.MPRIS {
		p, err := mpris.New()
		if err != nil {
			logger.Warn().Err(err).Msg("MPRIS unavailable")
		} else {
			sinks = append(sinks, p)
			closers = append(closers, p.Close)
		}
	}
	return sinks, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Debug().Err(err).Msg("closing now playing surface")
			}
		}
	}
}

func newTracker(root *rootOptions, store *state.Manager, disabled bool) *lastfm.Tracker {
	cfg := root.cfg
	if disabled || !cfg.HasLastfmConfig() {
		return nil
	}
	client := lastfm.New(cfg.Lastfm.APIKey, cfg.Lastfm.APISecret)
	key := cfg.Lastfm.SessionKey
	if key == "" && store != nil {
		if s, err := store.GetLastfmSession(); err == nil && s != nil {
			key = s.SessionKey
		}
	}
	if key == "" {
		return nil
	}
	client.SetSessionKey(key)

	var pending state.PendingStore
	if store != nil {
		pending = store
	}
	return lastfm.NewTracker(client, pending, log.WithComponent("lastfm"))
}

// simulate plays through the list: each item reports its properties and one
// counter sample, then the engine advances.
func simulate(
	ctx context.Context,
	out io.Writer,
	svc playback.Service,
	eng *engine.Mock,
	sub *playback.Subscription,
	steps, total int,
) error {
	if steps <= 0 {
		steps = total
	}
	if err := svc.Play(); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	printWindow(out, svc)

	for i := 0; i < steps; i++ {
		d, ok := svc.CurrentDescriptor()
		if !ok {
			break
		}
		duration := d.Metadata.Duration
		if duration == 0 {
			// Streams carry no length until an engine measures them.
			duration = simulatedTrack
		}
		drain(sub.MetricsChanged)
		eng.EmitProperties(engine.Properties{Rate: 1, Position: duration, Duration: duration})
		eng.EmitSample(metrics.Sample{
			Time: time.Now(),
			Counters: metrics.Counters{
				metrics.CounterPlaybackSeconds:  duration.Seconds(),
				metrics.CounterBytesTransferred: duration.Seconds() * simulatedBitrate,
			},
		})
		if err := waitFor(ctx, sub.MetricsChanged); err != nil {
			return err
		}
		fmt.Fprintf(out, "  metrics: %s\n", svc.Metrics())

		// The queue change follows the current change of an advance.
		drain(sub.QueueChanged)
		eng.Advance()
		if err := waitFor(ctx, sub.QueueChanged); err != nil {
			return err
		}
		drainErrors(out, sub)
		printWindow(out, svc)
	}
	return nil
}

func waitFor[T any](ctx context.Context, ch <-chan T) error {
	timer := time.NewTimer(eventTimeout)
	defer timer.Stop()
	select {
	case <-ch:
		return nil
	case <-timer.C:
		return errors.New("timed out waiting for the playback service")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func drain[T any](ch <-chan T) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func drainErrors(out io.Writer, sub *playback.Subscription) {
	for {
		select {
		case e := <-sub.Error:
			fmt.Fprintf(out, "  error: %s\n", e.Message())
		default:
			return
		}
	}
}

func printWindow(out io.Writer, svc playback.Service) {
	ids := svc.Queue()
	if len(ids) == 0 {
		fmt.Fprintln(out, "window: (empty)")
		return
	}
	byID := make(map[playlist.ID]string, len(ids))
	for _, d := range svc.Descriptors() {
		byID[d.ID] = d.Metadata.Title
	}
	titles := make([]string, len(ids))
	for i, id := range ids {
		titles[i] = byID[id]
	}
	fmt.Fprintf(out, "window [%s]: %s\n", svc.RepeatMode(), strings.Join(titles, " | "))
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

type printSink struct {
	out io.Writer
}

func (p *printSink) Publish(info nowplaying.Info) {
	fmt.Fprintf(p.out, "  now playing: %s\n", info)
}

func (p *printSink) Clear() {}
