// Package bootstrap assembles a Library from config.Settings: logger, hooks,
// resolution cache and the configured built-in providers.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/natefinch/lumberjack"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/algfetch"
	c "github.com/unkn0wn-root/algfetch/codec"
	"github.com/unkn0wn-root/algfetch/config"
	gen "github.com/unkn0wn-root/algfetch/genstore"
	asynchook "github.com/unkn0wn-root/algfetch/hooks/async"
	"github.com/unkn0wn-root/algfetch/legacy"
	logruslog "github.com/unkn0wn-root/algfetch/log/logrus"
	sloglog "github.com/unkn0wn-root/algfetch/log/slog"
	zaplog "github.com/unkn0wn-root/algfetch/log/zap"
	"github.com/unkn0wn-root/algfetch/providers/builtin"
	"github.com/unkn0wn-root/algfetch/sloghooks"
	st "github.com/unkn0wn-root/algfetch/store"
	"github.com/unkn0wn-root/algfetch/store/bigcache"
	redisstore "github.com/unkn0wn-root/algfetch/store/redis"
	"github.com/unkn0wn-root/algfetch/store/ristretto"
)

const (
	hookWorkers = 1
	hookQueue   = 256
)

// App owns a Library and everything built around it.
type App struct {
	Library   *algfetch.Library
	Logger    algfetch.Logger
	Providers []*builtin.Provider

	hooks   *asynchook.Hooks
	flush   func() error
	closers []io.Closer
}

// Build wires a Library from s. Log output goes to stderr unless s.Log.File
// is set.
func Build(ctx context.Context, s *config.Settings, stderr io.Writer) (*App, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	app := &App{}

	out := stderr
	if s.Log.File != "" {
		lj := &lumberjack.Logger{
			Filename:   s.Log.File,
			MaxSize:    s.Log.MaxSizeMB,
			MaxBackups: s.Log.MaxBackups,
			MaxAge:     s.Log.MaxAgeDays,
			Compress:   true,
		}
		out = lj
		app.closers = append(app.closers, lj)
	}
	sl := newSlog(out, s.Log)
	logger, flush, err := newLogger(out, s.Log, sl)
	if err != nil {
		return nil, err
	}
	app.Logger, app.flush = logger, flush
	app.hooks = asynchook.New(sloghooks.New(sl, sloghooks.Options{SelfHealEvery: 10, RaceEvery: 10}), hookWorkers, hookQueue)

	reg := &algfetch.Registry{}
	for _, ps := range s.Providers {
		p := builtin.New(builtin.Options{Name: ps.Name, Properties: ps.Properties})
		if err := reg.Register(p); err != nil {
			app.shutdown()
			return nil, err
		}
		app.Providers = append(app.Providers, p)
	}

	opts := algfetch.Options{
		Providers:             reg,
		DefaultProperties:     s.DefaultProperties,
		SerializeConstruction: s.Serialize,
		Logger:                logger,
		Hooks:                 app.hooks,
		Namespace:             s.Namespace,
		ResolutionTTL:         s.Resolution.TTL.Duration,
	}
	if s.Legacy {
		opts.Legacy = legacy.Standard()
	}
	if err := resolution(ctx, s, &opts); err != nil {
		app.shutdown()
		return nil, err
	}

	lib, err := algfetch.New(opts)
	if err != nil {
		app.shutdown()
		return nil, err
	}
	app.Library = lib
	return app, nil
}

// Close shuts the library down, then drains hooks and flushes logs.
func (a *App) Close(ctx context.Context) error {
	var err error
	if a.Library != nil {
		err = a.Library.Close(ctx)
	}
	a.shutdown()
	return err
}

func (a *App) shutdown() {
	if a.hooks != nil {
		a.hooks.Close()
	}
	if a.flush != nil {
		_ = a.flush()
	}
	for _, cl := range a.closers {
		_ = cl.Close()
	}
	a.closers = nil
}

func slogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newSlog(w io.Writer, ls config.LogSettings) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slogLevel(ls.Level)}
	if ls.File != "" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// newLogger returns the engine logger for ls.Format and a flush func.
func newLogger(w io.Writer, ls config.LogSettings, sl *slog.Logger) (algfetch.Logger, func() error, error) {
	switch ls.Format {
	case "", "slog":
		return sloglog.New(sl), nil, nil
	case "zap":
		lvl, err := zapcore.ParseLevel(ls.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("zap level: %w", err)
		}
		enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		if ls.File != "" {
			enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		}
		zl := zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), lvl))
		return zaplog.New(zl), zl.Sync, nil
	case "logrus":
		lvl, err := logrus.ParseLevel(ls.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("logrus level: %w", err)
		}
		ll := logrus.New()
		ll.SetOutput(w)
		ll.SetLevel(lvl)
		if ls.File != "" {
			ll.SetFormatter(&logrus.JSONFormatter{})
		}
		return logruslog.New(ll), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported log format: %s", ls.Format)
	}
}

// resolution fills the resolution cache options. A "none" store leaves the
// cache disabled.
func resolution(ctx context.Context, s *config.Settings, opts *algfetch.Options) error {
	r := s.Resolution
	if r.Store == "none" {
		return nil
	}

	var client goredis.UniversalClient
	if r.Store == "redis" || r.GenStore == "redis" {
		client = goredis.NewClient(&goredis.Options{
			Addr:     r.Redis.Addr,
			Password: r.Redis.Password,
			DB:       r.Redis.DB,
		})
	}

	var (
		store st.Store
		err   error
	)
	switch r.Store {
	case "ristretto":
		cfg := ristretto.DefaultConfig()
		cfg.Wait = true
		store, err = ristretto.New(cfg)
	case "bigcache":
		store, err = bigcache.New(ctx, bigcache.Config{LifeWindow: r.TTL.Duration})
	case "redis":
		// the store owns the client; the generation store closes first
		store, err = redisstore.New(redisstore.Config{Client: client, CloseClient: true})
	default:
		err = fmt.Errorf("unsupported resolution store: %s", r.Store)
	}
	if err != nil {
		if client != nil {
			_ = client.Close()
		}
		return fmt.Errorf("resolution store: %w", err)
	}

	codec, err := newCodec(r.Codec)
	if err != nil {
		_ = store.Close(ctx)
		if client != nil && r.Store != "redis" {
			_ = client.Close()
		}
		return err
	}

	opts.ResolutionStore = store
	opts.ResolutionCodec = c.LimitCodec[algfetch.Resolution]{Inner: codec, MaxDecode: r.DecodeLimit}
	if r.GenStore == "redis" {
		opts.GenStore = gen.NewRedisGenStore(client, gen.RedisOptions{
			Prefix:      s.Namespace + ":gen:",
			CloseClient: r.Store != "redis",
		})
	}
	return nil
}

func newCodec(name string) (c.Codec[algfetch.Resolution], error) {
	switch strings.ToLower(name) {
	case "", "json":
		return c.JSON[algfetch.Resolution]{}, nil
	case "cbor":
		return c.NewCBOR[algfetch.Resolution](true)
	case "msgpack":
		return c.Msgpack[algfetch.Resolution]{}, nil
	case "protobuf":
		return algfetch.NewResolutionProtobuf(), nil
	default:
		return nil, fmt.Errorf("unsupported resolution codec: %s", name)
	}
}
