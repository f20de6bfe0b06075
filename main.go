package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/buaazp/fasthttprouter"
	"github.com/cockroachdb/pebble"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
	"gopkg.in/yaml.v2"

	"sairedis/replay"
	"sairedis/store"
	"sairedis/syncd"
	"sairedis/vs"
)

type RecordConfig struct {
	// File enables capture of every processed command.
	File      string `yaml:"File"`
	SQLDriver string `yaml:"SQLDriver"`
	SQLDSN    string `yaml:"SQLDSN"`
}

type Config struct {
	ListenAddr string         `yaml:"ListenAddr"`
	DBPath     string         `yaml:"DBPath"`
	DBOptions  pebble.Options `yaml:"DBOptions"`
	LogLevel   string         `yaml:"LogLevel"`
	// WarmStart restores the switch state kept in DBPath.
	WarmStart          bool         `yaml:"WarmStart"`
	PortCount          int          `yaml:"PortCount"`
	NotificationRetain int64        `yaml:"NotificationRetain"`
	Record             RecordConfig `yaml:"Record"`
}

func LoadConfig(path string) (Config, error) {
	cfg := Config{ListenAddr: ":6380", DBPath: "sairedis.db", LogLevel: "info", PortCount: 32, NotificationRetain: 4096}
	yd, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(yd, &cfg)
	return cfg, err
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := LoadConfig("config.yml")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	err = Start(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
}

var (
	db        *store.Store
	ntfRetain int64
)

// Daemon is the command processor with the switch behind it.
type Daemon struct {
	Syncd  *syncd.Syncd
	Switch *vs.Switch
	rec    *replay.Recorder
}

// NewDaemon builds the switch and the command processor over st.
func NewDaemon(cfg Config, st *store.Store) (*Daemon, error) {
	d := &Daemon{Switch: vs.New(vs.Options{KV: st, PortCount: cfg.PortCount})}
	opts := syncd.Options{
		KV:            st,
		Backend:       d.Switch,
		Notifications: st.Topic(store.NotificationTopic, cfg.NotificationRetain),
		WarmStart:     cfg.WarmStart,
	}
	if cfg.Record.File != "" {
		rec, err := replay.NewRecorder(cfg.Record.File)
		if err != nil {
			return nil, err
		}
		if cfg.Record.SQLDriver != "" {
			sink, err := replay.OpenSQL(cfg.Record.SQLDriver, cfg.Record.SQLDSN)
			if err != nil {
				rec.Close()
				return nil, err
			}
			rec.WithSQL(sink)
		}
		d.rec = rec
		opts.Recorder = rec
	}
	s, err := syncd.New(opts)
	if err != nil {
		if d.rec != nil {
			d.rec.Close()
		}
		return nil, err
	}
	d.Syncd = s
	return d, nil
}

// Run processes commands and switch events until ctx is done.
func (d *Daemon) Run(ctx context.Context, st *store.Store) error {
	go func() {
		if err := d.Syncd.RunNotifications(ctx, d.Switch.Notifications()); err != nil {
			log.Errorf("notifications: %v", err)
		}
	}()
	return d.Syncd.Run(ctx, st.Queue(store.CommandQueue), st.Queue(store.ResponseQueue))
}

// reopenOnHangup reopens the capture file on SIGHUP, after logrotate moved it.
func (d *Daemon) reopenOnHangup(ctx context.Context) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := d.rec.Reopen(); err != nil {
				log.Errorf("reopen capture: %v", err)
			}
		}
	}
}

func (d *Daemon) Close() error {
	if d.rec != nil {
		return d.rec.Close()
	}
	return nil
}

func NewRouter() *fasthttprouter.Router {
	router := fasthttprouter.New()
	router.GET("/ping", PingHandler)
	router.POST("/q/:name", PushHandler)
	router.DELETE("/q/:name", PopHandler)
	router.POST("/ntf/:name", PublishHandler)
	router.GET("/ntf/:name", ReadNotificationHandler)
	router.NotFound = func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(404)
	}
	return router
}

func Start(ctx context.Context, cfg Config) error {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("LogLevel: %w", err)
	}
	log.SetLevel(level)

	st, err := store.Open(cfg.DBPath, &cfg.DBOptions)
	if err != nil {
		return err
	}
	defer st.Close()
	db, ntfRetain = st, cfg.NotificationRetain

	// the flush loop outlives ctx so the last responses still commit
	flushCtx, stopFlush := context.WithCancel(context.Background())
	flushed := make(chan error, 1)
	go func() { flushed <- st.FlushLoop(flushCtx) }()
	defer func() {
		stopFlush()
		if err := <-flushed; err != nil {
			log.Errorf("flush: %v", err)
		}
	}()

	d, err := NewDaemon(cfg, st)
	if err != nil {
		return err
	}
	defer d.Close()
	if d.rec != nil {
		go d.reopenOnHangup(ctx)
	}

	s := fasthttp.Server{
		Handler:                       NewRouter().Handler,
		Concurrency:                   100000,
		ReadBufferSize:                10000,
		WriteBufferSize:               10000,
		DisableHeaderNamesNormalizing: true,
		NoDefaultContentType:          true,
		NoDefaultDate:                 true,
		NoDefaultServerHeader:         true,
		IdleTimeout:                   time.Minute,
	}
	go func() {
		log.Info("START ", cfg.ListenAddr)
		if err := s.ListenAndServe(cfg.ListenAddr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	err = d.Run(ctx, st)
	if serr := s.Shutdown(); serr != nil {
		log.Warnf("shutdown: %v", serr)
	}
	log.Info("STOP")
	return err
}
