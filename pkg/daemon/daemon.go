// Package daemon hosts the battery widgets: it owns the coordinator,
// serves the local API over a unix socket and drives periodic host
// updates.
package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/xiaoha/batterywidget/pkg/batteryapi"
	"github.com/xiaoha/batterywidget/pkg/config"
	"github.com/xiaoha/batterywidget/pkg/events"
	"github.com/xiaoha/batterywidget/pkg/render"
	"github.com/xiaoha/batterywidget/pkg/scheduler"
	"github.com/xiaoha/batterywidget/pkg/settings"
	"github.com/xiaoha/batterywidget/pkg/widget"
)

// Validator checks a configuration against the battery API before it is
// saved.
type Validator interface {
	Validate(ctx context.Context, req batteryapi.Request) error
}

// Server wires the HTTP API to a coordinator.
type Server struct {
	coord     *widget.Coordinator
	store     config.Store
	validator Validator
	hub       *events.EventHub
	png       *render.PNG
	// updater is nil when host updates are off.
	updater *HostUpdater

	validateTimeout time.Duration
}

func NewServer(coord *widget.Coordinator, store config.Store, validator Validator, hub *events.EventHub, png *render.PNG) *Server {
	return &Server{
		coord:           coord,
		store:           store,
		validator:       validator,
		hub:             hub,
		png:             png,
		validateTimeout: batteryapi.ValidateTimeout,
	}
}

func (s *Server) setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))

	router.GET("/instances", s.listInstances)
	router.GET("/instances/:id", s.getInstance)
	router.GET("/instances/:id/image", s.getInstanceImage)
	router.PUT("/instances/:id/config", s.setInstanceConfig)
	router.POST("/instances/:id/tap", s.tapInstance)
	router.POST("/instances/:id/refresh", s.refreshInstance)
	router.DELETE("/instances/:id", s.removeInstance)
	router.POST("/update", s.updateInstances)
	router.POST("/disable", s.disableAll)
	router.GET("/events", s.streamEvents)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/version", getVersion)
	router.GET("/daemon", s.getDaemonInfo)

	return router
}

// updateAll runs a host update over every stored instance.
func (s *Server) updateAll(ctx context.Context) error {
	ids, err := s.store.List()
	if err != nil {
		return pkgerrors.Wrap(err, "failed to list instances")
	}
	logrus.WithField("instances", len(ids)).Info("updating all instances")
	s.coord.OnInstancesUpdated(ctx, ids)
	return nil
}

func openStore(s settings.StoreSettings) (config.Store, error) {
	switch s.Backend {
	case settings.StoreFile:
		return config.NewFile(s.Path)
	case settings.StoreSQLite:
		return config.NewSQLite(s.Path)
	case settings.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr: s.RedisAddr,
			DB:   s.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, pkgerrors.Wrapf(err, "failed to connect to redis at %s", s.RedisAddr)
		}
		return config.NewRedis(client), nil
	default:
		return nil, pkgerrors.Errorf("unknown store backend %q", s.Backend)
	}
}

// applyLogLevel sets the logrus level from conf unless the command line
// fixed one already.
func applyLogLevel(conf settings.Settings, logLevelFromFlag bool) {
	if logLevelFromFlag {
		return
	}
	level, err := logrus.ParseLevel(conf.LogLevel)
	if err != nil {
		logrus.Warnf("ignoring log-level %q: %v", conf.LogLevel, err)
		return
	}
	logrus.SetLevel(level)
}

// Run starts the daemon. An empty unixSocketPath takes the socket from the
// settings file; logLevelFromFlag keeps the level set on the command line
// over the settings file, including across reloads.
func Run(settingsPath string, unixSocketPath string, logLevelFromFlag bool, allowNonRoot bool) error {
	conf, err := settings.LoadFromFile(settingsPath)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to load settings during startup")
	}
	if unixSocketPath == "" {
		unixSocketPath = conf.SocketPath
	}
	applyLogLevel(conf, logLevelFromFlag)
	logrus.WithFields(conf.LogrusFields()).Infof("settings loaded")

	store, err := openStore(conf.Store)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to open instance store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logrus.Errorf("failed to close instance store: %v", err)
		}
	}()

	loc, err := conf.Location()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(conf.OutputDir, 0755); err != nil {
		return pkgerrors.Wrapf(err, "failed to create output dir %s", conf.OutputDir)
	}

	logo := render.NewLogo()
	png := render.NewPNG(conf.OutputDir, logo, loc)
	hub := events.NewEventHub()
	renderer := newHostRenderer(png, render.NewFormatter(loc, render.Language(conf.Language)), hub)

	timer := scheduler.NewTimer()
	defer timer.Stop()

	api := batteryapi.NewClient()
	coord := widget.New(store, api, timer, renderer,
		widget.WithLogo(logo),
		widget.WithFetchTimeout(conf.FetchTimeout.Duration),
	)

	server := NewServer(coord, store, api, hub, png)
	server.validateTimeout = conf.ValidateTimeout.Duration

	updater := NewHostUpdater(func() {
		if err := server.updateAll(context.Background()); err != nil {
			logrus.Errorf("host update failed: %v", err)
		}
	})
	if conf.HostUpdate != "" {
		if err := updater.Schedule(conf.HostUpdate); err != nil {
			return pkgerrors.Wrapf(err, "invalid host-update expression %q", conf.HostUpdate)
		}
		updater.Start()
	}
	server.updater = updater
	defer updater.Stop()

	// Receive SIGHUP to reload settings
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			next, err := settings.LoadFromFile(settingsPath)
			if err != nil {
				logrus.Errorf("failed to reload settings: %v", err)
				continue
			}
			applyLogLevel(next, logLevelFromFlag)
			if next.HostUpdate != "" {
				if err := updater.Schedule(next.HostUpdate); err != nil {
					logrus.Errorf("invalid host-update expression %q: %v", next.HostUpdate, err)
					continue
				}
				updater.Start()
			}
			logrus.Infof("settings reloaded")
		}
	}()

	srv := &http.Server{
		Handler: server.setupRoutes(),
	}

	// A previous daemon that crashed leaves its socket behind.
	if err := os.Remove(unixSocketPath); err != nil && !os.IsNotExist(err) {
		return pkgerrors.Wrapf(err, "failed to remove stale socket %s", unixSocketPath)
	}

	// Create the socket to listen on:
	l, err := net.Listen("unix", unixSocketPath)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to listen on %s", unixSocketPath)
	}

	if conf.AllowNonRoot || allowNonRoot {
		logrus.Infof("non-root access is allowed, changing permissions of %s to 0777", unixSocketPath)
		if err := os.Chmod(unixSocketPath, 0777); err != nil {
			return err
		}
	}

	// Serve HTTP on unix socket
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	// Widgets placed before the daemon started need their first update.
	go func() {
		if err := server.updateAll(context.Background()); err != nil {
			logrus.Errorf("initial update failed: %v", err)
		}
	}()

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	// Wait for a SIGINT or SIGTERM:
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	logrus.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = srv.Shutdown(ctx)
	if err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	cancel()

	logrus.Info("stopping widgets")
	coord.OnAllDisabled()

	logrus.Info("exiting")
	return nil
}
