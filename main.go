package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"customizer/compositor"
	"customizer/config"
	"customizer/core"
	"customizer/export"
	"customizer/handlers/api/assets"
	"customizer/handlers/api/composite"
	"customizer/handlers/api/designs"
	"customizer/handlers/api/products"
	"customizer/handlers/auth"
	"customizer/handlers/websocket"
	"customizer/imageio"
	authMiddleware "customizer/middleware"
	"customizer/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type app struct {
	store    stores.Store
	fast     core.Compositor
	ai       core.Compositor
	renderer *designs.Renderer
	hub      *websocket.Hub
}

func newApp(cfg config.Config, store stores.Store) *app {
	logger := logrus.StandardLogger()
	loader := imageio.NewHTTPLoader(nil, cfg.ImageFetchTimeout)
	loader.SetMaxPixels(cfg.MaxImagePixels)
	fast := compositor.NewFast(loader, logger)
	fast.SetMaxCanvas(cfg.MaxCanvasPx)
	ai := compositor.NewAI(compositor.AIOptions{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		Model:       cfg.CompositeModel,
		Timeout:     cfg.AITimeout,
		MaxCanvasPx: cfg.MaxCanvasPx,
	}, loader, logger)
	if cfg.OpenAIAPIKey == "" {
		logrus.Warn("OPENAI_API_KEY is not set. AI composites will be rejected.")
	}

	exporter := export.NewExporter(store, export.Options{
		PixelRatio:     cfg.ExportPixelRatio,
		Validation:     export.Validation(cfg.ExportValidation),
		PlaceholderURL: cfg.ExportPlaceholderURL,
	}, logger)

	hub := websocket.NewHub()
	return &app{
		store: store,
		fast:  fast,
		ai:    ai,
		hub:   hub,
		renderer: &designs.Renderer{
			Store:       store,
			Fast:        fast,
			AI:          ai,
			Loader:      loader,
			Exporter:    exporter,
			Notifier:    hub,
			StageWidth:  cfg.StageWidth,
			StageHeight: cfg.StageHeight,
		},
	}
}

func setupRouter(a *app) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "X-CSRF-Token", "Origin", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	r.Route("/api/v2", func(r chi.Router) {
		r.Get("/assets/{id}", assets.HandleGetAsset(a.store))

		r.Route("/products/{productId}/views", func(r chi.Router) {
			r.Get("/", products.HandleGetViews(a.store))
			r.Get("/{viewId}/fee", products.HandleFee(a.store))
			r.With(authMiddleware.AuthJWT, authMiddleware.RequireMerchant).Put("/", products.HandleSaveViews(a.store))
		})

		r.Post("/composite/fast", composite.HandleComposite(a.fast, "fast"))

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.AuthJWT)
			r.Post("/composite/ai", composite.HandleComposite(a.ai, "ai"))
			r.Route("/designs", func(r chi.Router) {
				r.Get("/", designs.HandleListDesigns(a.store))
				r.Route("/{key}", func(r chi.Router) {
					r.Get("/", designs.HandleGetDesign(a.store))
					r.Put("/", designs.HandleSaveDesign(a.store, a.renderer.StageWidth, a.renderer.StageHeight))
					r.Delete("/", designs.HandleDeleteDesign(a.store))
					r.Post("/preview", designs.HandlePreview(a.renderer))
					r.Post("/export", designs.HandleExport(a.renderer))
					r.Post("/edit", designs.HandleEdit(a.renderer))
				})
			})
		})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", auth.HandleLogin)
		r.Get("/callback", auth.HandleCallback)
	})

	r.Mount("/socket.io/", a.hub.Handler())
	return r
}

func seedCatalog(cfg config.Config, store stores.Store) {
	if cfg.CatalogSeedFile == "" {
		return
	}
	catalog, err := stores.LoadCatalog(cfg.CatalogSeedFile)
	if err != nil {
		logrus.WithField("file", cfg.CatalogSeedFile).Fatalf("Failed to load catalog: %v", err)
	}
	if err := stores.Seed(context.Background(), store, catalog); err != nil {
		logrus.Fatal(err)
	}
}

func waitForShutdown(srv *http.Server, hub *websocket.Hub) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
	s := <-signals
	logrus.WithField("signal", s.String()).Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	hub.Close()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("Server did not shut down cleanly")
	}
}

func main() {
	listenAddress := flag.String("listen", ":3002", "The address to listen on.")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cfg := config.Load()
	auth.InitAuth()
	store := stores.GetStore(cfg)
	seedCatalog(cfg, store)

	a := newApp(cfg, store)
	srv := &http.Server{Addr: *listenAddress, Handler: setupRouter(a)}

	logrus.WithField("addr", *listenAddress).Info("starting server")
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown(srv, a.hub)
}
