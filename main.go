package main

import (
	"excalisave/coordinator"
	"excalisave/handlers/api/backups"
	"excalisave/handlers/api/drawings"
	"excalisave/handlers/auth"
	authMiddleware "excalisave/middleware"
	"excalisave/repository"
	"excalisave/stores"
	"excalisave/surface"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func setupRouter(coord *coordinator.Coordinator, hub *surface.Hub) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "Origin", "Host", "Connection", "Accept-Encoding", "Accept-Language", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.AuthJWT)

		r.Route("/drawings", func(r chi.Router) {
			r.Get("/", drawings.HandleList(coord))
			r.Post("/", drawings.HandleSaveNew(coord))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", drawings.HandleGet(coord))
				r.Delete("/", drawings.HandleDelete(coord))
				r.Post("/save", drawings.HandleUpdate(coord))
				r.Post("/load", drawings.HandleLoad(coord))
				r.Get("/export", drawings.HandleExport(coord))
				r.Get("/backups", backups.HandleList(coord))
			})
		})
		r.Post("/backups/{backupId}/restore", backups.HandleRestore(coord))

		r.Get("/current", drawings.HandleGetCurrent(coord))
		r.Post("/new", drawings.HandleNew(coord))
		r.Post("/save", drawings.HandleSave(coord))
	})

	r.Get("/auth/token", auth.HandleToken)

	// The page-embedded extractor attaches here.
	r.Get("/ws/surface", hub.Handler())

	return r
}

func waitForShutdown(coord *coordinator.Coordinator, repo *repository.Repository) {
	exit := make(chan struct{})
	SignalC := make(chan os.Signal, 1)

	signal.Notify(SignalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		for s := range SignalC {
			switch s {
			case os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
				close(exit)
				return
			}
		}
	}()

	<-exit
	coord.Stop()
	if err := repo.Close(); err != nil {
		logrus.WithError(err).Warn("Failed to close store")
	}
	logrus.Info("Shutting down")
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	listenAddress := flag.String("listen", "127.0.0.1:7437", "The address to listen on.")
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

	auth.InitAuth()
	store := stores.GetStore()
	repo := repository.New(store)
	hub := surface.NewHub()
	coord := coordinator.New(repo, hub)
	coord.Start()

	r := setupRouter(coord, hub)

	logrus.WithField("addr", *listenAddress).Info("starting server")
	go func() {
		if err := http.ListenAndServe(*listenAddress, r); err != nil {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	waitForShutdown(coord, repo)
}
