package main

import (
	"log"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/fatih/color"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/spf13/viper"

	"gorm.io/driver/sqlite"
)

var (
	db           *gorm.DB
	formCache    *FormCache
	rateLimiter  AttemptLimiter
	spamDetector *SpamDetector
)

func main() {
	initConfig()
	initLogger()
	initDatabase(viper.GetString("database.path"))

	var err error
	formCache, err = NewFormCache(1000, time.Minute)
	if err != nil {
		log.Fatalf("failed to initialize form cache: %v", err)
	}
	rateLimiter = newAttemptLimiter()
	spamDetector = NewSpamDetector()

	r := initRouter()

	portNum := viper.GetString("server.port")
	color.Green("WNSForms running on http://localhost%s", portNum)
	log.Fatal(http.ListenAndServe(portNum, r))
}

func initRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.RealIP)

	// the intake endpoint is deliberately public and cross-origin
	r.Group(func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))
		// coarse burst protection in front of the per-IP submission budget
		r.Use(httprate.LimitByIP(100, time.Minute))
		r.Post("/post/{hash}", SubmitForm)
	})

	r.Post("/admin/signup", AdminSignUp)
	r.Post("/admin/signin", AdminSignIn)

	r.With(AdminAuthMiddleware).Route("/admin", func(r chi.Router) {
		r.Get("/forms", AdminListForms)
		r.Post("/forms", AdminCreateForm)
		r.Route("/forms/{formID}", func(r chi.Router) {
			r.Get("/", AdminShowForm)
			r.Put("/", AdminUpdateForm)
			r.Delete("/", AdminDeleteForm)
			r.Post("/fields", AdminCreateField)
			r.Put("/fields/{fieldID}", AdminUpdateField)
			r.Delete("/fields/{fieldID}", AdminDeleteField)
			r.Get("/submissions", AdminListSubmissions)
		})
		r.Delete("/submissions/{submissionID}", AdminDeleteSubmission)
	})

	return r
}

func initDatabase(path string) {
	var err error
	db, err = gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	// Migrate the schema
	err = db.AutoMigrate(&Form{}, &FormField{}, &FormSubmission{}, &AdminUser{})
	if err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}
}
