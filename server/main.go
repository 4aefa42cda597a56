// server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"github.com/Patrickming/blinks-forum/forum"
	"github.com/Patrickming/blinks-forum/log"
)

func main() {
	// Get the database connection string from an environment variable.
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Error.Fatal("DATABASE_URL environment variable is not set")
	}

	// Initialize the database connection.
	forumDB, err := forum.NewDatabase(dbURL)
	if err != nil {
		log.Error.Fatalf("Could not initialize database: %v", err)
	}
	defer forumDB.Close()
	log.Info.Println("Successfully connected to the database.")

	if raw := os.Getenv("DB_TIMEOUT"); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil {
			log.Error.Fatalf("Invalid DB_TIMEOUT %q: %v", raw, err)
		}
		forumDB.Timeout = timeout
	}

	if err := forumDB.CreateTables(context.Background()); err != nil {
		log.Error.Fatalf("Could not create tables: %v", err)
	}

	// Create the forum handler, injecting the database dependency.
	forumHandler := forum.NewHandlers(forumDB)

	router := mux.NewRouter()
	forumHandler.RegisterRoutes(router)

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	log.Info.Printf("Starting forum server on %s", addr)
	svr := &http.Server{
		Addr:    addr,
		Handler: forumHandler.Session.LoadAndSave(router),
	}
	if err := svr.ListenAndServe(); err != nil {
		log.Error.Fatalf("Server failed to start: %v", err)
	}
}
