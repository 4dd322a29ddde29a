/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the workday ledger server: configuration,
  dependency wiring, and graceful shutdown.

CONFIGURATION (viper; environment variables override the optional
.env file):
  PORT          HTTP server port              (default 8080)
  DB_PATH       SQLite database path          (default workday.db,
                use ":memory:" for throwaway runs)
  CORS_ORIGINS  Comma-separated allowed origins
                (default http://localhost:5173)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop accepting connections, wait up to 30s for
  in-flight requests, close the database, exit.

SEE ALSO:
  - api/server.go: router configuration
  - store/sqlite: the persistence layer
*/
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"github.com/warp/workday-ledger/api"
	"github.com/warp/workday-ledger/ledger"
	"github.com/warp/workday-ledger/store/sqlite"
)

func main() {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig() // .env is optional

	viper.SetDefault("PORT", 8080)
	viper.SetDefault("DB_PATH", "workday.db")
	viper.SetDefault("CORS_ORIGINS", "http://localhost:5173")

	port := viper.GetInt("PORT")
	dbPath := viper.GetString("DB_PATH")
	origins := splitOrigins(viper.GetString("CORS_ORIGINS"))

	db, err := sqlite.New(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	engine := ledger.NewEngine(db.WorkRecords(), db.Payments())
	handler := api.NewHandler(engine, db.WorkRecords(), db.Payments(), db.Employees())
	router := api.NewRouter(handler, origins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%d (db: %s)", port, dbPath)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func splitOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
