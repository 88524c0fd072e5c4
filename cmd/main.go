package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"restaurant-pos/internal/config"
	"restaurant-pos/internal/history"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/menu"
	"restaurant-pos/internal/messaging"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/orders"
	"restaurant-pos/internal/services/payment"
	"restaurant-pos/internal/services/waiter"
	"restaurant-pos/internal/storage"
	"restaurant-pos/internal/tables"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to config file")
		port       = flag.Int("port", 0, "HTTP port (overrides config)")
	)
	flag.Parse()

	log := logger.New("waiter-service")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("config_load_failed", "Failed to load configuration", "startup", err, nil)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv, err := openStorage(ctx, cfg)
	if err != nil {
		log.Error("storage_init_failed", "Failed to initialize order storage", "startup", err, nil)
		os.Exit(1)
	}
	defer kv.Close()

	hist := history.NewStore(kv, log)
	catalog := menu.NewCatalog(menu.DefaultCategories(), menu.DefaultDishes())

	var tableReg *tables.Registry
	active := orders.NewRegistry(func(tableID string) (models.Table, bool) {
		return tableReg.FindByID(tableID)
	})
	occ := &waiter.Occupancy{History: hist, Active: active, Logger: log}
	tableReg = tables.NewRegistry(tables.DefaultFloor1(), occ)

	var publisher *messaging.Publisher
	if cfg.RabbitMQ.Enabled {
		conn, err := messaging.New(cfg, log)
		if err != nil {
			log.Error("rabbitmq_init_failed", "Kitchen notifications disabled", "startup", err, nil)
		} else {
			publisher = messaging.NewPublisher(conn, log)
			defer publisher.Close()
		}
	}

	// A typed-nil publisher must not sneak into the interface fields.
	var kitchen waiter.KitchenNotifier
	var paidNotifier payment.Notifier
	if publisher != nil {
		kitchen = publisher
		paidNotifier = publisher
	}

	engine := waiter.NewEngine(catalog, tableReg, hist, active, kitchen, log, cfg.Session.WaiterID, cfg.Session.WaiterName)
	handler := waiter.NewHandler(engine, hist, catalog, paidNotifier, log,
		time.Duration(cfg.Payment.SuccessDisplaySeconds)*time.Second)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("server_starting", fmt.Sprintf("Waiter service listening on port %d", cfg.Server.Port), "startup", map[string]interface{}{
			"port":           cfg.Server.Port,
			"storage_driver": cfg.Storage.Driver,
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server_failed", "HTTP server stopped unexpectedly", "", err, nil)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown_started", "Shutting down waiter service", "shutdown", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown_failed", "Graceful shutdown failed", "shutdown", err, nil)
	}
	log.Info("shutdown_complete", "Waiter service stopped", "shutdown", nil)
}

// openStorage builds the configured key-value driver.
func openStorage(ctx context.Context, cfg *config.Config) (storage.KeyValue, error) {
	switch cfg.Storage.Driver {
	case "memory":
		return storage.NewMemory(), nil
	case "file":
		return storage.NewFile(cfg.Storage.Path)
	case "postgres":
		return storage.NewPostgres(ctx, cfg.DatabaseURL())
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Storage.Driver)
	}
}
