package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sparkvisionsa/ValueTech-Backend-sub000/config"
	reportsvc "github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/api/report/service"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/database"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/global"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/provider"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/provider/memstore"
)

func InitRegistry() {
	cfg := global.MongoDB_ServerConfig

	version, defs, err := provider.ResolveDefinitions(cfg.ProvidersFile)
	if err != nil {
		logrus.Fatalf("Failed to load provider definitions: %v", err)
	}

	storeFor, err := storeResolver(global.MongoDB_Session, cfg, defs)
	if err != nil {
		logrus.Fatalf("Failed to initialize collections: %v", err)
	}

	global.Providers, err = provider.Bind(defs, storeFor)
	if err != nil {
		logrus.Fatalf("Failed to bind report providers: %v", err)
	}
	logrus.WithFields(logrus.Fields{
		"providers": global.Providers.Names(),
		"version":   version,
		"file":      cfg.ProvidersFile,
	}).Info("Initialized provider registry")

	if global.MongoDB_Session != nil && cfg.InitIndexes {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		db := global.MongoDB_Session.Database(cfg.MongoDB_DBName_Data)
		if err := database.CreateReportIndexes(ctx, db, global.Providers.List()); err != nil {
			logrus.Errorf("Failed to create report indexes: %v", err)
		}
	}

	global.ReportService, err = NewReportServiceFromConfig(global.Providers, cfg)
	if err != nil {
		logrus.Fatalf("Failed to create report service: %v", err)
	}
	logrus.Info("Initialized report service")
}

// NewReportServiceFromConfig dựng ReportService theo cấu hình feed / resolver
func NewReportServiceFromConfig(providers *provider.Registry, cfg *config.Configuration) (*reportsvc.ReportService, error) {
	strategy, err := reportsvc.ParseFeedStrategy(cfg.Feed_Strategy)
	if err != nil {
		return nil, err
	}
	return reportsvc.NewReportService(providers, reportsvc.Options{
		AmbiguityCheck:  cfg.Identity_AmbiguityCheck,
		FeedStrategy:    strategy,
		FanoutSlack:     cfg.Feed_FanoutSlack,
		ProviderTimeout: cfg.FeedProviderTimeout(),
		BackfillRate:    cfg.StatusBackfill_Rate,
	})
}

// storeResolver trả về hàm lấy Store theo tên collection, theo STORE_DRIVER
func storeResolver(client *mongo.Client, cfg *config.Configuration, defs []provider.Provider) (func(string) (provider.Store, error), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		return memstore.NewDB().StoreFor, nil
	}
	if client == nil {
		return nil, fmt.Errorf("mongo client chưa được khởi tạo")
	}
	if err := InitCollections(client, cfg, defs); err != nil {
		return nil, err
	}
	return func(name string) (provider.Store, error) {
		coll, err := global.RegistryCollections.MustGet(name)
		if err != nil {
			return nil, err
		}
		return provider.NewMongoStore(coll), nil
	}, nil
}

// InitCollections đăng ký các collection báo cáo vào global.RegistryCollections
func InitCollections(client *mongo.Client, cfg *config.Configuration, defs []provider.Provider) error {
	db := client.Database(cfg.MongoDB_DBName_Data)
	for _, def := range defs {
		registered, err := global.RegistryCollections.Register(def.Name, db.Collection(def.Name))
		if err != nil {
			logrus.Errorf("Failed to register collection %s: %v", def.Name, err)
			return err
		}

		if registered {
			logrus.Infof("Collection %s registered successfully", def.Name)
		} else {
			logrus.Warnf("Collection %s already registered", def.Name)
		}
	}
	return nil
}
