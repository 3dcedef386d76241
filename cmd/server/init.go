package main

import (
	"github.com/sirupsen/logrus"

	"github.com/sparkvisionsa/ValueTech-Backend-sub000/config"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/database"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/global"
)

// Hàm khởi tạo các biến toàn cục
func InitGlobal() {
	initValidator()        // Khởi tạo validator
	initConfig()           // Khởi tạo cấu hình server
	initDatabase_MongoDB() // Khởi tạo kết nối database (chỉ với STORE_DRIVER=mongo)
}

// Hàm khởi tạo validator (đăng ký custom validators: no_xss, field_path, report_status, ...)
func initValidator() {
	global.InitValidator()
	logrus.Info("Initialized validator")
}

// Hàm khởi tạo cấu hình server
func initConfig() {
	global.MongoDB_ServerConfig = config.NewConfig()
	if global.MongoDB_ServerConfig == nil {
		logrus.Fatalf("Failed to initialize config: config is nil")
	}
	logrus.WithFields(logrus.Fields{
		"store_driver":  global.MongoDB_ServerConfig.StoreDriver,
		"feed_strategy": global.MongoDB_ServerConfig.Feed_Strategy,
	}).Info("Initialized server config")
}

// Hàm khởi tạo kết nối database
func initDatabase_MongoDB() {
	if global.MongoDB_ServerConfig.StoreDriver != config.StoreDriverMongo {
		logrus.Warn("STORE_DRIVER=memory: dữ liệu chỉ nằm trong bộ nhớ và mất khi tắt server")
		return
	}

	var err error
	global.MongoDB_Session, err = database.GetInstance(global.MongoDB_ServerConfig)
	if err != nil {
		logrus.Fatalf("Failed to get database instance: %v", err)
	}
	logrus.Info("Connected to MongoDB")
}
