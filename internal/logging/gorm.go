package logging

import (
	"gorm.io/gorm/logger"
)

// GormLogLevel maps the environment to a gorm log level. An explicit level wins.
func GormLogLevel(environment, explicit string) logger.LogLevel {
	switch explicit {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	}
	if environment == "production" {
		return logger.Warn
	}
	return logger.Info
}
