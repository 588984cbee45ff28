package cmd

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payments-router/config"
)

func configureLogging(cfg *config.Config) error {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	return nil
}
