package config

import (
	"github.com/sirupsen/logrus"
)

// CreateTestConfigManager returns a manager serving cfg without a backing file.
func CreateTestConfigManager[T any](cfg *T) *Manager[T] {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	manager, err := NewManager("", func(string) (*T, error) { return cfg, nil }, logger, 0)
	if err != nil {
		panic(err)
	}
	return manager
}
