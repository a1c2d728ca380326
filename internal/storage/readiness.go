package storage

import (
	"context"
	"fmt"
	"time"
)

// ReadinessChecker — проверка готовности хранилища для health endpoint.
type ReadinessChecker struct {
	backend Backend
	timeout time.Duration
}

// NewReadinessChecker создаёт проверку готовности бэкенда.
func NewReadinessChecker(b Backend) *ReadinessChecker {
	return &ReadinessChecker{backend: b, timeout: 3 * time.Second}
}

// CheckReady возвращает статус ("ok", "fail") и сообщение.
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.backend.Ping(ctx); err != nil {
		return "fail", fmt.Sprintf("хранилище %s недоступно: %v", c.backend.Name(), err)
	}
	return "ok", "хранилище " + c.backend.Name() + " доступно"
}
