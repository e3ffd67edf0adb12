package logging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

type contextKey string

const (
	loggerKey  contextKey = "logger"
	traceIDKey contextKey = "trace_id"
)

// GenerateTraceID generates a new trace ID
func GenerateTraceID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// FromContext retrieves the logger from context
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok {
		return l
	}
	return Default()
}

// NewContext creates a new context with the logger
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// WithTraceContext adds a trace ID to the context and returns a logger with it
func WithTraceContext(ctx context.Context) (context.Context, *Logger) {
	traceID := GenerateTraceID()
	l := Default().WithTraceID(traceID)
	newCtx := context.WithValue(ctx, traceIDKey, traceID)
	newCtx = context.WithValue(newCtx, loggerKey, l)
	return newCtx, l
}

// AuthContext creates a logger context for authentication operations
func AuthContext(userID, email string) *Logger {
	return Default().WithFields(map[string]interface{}{
		"user_id": userID,
		"email":   email,
	}).WithComponent("auth")
}

// SubscriptionContext creates a logger context for subscription transitions
func SubscriptionContext(userID, subscriptionID, status string) *Logger {
	return Default().WithFields(map[string]interface{}{
		"user_id":         userID,
		"subscription_id": subscriptionID,
		"status":          status,
	}).WithComponent("subscription")
}

// WebhookContext creates a logger context for payment webhook processing
func WebhookContext(orderID, paymentID string) *Logger {
	return Default().WithFields(map[string]interface{}{
		"order_id":   orderID,
		"payment_id": paymentID,
	}).WithComponent("webhook")
}

// GatewayContext creates a logger context for access gateway decisions
func GatewayContext(path, routeClass string) *Logger {
	return Default().WithFields(map[string]interface{}{
		"path":        path,
		"route_class": routeClass,
	}).WithComponent("gateway")
}

// DatabaseContext creates a logger context for database operations
func DatabaseContext(operation, table string) *Logger {
	return Default().WithFields(map[string]interface{}{
		"operation": operation,
		"table":     table,
	}).WithComponent("database")
}
