package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/mnohosten/laura-db/pkg/index"
	"github.com/mnohosten/laura-db/pkg/metrics"
	"github.com/mnohosten/laura-db/pkg/storage"
)

// Handlers holds the running store/index instances and provides HTTP
// handlers for the admin and lookup API.
type Handlers struct {
	store     *storage.Store
	table     *index.HashTable[uint64, uint64]
	collector *metrics.MetricsCollector
}

// New creates a new Handlers instance bound to store, table, and collector.
func New(store *storage.Store, table *index.HashTable[uint64, uint64], collector *metrics.MetricsCollector) *Handlers {
	return &Handlers{store: store, table: table, collector: collector}
}

// parseJSONBody parses JSON request body into target interface
func parseJSONBody(r *http.Request, target interface{}) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return &BadRequestError{Message: "failed to read request body"}
	}
	defer r.Body.Close()

	if len(body) == 0 {
		return &BadRequestError{Message: "request body is empty"}
	}

	if err := json.Unmarshal(body, target); err != nil {
		return &BadRequestError{Message: "invalid JSON: " + err.Error()}
	}

	return nil
}

// Error types for consistent error handling

type BadRequestError struct {
	Message string
}

func (e *BadRequestError) Error() string {
	return e.Message
}

type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

type InternalError struct {
	Message string
}

func (e *InternalError) Error() string {
	return e.Message
}

// writeError writes an error response with appropriate HTTP status code
func writeError(w http.ResponseWriter, err error) {
	var statusCode int
	var errorType string
	var message string

	switch e := err.(type) {
	case *BadRequestError:
		statusCode = http.StatusBadRequest
		errorType = "BadRequest"
		message = e.Message
	case *NotFoundError:
		statusCode = http.StatusNotFound
		errorType = "NotFound"
		message = e.Message
	case *InternalError:
		statusCode = http.StatusInternalServerError
		errorType = "InternalError"
		message = e.Message
	default:
		statusCode = http.StatusInternalServerError
		errorType = "InternalError"
		message = err.Error()
	}

	response := map[string]interface{}{
		"ok":      false,
		"error":   errorType,
		"message": message,
		"code":    statusCode,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}

// writeSuccess writes a success response
func writeSuccess(w http.ResponseWriter, result interface{}) {
	response := map[string]interface{}{
		"ok":     true,
		"result": result,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}
