package api

import (
	"encoding/json"
	"net/http"
)

// Response helpers for common HTTP response patterns

// writeJSONResponse writes a JSON response with the given status code
func writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeErrorResponse writes an error response with the given status code and message
func writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	writeJSONResponse(w, statusCode, map[string]any{
		"success": false,
		"error":   message,
	})
}

// writeBadRequestResponse writes a 400 Bad Request response
func writeBadRequestResponse(w http.ResponseWriter, message string) {
	writeErrorResponse(w, http.StatusBadRequest, message)
}

// writeNotFoundResponse writes a 404 Not Found response
func writeNotFoundResponse(w http.ResponseWriter, message string) {
	writeErrorResponse(w, http.StatusNotFound, message)
}

// writeInternalServerErrorResponse writes a 500 Internal Server Error response
func writeInternalServerErrorResponse(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Internal Server Error"
	}
	writeErrorResponse(w, http.StatusInternalServerError, message)
}

// writeListResponse writes a success response for listing endpoints
func writeListResponse(w http.ResponseWriter, key string, records any, count int) {
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"success": true,
		key:       records,
		"count":   count,
	})
}

// writeOperationSuccessResponse writes a success response for CRUD operations
func writeOperationSuccessResponse(w http.ResponseWriter, message, idKey, idValue string) {
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"success": true,
		"message": message,
		idKey:     idValue,
	})
}
