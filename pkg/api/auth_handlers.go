package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/smart-mobility/smartcity-go/pkg/images"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "authentication is not configured")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestResponse(w, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeBadRequestResponse(w, "username and password are required")
		return
	}

	user, err := s.auth.Authenticate(req.Username, req.Password)
	if err != nil {
		s.logger.Error("authentication lookup failed", zap.Error(err))
		writeInternalServerErrorResponse(w, "")
		return
	}
	if user == nil {
		writeErrorResponse(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    user,
	})
}

const maxImageUpload = 10 << 20 // 10 MiB

func (s *Server) handleUploadUserImage(w http.ResponseWriter, r *http.Request) {
	s.handleImageUpload(w, r, "user")
}

func (s *Server) handleUploadStationImage(w http.ResponseWriter, r *http.Request) {
	s.handleImageUpload(w, r, "station")
}

// handleImageUpload pushes a multipart image to the hosting service and
// records the resulting URL on the entity.
func (s *Server) handleImageUpload(w http.ResponseWriter, r *http.Request, kind string) {
	if s.uploader == nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "image uploads are not configured")
		return
	}

	id := mux.Vars(r)["id"]
	if err := r.ParseMultipartForm(maxImageUpload); err != nil {
		writeBadRequestResponse(w, "invalid multipart form")
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		writeBadRequestResponse(w, "image file is required")
		return
	}
	defer file.Close()

	var upload *images.Upload
	switch kind {
	case "station":
		upload, err = s.uploader.UploadStationImage(r.Context(), id, file)
	default:
		upload, err = s.uploader.UploadProfileImage(r.Context(), id, file)
	}
	if err != nil {
		s.logger.Error("image upload failed",
			zap.String("kind", kind),
			zap.String("id", id),
			zap.Error(err))
		writeInternalServerErrorResponse(w, err.Error())
		return
	}

	if err := s.service.SetImageURL(id, upload.URL); err != nil {
		writeMutationError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"success": true,
		"url":     upload.URL,
	})
}
