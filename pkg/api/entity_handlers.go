package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/smart-mobility/smartcity-go/pkg/smartcity"
)

// listHandler wraps a service listing call into an HTTP handler.
func (s *Server) listHandler(key string, list func() ([]smartcity.Record, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := list()
		if err != nil {
			s.logger.Error("listing failed", zap.String("collection", key), zap.Error(err))
			writeInternalServerErrorResponse(w, err.Error())
			return
		}
		writeListResponse(w, key, records, len(records))
	}
}

func (s *Server) handleListTransports(w http.ResponseWriter, r *http.Request) {
	s.listHandler("transports", s.service.ListTransports)(w, r)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	s.listHandler("users", s.service.ListUsers)(w, r)
}

func (s *Server) handleListStations(w http.ResponseWriter, r *http.Request) {
	s.listHandler("stations", s.service.ListStations)(w, r)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	s.listHandler("evenements", s.service.ListEvents)(w, r)
}

func (s *Server) handleListTrajets(w http.ResponseWriter, r *http.Request) {
	s.listHandler("trajets", s.service.ListTrajets)(w, r)
}

func (s *Server) handleListZones(w http.ResponseWriter, r *http.Request) {
	s.listHandler("zones", s.service.ListZones)(w, r)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeBadRequestResponse(w, "invalid JSON body")
		return false
	}
	return true
}

// writeMutationError maps service errors onto HTTP status codes.
func writeMutationError(w http.ResponseWriter, err error) {
	if errors.Is(err, smartcity.ErrNotFound) {
		writeNotFoundResponse(w, err.Error())
		return
	}
	writeBadRequestResponse(w, err.Error())
}

func (s *Server) handleCreateTransport(w http.ResponseWriter, r *http.Request) {
	var in smartcity.TransportInput
	if !decodeBody(w, r, &in) {
		return
	}
	id, err := s.service.CreateTransport(in)
	if err != nil {
		writeMutationError(w, err)
		return
	}
	writeOperationSuccessResponse(w, "transport created", "id", id)
}

func (s *Server) handleUpdateTransport(w http.ResponseWriter, r *http.Request) {
	var in smartcity.TransportInput
	if !decodeBody(w, r, &in) {
		return
	}
	id := mux.Vars(r)["id"]
	if err := s.service.UpdateTransport(id, in); err != nil {
		writeMutationError(w, err)
		return
	}
	writeOperationSuccessResponse(w, "transport updated", "id", id)
}

func (s *Server) handleDeleteTransport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.service.DeleteTransport(id); err != nil {
		writeMutationError(w, err)
		return
	}
	writeOperationSuccessResponse(w, "transport deleted", "id", id)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in smartcity.UserInput
	if !decodeBody(w, r, &in) {
		return
	}
	id, err := s.service.CreateUser(in)
	if err != nil {
		writeMutationError(w, err)
		return
	}
	writeOperationSuccessResponse(w, "user created", "id", id)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var in smartcity.UserInput
	if !decodeBody(w, r, &in) {
		return
	}
	id := mux.Vars(r)["id"]
	if err := s.service.UpdateUser(id, in); err != nil {
		writeMutationError(w, err)
		return
	}
	writeOperationSuccessResponse(w, "user updated", "id", id)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.service.DeleteUser(id); err != nil {
		writeMutationError(w, err)
		return
	}
	writeOperationSuccessResponse(w, "user deleted", "id", id)
}

func (s *Server) handleCreateStation(w http.ResponseWriter, r *http.Request) {
	var in smartcity.StationInput
	if !decodeBody(w, r, &in) {
		return
	}
	id, err := s.service.CreateStation(in)
	if err != nil {
		writeMutationError(w, err)
		return
	}
	writeOperationSuccessResponse(w, "station created", "id", id)
}

func (s *Server) handleUpdateStation(w http.ResponseWriter, r *http.Request) {
	var in smartcity.StationInput
	if !decodeBody(w, r, &in) {
		return
	}
	id := mux.Vars(r)["id"]
	if err := s.service.UpdateStation(id, in); err != nil {
		writeMutationError(w, err)
		return
	}
	writeOperationSuccessResponse(w, "station updated", "id", id)
}

func (s *Server) handleDeleteStation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.service.DeleteStation(id); err != nil {
		writeMutationError(w, err)
		return
	}
	writeOperationSuccessResponse(w, "station deleted", "id", id)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var in smartcity.EventInput
	if !decodeBody(w, r, &in) {
		return
	}
	id, err := s.service.CreateEvent(in)
	if err != nil {
		writeMutationError(w, err)
		return
	}
	writeOperationSuccessResponse(w, "event created", "id", id)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var in smartcity.EventInput
	if !decodeBody(w, r, &in) {
		return
	}
	id := mux.Vars(r)["id"]
	if err := s.service.UpdateEvent(id, in); err != nil {
		writeMutationError(w, err)
		return
	}
	writeOperationSuccessResponse(w, "event updated", "id", id)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.service.DeleteEvent(id); err != nil {
		writeMutationError(w, err)
		return
	}
	writeOperationSuccessResponse(w, "event deleted", "id", id)
}
