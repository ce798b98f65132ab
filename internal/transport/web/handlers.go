package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/tutorhive/tutorhive-server/internal/model"
	"github.com/tutorhive/tutorhive-server/internal/service"
	"go.uber.org/zap"
)

type createAvailabilityRequest struct {
	StartAt     time.Time `json:"start_at"`
	EndAt       time.Time `json:"end_at"`
	IsRecurring bool      `json:"is_recurring"`
	RRule       string    `json:"rrule,omitempty"`
}

func (s *Server) CreateAvailability(w http.ResponseWriter, r *http.Request) {
	tutorID, ok := pathID(w, r, "tutorId")
	if !ok {
		return
	}

	var req createAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	block, err := s.availability.CreateAvailabilityBlock(r.Context(), tutorID, req.StartAt, req.EndAt, req.IsRecurring, req.RRule)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, block)
}

type createTimeOffRequest struct {
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
	Reason  string    `json:"reason,omitempty"`
}

func (s *Server) CreateTimeOff(w http.ResponseWriter, r *http.Request) {
	tutorID, ok := pathID(w, r, "tutorId")
	if !ok {
		return
	}

	var req createTimeOffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	block, err := s.availability.CreateTimeOffBlock(r.Context(), tutorID, req.StartAt, req.EndAt, req.Reason)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, block)
}

func (s *Server) ListAvailableSlots(w http.ResponseWriter, r *http.Request) {
	tutorID, ok := pathID(w, r, "tutorId")
	if !ok {
		return
	}

	from, err := parseTimeParam(r, "from", time.Now().UTC())
	if err != nil {
		http.Error(w, "invalid from parameter", http.StatusBadRequest)
		return
	}
	to, err := parseTimeParam(r, "to", from.AddDate(0, 0, 14))
	if err != nil {
		http.Error(w, "invalid to parameter", http.StatusBadRequest)
		return
	}

	slots, err := s.scheduling.GetAvailableSlots(r.Context(), tutorID, from, to)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"slots": slots})
}

type holdRequest struct {
	StudentID int64 `json:"student_id"`
}

func (s *Server) HoldSlot(w http.ResponseWriter, r *http.Request) {
	slotID, ok := pathID(w, r, "slotId")
	if !ok {
		return
	}

	var req holdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	receipt, err := s.scheduling.HoldSlot(r.Context(), slotID, req.StudentID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, receipt)
}

func (s *Server) ReleaseHold(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	if err := s.scheduling.ReleaseHold(r.Context(), token); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type confirmRequest struct {
	HoldToken     string `json:"hold_token"`
	StudentID     int64  `json:"student_id"`
	PaymentMethod string `json:"payment_method"`
	PaymentRef    string `json:"payment_ref,omitempty"`
}

func (s *Server) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	booking, err := s.scheduling.ConfirmBooking(
		r.Context(),
		req.HoldToken,
		req.StudentID,
		model.PaymentMethod(req.PaymentMethod),
		req.PaymentRef,
	)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, booking)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) CancelBooking(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := pathID(w, r, "bookingId")
	if !ok {
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	booking, err := s.scheduling.CancelBooking(r.Context(), bookingID, req.Reason)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, booking)
}

type rescheduleRequest struct {
	NewSlotID int64  `json:"new_slot_id"`
	Reason    string `json:"reason"`
}

func (s *Server) RescheduleBooking(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := pathID(w, r, "bookingId")
	if !ok {
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	booking, err := s.scheduling.RescheduleBooking(r.Context(), bookingID, req.NewSlotID, req.Reason)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, booking)
}

// writeError maps the domain error taxonomy onto HTTP statuses. Unknown
// errors are internal failures and hide their detail.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	if se := service.IsSchedulingError(err); se != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": se.Msg})
		return
	}

	if ae := service.IsAvailabilityError(err); ae != nil {
		s.logger.Warn("store query failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": ae.Msg})
		return
	}

	if be := service.IsBookingError(err); be != nil {
		status := http.StatusConflict
		switch be.Reason {
		case service.ReasonNotFound:
			status = http.StatusNotFound
		case service.ReasonPolicy:
			status = http.StatusUnprocessableEntity
		case service.ReasonPayment:
			status = http.StatusPaymentRequired
		}
		writeJSON(w, status, map[string]string{"error": be.Msg, "reason": string(be.Reason)})
		return
	}

	s.logger.Error("request failed", zap.Error(err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil {
		http.Error(w, "invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func parseTimeParam(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, nil
	}
	return time.Parse(time.RFC3339, v)
}
