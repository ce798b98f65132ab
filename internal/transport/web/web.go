// Package web exposes the scheduling operations over HTTP: declare
// availability and time off, list available slots, hold, confirm, cancel
// and reschedule. Everything else about the marketplace lives in other
// services.
package web

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/tutorhive/tutorhive-server/internal/service"
	"go.uber.org/zap"
)

type Server struct {
	address      string
	availability *service.AvailabilityService
	scheduling   *service.SchedulingService
	logger       *zap.Logger
}

func NewServer(
	address string,
	availability *service.AvailabilityService,
	scheduling *service.SchedulingService,
	logger *zap.Logger,
) *Server {
	return &Server{
		address:      address,
		availability: availability,
		scheduling:   scheduling,
		logger:       logger,
	}
}

func (s *Server) Run() error {
	router := mux.NewRouter()
	subrouter := router.PathPrefix("/api/v1").Subrouter()
	s.RegisterRoutes(subrouter)

	router.Use(s.requestIDMiddleware, s.accessLogMiddleware, s.recoverMiddleware)

	srv := &http.Server{
		Addr:              s.address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("HTTP server listening", zap.String("address", s.address))
	return srv.ListenAndServe()
}

func (s *Server) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/tutors/{tutorId}/availability", s.CreateAvailability).Methods("POST")
	router.HandleFunc("/tutors/{tutorId}/time-off", s.CreateTimeOff).Methods("POST")
	router.HandleFunc("/tutors/{tutorId}/slots", s.ListAvailableSlots).Methods("GET")
	router.HandleFunc("/slots/{slotId}/hold", s.HoldSlot).Methods("POST")
	router.HandleFunc("/holds/{token}", s.ReleaseHold).Methods("DELETE")
	router.HandleFunc("/bookings/confirm", s.ConfirmBooking).Methods("POST")
	router.HandleFunc("/bookings/{bookingId}/cancel", s.CancelBooking).Methods("POST")
	router.HandleFunc("/bookings/{bookingId}/reschedule", s.RescheduleBooking).Methods("POST")
}
