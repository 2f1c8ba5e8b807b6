package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/nkiryanov/clubhub/internal/apperrors"
	"github.com/nkiryanov/clubhub/internal/handlers/render"
	"github.com/nkiryanov/clubhub/internal/handlers/userctx"
	"github.com/nkiryanov/clubhub/internal/logger"
	"github.com/nkiryanov/clubhub/internal/repository"
	"github.com/nkiryanov/clubhub/internal/service/checkin"
)

type sessionResponse struct {
	ID       int64     `json:"service_session_id"`
	Name     string    `json:"name"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	AdHoc    bool      `json:"ad_hoc"`
}

func handleCreateSession(checkinService checkinService, l logger.Logger) http.Handler {
	type attendee struct {
		Username string `json:"username" validate:"required"`
		InCharge bool   `json:"in_charge"`
	}
	type request struct {
		Name      string     `json:"name" validate:"required,min=2,max=100"`
		StartsAt  time.Time  `json:"starts_at" validate:"required"`
		EndsAt    time.Time  `json:"ends_at" validate:"required"`
		AdHoc     bool       `json:"ad_hoc"`
		Attendees []attendee `json:"attendees" validate:"dive"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		attendees := make([]checkin.Attendee, 0, len(data.Attendees))
		for _, a := range data.Attendees {
			attendees = append(attendees, checkin.Attendee{Username: a.Username, InCharge: a.InCharge})
		}

		session, err := checkinService.CreateSessionWithAttendees(r.Context(),
			repository.CreateSessionParams{
				Name:     data.Name,
				StartsAt: data.StartsAt,
				EndsAt:   data.EndsAt,
				AdHoc:    data.AdHoc,
			},
			attendees,
		)

		res := sessionResponse{
			ID:       session.ID,
			Name:     session.Name,
			StartsAt: session.StartsAt,
			EndsAt:   session.EndsAt,
			AdHoc:    session.AdHoc,
		}

		switch {
		case err == nil:
			render.JSONWithStatus(w, res, http.StatusCreated)
		case errors.Is(err, apperrors.ErrAlreadyRegistered):
			render.ServiceError(w, "Duplicate attendee in roster", http.StatusBadRequest)
		default:
			l.Error("Failed to create service session", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleActivateSession(checkinService checkinService, l logger.Logger) http.Handler {
	type request struct {
		SessionID int64 `json:"service_session_id" validate:"required"`
	}
	type response struct {
		Hash string `json:"hash"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		hash, err := checkinService.Activate(r.Context(), data.SessionID)

		switch {
		case err == nil:
			render.JSON(w, response{Hash: hash})
		case errors.Is(err, apperrors.ErrSessionNotFound):
			render.ServiceError(w, "Service session not found", http.StatusNotFound)
		default:
			l.Error("Failed to activate session", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleListActiveSessions(checkinService checkinService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		active, err := checkinService.ListActive(r.Context())
		if err != nil {
			l.Error("Failed to list active sessions", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, active)
	})
}

func handleRedeem(checkinService checkinService, l logger.Logger) http.Handler {
	type request struct {
		Hash string `json:"hash" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		_, err = checkinService.VerifyAttendance(r.Context(), data.Hash, identity.Username)

		switch {
		case err == nil:
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, apperrors.ErrHashNotFound):
			render.ServiceError(w, "Check-in hash is invalid", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrNotRegistered):
			render.ServiceError(w, "User is not registered for the session", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrAlreadyAttended):
			render.ServiceError(w, "Attendance already recorded", http.StatusConflict)
		default:
			l.Error("Failed to redeem check-in hash", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
