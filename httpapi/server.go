// Package httpapi exposes detection, matching, overview, and backfill over
// HTTP. Callers identify themselves with the X-User-ID header carrying a
// hex object id; requests without one are rejected.
package httpapi

import (
	"log/slog"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"babylon/recurring/appcontext"
	"babylon/recurring/recurring/detect"
	"babylon/recurring/recurring/errs"
	"babylon/recurring/recurring/match"
)

// UserHeader carries the caller's user id as an object id hex string.
const UserHeader = "X-User-ID"

// Server holds the wired-up domain services behind the HTTP surface.
type Server struct {
	Detector   *detect.Detector
	Linker     *match.Linker
	Reconciler *match.Reconciler
	Logger     *slog.Logger
}

// NewServer wires a Server from its services.
func NewServer(detector *detect.Detector, linker *match.Linker, reconciler *match.Reconciler, logger *slog.Logger) *Server {
	return &Server{Detector: detector, Linker: linker, Reconciler: reconciler, Logger: logger}
}

// Handler builds the route table. Every /api route runs behind the
// user-id middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("POST /api/recurring/detect", s.withUser(s.handleDetect))
	mux.Handle("GET /api/recurring/overview", s.withUser(s.handleOverview))
	mux.Handle("POST /api/recurring/backfill", s.withUser(s.handleBackfill))
	mux.Handle("POST /api/bills/match", s.withUser(s.handleMatchBill))
	mux.Handle("POST /api/paychecks/match", s.withUser(s.handleMatchPaycheck))
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// withUser authenticates the request and seeds the request context with
// the logger and the resolved user id.
func (s *Server) withUser(next func(http.ResponseWriter, *http.Request, primitive.ObjectID)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := appcontext.WithLogger(r.Context(), s.Logger)
		r = r.WithContext(ctx)

		raw := r.Header.Get(UserHeader)
		if raw == "" {
			writeError(w, r, errs.UnauthorizedError("missing "+UserHeader+" header"))
			return
		}
		userID, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			writeError(w, r, errs.UnauthorizedError("invalid "+UserHeader+" header"))
			return
		}

		next(w, r, userID)
	})
}
