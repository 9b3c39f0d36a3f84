package webservice

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/ohowland/cgc_reserve/internal/pkg/charts"
	"github.com/ohowland/cgc_reserve/internal/pkg/datastreams/sqldb"
	"github.com/ohowland/cgc_reserve/internal/pkg/optimize"
	"github.com/ohowland/cgc_reserve/internal/pkg/root"
	"github.com/ohowland/cgc_reserve/internal/pkg/settings"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

//go:embed static/index.html
var static embed.FS

// Runner solves one set of settings.
type Runner interface {
	Run(ctx context.Context, s settings.Settings) (root.Run, error)
}

// RunStore archives and serves runs.
type RunStore interface {
	Save(run root.Run) error
	Get(id uuid.UUID) (root.Run, error)
	List(limit int) ([]sqldb.RunRecord, error)
}

const defaultListLimit = 50

type App struct {
	runner   Runner
	sessions settings.Store
	runs     RunStore
	defaults settings.Settings
}

func New(runner Runner, sessions settings.Store, runs RunStore, defaults settings.Settings) *App {
	return &App{
		runner:   runner,
		sessions: sessions,
		runs:     runs,
		defaults: defaults,
	}
}

func (app *App) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(instrument)

	r.HandleFunc("/", app.BaseHandler).Methods("GET")
	r.HandleFunc("/ws", app.SocketHandler)
	r.Handle("/metrics", promhttp.Handler())

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/settings/default", app.DefaultsHandler).Methods("GET")
	api.HandleFunc("/solve", app.SolveHandler).Methods("POST")
	api.HandleFunc("/sessions", app.CreateSessionHandler).Methods("POST")
	api.HandleFunc("/sessions/{sid}/settings", app.SessionSettingsHandler).Methods("GET", "PUT")
	api.HandleFunc("/sessions/{sid}/solve", app.SessionSolveHandler).Methods("POST")
	api.HandleFunc("/runs", app.RunsHandler).Methods("GET")
	api.HandleFunc("/runs/{rid}", app.RunHandler).Methods("GET")
	api.HandleFunc("/runs/{rid}/results.csv", app.ResultsCSVHandler).Methods("GET")
	api.HandleFunc("/runs/{rid}/charts/{kind:[a-z]+}.{format:png|svg}", app.ChartHandler).Methods("GET")
	return r
}

type errorResponse struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("[Webservice] write response")
	}
}

// statusOf maps pipeline and store errors to HTTP status codes.
func statusOf(err error) int {
	var verr settings.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, optimize.ErrInfeasible), errors.Is(err, optimize.ErrUnbounded), errors.Is(err, optimize.ErrTooLarge):
		return http.StatusUnprocessableEntity
	case errors.Is(err, settings.ErrNotFound), errors.Is(err, sqldb.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func toErrorResponse(err error) errorResponse {
	resp := errorResponse{Error: err.Error()}
	var verr settings.ValidationError
	if errors.As(err, &verr) {
		resp.Problems = verr.Problems
	}
	return resp
}

func writeError(w http.ResponseWriter, err error) {
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		log.Error().Err(err).Msg("[Webservice] request failed")
	}
	writeJSON(w, code, toErrorResponse(err))
}

func decodeSettings(r *http.Request) (settings.Settings, error) {
	var s settings.Settings
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		return settings.Settings{}, settings.ValidationError{Problems: []string{"malformed JSON: " + err.Error()}}
	}
	if err := s.Validate(); err != nil {
		return settings.Settings{}, err
	}
	return s, nil
}

// solve runs s through the pipeline and records the outcome.
func (app *App) solve(ctx context.Context, s settings.Settings) (root.Run, error) {
	timer := startSolve()
	run, err := app.runner.Run(ctx, s)
	timer.done(err)
	if err != nil {
		return run, err
	}
	// The archive subscriber may drop events under load; save here as well.
	if err := app.runs.Save(run); err != nil {
		log.Warn().Err(err).Str("run", run.ID.String()).Msg("[Webservice] archive run")
	}
	return run, nil
}

func (app *App) BaseHandler(w http.ResponseWriter, r *http.Request) {
	page, err := static.ReadFile("static/index.html")
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	w.Write(page)
}

func (app *App) DefaultsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, app.defaults)
}

func (app *App) SolveHandler(w http.ResponseWriter, r *http.Request) {
	s, err := decodeSettings(r)
	if err != nil {
		writeError(w, err)
		return
	}
	run, err := app.solve(r.Context(), s)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

type sessionResponse struct {
	ID       uuid.UUID         `json:"id"`
	Settings settings.Settings `json:"settings"`
}

func (app *App) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	sid := uuid.New()
	if err := app.sessions.Save(r.Context(), sid, app.defaults); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{ID: sid, Settings: app.defaults})
}

func parseID(vars map[string]string, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(vars[key])
	if err != nil {
		return uuid.Nil, settings.ValidationError{Problems: []string{"malformed " + key + ": " + err.Error()}}
	}
	return id, nil
}

func (app *App) SessionSettingsHandler(w http.ResponseWriter, r *http.Request) {
	sid, err := parseID(mux.Vars(r), "sid")
	if err != nil {
		writeError(w, err)
		return
	}
	current, err := app.sessions.Load(r.Context(), sid)
	if err != nil {
		writeError(w, err)
		return
	}

	switch r.Method {
	case "GET":
		writeJSON(w, http.StatusOK, sessionResponse{ID: sid, Settings: current})
	case "PUT":
		s, err := decodeSettings(r)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := app.sessions.Save(r.Context(), sid, s); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{ID: sid, Settings: s})
	}
}

func (app *App) SessionSolveHandler(w http.ResponseWriter, r *http.Request) {
	sid, err := parseID(mux.Vars(r), "sid")
	if err != nil {
		writeError(w, err)
		return
	}
	s, err := app.sessions.Load(r.Context(), sid)
	if err != nil {
		writeError(w, err)
		return
	}
	run, err := app.solve(r.Context(), s)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (app *App) RunsHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, settings.ValidationError{Problems: []string{"limit must be a positive integer"}})
			return
		}
		limit = n
	}
	recs, err := app.runs.List(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if recs == nil {
		recs = []sqldb.RunRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (app *App) archived(r *http.Request) (root.Run, error) {
	rid, err := parseID(mux.Vars(r), "rid")
	if err != nil {
		return root.Run{}, err
	}
	return app.runs.Get(rid)
}

func (app *App) RunHandler(w http.ResponseWriter, r *http.Request) {
	run, err := app.archived(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (app *App) ResultsCSVHandler(w http.ResponseWriter, r *http.Request) {
	run, err := app.archived(r)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=UTF-8")
	w.Header().Set("Content-Disposition", `attachment; filename="results-`+run.ID.String()+`.csv"`)
	w.WriteHeader(http.StatusOK)
	if err := run.Report.Table.WriteCSV(w); err != nil {
		log.Warn().Err(err).Msg("[Webservice] write csv")
	}
}

var contentTypes = map[string]string{
	"png": "image/png",
	"svg": "image/svg+xml",
}

func (app *App) ChartHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	run, err := app.archived(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var buf bytes.Buffer
	err = charts.Render(&buf, run.Report, vars["kind"], vars["format"])
	if errors.Is(err, charts.ErrKind) || errors.Is(err, charts.ErrFormat) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentTypes[vars["format"]])
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}
