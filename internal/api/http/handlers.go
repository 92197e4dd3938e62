package apihttp

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	alarmapp "linesim/internal/alarms/application"
	alarms "linesim/internal/alarms/domain"
	"linesim/internal/alarms/interfaces/report"
	"linesim/internal/auth"
	simapp "linesim/internal/simulation/application"
	simulation "linesim/internal/simulation/domain"
)

const (
	timeLayout = time.RFC3339Nano

	patternsPrefix  = "/api/v1/patterns"
	scenariosPrefix = "/api/v1/scenarios"
)

// PatternIndex is the read side of the alarm pattern index.
type PatternIndex interface {
	report.PatternSource
	Alarms() []alarms.Alarm
	ByModule(module string) []alarms.Alarm
}

// PatternsHandler serves the pattern index and its reports.
type PatternsHandler struct {
	index PatternIndex
	now   func() time.Time
}

// NewPatternsHandler constructs a PatternsHandler. A nil index answers 503.
func NewPatternsHandler(index PatternIndex) *PatternsHandler {
	return &PatternsHandler{index: index, now: time.Now}
}

type groupView struct {
	Key      string                  `json:"key"`
	Module   string                  `json:"module"`
	Severity alarms.Severity         `json:"severity"`
	Count    int                     `json:"count"`
	Stats    *alarmapp.DurationStats `json:"duration,omitempty"`
}

type patternsView struct {
	Summary   alarmapp.Summary    `json:"summary"`
	Groups    []groupView         `json:"groups"`
	Common    []alarmapp.Pattern  `json:"common"`
	Sequences [][]alarms.Alarm    `json:"sequences"`
	Messages  map[string][]string `json:"messages"`
}

// ServeHTTP handles GET /api/v1/patterns, /api/v1/patterns/report.xlsx and
// /api/v1/patterns/report.pdf.
func (h *PatternsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.index == nil {
		http.Error(w, "alarm history not loaded", http.StatusServiceUnavailable)
		return
	}

	switch r.URL.Path {
	case patternsPrefix:
		if module := r.URL.Query().Get("module"); module != "" {
			writeJSON(w, http.StatusOK, h.index.ByModule(module))
			return
		}
		writeJSON(w, http.StatusOK, h.view())
	case patternsPrefix + "/report.xlsx":
		data, err := report.BuildPatternXLSX(h.index, h.now())
		if err != nil {
			http.Error(w, "build report error", http.StatusInternalServerError)
			return
		}
		writeAttachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "alarm-patterns.xlsx", data)
	case patternsPrefix + "/report.pdf":
		data, err := report.BuildPatternPDF(h.index, h.now())
		if err != nil {
			http.Error(w, "build report error", http.StatusInternalServerError)
			return
		}
		writeAttachment(w, "application/pdf", "alarm-patterns.pdf", data)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *PatternsHandler) view() patternsView {
	keys := h.index.Groups()
	groups := make([]groupView, 0, len(keys))
	for _, key := range keys {
		g := groupView{Key: key.String(), Module: key.Module, Severity: key.Severity, Count: len(h.index.Group(key))}
		if stats, ok := h.index.Stats(key); ok {
			g.Stats = &stats
		}
		groups = append(groups, g)
	}
	common := h.index.CommonPatterns()
	if common == nil {
		common = []alarmapp.Pattern{}
	}
	sequences := h.index.Sequences()
	if sequences == nil {
		sequences = [][]alarms.Alarm{}
	}
	return patternsView{
		Summary:   h.index.Summary(),
		Groups:    groups,
		Common:    common,
		Sequences: sequences,
		Messages:  h.index.MessageCatalog(),
	}
}

// ExportAlarmsCSVHandler serves the parsed alarm pool as CSV.
type ExportAlarmsCSVHandler struct {
	index PatternIndex
}

// NewExportAlarmsCSVHandler constructs an ExportAlarmsCSVHandler.
func NewExportAlarmsCSVHandler(index PatternIndex) *ExportAlarmsCSVHandler {
	return &ExportAlarmsCSVHandler{index: index}
}

// ServeHTTP handles GET /api/v1/exports/alarms.csv.
func (h *ExportAlarmsCSVHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.index == nil {
		http.Error(w, "alarm history not loaded", http.StatusServiceUnavailable)
		return
	}

	records := h.index.Alarms()
	if module := r.URL.Query().Get("module"); module != "" {
		records = h.index.ByModule(module)
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=alarms.csv")
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{"module", "severity", "code", "message", "reference", "activated_at", "cleared_at", "duration_ms"})
	for _, alarm := range records {
		cleared, duration := "", ""
		if alarm.ClearedAt != nil {
			cleared = alarm.ClearedAt.Format(timeLayout)
		}
		if ms, ok := alarm.DurationMillis(); ok {
			duration = strconv.FormatInt(ms, 10)
		}
		_ = writer.Write([]string{
			alarm.Module,
			string(alarm.Severity),
			strconv.Itoa(alarm.Code),
			alarm.Message,
			alarm.Reference,
			alarm.ActivatedAt.Format(timeLayout),
			cleared,
			duration,
		})
	}
	writer.Flush()
}

// ScenarioRunner triggers and reports scenario runs.
type ScenarioRunner interface {
	Start(id simulation.ScenarioID) (string, error)
	Status() simapp.ScenarioStatus
}

// ScenariosHandler serves scenario listing, status and manual triggers.
type ScenariosHandler struct {
	runner ScenarioRunner
	logger *zap.Logger
}

// NewScenariosHandler constructs a ScenariosHandler.
func NewScenariosHandler(runner ScenarioRunner, logger *zap.Logger) (*ScenariosHandler, error) {
	if runner == nil {
		return nil, errors.New("scenarios handler: nil runner")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScenariosHandler{runner: runner, logger: logger}, nil
}

type scenariosView struct {
	Scenarios []simulation.Scenario `json:"scenarios"`
	Status    simapp.ScenarioStatus `json:"status"`
}

type triggerResponse struct {
	RunID    string                `json:"run_id"`
	Scenario simulation.ScenarioID `json:"scenario"`
}

// ServeHTTP handles GET /api/v1/scenarios and POST /api/v1/scenarios/{a|b}.
func (h *ScenariosHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == scenariosPrefix:
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, scenariosView{Scenarios: simulation.Scenarios(), Status: h.runner.Status()})
	case strings.HasPrefix(r.URL.Path, scenariosPrefix+"/"):
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleTrigger(w, r, strings.TrimPrefix(r.URL.Path, scenariosPrefix+"/"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *ScenariosHandler) handleTrigger(w http.ResponseWriter, r *http.Request, raw string) {
	id, err := simulation.ParseScenarioID(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	runID, err := h.runner.Start(id)
	switch {
	case err == nil:
	case errors.Is(err, simapp.ErrScenarioBusy):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, simapp.ErrEngineStopped):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	default:
		h.logger.Error("scenario trigger failed", zap.String("scenario", string(id)), zap.Error(err))
		http.Error(w, "scenario trigger error", http.StatusInternalServerError)
		return
	}
	h.logger.Info("scenario triggered",
		zap.String("scenario", string(id)),
		zap.String("run_id", runID),
		zap.String("actor", auth.SubjectFromContext(r.Context())),
		zap.String("remote", r.RemoteAddr),
	)
	writeJSON(w, http.StatusAccepted, triggerResponse{RunID: runID, Scenario: id})
}

// ActiveSource exposes the active alarm set.
type ActiveSource interface {
	Active() simapp.ActiveSnapshot
}

// ActiveAlarmsHandler serves GET /api/v1/alarms/active.
type ActiveAlarmsHandler struct {
	source ActiveSource
}

// NewActiveAlarmsHandler constructs an ActiveAlarmsHandler.
func NewActiveAlarmsHandler(source ActiveSource) *ActiveAlarmsHandler {
	return &ActiveAlarmsHandler{source: source}
}

// ServeHTTP implements http.Handler.
func (h *ActiveAlarmsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.source == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	snapshot := h.source.Active()
	if module := r.URL.Query().Get("module"); module != "" {
		filtered := simapp.ActiveSnapshot{Alarms: []simapp.ActiveAlarm{}}
		for _, active := range snapshot.Alarms {
			if active.Alarm.Module != module {
				continue
			}
			filtered.Alarms = append(filtered.Alarms, active)
			filtered.Count++
			if active.Alarm.Severity == alarms.SeverityWarning {
				filtered.Warnings++
			}
			if active.Alarm.Severity.IsFault() {
				filtered.Faults++
			}
		}
		snapshot = filtered
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// HealthStatus reports engine health.
type HealthStatus interface {
	Degraded() bool
	Production() (int, float64)
}

// HealthHandler serves GET /healthz.
type HealthHandler struct {
	status HealthStatus
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(status HealthStatus) *HealthHandler {
	return &HealthHandler{status: status}
}

type healthView struct {
	Status          string  `json:"status"`
	Degraded        bool    `json:"degraded"`
	ProductionRate  int     `json:"production_rate"`
	TotalProduction float64 `json:"total_production"`
}

// ServeHTTP implements http.Handler.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	view := healthView{Status: "ok"}
	if h != nil && h.status != nil {
		view.Degraded = h.status.Degraded()
		view.ProductionRate, view.TotalProduction = h.status.Production()
		if view.Degraded {
			view.Status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, view)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
