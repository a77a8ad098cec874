package api

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/barsense-data/barbell.report/internal/units"
)

// sessionChart renders the velocity and force curves of a stored session as a
// self-contained HTML page using go-echarts. This is a debugging-only endpoint
// (no auth) to eyeball an analysis without a frontend.
// Query params:
//   - id (required) session ID
//   - units (optional) velocity unit for the left axis
func (s *Server) sessionChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'id' parameter")
		return
	}
	targetUnits, err := s.requestUnits(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.store.Session(id)
	if errors.Is(err, sql.ErrNoRows) {
		s.writeJSONError(w, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve session: %v", err))
		return
	}

	samples, err := s.store.Samples(id)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve samples: %v", err))
		return
	}
	if len(samples) == 0 {
		s.writeJSONError(w, http.StatusNotFound, "Session has no samples")
		return
	}

	times := make([]string, len(samples))
	velocity := make([]opts.LineData, len(samples))
	force := make([]opts.LineData, len(samples))
	for i, sm := range samples {
		times[i] = fmt.Sprintf("%.2f", sm.TimeS)
		velocity[i] = opts.LineData{Value: units.ConvertSpeed(sm.Velocity, targetUnits)}
		force[i] = opts.LineData{Value: sm.SmoothedForce}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Bar Velocity and Force",
			Theme:     "dark",
			Width:     "1100px",
			Height:    "600px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Bar Velocity and Force",
			Subtitle: fmt.Sprintf("session=%s mass=%.1fkg status=%s", rec.ID, rec.MassKg, rec.Status),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "time (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: fmt.Sprintf("velocity (%s)", targetUnits)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	line.ExtendYAxis(opts.YAxis{Name: "force (N)", Type: "value"})

	line.SetXAxis(times)
	line.AddSeries("velocity", velocity,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))
	line.AddSeries("smoothed force", force,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true), YAxisIndex: 1}))

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
