package http

import (
	"errors"
	"fmt"
	"net/http"

	"proiezioni/internal/core"
	applog "proiezioni/internal/log"
	"proiezioni/internal/scenarios"
)

func (s *Server) handleListScenarios(w http.ResponseWriter, r *http.Request) {
	list, err := s.scenarios.ListScenarios(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	views := make([]scenarioView, 0, len(list))
	for _, sc := range list {
		views = append(views, s.scenarioWithSnapshot(r, sc))
	}
	s.respond(w, r, NewHTMXResponse(), "scenarios.html", views)
}

func (s *Server) handleCreateScenario(w http.ResponseWriter, r *http.Request) {
	sc, err := scenarioFromRequest(w, r, true)
	if err != nil {
		s.fail(w, r, applog.OpParse, err)
		return
	}
	s.saveScenario(w, r, sc, http.StatusCreated)
}

func (s *Server) handleUpdateScenario(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, applog.OpParse, err)
		return
	}
	sc, err := scenarioFromRequest(w, r, true)
	if err != nil {
		s.fail(w, r, applog.OpParse, err)
		return
	}
	sc.ID = id
	s.saveScenario(w, r, sc, http.StatusOK)
}

func (s *Server) saveScenario(w http.ResponseWriter, r *http.Request, sc core.Scenario, status int) {
	saved, err := s.scenarios.SaveScenario(r.Context(), sc)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	s.events.LogScenarioSaved(r.Context(), saved.ID, saved.Version, saved.Name)

	b := NewHTMXResponse().
		Status(status).
		Header("Location", fmt.Sprintf("/scenarios/%d", saved.ID)).
		TriggerScenarioSaved(saved.ID, saved.Version).
		TriggerSuccessNotification("Scenario salvato: " + saved.Name)
	s.respond(w, r, b, "scenario.html", newScenarioView(saved))
}

func (s *Server) handleGetScenario(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, applog.OpParse, err)
		return
	}
	sc, err := s.scenarios.GetScenario(r.Context(), id)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}

	if r.URL.Query().Get("format") == "yaml" {
		data, err := scenarios.Marshal(sc)
		if err != nil {
			s.fail(w, r, applog.OpRead, err)
			return
		}
		NewHTMXResponse().
			Header("Content-Type", "application/yaml; charset=utf-8").
			Header("Content-Disposition", fmt.Sprintf(`attachment; filename="scenario-%d.yaml"`, sc.ID)).
			Body(data).
			Write(w)
		return
	}
	s.respond(w, r, NewHTMXResponse(), "scenario.html", s.scenarioWithSnapshot(r, sc))
}

func (s *Server) handleScenarioProjection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, applog.OpParse, err)
		return
	}
	ctx, cancel := s.computeContext(r)
	defer cancel()
	proj, err := s.scenarios.ProjectScenario(ctx, id)
	if err != nil {
		s.fail(w, r, applog.OpProject, err)
		return
	}
	sv := newScenarioView(proj.Scenario)
	view := projectionView{Scenario: &sv, Summary: newSummaryView(proj.Summary), Points: newPointViews(proj.Points)}
	s.respond(w, r, NewHTMXResponse(), "projection.html", view)
}

func (s *Server) handleDeleteScenario(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, applog.OpParse, err)
		return
	}
	if err := s.scenarios.DeleteScenario(r.Context(), id); err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Scenario deleted", applog.FieldScenarioID, id)

	b := NewHTMXResponse().TriggerScenarioDeleted(id)
	if wantsJSON(r) {
		b.JSON(map[string]int64{"deleted": id}).Write(w)
		return
	}
	// HTMX swaps the row out with the empty body.
	b.BodyHTML("").Write(w)
}

// scenarioWithSnapshot attaches the latest precomputed snapshot, if any.
func (s *Server) scenarioWithSnapshot(r *http.Request, sc core.Scenario) scenarioView {
	v := newScenarioView(sc)
	snap, err := s.scenarios.LatestSnapshot(r.Context(), sc.ID)
	switch {
	case err == nil:
		v.Snapshot = newSnapshotView(snap)
	case !errors.Is(err, scenarios.ErrSnapshotNotFound):
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Snapshot lookup failed",
			applog.FieldScenarioID, sc.ID, "error", err)
	}
	return v
}
