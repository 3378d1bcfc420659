package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/valores-hub/nominations/config"
	"github.com/valores-hub/nominations/internal/application/command"
	"github.com/valores-hub/nominations/internal/application/query"
	"github.com/valores-hub/nominations/internal/domain/shared"
	"github.com/valores-hub/nominations/internal/domain/value"
	"github.com/valores-hub/nominations/internal/interface/http/handlers"
	"github.com/valores-hub/nominations/pkg/logger"
	"github.com/valores-hub/nominations/pkg/timeutil"
)

func (s *Server) handleRoot(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{
		"name":    "Valores Nominations API",
		"version": s.config.Version,
		"endpoints": gin.H{
			"health":      "/health",
			"cycles":      "/api/v1/cycles",
			"nominations": "/api/v1/nominations",
		},
	})
}

// bind decodes a JSON body, answering 400 on malformed input.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeJSONError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return false
	}
	return true
}

func queryBool(c *gin.Context, key string) bool {
	b, _ := strconv.ParseBool(c.Query(key))
	return b
}

func queryInt(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return n
}

// ══════════════════════════════════════════════════════════════════════════════
// CYCLES
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleListCycles(c *gin.Context) {
	cycles, err := s.deps.Queries.ActiveCycle.ListCycles(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, cycles)
}

func (s *Server) handleGetActiveCycle(c *gin.Context) {
	active, err := s.deps.Queries.ActiveCycle.Handle(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, query.ToCycleDTO(active))
}

type createCycleRequest struct {
	Name     string `json:"name"`
	StartsOn string `json:"starts_on"`
	EndsOn   string `json:"ends_on"`
	Activate bool   `json:"activate"`
}

func (s *Server) handleCreateCycle(c *gin.Context) {
	var req createCycleRequest
	if !bind(c, &req) {
		return
	}
	cmd := command.CreateCycleCommand{
		Actor:    handlers.GetActor(c),
		Name:     req.Name,
		Activate: req.Activate,
	}
	var err error
	if cmd.StartsOn, err = s.optionalDate(req.StartsOn); err != nil {
		writeJSONError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if cmd.EndsOn, err = s.optionalDate(req.EndsOn); err != nil {
		writeJSONError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	created, err := s.deps.Commands.CreateCycle.Handle(c.Request.Context(), cmd)
	if err != nil {
		s.writeError(c, err)
		return
	}

	resp := gin.H{"cycle": query.ToCycleDTO(created)}
	if s.deps.Features.IsEnabled(config.FeatureAutoSeedValues) && s.deps.Commands.SeedValues != nil {
		seeded, err := s.deps.Commands.SeedValues.Handle(c.Request.Context(), command.SeedValuesCommand{
			Actor:   cmd.Actor,
			CycleID: created.ID,
		})
		if err != nil {
			logger.FromContext(c.Request.Context()).Warn("default values not seeded", logger.CycleID(created.ID), logger.Err(err))
		} else {
			resp["values"] = valueDTOs(seeded.Created)
		}
	}
	writeJSON(c, http.StatusCreated, resp)
}

func (s *Server) optionalDate(v string) (*time.Time, error) {
	if strings.TrimSpace(v) == "" {
		return nil, nil
	}
	t, err := timeutil.ParseLocal(v, s.config.Location)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Server) handleActivateCycle(c *gin.Context) {
	activated, err := s.deps.Commands.ActivateCycle.Handle(c.Request.Context(), command.ActivateCycleCommand{
		Actor:   handlers.GetActor(c),
		CycleID: c.Param("cycle_id"),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, query.ToCycleDTO(activated))
}

// ══════════════════════════════════════════════════════════════════════════════
// VALUES
// ══════════════════════════════════════════════════════════════════════════════

func valueDTOs(vs []*value.Value) []query.ValueDTO {
	out := make([]query.ValueDTO, 0, len(vs))
	for _, v := range vs {
		out = append(out, query.ValueDTO{ID: v.ID, Name: v.Name, Active: v.Active, Reserved: v.Reserved})
	}
	return out
}

func (s *Server) handleListValues(c *gin.Context) {
	values, err := s.deps.Queries.Catalog.ListValues(c.Request.Context(), c.Param("cycle_id"), queryBool(c, "include_inactive"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, values)
}

type createValueRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateValue(c *gin.Context) {
	var req createValueRequest
	if !bind(c, &req) {
		return
	}
	v, err := s.deps.Commands.CreateValue.Handle(c.Request.Context(), command.CreateValueCommand{
		Actor:   handlers.GetActor(c),
		CycleID: c.Param("cycle_id"),
		Name:    req.Name,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, valueDTOs([]*value.Value{v})[0])
}

type seedValuesRequest struct {
	Names []string `json:"names"`
}

func (s *Server) handleSeedValues(c *gin.Context) {
	var req seedValuesRequest
	if c.Request.ContentLength > 0 && !bind(c, &req) {
		return
	}
	res, err := s.deps.Commands.SeedValues.Handle(c.Request.Context(), command.SeedValuesCommand{
		Actor:   handlers.GetActor(c),
		CycleID: c.Param("cycle_id"),
		Names:   req.Names,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"created": valueDTOs(res.Created), "skipped": res.Skipped})
}

type toggleRequest struct {
	Active *bool `json:"active"`
}

func (s *Server) handleSetValueActive(c *gin.Context) {
	var req toggleRequest
	if !bind(c, &req) {
		return
	}
	if req.Active == nil {
		writeJSONError(c, http.StatusBadRequest, "invalid_request", "active is required")
		return
	}
	v, err := s.deps.Commands.SetValueActive.Handle(c.Request.Context(), command.SetValueActiveCommand{
		Actor:   handlers.GetActor(c),
		ValueID: c.Param("value_id"),
		Active:  *req.Active,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, valueDTOs([]*value.Value{v})[0])
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENTS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleListEvents(c *gin.Context) {
	events, err := s.deps.Queries.Catalog.ListEvents(c.Request.Context(), c.Param("cycle_id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, events)
}

// Event times are school wall-clock ("2025-03-14 18:00") unless they carry
// an explicit offset.
type createEventRequest struct {
	Name     string `json:"name"`
	Cohort   string `json:"cohort"`
	CloseAt  string `json:"close_at"`
	OccursAt string `json:"occurs_at"`
	Inactive bool   `json:"inactive"`
}

func (s *Server) handleCreateEvent(c *gin.Context) {
	var req createEventRequest
	if !bind(c, &req) {
		return
	}
	closeAt, err := timeutil.ParseLocal(req.CloseAt, s.config.Location)
	if err != nil {
		writeJSONError(c, http.StatusBadRequest, "invalid_request", "close_at: "+err.Error())
		return
	}
	occursAt, err := timeutil.ParseLocal(req.OccursAt, s.config.Location)
	if err != nil {
		writeJSONError(c, http.StatusBadRequest, "invalid_request", "occurs_at: "+err.Error())
		return
	}

	e, err := s.deps.Commands.CreateEvent.Handle(c.Request.Context(), command.CreateEventCommand{
		Actor:    handlers.GetActor(c),
		CycleID:  c.Param("cycle_id"),
		Name:     req.Name,
		Cohort:   shared.NewCohort(req.Cohort),
		CloseAt:  closeAt,
		OccursAt: occursAt,
		Inactive: req.Inactive,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, query.ToEventDTO(e, s.deps.Clock.Now()))
}

func (s *Server) handleSetEventActive(c *gin.Context) {
	var req toggleRequest
	if !bind(c, &req) {
		return
	}
	if req.Active == nil {
		writeJSONError(c, http.StatusBadRequest, "invalid_request", "active is required")
		return
	}
	e, err := s.deps.Commands.SetEventActive.Handle(c.Request.Context(), command.SetEventActiveCommand{
		Actor:   handlers.GetActor(c),
		EventID: c.Param("event_id"),
		Active:  *req.Active,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, query.ToEventDTO(e, s.deps.Clock.Now()))
}

func (s *Server) handleCheckAdmission(c *gin.Context) {
	e, err := s.deps.Queries.Catalog.CheckAdmission(c.Request.Context(), c.Param("cycle_id"), shared.NewCohort(c.Query("cohort")))
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, e)
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBJECTS
// ══════════════════════════════════════════════════════════════════════════════

type subjectRequest struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Cohort      string `json:"cohort"`
	Grade       string `json:"grade"`
	Group       string `json:"group"`
	Level       string `json:"level"`
	Inactive    bool   `json:"inactive"`
}

func (s *Server) handleUpsertSubjects(c *gin.Context) {
	var req []subjectRequest
	if !bind(c, &req) {
		return
	}
	inputs := make([]command.SubjectInput, 0, len(req))
	for _, r := range req {
		inputs = append(inputs, command.SubjectInput{
			ID:          r.ID,
			Kind:        r.Kind,
			DisplayName: r.DisplayName,
			Email:       r.Email,
			Cohort:      r.Cohort,
			Grade:       r.Grade,
			Group:       r.Group,
			Level:       r.Level,
			Inactive:    r.Inactive,
		})
	}
	res, err := s.deps.Commands.UpsertSubjects.Handle(c.Request.Context(), command.UpsertSubjectsCommand{
		Actor:    handlers.GetActor(c),
		CycleID:  c.Param("cycle_id"),
		Subjects: inputs,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"upserted": res.Upserted})
}

// ══════════════════════════════════════════════════════════════════════════════
// NOMINATIONS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleListNominations(c *gin.Context) {
	res, err := s.deps.Queries.ListNominations.Handle(c.Request.Context(), query.ListNominationsQuery{
		CycleID:        c.Param("cycle_id"),
		NomineeID:      c.Query("nominee_id"),
		NominatorID:    c.Query("nominator_id"),
		ValueID:        c.Query("value_id"),
		EventID:        c.Query("event_id"),
		Kind:           c.Query("kind"),
		IncludeDerived: queryBool(c, "include_derived"),
		OnlyDerived:    queryBool(c, "only_derived"),
		Page:           queryInt(c, "page", 1),
		PageSize:       queryInt(c, "page_size", 0),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

// resolveCycle returns the explicit cycle or the active one.
func (s *Server) resolveCycle(c *gin.Context, explicit string) (string, bool) {
	if explicit != "" {
		return explicit, true
	}
	active, err := s.deps.Queries.ActiveCycle.Handle(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return "", false
	}
	return active.ID, true
}

type createNominationRequest struct {
	CycleID     string `json:"cycle_id"`
	NominatorID string `json:"nominator_id"`
	NomineeID   string `json:"nominee_id"`
	ValueID     string `json:"value_id"`
	Comment     string `json:"comment"`
	EventID     string `json:"event_id"`
}

type nominationResponse struct {
	Nomination query.NominationDTO  `json:"nomination"`
	Event      *query.EventDTO      `json:"event,omitempty"`
	Excellence *query.NominationDTO `json:"excellence,omitempty"`
	TierAction string               `json:"tier_action,omitempty"`
}

func (s *Server) handleCreateNomination(c *gin.Context) {
	var req createNominationRequest
	if !bind(c, &req) {
		return
	}
	cycleID, ok := s.resolveCycle(c, req.CycleID)
	if !ok {
		return
	}
	actor := handlers.GetActor(c)
	if req.NominatorID == "" {
		req.NominatorID = actor.SubjectID
	}

	res, err := s.deps.Commands.CreateNomination.Handle(c.Request.Context(), command.CreateNominationCommand{
		Actor:         actor,
		CycleID:       cycleID,
		NominatorID:   req.NominatorID,
		NomineeID:     req.NomineeID,
		ValueID:       req.ValueID,
		Comment:       req.Comment,
		EventID:       req.EventID,
		CorrelationID: handlers.GetRequestID(c),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	resp := nominationResponse{Nomination: query.ToNominationDTO(res.Nomination)}
	if res.Event != nil {
		e := query.ToEventDTO(res.Event, s.deps.Clock.Now())
		resp.Event = &e
	}
	if res.Tier.Record != nil {
		x := query.ToNominationDTO(res.Tier.Record)
		resp.Excellence = &x
	}
	resp.TierAction = string(res.Tier.Plan.Action)
	writeJSON(c, http.StatusCreated, resp)
}

type createNominationsRequest struct {
	CycleID     string   `json:"cycle_id"`
	NominatorID string   `json:"nominator_id"`
	NomineeID   string   `json:"nominee_id"`
	ValueIDs    []string `json:"value_ids"`
	Comment     string   `json:"comment"`
	EventID     string   `json:"event_id"`
}

type nominationsResponse struct {
	Nominations []query.NominationDTO `json:"nominations"`
	Event       *query.EventDTO       `json:"event,omitempty"`
	Excellence  *query.NominationDTO  `json:"excellence,omitempty"`
	TierAction  string                `json:"tier_action,omitempty"`
}

func (s *Server) handleCreateNominations(c *gin.Context) {
	var req createNominationsRequest
	if !bind(c, &req) {
		return
	}
	cycleID, ok := s.resolveCycle(c, req.CycleID)
	if !ok {
		return
	}
	actor := handlers.GetActor(c)
	if req.NominatorID == "" {
		req.NominatorID = actor.SubjectID
	}

	res, err := s.deps.Commands.CreateBulk.Handle(c.Request.Context(), command.CreateNominationsCommand{
		Actor:         actor,
		CycleID:       cycleID,
		NominatorID:   req.NominatorID,
		NomineeID:     req.NomineeID,
		ValueIDs:      req.ValueIDs,
		Comment:       req.Comment,
		EventID:       req.EventID,
		CorrelationID: handlers.GetRequestID(c),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	resp := nominationsResponse{Nominations: make([]query.NominationDTO, 0, len(res.Nominations))}
	for _, n := range res.Nominations {
		resp.Nominations = append(resp.Nominations, query.ToNominationDTO(n))
	}
	if res.Event != nil {
		e := query.ToEventDTO(res.Event, s.deps.Clock.Now())
		resp.Event = &e
	}
	if res.Tier.Record != nil {
		x := query.ToNominationDTO(res.Tier.Record)
		resp.Excellence = &x
	}
	resp.TierAction = string(res.Tier.Plan.Action)
	writeJSON(c, http.StatusCreated, resp)
}

type editNominationRequest struct {
	CycleID string `json:"cycle_id"`
	ValueID string `json:"value_id"`
	Comment string `json:"comment"`
}

func (s *Server) handleEditNomination(c *gin.Context) {
	var req editNominationRequest
	if !bind(c, &req) {
		return
	}
	cycleID, ok := s.resolveCycle(c, req.CycleID)
	if !ok {
		return
	}
	res, err := s.deps.Commands.EditNomination.Handle(c.Request.Context(), command.EditNominationCommand{
		Actor:         handlers.GetActor(c),
		CycleID:       cycleID,
		NominationID:  c.Param("nomination_id"),
		ValueID:       req.ValueID,
		Comment:       req.Comment,
		CorrelationID: handlers.GetRequestID(c),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	resp := nominationResponse{Nomination: query.ToNominationDTO(res.Nomination), TierAction: string(res.Tier.Plan.Action)}
	if res.Tier.Record != nil {
		x := query.ToNominationDTO(res.Tier.Record)
		resp.Excellence = &x
	}
	writeJSON(c, http.StatusOK, resp)
}

func (s *Server) handleDeleteNomination(c *gin.Context) {
	cycleID, ok := s.resolveCycle(c, c.Query("cycle_id"))
	if !ok {
		return
	}
	res, err := s.deps.Commands.DeleteNomination.Handle(c.Request.Context(), command.DeleteNominationCommand{
		Actor:         handlers.GetActor(c),
		CycleID:       cycleID,
		NominationID:  c.Param("nomination_id"),
		CorrelationID: handlers.GetRequestID(c),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"nomination_id": res.NominationID,
		"nominee_id":    res.NomineeID,
		"tier_action":   string(res.Tier.Plan.Action),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// RECOGNITION
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetTierStatus(c *gin.Context) {
	status, err := s.deps.Queries.TierStatus.Handle(c.Request.Context(), query.GetTierStatusQuery{
		CycleID:   c.Param("cycle_id"),
		NomineeID: c.Param("nominee_id"),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, status)
}

func (s *Server) handleRecognitionBoard(c *gin.Context) {
	if !s.deps.Features.IsEnabled(config.FeatureRecognitionBoard) {
		writeJSONError(c, http.StatusNotFound, "not_found", "recognition board is disabled")
		return
	}
	board, err := s.deps.Queries.RecognitionBoard.Handle(c.Request.Context(), query.RecognitionBoardQuery{
		CycleID: c.Param("cycle_id"),
		Cohort:  c.Query("cohort"),
		Kind:    c.Query("kind"),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	if board == nil {
		board = []query.BoardEntry{}
	}
	writeJSON(c, http.StatusOK, board)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleSweep(c *gin.Context) {
	if err := handlers.GetActor(c).RequireAdmin(); err != nil {
		s.writeError(c, err)
		return
	}
	res, err := s.deps.Commands.CloseExpired.Handle(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	ids := res.ClosedIDs
	if ids == nil {
		ids = []string{}
	}
	writeJSON(c, http.StatusOK, gin.H{"closed": ids, "swept_at": res.SweptAt})
}

func (s *Server) handleListFeatures(c *gin.Context) {
	if err := handlers.GetActor(c).RequireAdmin(); err != nil {
		s.writeError(c, err)
		return
	}
	if s.deps.Features == nil {
		writeJSON(c, http.StatusOK, []config.Feature{})
		return
	}
	writeJSON(c, http.StatusOK, s.deps.Features.All())
}

func (s *Server) handleSetFeature(c *gin.Context) {
	if err := handlers.GetActor(c).RequireAdmin(); err != nil {
		s.writeError(c, err)
		return
	}
	var req toggleRequest
	if !bind(c, &req) {
		return
	}
	if req.Active == nil || s.deps.Features == nil {
		writeJSONError(c, http.StatusBadRequest, "invalid_request", "active is required")
		return
	}
	if err := s.deps.Features.Set(c.Param("name"), *req.Active); err != nil {
		writeJSONError(c, http.StatusNotFound, "not_found", err.Error())
		return
	}
	logger.FromContext(c.Request.Context()).Info("feature toggled",
		logger.String("feature", c.Param("name")),
		logger.Bool("enabled", *req.Active),
	)
	writeJSON(c, http.StatusOK, s.deps.Features.All())
}
