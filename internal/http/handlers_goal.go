package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"coppia/internal/core"
)

type milestoneView struct {
	Percentage   float64    `json:"percentage"`
	Achieved     bool       `json:"achieved"`
	AchievedDate *time.Time `json:"achieved_date,omitempty"`
}

type goalView struct {
	ID                 string                  `json:"id"`
	OwnerID            string                  `json:"owner_id"`
	CoupleID           string                  `json:"couple_id,omitempty"`
	Title              string                  `json:"title"`
	Description        string                  `json:"description,omitempty"`
	TargetAmount       string                  `json:"target_amount"`
	CurrentAmount      string                  `json:"current_amount"`
	Status             core.GoalStatus         `json:"status"`
	Priority           core.GoalPriority       `json:"priority"`
	ContributionMethod core.ContributionMethod `json:"contribution_method"`
	Milestones         []milestoneView         `json:"milestones"`
	TargetDate         *time.Time              `json:"target_date,omitempty"`
	CompletedAt        *time.Time              `json:"completed_at,omitempty"`
	CreatedAt          time.Time               `json:"created_at"`
}

func toGoalView(g *core.Goal) goalView {
	v := goalView{
		ID:                 g.ID,
		OwnerID:            g.OwnerID,
		CoupleID:           g.CoupleID,
		Title:              g.Title,
		Description:        g.Description,
		TargetAmount:       g.TargetAmount.String(),
		CurrentAmount:      g.CurrentAmount.String(),
		Status:             g.Status,
		Priority:           g.Priority,
		ContributionMethod: g.ContributionMethod,
		CreatedAt:          g.CreatedAt,
	}
	v.Milestones = make([]milestoneView, 0, len(g.Milestones))
	for _, m := range g.Milestones {
		v.Milestones = append(v.Milestones, milestoneView{
			Percentage:   m.Percentage.Float64(),
			Achieved:     m.Achieved,
			AchievedDate: m.AchievedDate,
		})
	}
	if !g.TargetDate.IsZero() {
		t := g.TargetDate
		v.TargetDate = &t
	}
	if !g.CompletedAt.IsZero() {
		t := g.CompletedAt
		v.CompletedAt = &t
	}
	return v
}

type contributionSplitRequest struct {
	MemberAPercentage *float64 `json:"member_a_percentage,omitempty"`
	MemberBPercentage *float64 `json:"member_b_percentage,omitempty"`
	MemberAAmount     *string  `json:"member_a_amount,omitempty"`
	MemberBAmount     *string  `json:"member_b_amount,omitempty"`
}

func (req *contributionSplitRequest) toSplit() (core.ContributionSplit, error) {
	var split core.ContributionSplit
	if req.MemberAPercentage != nil {
		pct, err := core.PercentFromFloat(*req.MemberAPercentage)
		if err != nil {
			return split, err
		}
		split.MemberAPercentage = pct
	}
	if req.MemberBPercentage != nil {
		pct, err := core.PercentFromFloat(*req.MemberBPercentage)
		if err != nil {
			return split, err
		}
		split.MemberBPercentage = pct
	}
	if req.MemberAAmount != nil {
		cents, err := core.ParseDecimalToCents(*req.MemberAAmount)
		if err != nil {
			return split, err
		}
		split.MemberAAmount = core.Money{Cents: cents}
	}
	if req.MemberBAmount != nil {
		cents, err := core.ParseDecimalToCents(*req.MemberBAmount)
		if err != nil {
			return split, err
		}
		split.MemberBAmount = core.Money{Cents: cents}
	}
	return split, nil
}

type goalRequest struct {
	Title                string                    `json:"title"`
	Description          string                    `json:"description,omitempty"`
	TargetAmount         string                    `json:"target_amount"`
	InitialAmount        string                    `json:"initial_amount,omitempty"`
	Priority             core.GoalPriority         `json:"priority,omitempty"`
	ContributionMethod   core.ContributionMethod   `json:"contribution_method,omitempty"`
	ContributionSettings *contributionSplitRequest `json:"contribution_settings,omitempty"`
	TargetDate           *time.Time                `json:"target_date,omitempty"`
	Shared               bool                      `json:"shared,omitempty"`
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cents, err := core.ParseDecimalToCents(req.TargetAmount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	g := &core.Goal{
		OwnerID:            userID(r),
		Title:              req.Title,
		Description:        req.Description,
		TargetAmount:       core.Money{Cents: cents},
		Priority:           req.Priority,
		ContributionMethod: req.ContributionMethod,
	}
	if req.InitialAmount != "" {
		seed, err := core.ParseDecimalToCents(req.InitialAmount)
		if err != nil {
			writeError(w, r, err)
			return
		}
		g.CurrentAmount = core.Money{Cents: seed}
	}
	if req.ContributionSettings != nil {
		split, err := req.ContributionSettings.toSplit()
		if err != nil {
			writeError(w, r, err)
			return
		}
		g.ContributionSettings = split
	}
	if req.TargetDate != nil {
		g.TargetDate = *req.TargetDate
	}

	created, err := s.goals.Create(r.Context(), g, req.Shared)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGoalView(created))
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	status := core.GoalStatus(r.URL.Query().Get("status"))
	goals, err := s.goals.List(r.Context(), userID(r), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]goalView, 0, len(goals))
	for i := range goals {
		views = append(views, toGoalView(&goals[i]))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	g, err := s.goals.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalView(g))
}

type goalPatchRequest struct {
	Title                *string                   `json:"title,omitempty"`
	Description          *string                   `json:"description,omitempty"`
	TargetAmount         *string                   `json:"target_amount,omitempty"`
	Priority             *core.GoalPriority        `json:"priority,omitempty"`
	ContributionMethod   *core.ContributionMethod  `json:"contribution_method,omitempty"`
	ContributionSettings *contributionSplitRequest `json:"contribution_settings,omitempty"`
	TargetDate           *time.Time                `json:"target_date,omitempty"`
	ClearTargetDate      bool                      `json:"clear_target_date,omitempty"`
}

func (s *Server) handlePatchGoal(w http.ResponseWriter, r *http.Request) {
	var req goalPatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	patch := core.GoalPatch{
		Title:              req.Title,
		Description:        req.Description,
		Priority:           req.Priority,
		ContributionMethod: req.ContributionMethod,
		TargetDate:         req.TargetDate,
		ClearTargetDate:    req.ClearTargetDate,
	}
	if req.TargetAmount != nil {
		cents, err := core.ParseDecimalToCents(*req.TargetAmount)
		if err != nil {
			writeError(w, r, err)
			return
		}
		amount := core.Money{Cents: cents}
		patch.TargetAmount = &amount
	}
	if req.ContributionSettings != nil {
		split, err := req.ContributionSettings.toSplit()
		if err != nil {
			writeError(w, r, err)
			return
		}
		patch.ContributionSettings = &split
	}

	g, err := s.goals.Patch(r.Context(), userID(r), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalView(g))
}

func (s *Server) handlePauseGoal(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.goals.Pause)
}

func (s *Server) handleResumeGoal(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.goals.Resume)
}

func (s *Server) handleCancelGoal(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.goals.Cancel)
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request, do func(ctx context.Context, userID, goalID string) error) {
	if err := do(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	g, err := s.goals.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalView(g))
}

type goalProgressView struct {
	CurrentAmount   string  `json:"current_amount"`
	TargetAmount    string  `json:"target_amount"`
	RemainingAmount string  `json:"remaining_amount"`
	Percentage      float64 `json:"percentage"`
	IsCompleted     bool    `json:"is_completed"`
	DaysRemaining   *int    `json:"days_remaining,omitempty"`
	RequiredMonthly string  `json:"required_monthly_contribution,omitempty"`
	OnSchedule      bool    `json:"on_schedule"`
}

func (s *Server) handleGoalProgress(w http.ResponseWriter, r *http.Request) {
	p, err := s.goals.Progress(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	view := goalProgressView{
		CurrentAmount:   p.CurrentAmount.String(),
		TargetAmount:    p.TargetAmount.String(),
		RemainingAmount: p.RemainingAmount.String(),
		Percentage:      p.Percentage.Float64(),
		IsCompleted:     p.IsCompleted,
		OnSchedule:      p.OnSchedule,
	}
	if p.HasTargetDate {
		days := p.DaysRemaining
		view.DaysRemaining = &days
		if p.RequiredMonthly.Cents > 0 {
			view.RequiredMonthly = p.RequiredMonthly.String()
		}
	}
	writeJSON(w, http.StatusOK, view)
}

type contributionRequest struct {
	Amount string `json:"amount"`
	Note   string `json:"note,omitempty"`
}

type contributionView struct {
	ID        string    `json:"id"`
	GoalID    string    `json:"goal_id"`
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind"`
	Amount    string    `json:"amount"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request) {
	s.handleLedgerWrite(w, r, s.goals.Contribute)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleLedgerWrite(w, r, s.goals.Withdraw)
}

func (s *Server) handleLedgerWrite(w http.ResponseWriter, r *http.Request, do func(ctx context.Context, userID, goalID string, amount core.Money, note string) (*core.Goal, error)) {
	var req contributionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	g, err := do(r.Context(), userID(r), chi.URLParam(r, "id"), core.Money{Cents: cents}, req.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalView(g))
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	events, err := s.goals.Ledger(r.Context(), userID(r), chi.URLParam(r, "id"), 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]contributionView, 0, len(events))
	for _, ev := range events {
		views = append(views, contributionView{
			ID:        ev.ID,
			GoalID:    ev.GoalID,
			UserID:    ev.UserID,
			Kind:      string(ev.Kind),
			Amount:    ev.Amount.String(),
			Note:      ev.Note,
			CreatedAt: ev.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, views)
}
