package http

import (
	"net/http"
	"time"

	"coppia/internal/core"
)

type coupleView struct {
	ID               string              `json:"id"`
	MemberA          string              `json:"member_a"`
	MemberB          string              `json:"member_b"`
	Name             string              `json:"name"`
	Status           core.CoupleStatus   `json:"status"`
	InvitationToken  string              `json:"invitation_token,omitempty"`
	InvitationExpiry *time.Time          `json:"invitation_expiry,omitempty"`
	SharedBudget     string              `json:"shared_budget"`
	BudgetPeriod     core.BudgetPeriod   `json:"budget_period"`
	Settings         core.CoupleSettings `json:"settings"`
	CreatedAt        time.Time           `json:"created_at"`
}

func toCoupleView(c *core.Couple) coupleView {
	v := coupleView{
		ID:           c.ID,
		MemberA:      c.MemberA,
		MemberB:      c.MemberB,
		Name:         c.Name,
		Status:       c.Status,
		SharedBudget: c.SharedBudget.String(),
		BudgetPeriod: c.BudgetPeriod,
		Settings:     c.Settings,
		CreatedAt:    c.CreatedAt,
	}
	if c.Status == core.CouplePending {
		v.InvitationToken = c.InvitationToken
		expiry := c.InvitationExpiry
		v.InvitationExpiry = &expiry
	}
	return v
}

type inviteRequest struct {
	PartnerEmail string `json:"partner_email"`
	Name         string `json:"name,omitempty"`
}

func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	couple, err := s.couples.Invite(r.Context(), userID(r), req.PartnerEmail, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCoupleView(couple))
}

type acceptRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	var req acceptRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	couple, err := s.couples.Accept(r.Context(), userID(r), req.Token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCoupleView(couple))
}

func (s *Server) handleCurrentCouple(w http.ResponseWriter, r *http.Request) {
	couple, err := s.couples.Current(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCoupleView(couple))
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	if err := s.couples.Leave(r.Context(), userID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handlePendingInvitations(w http.ResponseWriter, r *http.Request) {
	invites, err := s.couples.PendingInvitations(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]coupleView, 0, len(invites))
	for i := range invites {
		views = append(views, toCoupleView(&invites[i]))
	}
	writeJSON(w, http.StatusOK, views)
}

type settingsPatchRequest struct {
	ExpenseApprovalRequired *bool                      `json:"expense_approval_required,omitempty"`
	ExpenseLimitIndividual  *string                    `json:"expense_limit_individual,omitempty"`
	ClearExpenseLimit       bool                       `json:"clear_expense_limit,omitempty"`
	GoalContributionMethod  *core.ContributionMethod   `json:"goal_contribution_method,omitempty"`
	Notifications           *core.NotificationSettings `json:"notifications,omitempty"`
	Privacy                 *core.PrivacySettings      `json:"privacy,omitempty"`
	SharedBudget            *string                    `json:"shared_budget,omitempty"`
	BudgetPeriod            *core.BudgetPeriod         `json:"budget_period,omitempty"`
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsPatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	patch := core.CoupleSettingsPatch{
		ExpenseApprovalRequired: req.ExpenseApprovalRequired,
		ClearExpenseLimit:       req.ClearExpenseLimit,
		GoalContributionMethod:  req.GoalContributionMethod,
		Notifications:           req.Notifications,
		Privacy:                 req.Privacy,
		BudgetPeriod:            req.BudgetPeriod,
	}
	if req.ExpenseLimitIndividual != nil {
		cents, err := core.ParseDecimalToCents(*req.ExpenseLimitIndividual)
		if err != nil {
			writeError(w, r, err)
			return
		}
		patch.ExpenseLimitIndividual = &cents
	}
	if req.SharedBudget != nil {
		cents, err := core.ParseDecimalToCents(*req.SharedBudget)
		if err != nil {
			writeError(w, r, err)
			return
		}
		budget := core.Money{Cents: cents}
		patch.SharedBudget = &budget
	}

	couple, err := s.couples.UpdateSettings(r.Context(), userID(r), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCoupleView(couple))
}

type budgetUsageView struct {
	Budget     string            `json:"budget"`
	Used       string            `json:"used"`
	Remaining  string            `json:"remaining"`
	Percentage float64           `json:"percentage"`
	Period     core.BudgetPeriod `json:"period"`
}

func (s *Server) handleBudgetUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := s.couples.BudgetUsage(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, budgetUsageView{
		Budget:     usage.Budget.String(),
		Used:       usage.Used.String(),
		Remaining:  usage.Remaining.String(),
		Percentage: usage.Percentage.Float64(),
		Period:     usage.Period,
	})
}
