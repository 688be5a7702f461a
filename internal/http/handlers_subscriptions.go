package http

import (
	"net/http"

	"saifuu/internal/core"
	applog "saifuu/internal/log"
	"saifuu/internal/validation"
)

const entitySubscription = "Subscription"

func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	q, err := validation.SubscriptionList(r.URL.Query())
	if err != nil {
		s.writeError(w, r, entitySubscription, applog.OpList, err)
		return
	}
	subs, total, err := s.stores.Subscriptions.ListSubscriptions(r.Context(), q)
	if err != nil {
		s.writeError(w, r, entitySubscription, applog.OpList, err)
		return
	}
	NewResponse().
		List(subs).
		Paginate(core.NewPagination(q.Page, total)).
		Filters(q.Filters).
		Sort(q.Sort).
		Write(w)
}

// handleSubscriptionsDue lists active subscriptions due on or before ?date,
// today when absent.
func (s *Server) handleSubscriptionsDue(w http.ResponseWriter, r *http.Request) {
	asOf, err := validation.SubscriptionsDue(r.URL.Query(), s.today())
	if err != nil {
		s.writeError(w, r, entitySubscription, applog.OpList, err)
		return
	}
	subs, err := s.stores.Subscriptions.GetSubscriptionsDue(r.Context(), asOf)
	if err != nil {
		s.writeError(w, r, entitySubscription, applog.OpList, err)
		return
	}
	NewResponse().List(subs).Filters(map[string]string{"date": asOf.String()}).Write(w)
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, entitySubscription, applog.OpRead, err)
		return
	}
	sub, err := found(s.stores.Subscriptions.GetSubscription(r.Context(), id))
	if err != nil {
		s.writeError(w, r, entitySubscription, applog.OpRead, err)
		return
	}
	NewResponse().Data(sub).Write(w)
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, entitySubscription, applog.OpCreate, err)
		return
	}
	in, err := validation.SubscriptionCreate(body)
	if err != nil {
		s.writeError(w, r, entitySubscription, applog.OpCreate, err)
		return
	}
	sub, err := s.stores.Subscriptions.CreateSubscription(r.Context(), in)
	if err != nil {
		s.writeError(w, r, entitySubscription, applog.OpCreate, err)
		return
	}
	NewResponse().Status(http.StatusCreated).Data(sub).Message("Subscription created successfully").Write(w)
}

func (s *Server) handleUpdateSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, entitySubscription, applog.OpUpdate, err)
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, entitySubscription, applog.OpUpdate, err)
		return
	}
	patch, err := validation.SubscriptionUpdate(body)
	if err != nil {
		s.writeError(w, r, entitySubscription, applog.OpUpdate, err)
		return
	}
	sub, err := s.stores.Subscriptions.UpdateSubscription(r.Context(), id, patch)
	if err != nil {
		s.writeError(w, r, entitySubscription, applog.OpUpdate, err)
		return
	}
	NewResponse().Data(sub).Message("Subscription updated successfully").Write(w)
}

func (s *Server) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, entitySubscription, applog.OpDelete, err)
		return
	}
	sub, err := s.stores.Subscriptions.DeleteSubscription(r.Context(), id)
	if err != nil {
		s.writeError(w, r, entitySubscription, applog.OpDelete, err)
		return
	}
	NewResponse().Data(sub).Message("Subscription deleted successfully").Write(w)
}

func (s *Server) handleActivateSubscription(w http.ResponseWriter, r *http.Request) {
	s.setSubscriptionActive(w, r, true)
}

func (s *Server) handleDeactivateSubscription(w http.ResponseWriter, r *http.Request) {
	s.setSubscriptionActive(w, r, false)
}

// setSubscriptionActive succeeds whether or not the state changed; the
// message tells the caller which.
func (s *Server) setSubscriptionActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, entitySubscription, applog.OpActivate, err)
		return
	}
	sub, changed, err := s.stores.Subscriptions.SetSubscriptionActive(r.Context(), id, active)
	if err != nil {
		s.writeError(w, r, entitySubscription, applog.OpActivate, err)
		return
	}

	state := "deactivated"
	if active {
		state = "activated"
	}
	msg := "Subscription " + state + " successfully"
	if !changed {
		msg = "Subscription is already " + state
	}
	NewResponse().Data(sub).Message(msg).Write(w)
}
