package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/tournevent/integrations/pkg/integration"
	"github.com/tournevent/integrations/pkg/rules"
)

type shippingRateRequest struct {
	Weight      decimal.Decimal   `json:"weight"`
	CartValue   decimal.Decimal   `json:"cartValue"`
	Destination rules.Destination `json:"destination"`
	SellerID    string            `json:"sellerId"`
}

type shippingOptionsRequest struct {
	Items       []rules.Item      `json:"items" validate:"required,min=1"`
	CartValue   decimal.Decimal   `json:"cartValue"`
	Destination rules.Destination `json:"destination"`
	SellerID    string            `json:"sellerId"`
}

type optionsResponse struct {
	Options []rules.Option `json:"options"`
}

type saveMethodRequest struct {
	ID       string           `json:"id"`
	Name     string           `json:"name" validate:"required"`
	Type     rules.MethodType `json:"type" validate:"required"`
	SellerID string           `json:"sellerId"`
	IsActive bool             `json:"isActive"`
	Rules    []rules.Rule     `json:"rules"`
}

func (s *Server) handleShippingRates(w http.ResponseWriter, r *http.Request) {
	var req shippingRateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Weight.IsNegative() || req.CartValue.IsNegative() {
		s.writeError(w, r, integration.Validation("", "weight and cartValue must not be negative"))
		return
	}

	opts, err := s.engine.CalculateShippingRate(r.Context(), req.Weight, req.CartValue, req.Destination, req.SellerID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, optionsResponse{Options: nonNilSlice(opts)})
}

func (s *Server) handleShippingOptions(w http.ResponseWriter, r *http.Request) {
	var req shippingOptionsRequest
	if !s.decode(w, r, &req) {
		return
	}
	for _, it := range req.Items {
		if it.Weight != nil && *it.Weight < 0 {
			s.writeError(w, r, integration.Validation("", "item weight must not be negative"))
			return
		}
	}

	opts, err := s.engine.ShippingOptions(r.Context(), req.Items, req.CartValue, req.Destination, req.SellerID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, optionsResponse{Options: nonNilSlice(opts)})
}

func (s *Server) handleListMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := s.methods.Methods(r.Context(), r.URL.Query().Get("sellerId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"methods": nonNilSlice(methods)})
}

func (s *Server) handleSaveMethod(w http.ResponseWriter, r *http.Request) {
	var req saveMethodRequest
	if !s.decode(w, r, &req) {
		return
	}
	if !req.Type.Valid() {
		s.writeError(w, r, integration.Validation("", "unknown shipping method type %q", req.Type))
		return
	}

	id, err := s.methods.Save(r.Context(), rules.Method{
		ID:       req.ID,
		Name:     req.Name,
		Type:     req.Type,
		SellerID: req.SellerID,
		IsActive: req.IsActive,
		Rules:    req.Rules,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleDeleteMethod(w http.ResponseWriter, r *http.Request) {
	if err := s.methods.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
