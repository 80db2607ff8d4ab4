package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tournevent/integrations/pkg/integration"
	"github.com/tournevent/integrations/pkg/shipper"
)

type addressDTO struct {
	Name          string `json:"name"`
	Company       string `json:"company"`
	Line1         string `json:"line1" validate:"required"`
	Line2         string `json:"line2"`
	City          string `json:"city" validate:"required"`
	State         string `json:"state"`
	PostalCode    string `json:"postalCode" validate:"required"`
	CountryCode   string `json:"countryCode" validate:"required,len=2"`
	Phone         string `json:"phone"`
	Email         string `json:"email" validate:"omitempty,email"`
	IsResidential bool   `json:"isResidential"`
}

func (a addressDTO) address() integration.Address {
	return integration.Address{
		Name:          a.Name,
		Company:       a.Company,
		Line1:         a.Line1,
		Line2:         a.Line2,
		City:          a.City,
		State:         a.State,
		PostalCode:    a.PostalCode,
		CountryCode:   a.CountryCode,
		Phone:         a.Phone,
		Email:         a.Email,
		IsResidential: a.IsResidential,
	}
}

type packageDTO struct {
	Weight      float64        `json:"weight" validate:"gt=0"`
	Length      float64        `json:"length" validate:"gte=0"`
	Width       float64        `json:"width" validate:"gte=0"`
	Height      float64        `json:"height" validate:"gte=0"`
	Description string         `json:"description"`
	Value       *shipper.Money `json:"value"`
}

func packages(in []packageDTO) []shipper.Package {
	out := make([]shipper.Package, 0, len(in))
	for _, p := range in {
		out = append(out, shipper.Package{
			Weight:      p.Weight,
			Length:      p.Length,
			Width:       p.Width,
			Height:      p.Height,
			Description: p.Description,
			Value:       p.Value,
		})
	}
	return out
}

type rateRequest struct {
	Origin       addressDTO   `json:"origin"`
	Destination  addressDTO   `json:"destination"`
	Packages     []packageDTO `json:"packages" validate:"required,min=1,dive"`
	ServiceCodes []string     `json:"serviceCodes"`
	ShipDate     *time.Time   `json:"shipDate"`
}

func (r rateRequest) toRateRequest() *shipper.RateRequest {
	return &shipper.RateRequest{
		Origin:       r.Origin.address(),
		Destination:  r.Destination.address(),
		Packages:     packages(r.Packages),
		ServiceCodes: r.ServiceCodes,
		ShipDate:     r.ShipDate,
	}
}

type shipmentRequest struct {
	OrderID     string              `json:"orderId" validate:"required"`
	Reference   string              `json:"reference"`
	ServiceCode string              `json:"serviceCode" validate:"required"`
	Sender      addressDTO          `json:"sender"`
	Recipient   addressDTO          `json:"recipient"`
	Packages    []packageDTO        `json:"packages" validate:"required,min=1,dive"`
	LabelFormat shipper.LabelFormat `json:"labelFormat" validate:"omitempty,oneof=PDF PNG ZPL"`
	ShipDate    *time.Time          `json:"shipDate"`
}

type pickupRequest struct {
	Address      addressDTO `json:"address"`
	ReadyTime    time.Time  `json:"readyTime" validate:"required"`
	CloseTime    time.Time  `json:"closeTime" validate:"required,gtfield=ReadyTime"`
	PackageCount int        `json:"packageCount" validate:"gt=0"`
	TotalWeight  float64    `json:"totalWeight" validate:"gt=0"`
	Instructions string     `json:"instructions"`
}

type allRatesResponse struct {
	Rates  []shipper.Rate `json:"rates"`
	Errors []string       `json:"errors,omitempty"`
}

type carrierSummary struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
}

func (s *Server) handleListCarriers(w http.ResponseWriter, r *http.Request) {
	out := []carrierSummary{}
	for _, c := range s.couriers.ActiveProviders() {
		out = append(out, carrierSummary{Name: c.Name(), Configured: c.IsConfigured()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"carriers": out})
}

// handleAllRates fans out to every active carrier. ?select=cheapest or
// ?select=fastest narrows the answer to a single rate.
func (s *Server) handleAllRates(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if !s.decode(w, r, &req) {
		return
	}
	ctx := r.Context()

	switch sel := r.URL.Query().Get("select"); sel {
	case "cheapest", "fastest":
		pick := s.couriers.CheapestRate
		if sel == "fastest" {
			pick = s.couriers.FastestRate
		}
		rate, err := pick(ctx, req.toRateRequest())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rate)
	case "":
		rates, errs := s.couriers.AllRates(ctx, req.toRateRequest())
		resp := allRatesResponse{Rates: nonNilSlice(rates)}
		for _, err := range errs {
			resp.Errors = append(resp.Errors, err.Error())
		}
		writeJSON(w, http.StatusOK, resp)
	default:
		s.writeError(w, r, integration.Validation("", "select must be cheapest or fastest, got %q", sel))
	}
}

func (s *Server) handleProviderRates(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if !s.decode(w, r, &req) {
		return
	}
	rates, err := s.couriers.Rates(r.Context(), chi.URLParam(r, "provider"), req.toRateRequest())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, allRatesResponse{Rates: nonNilSlice(rates)})
}

func (s *Server) handleCreateShipment(w http.ResponseWriter, r *http.Request) {
	var req shipmentRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.couriers.CreateShipment(r.Context(), chi.URLParam(r, "provider"), &shipper.ShipmentRequest{
		OrderID:     req.OrderID,
		Reference:   req.Reference,
		ServiceCode: req.ServiceCode,
		Sender:      req.Sender.address(),
		Recipient:   req.Recipient.address(),
		Packages:    packages(req.Packages),
		LabelFormat: req.LabelFormat,
		ShipDate:    req.ShipDate,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleCancelShipment(w http.ResponseWriter, r *http.Request) {
	resp, err := s.couriers.CancelShipment(r.Context(), chi.URLParam(r, "provider"), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	resp, err := s.couriers.TrackShipment(r.Context(), chi.URLParam(r, "number"), r.URL.Query().Get("provider"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleValidateAddress(w http.ResponseWriter, r *http.Request) {
	var req addressDTO
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.couriers.ValidateAddress(r.Context(), chi.URLParam(r, "provider"), req.address())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSchedulePickup(w http.ResponseWriter, r *http.Request) {
	var req pickupRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.couriers.SchedulePickup(r.Context(), chi.URLParam(r, "provider"), &shipper.PickupRequest{
		Address:      req.Address.address(),
		ReadyTime:    req.ReadyTime,
		CloseTime:    req.CloseTime,
		PackageCount: req.PackageCount,
		TotalWeight:  req.TotalWeight,
		Instructions: req.Instructions,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.couriers.AvailableServices(r.Context(), chi.URLParam(r, "provider"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": nonNilSlice(services)})
}
