package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fieldhire/internal/dispatch"
	"fieldhire/internal/models"
)

// requireActor resolves the request identity. With auth disabled every
// caller acts as an unrestricted admin, which is only meant for development.
func (s *HTTPServer) requireActor(r *http.Request) Actor {
	if actor, ok := CurrentActor(r); ok {
		return actor
	}
	return Actor{ID: "dev", Name: "dev", Role: models.RoleAdmin}
}

type createBookingBody struct {
	FarmerID               string `json:"farmer_id,omitempty"` // admin only
	Category               string `json:"category"`
	Purpose                string `json:"purpose"`
	ResourceID             string `json:"resource_id,omitempty"`
	Quantity               int64  `json:"quantity,omitempty"`
	AllowMultipleSuppliers bool   `json:"allow_multiple_suppliers,omitempty"`
	PreferredModel         string `json:"preferred_model,omitempty"`
	OperatorRequired       bool   `json:"operator_required,omitempty"`
	Date                   string `json:"date"`
	Start                  string `json:"start"`
	DurationMinutes        int    `json:"duration_minutes"`
}

func (s *HTTPServer) handleBookings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateBooking(w, r)
	case http.MethodGet:
		s.handleListBookings(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	actor := s.requireActor(r)
	if !actor.Can(models.RoleFarmer) {
		writeError(w, http.StatusForbidden, errPermissionDenied.Error())
		return
	}

	var body createBookingBody
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	farmerID := actor.ID
	if body.FarmerID != "" && actor.IsAdmin() {
		farmerID = body.FarmerID
	}

	date, err := time.Parse("2006-01-02", strings.TrimSpace(body.Date))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}
	startMinute, err := models.ParseClock(body.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start format; expected HH:MM")
		return
	}

	booking, err := s.router.CreateBooking(r.Context(), &dispatch.CreateRequest{
		FarmerID:               farmerID,
		Category:               body.Category,
		Purpose:                body.Purpose,
		ResourceID:             body.ResourceID,
		Quantity:               body.Quantity,
		AllowMultipleSuppliers: body.AllowMultipleSuppliers,
		PreferredModel:         body.PreferredModel,
		OperatorRequired:       body.OperatorRequired,
		Date:                   date,
		StartMinute:            startMinute,
		DurationMinutes:        body.DurationMinutes,
	})
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	actor := s.requireActor(r)
	ctx := r.Context()

	switch {
	case actor.Role == models.RoleFarmer:
		bookings, err := s.repo.GetFarmerBookings(ctx, actor.ID)
		if err != nil {
			writeDispatchError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
	case actor.Role == models.RoleSupplier:
		bookings, err := s.repo.GetSupplierBookings(ctx, actor.ID)
		if err != nil {
			writeDispatchError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
	default:
		bookings, err := s.repo.ListOpenBookings(ctx)
		if err != nil {
			writeDispatchError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
	}
}

func (s *HTTPServer) handleOpenRequests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	actor := s.requireActor(r)
	if !actor.Can(models.RoleSupplier) {
		writeError(w, http.StatusForbidden, errPermissionDenied.Error())
		return
	}
	supplierID := actor.ID
	if q := strings.TrimSpace(r.URL.Query().Get("supplier_id")); q != "" && actor.IsAdmin() {
		supplierID = q
	}

	open, err := s.router.OpenRequests(r.Context(), supplierID)
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	if open == nil {
		open = []*dispatch.OpenRequest{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": open})
}

func (s *HTTPServer) handleBookingAction(w http.ResponseWriter, r *http.Request) {
	id, action, ok := bookingPath(r.URL.Path)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if r.Method == http.MethodGet {
		switch action {
		case "":
			s.handleGetBooking(w, r, id)
		case "allocations":
			s.handleGetAllocations(w, r, id)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	switch action {
	case "accept":
		s.handleAccept(w, r, id)
	case "reject":
		s.handleReject(w, r, id)
	case "cancel":
		s.handleCancel(w, r, id)
	case "arrive":
		s.handleArrive(w, r, id)
	case "start":
		s.handleStart(w, r, id)
	case "complete":
		s.handleComplete(w, r, id)
	case "payment":
		s.handlePayment(w, r, id)
	case "dispute":
		s.handleDispute(w, r, id)
	case "dispute/resolve":
		s.handleDisputeResolve(w, r, id)
	case "damage":
		s.handleDamage(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request, id string) {
	booking, err := s.repo.GetBooking(r.Context(), id)
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleGetAllocations(w http.ResponseWriter, r *http.Request, id string) {
	allocations, err := s.repo.GetAllocations(r.Context(), id)
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	if allocations == nil {
		allocations = []*models.Allocation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"allocations": allocations})
}

func (s *HTTPServer) handleAccept(w http.ResponseWriter, r *http.Request, id string) {
	actor := s.requireActor(r)
	if !actor.Can(models.RoleSupplier) {
		writeError(w, http.StatusForbidden, errPermissionDenied.Error())
		return
	}

	var body struct {
		SupplierID       string `json:"supplier_id,omitempty"` // admin only
		ResourceID       string `json:"resource_id"`
		Quantity         int64  `json:"quantity,omitempty"`
		OperateSelf      bool   `json:"operate_self,omitempty"`
		ConfirmConflicts bool   `json:"confirm_conflicts,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	supplierID := actor.ID
	if body.SupplierID != "" && actor.IsAdmin() {
		supplierID = body.SupplierID
	}

	result, err := s.coordinator.Accept(r.Context(), &dispatch.AcceptRequest{
		BookingID:        id,
		SupplierID:       supplierID,
		ResourceID:       body.ResourceID,
		Quantity:         body.Quantity,
		OperateSelf:      body.OperateSelf,
		ConfirmConflicts: body.ConfirmConflicts,
	})
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleReject(w http.ResponseWriter, r *http.Request, id string) {
	actor := s.requireActor(r)
	if !actor.Can(models.RoleSupplier) {
		writeError(w, http.StatusForbidden, errPermissionDenied.Error())
		return
	}

	booking, err := s.coordinator.Reject(r.Context(), id, actor.ID)
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request, id string) {
	actor := s.requireActor(r)
	if !actor.Can(models.RoleFarmer) {
		writeError(w, http.StatusForbidden, errPermissionDenied.Error())
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if !actor.IsAdmin() {
		booking, err := s.repo.GetBooking(r.Context(), id)
		if err != nil {
			writeDispatchError(w, err)
			return
		}
		if booking.FarmerID != actor.ID {
			writeError(w, http.StatusForbidden, errPermissionDenied.Error())
			return
		}
	}

	booking, err := s.lifecycle.Cancel(r.Context(), id, body.Reason)
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleArrive(w http.ResponseWriter, r *http.Request, id string) {
	actor := s.requireActor(r)
	if !actor.Can(models.RoleSupplier) {
		writeError(w, http.StatusForbidden, errPermissionDenied.Error())
		return
	}

	booking, err := s.lifecycle.Arrive(r.Context(), id)
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleStart(w http.ResponseWriter, r *http.Request, id string) {
	actor := s.requireActor(r)
	if !actor.Can(models.RoleFarmer, models.RoleSupplier) {
		writeError(w, http.StatusForbidden, errPermissionDenied.Error())
		return
	}

	var body struct {
		OTPCode string `json:"otp_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	booking, err := s.lifecycle.StartWork(r.Context(), id, body.OTPCode)
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleComplete(w http.ResponseWriter, r *http.Request, id string) {
	actor := s.requireActor(r)
	if !actor.Can(models.RoleSupplier) {
		writeError(w, http.StatusForbidden, errPermissionDenied.Error())
		return
	}

	booking, err := s.lifecycle.Complete(r.Context(), id)
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handlePayment(w http.ResponseWriter, r *http.Request, id string) {
	actor := s.requireActor(r)
	if !actor.Can(models.RoleFarmer) {
		writeError(w, http.StatusForbidden, errPermissionDenied.Error())
		return
	}

	var body struct {
		Price float64 `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Price < 0 {
		writeError(w, http.StatusBadRequest, "price must not be negative")
		return
	}

	booking, err := s.lifecycle.FinalizePayment(r.Context(), id, body.Price)
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleDispute(w http.ResponseWriter, r *http.Request, id string) {
	actor := s.requireActor(r)
	if !actor.Can(models.RoleFarmer, models.RoleSupplier) {
		writeError(w, http.StatusForbidden, errPermissionDenied.Error())
		return
	}

	booking, err := s.resolver.RaiseDispute(r.Context(), id, actor.ID)
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleDisputeResolve(w http.ResponseWriter, r *http.Request, id string) {
	actor := s.requireActor(r)
	if !actor.IsAdmin() {
		writeError(w, http.StatusForbidden, errPermissionDenied.Error())
		return
	}

	booking, err := s.resolver.ResolveDispute(r.Context(), id, actor.ID)
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleDamage(w http.ResponseWriter, r *http.Request, id string) {
	actor := s.requireActor(r)
	if !actor.Can(models.RoleFarmer, models.RoleSupplier) {
		writeError(w, http.StatusForbidden, errPermissionDenied.Error())
		return
	}

	var body struct {
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	report, err := s.resolver.ReportDamage(r.Context(), id, actor.ID, body.Description)
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func (s *HTTPServer) handleDamageReportAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/damage-reports/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[1] != "resolve" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	reportID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report id")
		return
	}

	actor := s.requireActor(r)
	if !actor.IsAdmin() {
		writeError(w, http.StatusForbidden, errPermissionDenied.Error())
		return
	}

	report, err := s.resolver.ResolveDamageClaim(r.Context(), reportID, actor.ID)
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *HTTPServer) handleResources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	actor := s.requireActor(r)
	ctx := r.Context()

	if r.URL.Query().Get("mine") == "true" {
		resources, err := s.repo.ListSupplierResources(ctx, actor.ID)
		if err != nil {
			writeDispatchError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"resources": resources})
		return
	}

	category := strings.TrimSpace(r.URL.Query().Get("category"))
	resources, err := s.repo.ListApprovedResources(ctx, category)
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	if resources == nil {
		resources = []*models.Resource{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"resources": resources})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	actor := s.requireActor(r)
	if !actor.IsAdmin() {
		writeError(w, http.StatusForbidden, errPermissionDenied.Error())
		return
	}

	var body struct {
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	start, err := time.Parse("2006-01-02", body.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_date; expected YYYY-MM-DD")
		return
	}
	end, err := time.Parse("2006-01-02", body.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_date; expected YYYY-MM-DD")
		return
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end_date before start_date")
		return
	}

	path, err := s.exporter.ExportBookings(r.Context(), start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"file": path})
}
