package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/thusconnect/apiserver/types"
)

// ViewResponse describes the page a client should render. The page
// content itself is presentational and lives in the front-end; the
// server contributes the routing decision and the active identity.
type ViewResponse struct {
	View     string            `json:"view"`
	Params   map[string]string `json:"params,omitempty"`
	Identity types.Identity    `json:"identity"`
}

// PublicView serves a page that renders without a session, such as the
// login and register forms.
func PublicView(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"view": name})
	}
}

// DriverRouter registers the driver subtree pages.
func DriverRouter(r chi.Router) {
	r.Get("/", view("driver/home"))
	r.Get("/sos", view("driver/sos"))
	r.Get("/map", view("driver/map"))
	r.Get("/services", view("driver/services"))
	r.Get("/service/{id}", viewWithID("driver/service"))
	r.Get("/request/{id}", viewWithID("driver/request"))
	r.Get("/history", view("driver/history"))
	r.Get("/profile", view("driver/profile"))
	r.Get("/breakdowns", view("driver/breakdowns"))
	r.Get("/quote/{id}", viewWithID("driver/quote"))
	r.Get("/payment/{id}", viewWithID("driver/payment"))
	r.Get("/invoice/{id}", viewWithID("driver/invoice"))
}

// TechnicianRouter registers the technician subtree pages.
func TechnicianRouter(r chi.Router) {
	r.Get("/", view("technician/home"))
	r.Get("/services", view("technician/services"))
	r.Get("/requests", view("technician/requests"))
	r.Get("/request/{id}", viewWithID("technician/request"))
	r.Get("/clients", view("technician/clients"))
	r.Get("/client/{id}", viewWithID("technician/client"))
	r.Get("/profile", view("technician/profile"))
}

// AdminRouter registers the admin subtree pages.
func AdminRouter(r chi.Router) {
	r.Get("/", view("admin/dashboard"))
	r.Get("/users", view("admin/users"))
	r.Get("/technicians", view("admin/technicians"))
	r.Get("/requests", view("admin/requests"))
	r.Get("/zones", view("admin/zones"))
	r.Get("/stats", view("admin/stats"))
	r.Get("/settings", view("admin/settings"))
}

func view(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := identityFromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeJSON(w, http.StatusOK, ViewResponse{View: name, Identity: identity})
	}
}

func viewWithID(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := identityFromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeJSON(w, http.StatusOK, ViewResponse{
			View:     name,
			Params:   map[string]string{"id": chi.URLParam(r, "id")},
			Identity: identity,
		})
	}
}
