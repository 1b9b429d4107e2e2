package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/charityfund-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware благотворительной платформы.
func (h *Handler) SetupRouter(mediaDir string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/user/register", h.Register)
		r.Post("/user/login", h.Login)

		r.Get("/projects", h.ListProjects)
		r.Get("/projects/{id}", h.GetProject)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/projects", h.CreateProject)
			r.Patch("/projects/{id}", h.UpdateProject)
			r.Delete("/projects/{id}", h.DeleteProject)
			r.Post("/projects/{id}/image", h.UploadProjectImage)
			r.Get("/projects/user/{userID}", h.GetUserProjects)

			r.Post("/donations", h.Donate)
			r.Get("/donations/user/{userID}", h.GetUserDonations)
		})
	})

	if mediaDir != "" {
		r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(mediaDir))))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
