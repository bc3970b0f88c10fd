package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"wafer-be/handlers"
	"wafer-be/middleware"
	"wafer-be/models"
	"wafer-be/utils"
)

func SetupRoutes(h *handlers.Handler) *mux.Router {
	router := mux.NewRouter()

	// Apply CORS middleware globally
	router.Use(middleware.CORS(h.Settings.CORSOrigins))

	// Handle all OPTIONS requests globally before route matching
	router.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Static file serving for uploads
	router.PathPrefix("/uploads/").Handler(
		http.StripPrefix("/uploads/", http.FileServer(http.Dir(utils.UploadDir))),
	)

	api := router.PathPrefix("/api").Subrouter()

	// Protected routes are registered first so /users/me wins over
	// /users/{username}
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.Auth(h.DB, h.Settings.JWTSecret))

	protected.HandleFunc("/users/me", h.GetCurrentUser).Methods("GET")
	protected.HandleFunc("/users/me", h.UpdateProfile).Methods("PUT")

	protected.HandleFunc("/talks", h.CreateTalk).Methods("POST")
	protected.HandleFunc("/talks/{id}", h.UpdateTalk).Methods("PUT")
	protected.HandleFunc("/talks/{id}/withdraw", h.WithdrawTalk).Methods("POST")
	protected.HandleFunc("/talks/{id}/kv", h.TalkKeyValues).Methods("GET")
	protected.HandleFunc("/talks/{id}/kv", h.AttachTalkKeyValue).Methods("POST")

	protected.HandleFunc("/tickets/claim", h.ClaimTicket).Methods("POST")
	protected.HandleFunc("/tickets/mine", h.MyTickets).Methods("GET")

	protected.HandleFunc("/kv", h.ListKeyValues).Methods("GET")
	protected.HandleFunc("/kv", h.CreateKeyValue).Methods("POST")
	protected.HandleFunc("/kv/{id}", h.GetKeyValue).Methods("GET")
	protected.HandleFunc("/kv/{id}", h.UpdateKeyValue).Methods("PUT")
	protected.HandleFunc("/kv/{id}", h.DeleteKeyValue).Methods("DELETE")

	protected.HandleFunc("/markdown/preview", h.PreviewMarkdown).Methods("POST")

	// Reviewer routes - admins pass as well
	reviewers := protected.PathPrefix("").Subrouter()
	reviewers.Use(middleware.RequireRole(models.RoleReviewer))
	reviewers.HandleFunc("/talks/{id}/reviews", h.ListReviews).Methods("GET")
	reviewers.HandleFunc("/talks/{id}/reviews", h.SubmitReview).Methods("POST")
	reviewers.HandleFunc("/review-aspects", h.ListReviewAspects).Methods("GET")

	// Admin-only routes
	admin := protected.PathPrefix("").Subrouter()
	admin.Use(middleware.RequireAdmin)

	admin.HandleFunc("/users/{id}/role", h.SetUserRole).Methods("PUT")
	admin.HandleFunc("/users/{id}", h.DeleteUser).Methods("DELETE")

	admin.HandleFunc("/groups", h.ListGroups).Methods("GET")
	admin.HandleFunc("/groups", h.CreateGroup).Methods("POST")
	admin.HandleFunc("/groups/{id}/members", h.AddGroupMember).Methods("POST")
	admin.HandleFunc("/groups/{id}/members/{userID}", h.RemoveGroupMember).Methods("DELETE")

	admin.HandleFunc("/talks/{id}/status", h.UpdateTalkStatus).Methods("PUT")
	admin.HandleFunc("/talks/{id}/urls", h.AddTalkURL).Methods("POST")
	admin.HandleFunc("/talks/{id}/urls/{urlID}", h.DeleteTalkURL).Methods("DELETE")
	admin.HandleFunc("/talk-types", h.CreateTalkType).Methods("POST")
	admin.HandleFunc("/tracks", h.CreateTrack).Methods("POST")
	admin.HandleFunc("/review-aspects", h.CreateReviewAspect).Methods("POST")

	admin.HandleFunc("/sponsors", h.CreateSponsor).Methods("POST")
	admin.HandleFunc("/sponsors/reorder", h.ReorderSponsors).Methods("POST")
	admin.HandleFunc("/sponsors/{id}", h.UpdateSponsor).Methods("PUT")
	admin.HandleFunc("/sponsors/{id}", h.DeleteSponsor).Methods("DELETE")
	admin.HandleFunc("/sponsors/{id}/files", h.UploadSponsorFile).Methods("POST")
	admin.HandleFunc("/sponsorship-packages", h.CreatePackage).Methods("POST")

	admin.HandleFunc("/pages", h.CreatePage).Methods("POST")
	admin.HandleFunc("/pages/{id}", h.UpdatePage).Methods("PUT")
	admin.HandleFunc("/pages/{id}", h.DeletePage).Methods("DELETE")
	admin.HandleFunc("/pages/{id}/files", h.UploadPageFile).Methods("POST")

	// Public routes - a valid token is picked up when present
	public := api.PathPrefix("").Subrouter()
	public.Use(middleware.OptionalAuth(h.DB, h.Settings.JWTSecret))

	public.HandleFunc("/auth/register", h.Register).Methods("POST")
	public.HandleFunc("/auth/login", h.Login).Methods("POST")

	public.HandleFunc("/users", h.GetUsers).Methods("GET")
	public.HandleFunc("/users/{username}", h.GetProfile).Methods("GET")

	public.HandleFunc("/talks", h.ListTalks).Methods("GET")
	public.HandleFunc("/talks/{id}", h.GetTalk).Methods("GET")
	public.HandleFunc("/speakers", h.ListSpeakers).Methods("GET")
	public.HandleFunc("/talk-types", h.ListTalkTypes).Methods("GET")
	public.HandleFunc("/tracks", h.ListTracks).Methods("GET")

	public.HandleFunc("/sponsors", h.ListSponsors).Methods("GET")
	public.HandleFunc("/sponsors/{id}", h.GetSponsor).Methods("GET")
	public.HandleFunc("/sponsorship-packages", h.ListPackages).Methods("GET")

	public.HandleFunc("/pages", h.ListPages).Methods("GET")
	public.HandleFunc("/pages/{id}", h.GetPage).Methods("GET")

	// Ticketing provider webhook, authenticated by shared secret
	public.HandleFunc("/tickets/quicket", h.QuicketHook).Methods("POST")

	public.HandleFunc("/markdown/allowlist", h.GetAllowList).Methods("GET")

	return router
}
