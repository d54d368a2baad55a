package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/prep-area/internal/api/handlers"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	systemHandler := handlers.NewSystemHandler(s.systemFacade)

	// Health check endpoint (no versioning)
	s.router.Get("/health", systemHandler.Health)

	// WebSocket endpoint (no JSON content-type requirement)
	s.router.Get("/ws", s.wsHub.ServeWs)

	// API v1 routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", systemHandler.Health)
		r.Get("/ws", s.wsHub.ServeWs)

		// Card routes
		cardHandler := handlers.NewCardHandler(s.cardFacade)
		r.Get("/vocabulary", cardHandler.GetVocabulary)
		r.Get("/proxy-dice", cardHandler.ProxyDice)
		r.Route("/cards", func(r chi.Router) {
			r.With(jsonBody).Post("/filter", cardHandler.FilterCards)
			r.Get("/suggest", cardHandler.Suggest)
			r.Get("/{cardPK}", cardHandler.GetCard)
		})

		// Collection routes
		collectionHandler := handlers.NewCollectionHandler(s.collectionFacade)
		r.Route("/collection", func(r chi.Router) {
			r.Get("/snapshot", collectionHandler.GetSnapshot)
			r.With(jsonBody).Post("/cards/{cardPK}/delta", collectionHandler.ApplyCardDelta)
			r.With(jsonBody).Post("/dice/delta", collectionHandler.ApplyDiceDelta)
			r.Get("/stats", collectionHandler.GetStats)
			r.Get("/stats/chart", collectionHandler.GetStatsChart)
			r.Get("/export", collectionHandler.Export)
			r.With(s.rateLimitImports, csvBody, s.limitUpload).Post("/import", collectionHandler.Import)
		})

		// Trade routes
		tradeHandler := handlers.NewTradeHandler(s.tradeFacade)
		r.Route("/trade", func(r chi.Router) {
			r.Get("/snapshot", tradeHandler.GetSnapshot)
			r.Get("/export", tradeHandler.Export)
			r.With(s.rateLimitImports, csvBody, s.limitUpload).Post("/import", tradeHandler.Import)
			r.Get("/reconcile/{importID}", tradeHandler.Reconcile)
		})

		// Team routes
		teamHandler := handlers.NewTeamHandler(s.teamFacade)
		r.Route("/teams", func(r chi.Router) {
			r.Use(jsonBody)
			r.Get("/", teamHandler.ListTeams)
			r.Post("/", teamHandler.CreateTeam)
			r.Get("/{teamID}", teamHandler.GetTeam)
			r.Put("/{teamID}", teamHandler.RenameTeam)
			r.Delete("/{teamID}", teamHandler.DeleteTeam)
			r.Post("/{teamID}/cards", teamHandler.AddCard)
			r.Delete("/{teamID}/cards/{cardPK}", teamHandler.RemoveCard)
			r.Put("/{teamID}/cards/{cardPK}/dice", teamHandler.SetCardDice)
		})

		// System routes
		r.Get("/status", systemHandler.GetStatus)
		r.Get("/metrics", s.getMetrics)
		r.Post("/reload", systemHandler.Reload)
		r.With(jsonBody).Post("/backup", systemHandler.CreateBackup)
		r.Get("/backups", systemHandler.ListBackups)
		r.With(jsonBody).Post("/backup/restore", systemHandler.RestoreBackup)
	})
}
