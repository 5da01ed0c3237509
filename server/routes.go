package server

func (s *Server) setupRoutes() {
	// Engine cycle, triggered by the outer scheduler (cron)
	s.app.Post("/followup/cycle", s.runCycleHandler)

	// Reconciliation passes, operator-triggered
	s.app.Post("/followup/audit/structural/:tenantId", s.auditStructuralHandler)
	s.app.Post("/followup/audit/semantic/:tenantId", s.auditSemanticHandler)
	s.app.Post("/followup/reset/:tenantId", s.hardResetHandler)

	// Manual override gate
	s.app.Post("/followup/contacts/toggle", s.toggleContactHandler)
	s.app.Get("/followup/contacts/status", s.contactStatusHandler)

	// UI listing
	s.app.Get("/followup/active", s.activeEntriesHandler)

	s.app.Get("/health", s.healthHandler)
}
