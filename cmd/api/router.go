package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/crucial707/alloc8/internal/config"
	"github.com/crucial707/alloc8/internal/handlers"
	"github.com/crucial707/alloc8/internal/lifecycle"
	"github.com/crucial707/alloc8/internal/middleware"
	"github.com/crucial707/alloc8/internal/models"
	"github.com/crucial707/alloc8/internal/repo"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// repos groups the Postgres repositories shared by the engine and the handlers.
type repos struct {
	assets     *repo.AssetRepo
	history    *repo.HistoryRepo
	issues     *repo.IssueRepo
	returns    *repo.ReturnRepo
	requests   *repo.RequestRepo
	categories *repo.CategoryRepo
	depts      *repo.DepartmentRepo
	users      *repo.UserRepo
	audit      *repo.AuditRepo
	dashboard  *repo.DashboardRepo
	reports    *repo.ReportRepo
}

func newRepos(db *sql.DB) repos {
	return repos{
		assets:     repo.NewAssetRepo(db),
		history:    repo.NewHistoryRepo(db),
		issues:     repo.NewIssueRepo(db),
		returns:    repo.NewReturnRepo(db),
		requests:   repo.NewRequestRepo(db),
		categories: repo.NewCategoryRepo(db),
		depts:      repo.NewDepartmentRepo(db),
		users:      repo.NewUserRepo(db),
		audit:      repo.NewAuditRepo(db),
		dashboard:  repo.NewDashboardRepo(db),
		reports:    repo.NewReportRepo(db),
	}
}

func newEngine(rs repos, cfg config.Config, logger *slog.Logger) *lifecycle.Engine {
	return lifecycle.New(lifecycle.Deps{
		Assets:     rs.assets,
		History:    rs.history,
		Issues:     rs.issues,
		Requests:   rs.requests,
		Categories: rs.categories,
		Users:      rs.users,
		Audit:      rs.audit,
	}, lifecycle.WithSerialPrefix(cfg.SerialPrefix), lifecycle.WithLogger(logger))
}

// newRouter builds the HTTP API. Employees reach only their own views and the
// holder operations; everything else sits behind the admin role.
func newRouter(db *sql.DB, cfg config.Config, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	rs := newRepos(db)
	engine := newEngine(rs, cfg, logger)

	authH := &handlers.AuthHandler{UserRepo: rs.users, Secret: []byte(cfg.JWTSecret), TTL: cfg.TokenTTL(), Logger: logger}
	assetH := &handlers.AssetHandler{Engine: engine, Repo: rs.assets, History: rs.history, Audit: rs.audit, Logger: logger}
	workflowH := &handlers.WorkflowHandler{Engine: engine, Issues: rs.issues, Returns: rs.returns, Requests: rs.requests, Logger: logger}
	userH := &handlers.UserHandler{Repo: rs.users, Assets: rs.assets, Departments: rs.depts, Engine: engine, Audit: rs.audit, Logger: logger}
	categoryH := &handlers.CategoryHandler{Repo: rs.categories, Audit: rs.audit, Logger: logger}
	departmentH := &handlers.DepartmentHandler{Repo: rs.depts, Audit: rs.audit, Logger: logger}
	reportH := &handlers.ReportHandler{Repo: rs.reports, Users: rs.users, Logger: logger}
	auditH := &handlers.AuditHandler{Repo: rs.audit}
	dashboardH := &handlers.DashboardHandler{Repo: rs.dashboard}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.RequestLog(logger))
	r.Use(middleware.Prometheus)
	r.Use(middleware.SecurityHeaders(cfg.TLS()))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(middleware.MaxBytes(middleware.DefaultMaxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			handlers.JSONError(w, handlers.ErrMessageUnavailable, http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.With(middleware.LoginRateLimiter().Middleware).Post("/auth/login", authH.Login)

	r.Group(func(r chi.Router) {
		r.Use(middleware.JWTMiddleware([]byte(cfg.JWTSecret)))

		// Any authenticated user.
		r.Get("/me", userH.Me)
		r.Get("/me/assets", userH.MyAssets)
		r.Get("/me/timeline", userH.MyTimeline)
		r.Get("/me/issues", workflowH.MyIssues)
		r.Get("/assets/{id}", assetH.GetAsset)
		r.Post("/assets/{id}/issues", assetH.ReportIssue)
		r.Post("/assets/{id}/return", assetH.RequestReturn)
		r.Post("/requests", workflowH.CreateRequest)
		r.Get("/requests/mine", workflowH.MyRequests)
		r.Get("/categories", categoryH.ListCategories)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(models.RoleAdmin))

			r.Get("/dashboard", dashboardH.Stats)

			r.Get("/assets", assetH.ListAssets)
			r.Post("/assets", assetH.CreateAsset)
			r.Put("/assets/{id}", assetH.UpdateAsset)
			r.Delete("/assets/{id}", assetH.DeactivateAsset)
			r.Post("/assets/{id}/restore", assetH.RestoreAsset)
			r.Post("/assets/{id}/assign", assetH.AssignAsset)
			r.Post("/assets/{id}/unassign", assetH.UnassignAsset)
			r.Post("/assets/{id}/maintenance", assetH.StartMaintenance)
			r.Post("/assets/{id}/maintenance/complete", assetH.CompleteMaintenance)
			r.Get("/assets/{id}/history", assetH.AssetHistory)
			r.Get("/assets/{id}/timeline", assetH.AssetTimeline)

			r.Get("/issues", workflowH.ListIssues)
			r.Post("/issues/{id}/maintenance", workflowH.StartIssueMaintenance)
			r.Post("/issues/{id}/resolve", workflowH.ResolveIssue)
			r.Get("/returns", workflowH.ListReturns)

			r.Get("/requests", workflowH.ListRequests)
			r.Post("/requests/{id}/approve", workflowH.ApproveRequest)
			r.Post("/requests/{id}/reject", workflowH.RejectRequest)

			r.Post("/categories", categoryH.CreateCategory)
			r.Delete("/categories/{id}", categoryH.DeleteCategory)

			r.Get("/departments", departmentH.ListDepartments)
			r.Post("/departments", departmentH.CreateDepartment)
			r.Delete("/departments/{id}", departmentH.DeleteDepartment)

			r.Get("/users", userH.ListUsers)
			r.Post("/users", userH.CreateUser)
			r.Get("/users/search", userH.SearchUsers)
			r.Get("/users/{id}", userH.GetUser)
			r.Put("/users/{id}", userH.UpdateUser)
			r.Delete("/users/{id}", userH.DeleteUser)
			r.Post("/users/{id}/restore", userH.RestoreUser)
			r.Get("/users/{id}/timeline", userH.UserTimeline)
			r.Get("/users/{id}/summary", reportH.UserSummary)

			r.Get("/reports/assets/by-category", reportH.AssetsByCategory)
			r.Get("/reports/assets/by-status", reportH.AssetsByStatus)
			r.Get("/reports/assets/by-location", reportH.AssetsByLocation)
			r.Get("/reports/maintenance", reportH.MaintenanceLogs)
			r.Get("/reports/maintenance/expense", reportH.MaintenanceExpenses)
			r.Get("/reports/warranty", reportH.ExpiringWarranties)
			r.Get("/reports/assignments", reportH.AssignmentHistory)
			r.Get("/reports/transfers", reportH.Transfers)
			r.Get("/reports/employee-assets", reportH.EmployeeAssets)
			r.Get("/reports/purchase-cost", reportH.PurchaseCosts)

			r.Get("/audit", auditH.ListAudit)
		})
	})

	return r
}
