package router

import (
	"github.com/erp/gateway/internal/domain/erp"
	"github.com/erp/gateway/internal/interfaces/http/handler"
)

// ERPRoutes lays out the gateway API:
//
//	GET    /erp/{patients|encounters|billing|inventory|admissions}
//	GET    /erp/health
//	DELETE /erp/cache
//	GET    /erp/dashboards/{general|admissions|beds|encounters}
func ERPRoutes(erpHandler *handler.ERPHandler, dashboardHandler *handler.DashboardHandler) *DomainGroup {
	g := NewDomainGroup("/erp")
	for _, d := range erp.AllDomains() {
		g.GET("/"+d.String(), erpHandler.List(d))
	}
	g.GET("/health", erpHandler.Health)
	g.DELETE("/cache", erpHandler.InvalidateCache)

	g.Group("/dashboards").
		GET("/general", dashboardHandler.General).
		GET("/admissions", dashboardHandler.Admissions).
		GET("/beds", dashboardHandler.Beds).
		GET("/encounters", dashboardHandler.Encounters)
	return g
}
