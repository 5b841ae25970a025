// Package erp holds the domain model of the ERP integration gateway: the tenant
// connection configuration parsed from an integration record, the closed set of
// supported engines, the error taxonomy shared by every gateway layer, the
// cache TTL table per data domain and the read-only statement guard.
//
// The ERP is the hospital's own legacy operational database. It is external to
// the platform and is only ever read, through pre-approved named queries.
package erp
