// Package models contains GORM persistence models for the platform database.
// Models stay separate from domain types; ToDomain and FromDomain convert.
package models
