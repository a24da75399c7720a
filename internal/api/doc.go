// Package api defines the wire DTOs and service layer between the HTTP
// surface and the domain packages. Handlers stay thin; services translate
// between transport and domain types.
package api
