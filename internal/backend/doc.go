// Package backend implements the HTTP client for the slideshow backend API.
//
// The client covers project and segment retrieval, partial segment/project
// updates, image attachment, audio generation jobs (single segment and bulk),
// task status polling, and render start/status/cancel. Responses are decoded
// into the DTO types in types.go; transport and HTTP failures are classified
// into the sentinel errors in errors.go so orchestrators can distinguish
// validation problems, conflicts, and transient faults without inspecting
// status codes themselves.
package backend
