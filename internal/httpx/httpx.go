// Package httpx holds the response plumbing shared by every query
// endpoint (C7) and the supervisor's router (C10): the fixed header
// block, JSONP wrapping, and the plain-text error bodies the original
// moowapp_server.cpp writes ahead of any JSON encoding.
package httpx

import "net/http"

// writeHeaders sets the fixed non-standard header block every endpoint
// responds with (spec.md §6), in place of net/http's default
// Content-Type sniffing.
func writeHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "application/x-javascript; charset=UTF-8")
	h.Set("Cache", "no-cache")
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Connection", "close")
}

// WriteJSON writes the standard header block followed by body, wrapped
// as JSONP ("callback(...)") when callback is non-empty.
func WriteJSON(w http.ResponseWriter, callback string, body []byte) {
	writeHeaders(w)
	w.WriteHeader(http.StatusOK)
	if callback != "" {
		w.Write([]byte(callback + "("))
		w.Write(body)
		w.Write([]byte(")"))
		return
	}
	w.Write(body)
}

// WriteMissingParam writes the plain-text "Missing parameter: X" body the
// original emits for a missing required query parameter (spec.md §7) —
// written before JSONP wrapping is considered, matching moowapp_server.cpp
// where every parameter check returns before handle_jsonp runs.
func WriteMissingParam(w http.ResponseWriter, name string) {
	writeHeaders(w)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Missing parameter: " + name))
}

// WriteNotFound writes the catch-all error body for any path the router
// does not recognize (spec.md §6, "any other path -> error body").
func WriteNotFound(w http.ResponseWriter) {
	writeHeaders(w)
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte("Error: [404]"))
}
