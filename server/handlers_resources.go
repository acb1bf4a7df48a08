package server

import (
	"net/http"

	"github.com/jrsteele09/fleet-console/fleetapi"
)

type messageBody struct {
	Message string `json:"message"`
}

// listHandler serves one page of a fleet API listing.
func listHandler[T any](list func(con *Console, r *http.Request) (fleetapi.Page[T], error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := list(consoleFrom(r), r)
		if err != nil {
			handleAPIError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

// getHandler serves a single fleet API resource.
func getHandler[T any](get func(con *Console, r *http.Request) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := get(consoleFrom(r), r)
		if err != nil {
			handleAPIError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, fleetapi.Envelope[T]{Data: v})
	}
}

// actionHandler runs a bodiless command and answers with message.
func actionHandler(act func(con *Console, r *http.Request) error, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := act(consoleFrom(r), r); err != nil {
			handleAPIError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, messageBody{Message: message})
	}
}

// bodyHandler decodes and validates a JSON command, runs it and answers
// with its result.
func bodyHandler[In, Out any](call func(con *Console, r *http.Request, in In) (Out, error), message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in In
		if err := decodeJSON(r, &in); err != nil {
			badRequest(w, err)
			return
		}

		con := consoleFrom(r)
		if err := con.Flow.Validate(in); err != nil {
			handleAPIError(w, r, err)
			return
		}

		out, err := call(con, r, in)
		if err != nil {
			handleAPIError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, fleetapi.Envelope[Out]{Message: message, Data: out})
	}
}

// noResult adapts a command without a result to bodyHandler.
func noResult[In any](call func(con *Console, r *http.Request, in In) error) func(*Console, *http.Request, In) (struct{}, error) {
	return func(con *Console, r *http.Request, in In) (struct{}, error) {
		return struct{}{}, call(con, r, in)
	}
}

// invalidQuery answers a query parameter outside its allowed values.
func invalidQuery(w http.ResponseWriter, name string) {
	writeJSONError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid "+name)
}
