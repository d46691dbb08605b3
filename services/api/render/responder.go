package render

import (
	"net/http"

	"github.com/go-chi/render"
)

// Envelope is the uniform response body for every endpoint.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`

	HTTPStatusCode int `json:"-"`
}

// Render implements the chi render.Renderer interface.
func (e *Envelope) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

// OK responds with 200 and a success envelope.
func OK(w http.ResponseWriter, r *http.Request, message string, data interface{}) {
	render.Render(w, r, &Envelope{
		Success:        true,
		Message:        message,
		Data:           data,
		HTTPStatusCode: http.StatusOK,
	})
}

// Created responds with 201 and a success envelope.
func Created(w http.ResponseWriter, r *http.Request, message string, data interface{}) {
	render.Render(w, r, &Envelope{
		Success:        true,
		Message:        message,
		Data:           data,
		HTTPStatusCode: http.StatusCreated,
	})
}

func failure(status int, message string) render.Renderer {
	return &Envelope{
		Success:        false,
		Message:        message,
		HTTPStatusCode: status,
	}
}

func ErrBadRequest(message string) render.Renderer {
	return failure(http.StatusBadRequest, message)
}

func ErrUnauthorized(message string) render.Renderer {
	return failure(http.StatusUnauthorized, message)
}

func ErrForbidden(message string) render.Renderer {
	return failure(http.StatusForbidden, message)
}

func ErrNotFound(message string) render.Renderer {
	return failure(http.StatusNotFound, message)
}

func ErrConflict(message string) render.Renderer {
	return failure(http.StatusConflict, message)
}

// ErrInternal reports an unexpected failure with the underlying message.
func ErrInternal(err error) render.Renderer {
	msg := "internal server error"
	if err != nil {
		msg = err.Error()
	}
	return failure(http.StatusInternalServerError, msg)
}
