package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/fillbook/internal/domain"
	"github.com/alanyoungcy/fillbook/internal/service"
)

// BookService answers position, exposure and PnL queries.
type BookService interface {
	Position() domain.Position
	Exposure() domain.BookExposure
	OwnBook() service.OwnBook
	PnL() (domain.PnL, error)
}

// BookHandler serves the trader's own book.
type BookHandler struct {
	books  BookService
	logger *slog.Logger
}

// NewBookHandler creates a BookHandler.
func NewBookHandler(books BookService, logger *slog.Logger) *BookHandler {
	return &BookHandler{books: books, logger: logger}
}

// GetPosition returns the net position.
// GET /api/position
func (h *BookHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.books.Position())
}

// GetExposure returns resting quantity per side.
// GET /api/exposure
func (h *BookHandler) GetExposure(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.books.Exposure())
}

// GetBook returns position and exposure together.
// GET /api/book
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.books.OwnBook())
}

// GetPnL marks the position to the last trade, or answers 409 before any
// trade has printed.
// GET /api/pnl
func (h *BookHandler) GetPnL(w http.ResponseWriter, r *http.Request) {
	pnl, err := h.books.PnL()
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to compute pnl")
		return
	}
	writeJSON(w, http.StatusOK, pnl)
}
