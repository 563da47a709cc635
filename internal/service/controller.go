package service

import (
	"io"

	"procrun/internal/proc/program"
	apperr "procrun/pkg/errors"
	"procrun/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// ProgramController handles program submission and polling.
type ProgramController struct {
	registry *Registry
}

// NewProgramController creates a new controller.
func NewProgramController(registry *Registry) *ProgramController {
	return &ProgramController{registry: registry}
}

// Submit accepts a spec document and starts the program.
func (h *ProgramController) Submit(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, "read request body failed")
		return
	}
	spec, err := program.FromDocument(body)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := h.registry.Submit(spec)
	if err != nil {
		response.Error(c, apperr.GetError(err))
		return
	}
	response.Success(c, gin.H{"id": id})
}

// Get returns the state of one program and, once done, its result.
func (h *ProgramController) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, "Invalid program id")
		return
	}
	entry, err := h.registry.Get(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	payload := gin.H{"id": entry.ID, "state": entry.State}
	if entry.Result != nil {
		payload["result"] = entry.Result
	}
	if entry.Err != "" {
		payload["error"] = entry.Err
	}
	response.Success(c, payload)
}
