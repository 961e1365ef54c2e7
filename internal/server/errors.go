package server

import (
	"errors"
	"net/http"

	"github.com/tokkyo-ai/tokkyo/internal/agent"
	"github.com/tokkyo-ai/tokkyo/internal/claimgraph"
	"github.com/tokkyo-ai/tokkyo/internal/lifecycle"
	"github.com/tokkyo-ai/tokkyo/internal/model"
	"github.com/tokkyo-ai/tokkyo/internal/service/export"
	"github.com/tokkyo-ai/tokkyo/internal/service/qa"
	"github.com/tokkyo-ai/tokkyo/internal/service/specs"
	"github.com/tokkyo-ai/tokkyo/internal/storage"
)

// respondServiceError maps a domain error to its HTTP status and error code.
// Every typed error the services surface lands here exactly once, so the
// wire taxonomy cannot drift between handlers.
func (h *Handlers) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		invalidTransition *lifecycle.InvalidTransitionError
		missingApproval   *storage.MissingApprovalError
		nodeNotFound      *claimgraph.NodeNotFoundError
		unknownDep        *claimgraph.UnknownDependencyError
		selfDep           *claimgraph.SelfDependencyError
		depNeedsDep       *claimgraph.DependentRequiresDependencyError
		circularDep       *claimgraph.CircularDependencyError
		paragraphNotFound *specs.ParagraphNotFoundError
		blocked           *qa.BlockedByErrorsError
		notLocked         *export.NotLockedError
		agentFailure      *agent.FailureError
	)

	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "resource not found")
	case errors.As(err, &invalidTransition):
		writeError(w, r, http.StatusConflict, model.ErrCodeInvalidTransition, err.Error())
	case errors.As(err, &missingApproval):
		writeError(w, r, http.StatusConflict, model.ErrCodeMissingApproval, err.Error())
	case errors.As(err, &nodeNotFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, err.Error())
	case errors.As(err, &unknownDep):
		writeError(w, r, http.StatusUnprocessableEntity, model.ErrCodeUnknownDependency, err.Error())
	case errors.As(err, &selfDep):
		writeError(w, r, http.StatusUnprocessableEntity, model.ErrCodeSelfDependency, err.Error())
	case errors.As(err, &depNeedsDep):
		writeError(w, r, http.StatusUnprocessableEntity, model.ErrCodeDependentNeedsDep, err.Error())
	case errors.As(err, &circularDep):
		writeError(w, r, http.StatusUnprocessableEntity, model.ErrCodeCircularDependency, err.Error())
	case errors.Is(err, claimgraph.ErrNoChange), errors.Is(err, specs.ErrNoChange):
		writeError(w, r, http.StatusUnprocessableEntity, model.ErrCodeNoChange, err.Error())
	case errors.As(err, &paragraphNotFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, err.Error())
	case errors.As(err, &blocked):
		writeError(w, r, http.StatusConflict, model.ErrCodeBlockedByErrors, err.Error())
	case errors.As(err, &notLocked):
		writeError(w, r, http.StatusConflict, model.ErrCodeInvalidTransition, err.Error())
	case errors.As(err, &agentFailure):
		writeError(w, r, http.StatusBadGateway, model.ErrCodeAgentFailure, err.Error())
	default:
		h.logger.Error("unhandled service error",
			"error", err, "request_id", RequestIDFromContext(r.Context()))
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal error")
	}
}
