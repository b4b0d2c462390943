package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/spotter-social/spotter/automod"
	"github.com/spotter-social/spotter/automod/audit"
	"github.com/spotter-social/spotter/automod/catalog"
	"github.com/spotter-social/spotter/automod/countstore"
	"github.com/spotter-social/spotter/automod/engine"

	"github.com/carlmjohnson/versioninfo"
	"github.com/labstack/echo/v4"
)

type GenericError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (srv *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	var errorMessage string
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		errorMessage = fmt.Sprintf("%s", he.Message)
	}
	if code >= 500 {
		srv.logger.Warn("spotter-http-internal-error", "err", err)
	}
	if !c.Response().Committed {
		c.JSON(code, GenericError{Error: "InternalError", Message: errorMessage})
	}
}

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	return c.JSON(200, map[string]string{
		"status":  "ok",
		"version": versioninfo.Short(),
	})
}

func badRequest(c echo.Context, name, msg string) error {
	return c.JSON(http.StatusBadRequest, GenericError{Error: name, Message: msg})
}

func queryLimit(c echo.Context, def int) int {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		return def
	}
	return min(limit, 500)
}

func validSubmission(sub *automod.Submission) error {
	switch {
	case sub.ContentRef == "":
		return errors.New("contentRef is required")
	case sub.AuthorID == "":
		return errors.New("authorId is required")
	case sub.Context.ContentType == "":
		return errors.New("context.contentType is required")
	}
	switch sub.Context.ContentType {
	case catalog.ContentPost, catalog.ContentComment, catalog.ContentMessage, catalog.ContentProfile:
	default:
		return fmt.Errorf("unknown content type %q", sub.Context.ContentType)
	}
	if sub.Context.AuthorRole == "" {
		sub.Context.AuthorRole = catalog.RoleMember
	}
	if sub.Context.Visibility == "" {
		sub.Context.Visibility = catalog.VisibilityPublic
	}
	return nil
}

// HandleModerate is the caller contract: content is only published on a 200 with disposition "publish".
func (srv *Server) HandleModerate(c echo.Context) error {
	ctx := c.Request().Context()

	var sub automod.Submission
	if err := c.Bind(&sub); err != nil {
		return badRequest(c, "BadRequestBody", fmt.Sprintf("invalid submission body: %s", err))
	}
	if err := validSubmission(&sub); err != nil {
		return badRequest(c, "InvalidSubmission", err.Error())
	}

	out, err := srv.engine.Submit(ctx, sub)
	switch {
	case errors.Is(err, automod.ErrPending):
		return c.JSON(http.StatusGatewayTimeout, out)
	case err != nil && out != nil && out.Verdict != nil:
		// verdict stands, but the account state is unknown
		srv.logger.Error("enforcement failed", "contentRef", sub.ContentRef, "author", sub.AuthorID, "err", err)
		return c.JSON(http.StatusServiceUnavailable, out)
	case err != nil:
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (srv *Server) HandleAccountStatus(c echo.Context) error {
	view, err := srv.engine.AccountStatus(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

type adminAccountView struct {
	Status     any            `json:"status"`
	Violations map[string]int `json:"violations"`
}

func (srv *Server) HandleAdminAccount(c echo.Context) error {
	ctx := c.Request().Context()
	userID := c.Param("id")
	view, err := srv.engine.AccountStatus(ctx, userID)
	if err != nil {
		return err
	}
	counts, err := srv.engine.GetCounts(ctx, engine.CounterAuthorViolations, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, adminAccountView{Status: view, Violations: counts})
}

func (srv *Server) HandleAccountHistory(c echo.Context) error {
	recs, err := srv.engine.Audit.Store.History(c.Request().Context(), c.Param("id"), queryLimit(c, 50))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"records": recs})
}

func (srv *Server) HandleReviewQueue(c echo.Context) error {
	recs, err := srv.engine.Audit.Store.ReviewQueue(c.Request().Context(), queryLimit(c, 100))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"records": recs})
}

func (srv *Server) HandleGetAudit(c echo.Context) error {
	ctx := c.Request().Context()
	rec, err := srv.engine.Audit.Store.Get(ctx, c.Param("id"))
	if errors.Is(err, audit.ErrNotFound) {
		return c.JSON(http.StatusNotFound, GenericError{Error: "RecordNotFound", Message: err.Error()})
	} else if err != nil {
		return err
	}
	related, err := srv.engine.Audit.Store.Related(ctx, rec.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"record": rec, "related": related})
}

func (srv *Server) HandleReview(c echo.Context) error {
	var req automod.ReviewRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "BadRequestBody", fmt.Sprintf("invalid review body: %s", err))
	}
	req.AuditID = c.Param("id")

	out, err := srv.engine.Review(c.Request().Context(), req)
	switch {
	case errors.Is(err, engine.ErrInvalidReview):
		return badRequest(c, "InvalidReview", err.Error())
	case errors.Is(err, audit.ErrNotFound):
		return c.JSON(http.StatusNotFound, GenericError{Error: "RecordNotFound", Message: err.Error()})
	case errors.Is(err, engine.ErrAlreadyReviewed), errors.Is(err, engine.ErrNotReviewable):
		return c.JSON(http.StatusConflict, GenericError{Error: "NotReviewable", Message: err.Error()})
	case err != nil && out != nil:
		// review recorded, some reversal failed
		srv.logger.Error("review reversal incomplete", "audit", req.AuditID, "err", err)
		return c.JSON(http.StatusServiceUnavailable, out)
	case err != nil:
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (srv *Server) HandleListRules(c echo.Context) error {
	return c.JSON(http.StatusOK, catalog.File{Rules: srv.engine.Rules.Load().Definitions()})
}

func (srv *Server) HandleReloadRules(c echo.Context) error {
	ctx := c.Request().Context()
	if srv.config.SetsFile != "" {
		sets, ok := srv.engine.Sets.(interface{ LoadFromFile(string) error })
		if ok {
			if err := sets.LoadFromFile(srv.config.SetsFile); err != nil {
				return badRequest(c, "InvalidSets", err.Error())
			}
		}
		if err := srv.engine.ReloadVocabulary(ctx); err != nil {
			return err
		}
	}
	if srv.config.RulesFile == "" {
		return c.JSON(http.StatusOK, map[string]any{"rules": srv.engine.Rules.Load().Len(), "reloaded": false})
	}
	cat, err := srv.engine.ReloadRules(srv.config.RulesFile)
	if err != nil {
		return badRequest(c, "InvalidRuleCatalog", err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"rules": cat.Len(), "reloaded": true})
}

func (srv *Server) HandleReconcile(c echo.Context) error {
	report, err := srv.engine.Reconcile(c.Request().Context())
	if errors.Is(err, engine.ErrNoFetcher) {
		return badRequest(c, "NotConfigured", err.Error())
	}
	if err != nil && report == nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}

func (srv *Server) HandleCounts(c echo.Context) error {
	name, val := c.QueryParam("name"), c.QueryParam("value")
	if name == "" || val == "" {
		return badRequest(c, "InvalidRequest", "name and value query params are required")
	}
	get := srv.engine.GetCounts
	if c.QueryParam("distinct") == "true" {
		get = srv.engine.GetCountsDistinct
	}
	counts, err := get(c.Request().Context(), name, val)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"name": name, "value": val, "periods": countstore.Periods, "counts": counts})
}
