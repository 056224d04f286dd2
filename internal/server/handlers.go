package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amishk599/resumetailor/internal/compile"
	"github.com/amishk599/resumetailor/internal/model"
	"github.com/amishk599/resumetailor/internal/pipeline"
)

const defaultListLimit = 20

type sessionResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Role           string    `json:"role,omitempty"`
	JobDescription string    `json:"jobDescription,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type revisionResponse struct {
	Seq         int        `json:"seq"`
	Kind        model.Kind `json:"kind"`
	Instruction string     `json:"instruction,omitempty"`
	Document    string     `json:"document"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func toSession(s model.Session) sessionResponse {
	return sessionResponse{
		ID:             s.ID,
		Name:           s.Name,
		Role:           s.Role,
		JobDescription: s.JobDescription,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func toRevision(r model.Revision) revisionResponse {
	return revisionResponse{
		Seq:         r.Seq,
		Kind:        r.Kind,
		Instruction: r.Instruction,
		Document:    r.Content,
		CreatedAt:   r.CreatedAt,
	}
}

func (s *Server) template(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"document": s.deps.Template})
}

// runOperation is the stateless endpoint: the caller supplies every field
// and gets the cleaned document back.
func (s *Server) runOperation(c *gin.Context) {
	var op model.Operation
	if err := c.ShouldBindJSON(&op); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if _, err := model.ParseKind(string(op.Kind)); err != nil {
		badRequest(c, err.Error())
		return
	}

	doc, err := s.deps.Runner.Run(c.Request.Context(), op)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document": doc})
}

type createSessionRequest struct {
	Name           string `json:"name"`
	Document       string `json:"document"`
	Role           string `json:"role"`
	JobDescription string `json:"jobDescription"`
}

func (s *Server) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	base := req.Document
	if strings.TrimSpace(base) == "" {
		base = s.deps.Template
	}
	sess, err := s.deps.Store.CreateSession(c.Request.Context(), model.Session{
		Name:           strings.TrimSpace(req.Name),
		Role:           strings.TrimSpace(req.Role),
		JobDescription: strings.TrimSpace(req.JobDescription),
	}, base)
	if err != nil {
		s.fail(c, err)
		return
	}
	rev, err := s.deps.Store.CurrentRevision(c.Request.Context(), sess.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": toSession(sess), "revision": toRevision(rev)})
}

func (s *Server) listSessions(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}

	sessions, err := s.deps.Store.ListSessions(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]sessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, toSession(sess))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

func (s *Server) getSession(c *gin.Context) {
	ctx := c.Request.Context()
	sess, err := s.deps.Store.GetSession(ctx, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	revs, err := s.deps.Store.Revisions(ctx, sess.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]revisionResponse, 0, len(revs))
	for _, r := range revs {
		out = append(out, toRevision(r))
	}
	c.JSON(http.StatusOK, gin.H{"session": toSession(sess), "revisions": out})
}

// operationRequest carries the auxiliary fields of a session operation.
// The document always comes from the session's current revision.
type operationRequest struct {
	JobDescription string `json:"jobDescription"`
	Instruction    string `json:"instruction"`
	Role           string `json:"role"`
}

func (s *Server) sessionOperation(kind model.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req operationRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, "invalid request body")
				return
			}
		}

		id := c.Param("id")
		unlock := s.lockSession(id)
		defer unlock()

		ctx := c.Request.Context()
		sess, err := s.deps.Store.GetSession(ctx, id)
		if err != nil {
			s.fail(c, err)
			return
		}
		cur, err := s.deps.Store.CurrentRevision(ctx, id)
		if err != nil {
			s.fail(c, err)
			return
		}

		st := pipeline.State{Document: cur.Content, Role: sess.Role, JobDescription: sess.JobDescription}
		if kind == model.KindTailor {
			// Tailoring always starts over from the base document so
			// successive job descriptions do not compound.
			base, err := s.baseRevision(ctx, id)
			if err != nil {
				s.fail(c, err)
				return
			}
			st.Document = base.Content
		}
		op := model.Operation{
			Kind:           kind,
			JobDescription: req.JobDescription,
			Instruction:    req.Instruction,
			Role:           req.Role,
		}
		next, err := s.deps.Runner.Apply(ctx, st, op)
		if err != nil {
			s.fail(c, err)
			return
		}

		rev, err := s.deps.Store.AppendRevision(ctx, model.Revision{
			SessionID:   id,
			Kind:        kind,
			Instruction: strings.TrimSpace(req.Instruction),
			Content:     next.Document,
		})
		if err != nil {
			s.fail(c, err)
			return
		}
		if kind == model.KindTailor {
			sess.Role, sess.JobDescription = next.Role, next.JobDescription
			if err := s.deps.Store.UpdateSession(ctx, sess); err != nil {
				s.fail(c, err)
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"session": toSession(sess), "revision": toRevision(rev)})
	}
}

// baseRevision returns revision 0, the document the session started from.
func (s *Server) baseRevision(ctx context.Context, id string) (model.Revision, error) {
	revs, err := s.deps.Store.Revisions(ctx, id)
	if err != nil {
		return model.Revision{}, err
	}
	for _, r := range revs {
		if r.Kind == model.KindBase {
			return r, nil
		}
	}
	return model.Revision{}, model.ErrNotFound
}

type revertRequest struct {
	Seq *int `json:"seq" binding:"required"`
}

func (s *Server) revert(c *gin.Context) {
	var req revertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "seq is required")
		return
	}

	id := c.Param("id")
	unlock := s.lockSession(id)
	defer unlock()

	rev, err := s.deps.Store.Revert(c.Request.Context(), id, *req.Seq)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revision": toRevision(rev)})
}

// revision returns the revision selected by the optional ?seq= query, or
// the current one.
func (s *Server) revision(c *gin.Context) (model.Revision, bool) {
	ctx := c.Request.Context()
	id := c.Param("id")

	raw := c.Query("seq")
	if raw == "" {
		rev, err := s.deps.Store.CurrentRevision(ctx, id)
		if err != nil {
			s.fail(c, err)
			return model.Revision{}, false
		}
		return rev, true
	}

	seq, err := strconv.Atoi(raw)
	if err != nil || seq < 0 {
		badRequest(c, "seq must be a non-negative integer")
		return model.Revision{}, false
	}
	revs, err := s.deps.Store.Revisions(ctx, id)
	if err != nil {
		s.fail(c, err)
		return model.Revision{}, false
	}
	for _, r := range revs {
		if r.Seq == seq {
			return r, true
		}
	}
	abort(c, http.StatusNotFound, "not_found", "revision "+raw+" not found", nil)
	return model.Revision{}, false
}

func (s *Server) pdf(c *gin.Context) {
	if s.deps.Compiler == nil {
		abort(c, http.StatusNotImplemented, "unavailable", "PDF compilation is not configured", nil)
		return
	}
	rev, ok := s.revision(c)
	if !ok {
		return
	}

	pdf, err := s.deps.Compiler.Compile(c.Request.Context(), rev.Content)
	if err != nil {
		s.fail(c, err)
		return
	}
	if pages, err := compile.PageCount(pdf); err == nil {
		c.Header("X-Page-Count", strconv.Itoa(pages))
	} else {
		s.logger.Warn("could not count pages", "error", err)
	}
	c.Header("Content-Disposition", `inline; filename="resume.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (s *Server) overleaf(c *gin.Context) {
	if s.deps.Editor == nil {
		abort(c, http.StatusNotImplemented, "unavailable", "Overleaf hand-off is not configured", nil)
		return
	}
	rev, ok := s.revision(c)
	if !ok {
		return
	}
	page, err := s.deps.Editor.Page(rev.Content)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}
