package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/screentime/internal/domain"
	apperrors "github.com/pscheid92/screentime/internal/platform/errors"
)

const (
	errInvalidPayload = "invalid_payload"
	detailBody        = "body"

	scopeAll = "all"
	scopeMe  = "me"
)

type invalidPayloadResponse struct {
	OK      bool              `json:"ok"`
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

type sessionRef struct {
	ID string `json:"id"`
}

type ingestedSession struct {
	ID      string `json:"id"`
	Created bool   `json:"created"`
}

type ingestResponse struct {
	OK       bool              `json:"ok"`
	Session  sessionRef        `json:"session"`
	Sessions []ingestedSession `json:"sessions"`
}

type retentionResponse struct {
	Deleted int64 `json:"deleted"`
}

func (s *Server) handleIngest(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := readBody(c)
	if err != nil {
		return err
	}

	payloads, details := s.decodeSessions(body)
	if len(details) > 0 {
		return respondInvalidPayload(c, details)
	}

	inputs := make([]domain.SessionInput, len(payloads))
	for i, p := range payloads {
		inputs[i] = p.toInput()
	}

	results, err := s.ingest.Ingest(ctx, s.optionalUserID(c), inputs)
	if errors.Is(err, domain.ErrEmptyBatch) {
		return respondInvalidPayload(c, map[string]string{detailBody: "at least one session is required"})
	}
	if err != nil {
		return apperrors.InternalError("failed to store screen sessions", err).WithField("batch_size", len(inputs))
	}

	resp := ingestResponse{OK: true, Sessions: make([]ingestedSession, len(results))}
	for i, r := range results {
		resp.Sessions[i] = ingestedSession{ID: r.ID.String(), Created: r.Created}
	}
	if n := len(resp.Sessions); n > 0 {
		resp.Session = sessionRef{ID: resp.Sessions[n-1].ID}
	}

	if err := c.JSON(http.StatusCreated, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// decodeSessions accepts a single record or an array of records. Field
// errors are keyed "<field>" for a single record and "<index>.<field>" for
// an array.
func (s *Server) decodeSessions(body []byte) ([]sessionPayload, map[string]string) {
	details := make(map[string]string)

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		details[detailBody] = "request body is required"
		return nil, details
	}

	if body[0] != '[' {
		var p sessionPayload
		if err := json.Unmarshal(body, &p); err != nil {
			addDecodeError(details, err)
			return nil, details
		}
		_ = s.validator.Struct(p, "", details)
		return []sessionPayload{p}, details
	}

	var batch []sessionPayload
	if err := json.Unmarshal(body, &batch); err != nil {
		addDecodeError(details, err)
		return nil, details
	}
	if len(batch) == 0 {
		details[detailBody] = "at least one session is required"
		return nil, details
	}
	for i, p := range batch {
		_ = s.validator.Struct(p, indexPrefix(i), details)
	}
	return batch, details
}

// addDecodeError reports type mismatches by field. Anything else, including
// unparsable timestamps, is reported against the body.
func addDecodeError(details map[string]string, err error) {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		details[typeErr.Field] = typeErr.Field + " has an invalid type"
		return
	}
	details[detailBody] = "malformed JSON"
}

func respondInvalidPayload(c echo.Context, details map[string]string) error {
	resp := invalidPayloadResponse{Error: errInvalidPayload, Details: details}
	if err := c.JSON(http.StatusBadRequest, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleSummary(c echo.Context) error {
	ctx := c.Request().Context()

	q := domain.SummaryQuery{Days: domain.DefaultSummaryDays}
	if raw := c.QueryParam("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil {
			return apperrors.ValidationError("days must be an integer").WithField("days", raw)
		}
		q.Days = days
	}
	if err := q.Validate(); err != nil {
		return apperrors.ValidationError(fmt.Sprintf("days must be between 1 and %d", domain.MaxSummaryDays)).WithField("days", q.Days)
	}

	switch scope := c.QueryParam("scope"); scope {
	case "", scopeAll:
	case scopeMe:
		userID := s.optionalUserID(c)
		if userID == nil {
			return apperrors.UnauthorizedError("sign in to view your own screen time")
		}
		q.UserID = userID
	default:
		return apperrors.ValidationError("scope must be all or me").WithField("scope", scope)
	}

	summary, err := s.summaries.Summary(ctx, q)
	if err != nil {
		return apperrors.InternalError("failed to compute screen time summary", err).
			WithField("days", q.Days).
			WithField("scope", q.Scope())
	}

	if err := c.JSON(http.StatusOK, summary); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleRetention(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := readBody(c)
	if err != nil {
		return err
	}

	var payload retentionPayload
	if body = bytes.TrimSpace(body); len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			return respondRetentionInvalid(c)
		}
	}
	if err := s.validator.Struct(payload, "", make(map[string]string)); err != nil {
		return respondRetentionInvalid(c)
	}

	deleted, err := s.retention.Purge(ctx, payload.toPolicy())
	if errors.Is(err, domain.ErrInvalidRetentionDays) {
		return respondRetentionInvalid(c)
	}
	if err != nil {
		return apperrors.InternalError("failed to purge screen sessions", err)
	}

	if err := c.JSON(http.StatusOK, retentionResponse{Deleted: deleted}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func respondRetentionInvalid(c echo.Context) error {
	if err := c.JSON(http.StatusBadRequest, map[string]string{"error": errInvalidPayload}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// readBody reads the request body. Oversized bodies surface as the body
// limit middleware's 413.
func readBody(c echo.Context) ([]byte, error) {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return nil, httpErr
		}
		return nil, apperrors.ValidationError("unable to read request body")
	}
	return body, nil
}
