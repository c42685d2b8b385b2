package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ovalfantasy/ovalsync/internal/lineup"
	"github.com/ovalfantasy/ovalsync/internal/socialstats"
)

type lineupQuery struct {
	MatchID string `validate:"required,match_id"`
}

type collectQuery struct {
	Date      string   `validate:"omitempty,datetime=2006-01-02"`
	Platforms []string `validate:"dive,platform"`
	Persist   bool
}

type historyQuery struct {
	Platform string `validate:"omitempty,platform"`
	From     string `validate:"omitempty,datetime=2006-01-02"`
	To       string `validate:"omitempty,datetime=2006-01-02"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("match_id", func(fl validator.FieldLevel) bool {
		return lineup.ValidateMatchID(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("platform", func(fl validator.FieldLevel) bool {
		return socialstats.IsPlatform(fl.Field().String())
	})
	return v
}

func (s *Server) getLineup(w http.ResponseWriter, r *http.Request) {
	if s.opts.Lineups == nil {
		writeError(w, s.logger, http.StatusServiceUnavailable, kindUnavailable, "lineup scraping is not configured")
		return
	}
	q := r.URL.Query()
	req := lineupQuery{MatchID: strings.TrimSpace(q.Get("match_id"))}
	if req.MatchID == "" {
		req.MatchID = strings.TrimSpace(q.Get("matchId"))
	}
	if err := s.validate.StructCtx(r.Context(), req); err != nil {
		writeError(w, s.logger, http.StatusBadRequest, kindInvalidRequest, "match_id must be 1-64 letters, digits, '-' or '_'")
		return
	}

	result, err := s.opts.Lineups.Scrape(r.Context(), req.MatchID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	body, err := sonic.Marshal(result)
	if err != nil {
		s.logger.Error("marshal lineup", zap.Error(err))
		writeError(w, s.logger, http.StatusInternalServerError, kindUnknown, "internal server error")
		return
	}
	if etag, ok := s.lineupETag(result); ok {
		w.Header().Set("ETag", etag)
		if etagMatches(r.Header.Get("If-None-Match"), etag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	writeBody(w, s.logger, http.StatusOK, body)
}

// lineupETag tags the lineup's content so rescrapes of an unchanged page match.
func (s *Server) lineupETag(l lineup.Lineup) (string, bool) {
	if s.opts.Hasher == nil {
		return "", false
	}
	content, err := sonic.Marshal(l.Content())
	if err != nil {
		return "", false
	}
	digest, err := s.opts.Hasher.Hash(content)
	if err != nil {
		return "", false
	}
	return `"` + digest + `"`, true
}

func (s *Server) collectStats(w http.ResponseWriter, r *http.Request) {
	if s.opts.Stats == nil {
		writeError(w, s.logger, http.StatusServiceUnavailable, kindUnavailable, "stats collection is not configured")
		return
	}
	q := r.URL.Query()
	req := collectQuery{
		Date:      strings.TrimSpace(q.Get("date")),
		Platforms: splitList(q["platform"]),
	}
	if raw := strings.TrimSpace(q.Get("persist")); raw != "" {
		persist, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, s.logger, http.StatusBadRequest, kindInvalidRequest, "persist must be true or false")
			return
		}
		req.Persist = persist
	}
	if err := s.validate.StructCtx(r.Context(), req); err != nil {
		writeError(w, s.logger, http.StatusBadRequest, kindInvalidRequest, validationMessage(err))
		return
	}

	report, err := s.opts.Stats.Collect(r.Context(), socialstats.CollectOptions{
		Date:      req.Date,
		Platforms: req.Platforms,
		Persist:   req.Persist,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, report)
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	if s.opts.Stats == nil {
		writeError(w, s.logger, http.StatusServiceUnavailable, kindUnavailable, "stats collection is not configured")
		return
	}
	q := r.URL.Query()
	req := historyQuery{
		Platform: strings.TrimSpace(q.Get("platform")),
		From:     strings.TrimSpace(q.Get("from")),
		To:       strings.TrimSpace(q.Get("to")),
	}
	if err := s.validate.StructCtx(r.Context(), req); err != nil {
		writeError(w, s.logger, http.StatusBadRequest, kindInvalidRequest, validationMessage(err))
		return
	}

	records, err := s.opts.Stats.History(r.Context(), socialstats.HistoryQuery{
		Platform: req.Platform,
		From:     req.From,
		To:       req.To,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, map[string]any{"records": records})
}

// splitList flattens repeated and comma-separated query values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "platform":
		return "unknown platform " + strconv.Quote(fe.Value().(string))
	case "datetime":
		return strings.ToLower(fe.Field()) + " must be YYYY-MM-DD"
	default:
		return "invalid " + strings.ToLower(fe.Field())
	}
}
