package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"enrich/internal/catalog"
	"enrich/internal/frame"
	"enrich/internal/match"
)

// uploadResponse describes the accepted dataset back to the client.
type uploadResponse struct {
	Columns []string `json:"columns"`
	Rows    int      `json:"rows"`
	Preview string   `json:"preview"`
}

func (s *Server) upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field 'file' is required")
	}

	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".csv") {
		perr := &frame.ParseError{Name: fh.Filename, Reason: "only .csv files are accepted"}
		return echo.NewHTTPError(http.StatusBadRequest, perr.Error())
	}

	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot open upload")
	}
	defer src.Close()

	raw, err := io.ReadAll(src)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read upload")
	}

	f, err := frame.DecodeCSV(raw)
	if err != nil {
		perr := &frame.ParseError{Name: fh.Filename, Reason: "unreadable CSV content", Err: err}
		return echo.NewHTTPError(http.StatusBadRequest, perr.Error())
	}
	if f.NumColumns() == 0 {
		perr := &frame.ParseError{Name: fh.Filename, Reason: "no columns detected"}
		return echo.NewHTTPError(http.StatusBadRequest, perr.Error())
	}

	s.sessions.SetDataset(s.sessionID(c), f)

	return c.JSON(http.StatusOK, uploadResponse{
		Columns: f.Columns,
		Rows:    f.NumRows(),
		Preview: f.Preview(10),
	})
}

func (s *Server) tags(c echo.Context) error {
	records, err := s.store.Load(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"tags": catalog.Tags(records)})
}

func (s *Server) keywords(c echo.Context) error {
	records, err := s.store.Load(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"keywords": catalog.AllKeywords(records)})
}

// matchRequest narrows the catalog before asking for a suggestion.
type matchRequest struct {
	Tag      string   `json:"tag"`
	Keywords []string `json:"keywords"`
}

// matchResponse reports the match and join outcome. Matched and Joined
// are separate: the backend may pick a dataset whose join then fails, and
// that is still useful feedback.
type matchResponse struct {
	Matched bool   `json:"matched"`
	Joined  bool   `json:"joined"`
	Reason  string `json:"reason,omitempty"`

	Dataset       string   `json:"dataset,omitempty"`
	UserColumn    string   `json:"user_column,omitempty"`
	CatalogColumn string   `json:"catalog_column,omitempty"`
	AddedColumns  []string `json:"added_columns,omitempty"`
	Rows          int      `json:"rows,omitempty"`
	Preview       string   `json:"preview,omitempty"`
}

func (s *Server) match(c echo.Context) error {
	var req matchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	id := s.sessionID(c)
	user := s.sessions.Dataset(id)
	if user == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "no dataset uploaded in this session")
	}

	ctx := c.Request().Context()
	records, err := s.store.Load(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	candidates := catalog.Filter(records, req.Tag, req.Keywords)
	if len(candidates) == 0 {
		return c.JSON(http.StatusOK, matchResponse{Reason: "no catalog datasets match the filter"})
	}

	sg, err := s.suggester.Suggest(ctx, user, candidates)
	if errors.Is(err, match.ErrNoMatch) {
		return c.JSON(http.StatusOK, matchResponse{Reason: "no joinable dataset found"})
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	chosen := candidates[sg.Index-1]
	candidateFrame, err := s.portal.FetchCSV(ctx, chosen.CSV)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	joined, added, err := frame.LeftJoin(user, candidateFrame, sg.UserColumn, sg.CatalogColumn)
	if err != nil {
		var jerr *frame.JoinError
		if errors.As(err, &jerr) {
			// The upload stays untouched so the client can retry with a
			// different filter.
			return c.JSON(http.StatusOK, matchResponse{
				Matched:       true,
				Dataset:       sg.RecordTitle,
				UserColumn:    sg.UserColumn,
				CatalogColumn: sg.CatalogColumn,
				Reason:        jerr.Error(),
			})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	s.sessions.SetDataset(id, joined)

	return c.JSON(http.StatusOK, matchResponse{
		Matched:       true,
		Joined:        true,
		Dataset:       sg.RecordTitle,
		UserColumn:    sg.UserColumn,
		CatalogColumn: sg.CatalogColumn,
		AddedColumns:  added,
		Rows:          joined.NumRows(),
		Preview:       joined.Preview(10),
	})
}

func (s *Server) download(c echo.Context) error {
	f := s.sessions.Dataset(s.sessionID(c))
	if f == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no dataset in this session")
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="enriched.csv"`)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", f.EncodeCSV())
}
