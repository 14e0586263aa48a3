package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"github.com/mpapenbr/fpv-racedash/log"
	"github.com/mpapenbr/fpv-racedash/pkg/calc"
	"github.com/mpapenbr/fpv-racedash/pkg/engine"
	"github.com/mpapenbr/fpv-racedash/pkg/kvconfig"
	"github.com/mpapenbr/fpv-racedash/pkg/leaderboard"
	"github.com/mpapenbr/fpv-racedash/pkg/ranking"
)

type validationResult struct {
	Valid    bool     `json:"valid"`
	Messages []string `json:"messages"`
}

func (s *Server) state() (*engine.State, error) {
	st := s.states.Current()
	if st == nil {
		return nil, echo.NewHTTPError(http.StatusServiceUnavailable, "no state computed yet")
	}
	return st, nil
}

func (s *Server) getState(c echo.Context) error {
	st, err := s.state()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (s *Server) getLeaderboard(c echo.Context) error {
	st, err := s.state()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st.Leaderboard)
}

func (s *Server) getFinals(c echo.Context) error {
	st, err := s.state()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st.Finals)
}

func (s *Server) getBracket(c echo.Context) error {
	st, err := s.state()
	if err != nil {
		return err
	}
	if st.Bracket == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no bracket configured")
	}
	return c.JSON(http.StatusOK, st.Bracket)
}

func (s *Server) getRaceRanking(c echo.Context) error {
	st, err := s.state()
	if err != nil {
		return err
	}
	id := c.Param("id")
	if _, ok := st.Snapshot().Race(id); !ok {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("unknown race %q", id))
	}
	return c.JSON(http.StatusOK, ranking.RaceResult(st.Calculator(), id))
}

// getRaceMetrics returns the metrics of all pilots of a race, or of the
// pilots given by the repeatable query param pilot.
func (s *Server) getRaceMetrics(c echo.Context) error {
	st, err := s.state()
	if err != nil {
		return err
	}
	id := c.Param("id")
	if _, ok := st.Snapshot().Race(id); !ok {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("unknown race %q", id))
	}
	pilots := st.Snapshot().RacePilots(id)
	if wanted := c.QueryParams()["pilot"]; len(wanted) > 0 {
		pilots = lo.Filter(pilots, func(p string, _ int) bool {
			return lo.Contains(wanted, p)
		})
	}
	return c.JSON(http.StatusOK, lo.Map(pilots, func(p string, _ int) calc.PilotMetrics {
		return st.Calculator().PilotMetrics(id, p)
	}))
}

// validateNextRaceOverrides checks overrides against the race order of the
// current snapshot. Clients must not store overrides answered with 422.
func (s *Server) validateNextRaceOverrides(c echo.Context) error {
	st, err := s.state()
	if err != nil {
		return err
	}
	var overrides []kvconfig.NextRaceOverride
	if err := c.Bind(&overrides); err != nil {
		return err
	}
	msgs := leaderboard.ValidateOverrides(st.Snapshot(), overrides)
	if len(msgs) > 0 {
		return c.JSON(http.StatusUnprocessableEntity, validationResult{Messages: msgs})
	}
	return c.JSON(http.StatusOK, validationResult{Valid: true, Messages: msgs})
}

// stream sends each new state as server-sent event until the client
// disconnects.
func (s *Server) stream(c echo.Context) error {
	ch := s.states.Subscribe()
	defer s.states.CancelSubscription(ch)

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(st *engine.State) error {
		data, err := json.Marshal(st)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "id: %d\nevent: state\ndata: %s\n\n", st.Version, data); err != nil {
			return err
		}
		w.Flush()
		return nil
	}
	if st := s.states.Current(); st != nil {
		if err := send(st); err != nil {
			return nil
		}
	}
	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case st, ok := <-ch:
			if !ok {
				return nil
			}
			if err := send(st); err != nil {
				s.l.Debug("stream closed", log.ErrorField(err))
				return nil
			}
		}
	}
}
