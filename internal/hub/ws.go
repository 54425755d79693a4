package hub

import (
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/olahol/melody"

	"ledger/internal/hubapi"
	"ledger/internal/log"
	"ledger/internal/metrics"
)

const sessionHouseholdKey = "household"

// feed fans change signals out to the websocket sessions of a household.
// Sessions only receive; inbound messages are ignored.
type feed struct {
	m      *melody.Melody
	logger *log.Logger
}

func newFeed(allowedOrigins []string, logger *log.Logger) *feed {
	m := melody.New()
	m.Config.MaxMessageSize = 512
	m.Config.PingPeriod = 30 * time.Second
	m.Config.PongWait = 60 * time.Second
	m.Upgrader.CheckOrigin = originChecker(allowedOrigins)

	f := &feed{m: m, logger: logger}

	m.HandleConnect(func(s *melody.Session) {
		metrics.HubSessions.Inc()
		household, _ := s.Get(sessionHouseholdKey)
		f.logger.Debug("Change feed session opened", log.FieldHousehold, household)
	})
	m.HandleDisconnect(func(s *melody.Session) {
		metrics.HubSessions.Dec()
		household, _ := s.Get(sessionHouseholdKey)
		f.logger.Debug("Change feed session closed", log.FieldHousehold, household)
	})
	m.HandleError(func(s *melody.Session, err error) {
		household, _ := s.Get(sessionHouseholdKey)
		f.logger.Debug("Change feed session error", log.FieldHousehold, household, log.FieldError, err)
	})
	return f
}

// originChecker allows requests without an Origin header (non-browser
// clients) and browser origins listed in allowed. "*" allows every origin.
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
	}
}

func (f *feed) serve(c *gin.Context, household string) {
	keys := map[string]any{sessionHouseholdKey: household}
	if err := f.m.HandleRequestWithKeys(c.Writer, c.Request, keys); err != nil {
		log.FromContext(c.Request.Context()).WarnContext(c.Request.Context(), "Failed to upgrade change feed",
			log.FieldHousehold, household,
			log.FieldError, err)
	}
}

// broadcast signals every session of household.
func (f *feed) broadcast(household, source string) {
	msg, err := json.Marshal(hubapi.ChangeEvent{Type: hubapi.EventChanged, Household: household})
	if err != nil {
		f.logger.Error("Failed to encode change event", log.FieldError, err)
		return
	}
	err = f.m.BroadcastFilter(msg, func(s *melody.Session) bool {
		h, ok := s.Get(sessionHouseholdKey)
		return ok && h == household
	})
	if err != nil {
		f.logger.Warn("Failed to broadcast change",
			log.FieldHousehold, household,
			log.FieldError, err)
		return
	}
	metrics.HubBroadcasts.WithLabelValues(source).Inc()
}

func (f *feed) sessions() int {
	return f.m.Len()
}

func (f *feed) close() error {
	if f.m.IsClosed() {
		return nil
	}
	return f.m.Close()
}
