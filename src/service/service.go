// Package service exposes an HTTP API to inspect a skip graph node.
package service

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"

	cm "github.com/mosaicnetworks/skipgraph/src/common"
	"github.com/mosaicnetworks/skipgraph/src/node"
	"github.com/mosaicnetworks/skipgraph/src/skipgraph"
	"github.com/mosaicnetworks/skipgraph/src/telemetry"
	"github.com/sirupsen/logrus"
)

// Service ...
type Service struct {
	sync.Mutex

	bindAddress string
	node        *node.Node
	mux         *http.ServeMux
	server      *http.Server
	logger      *logrus.Entry
}

// TableLevel is one level of a lookup table in the API output.
type TableLevel struct {
	Level int                 `json:"level"`
	Left  *skipgraph.Identity `json:"left"`
	Right *skipgraph.Identity `json:"right"`
}

// Table is the API output of /table/{numID}.
type Table struct {
	Owner  skipgraph.Identity `json:"owner"`
	Levels []TableLevel       `json:"levels"`
}

// NewService ...
func NewService(bindAddress string, n *node.Node, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		node:        n,
		mux:         http.NewServeMux(),
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

// registerHandlers registers the API handlers with the service's own mux, so
// that several nodes can run in the same process.
func (s *Service) registerHandlers() {
	s.logger.Debug("Registering skip graph API handlers")
	s.handle("/stats", "stats", s.GetStats)
	s.handle("/identities", "identities", s.GetIdentities)
	s.handle("/table/", "table", s.GetTable)
	s.handle("/search/num/", "search_num", s.SearchByNumID)
	s.handle("/search/name/", "search_name", s.SearchByNameID)
	s.handle("/nodes/", "nodes", s.GetNodesWithNameID)
	s.handle("/healthz", "healthz", s.Health)
	s.mux.Handle("/metrics", telemetry.MetricsHandler())
}

func (s *Service) handle(pattern string, op string, fn func(http.ResponseWriter, *http.Request)) {
	s.mux.Handle(pattern, telemetry.Instrument(op, s.makeHandler(fn)))
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Handler returns the API handler.
func (s *Service) Handler() http.Handler {
	return s.mux
}

// Serve calls ListenAndServe. This is a blocking call.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving skip graph API")

	s.Lock()
	s.server = &http.Server{Addr: s.bindAddress, Handler: s.mux}
	server := s.server
	s.Unlock()

	err := server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		s.logger.Error(err)
	}
}

// Shutdown stops a running Serve.
func (s *Service) Shutdown(ctx context.Context) error {
	s.Lock()
	server := s.server
	s.Unlock()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.node.GetStats())
}

// GetIdentities returns the local population.
func (s *Service) GetIdentities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.node.Graph().Identities())
}

// GetTable ...
func (s *Service) GetTable(w http.ResponseWriter, r *http.Request) {
	numID, ok := s.parseNumID(w, r, "/table/")
	if !ok {
		return
	}

	owner, err := s.node.Graph().SearchByNumID(numID)
	if err != nil {
		s.writeError(w, err, "Retrieving table owner")
		return
	}

	table, err := s.node.Graph().Table(numID)
	if err != nil {
		s.writeError(w, err, "Retrieving table")
		return
	}

	res := Table{Owner: owner}
	for l := 0; l < table.Levels(); l++ {
		left, _ := table.Left(l)
		right, _ := table.Right(l)
		res.Levels = append(res.Levels, TableLevel{Level: l, Left: left, Right: right})
	}

	writeJSON(w, res)
}

// SearchByNumID runs a search from the entry node, or from the node given by
// the "start" query parameter.
func (s *Service) SearchByNumID(w http.ResponseWriter, r *http.Request) {
	numID, ok := s.parseNumID(w, r, "/search/num/")
	if !ok {
		return
	}

	var (
		id  skipgraph.Identity
		err error
	)

	if start := r.URL.Query().Get("start"); start != "" {
		from, perr := strconv.ParseInt(start, 10, 64)
		if perr != nil {
			http.Error(w, perr.Error(), http.StatusBadRequest)
			return
		}
		id, err = s.node.Graph().SearchByNumIDFrom(from, numID)
	} else {
		id, err = s.node.Graph().SearchByNumID(numID)
	}

	if err != nil {
		s.writeError(w, err, "SearchByNumID")
		return
	}

	writeJSON(w, id)
}

// SearchByNameID ...
func (s *Service) SearchByNameID(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/search/name/")
	if err := skipgraph.ValidateNameID(name, s.node.Graph().Levels()); err != nil {
		s.writeError(w, err, "SearchByNameID")
		return
	}

	id, err := s.node.Graph().SearchByNameID(name)
	if err != nil {
		s.writeError(w, err, "SearchByNameID")
		return
	}

	writeJSON(w, id)
}

// GetNodesWithNameID ...
func (s *Service) GetNodesWithNameID(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/nodes/")
	if err := skipgraph.ValidateNameID(name, s.node.Graph().Levels()); err != nil {
		s.writeError(w, err, "GetNodesWithNameID")
		return
	}

	writeJSON(w, s.node.Graph().GetNodesWithNameID(name))
}

// Health answers 200 while the node is serving and 503 otherwise.
func (s *Service) Health(w http.ResponseWriter, r *http.Request) {
	state := s.node.GetState()
	if state != node.Serving {
		http.Error(w, state.String(), http.StatusServiceUnavailable)
		return
	}
	w.Write([]byte("ok"))
}

func (s *Service) parseNumID(w http.ResponseWriter, r *http.Request, prefix string) (int64, bool) {
	param := strings.TrimPrefix(r.URL.Path, prefix)

	numID, err := strconv.ParseInt(param, 10, 64)
	if err != nil {
		s.logger.WithError(err).Errorf("Parsing num_id parameter %s", param)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return 0, false
	}

	return numID, true
}

func (s *Service) writeError(w http.ResponseWriter, err error, msg string) {
	status := http.StatusInternalServerError
	switch {
	case cm.Is(err, cm.NotFound):
		status = http.StatusNotFound
	case cm.Is(err, cm.InvalidNameID), cm.Is(err, cm.OutOfRange):
		status = http.StatusBadRequest
	default:
		s.logger.WithError(err).Error(msg)
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(v)
}
