package visualization

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/titan-sim/titan/internal/population"
)

// Server serves a population's partnership network and handles agent lookups.
type Server struct {
	pop        *population.Population
	httpServer *http.Server
	listener   net.Listener
	mu         sync.Mutex
	addr       string
}

// NewServer creates a new network visualization server. The population must
// not change while the server runs.
func NewServer(pop *population.Population) *Server {
	return &Server{pop: pop}
}

// Addr returns the address the server is listening on (e.g., "localhost:PORT").
// Returns empty string if the server hasn't started yet.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/graph.json", s.handleJSON)
	mux.HandleFunc("/graph.dot", s.handleDOT)
	mux.HandleFunc("/api/agent", s.handleAgent)
	return mux
}

// ListenAndServe starts the HTTP server on addr ("localhost:0" lets the OS
// pick a port) and blocks until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.addr = ln.Addr().String()
	s.httpServer = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	s.mu.Unlock()

	// Graceful shutdown when context is cancelled.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	err = s.httpServer.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>titan network</title></head>
<body>
<h1>Partnership network</h1>
<p>{{.Agents}} agents, {{.Relationships}} relationships, {{len .Components}} components.</p>
<p><a href="/graph.json">graph.json</a> | <a href="/graph.dot">graph.dot</a></p>
<table>
<tr><th>component</th><th>agents</th><th>hiv</th></tr>
{{range .Components}}<tr><td><a href="/graph.json?component={{.Label}}">{{.Label}}</a></td><td>{{.Size}}</td><td>{{.HIV}}</td></tr>
{{end}}</table>
</body>
</html>
`))

type componentRow struct {
	Label string
	Size  int
	HIV   int
}

// handleIndex serves a summary page linking to the renderings.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	rows := make([]componentRow, 0, len(s.pop.Components))
	for i, comp := range s.pop.Components {
		row := componentRow{Label: strconv.Itoa(i), Size: len(comp)}
		for _, a := range comp {
			if a.HIV.Active {
				row.HIV++
			}
		}
		rows = append(rows, row)
	}
	data := struct {
		Agents, Relationships int
		Components            []componentRow
	}{s.pop.All.Len(), s.pop.Relationships.Len(), rows}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		http.Error(w, "render error: "+err.Error(), http.StatusInternalServerError)
	}
}

func requestOptions(r *http.Request) Options {
	q := r.URL.Query()
	return Options{
		Component:  q.Get("component"),
		Centrality: q.Get("centrality") == "true",
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	g, err := RenderJSON(s.pop, requestOptions(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(g)
}

func (s *Server) handleDOT(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
	w.Write([]byte(RenderDOT(s.pop, requestOptions(r))))
}

// AgentView is an agent with its partners, returned by /api/agent.
type AgentView struct {
	JSONNode
	Partners []JSONEdge `json:"partners"`
}

// handleAgent returns one agent and its relationships.
func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("id")
	if raw == "" {
		http.Error(w, "missing 'id' query parameter", http.StatusBadRequest)
		return
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		http.Error(w, "invalid agent id: "+raw, http.StatusBadRequest)
		return
	}
	a := s.pop.Agent(id)
	if a == nil {
		http.Error(w, "agent not found: "+raw, http.StatusNotFound)
		return
	}

	view := AgentView{JSONNode: newJSONNode(a)}
	for _, rel := range a.Relationships() {
		view.Partners = append(view.Partners, JSONEdge{
			ID:       rel.ID,
			Source:   a.ID,
			Target:   rel.Partner(a).ID,
			BondType: rel.BondType,
			Duration: rel.Duration,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(view)
}
