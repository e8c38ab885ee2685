package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hb-chen/flowdesign/internal/binding"
	"github.com/hb-chen/flowdesign/internal/editor"
	"github.com/hb-chen/flowdesign/internal/flow"
	"github.com/hb-chen/flowdesign/internal/keytable"
	"github.com/hb-chen/flowdesign/internal/layout"
	"github.com/hb-chen/flowdesign/internal/topology"
	"github.com/hb-chen/flowdesign/internal/validation"
	"github.com/hb-chen/flowdesign/pkg/logger"
)

// eventBuffer is how many session events a slow SSE client may lag behind
// before events are dropped for it
const eventBuffer = 64

// Handlers contains HTTP handlers
type Handlers struct {
	session *editor.Session
	logger  logger.Logger
}

// NewHandlers creates new HTTP handlers
func NewHandlers(session *editor.Session, log logger.Logger) *Handlers {
	return &Handlers{
		session: session,
		logger:  log,
	}
}

// CreateNodeRequest represents a node creation request
type CreateNodeRequest struct {
	Type     flow.NodeType  `json:"type"`
	Name     string         `json:"name"`
	Position *flow.Position `json:"position,omitempty"`
}

// ToggleRequest represents a collapse or expand request
type ToggleRequest struct {
	Collapsed bool `json:"collapsed"`
}

// CategoryRequest carries a category label
type CategoryRequest struct {
	Category string `json:"category"`
}

// ConditionLabelRequest carries a condition label
type ConditionLabelRequest struct {
	Label string `json:"condition_label"`
}

// ValidateNodeRequest carries the inputs to validate. An empty type means
// the stored node type.
type ValidateNodeRequest struct {
	Type      flow.NodeType       `json:"type"`
	InputKeys []flow.InputKeyItem `json:"input_keys"`
}

// ValidateConditionRequest carries the conditions to validate
type ValidateConditionRequest struct {
	Conditions []flow.Condition `json:"conditions"`
}

// UpdateValidationRequest is an externally computed validation result
type UpdateValidationRequest struct {
	Valid  bool               `json:"isValid"`
	Errors []validation.Error `json:"errors"`
}

// NodeResponse is a node with its resolved inputs and validations
type NodeResponse struct {
	Node        flow.Node                               `json:"node"`
	Inputs      []binding.Resolution                    `json:"inputs"`
	Validations map[validation.Domain]validation.Result `json:"validations"`
}

// TopologyResponse is the structural lint plus whether the graph compiles
type TopologyResponse struct {
	Report   topology.Report `json:"report"`
	Compiled bool            `json:"compiled"`
	Error    string          `json:"error,omitempty"`
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"version":   h.session.Version(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// GetGraph returns the whole session snapshot
func (h *Handlers) GetGraph(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	writeJSON(w, http.StatusOK, h.session.Snapshot())
}

// PutGraph replaces the graph with the posted document
func (h *Handlers) PutGraph(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	doc, err := flow.DecodeDocument(r.Body)
	if err != nil {
		h.logger.Warnf("Rejected graph document: %v", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.session.Load(doc)
	writeJSON(w, http.StatusOK, h.session.Snapshot())
}

// GetKeyTable returns the ordered key table
func (h *Handlers) GetKeyTable(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	writeJSON(w, http.StatusOK, h.session.KeyTable().Entries())
}

// GetGlobalKeys returns the entries visible across the whole graph
func (h *Handlers) GetGlobalKeys(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	writeJSON(w, http.StatusOK, entries(h.session.KeyTable().Globals()))
}

// GetNodeKeyTable returns the entries a node produces
func (h *Handlers) GetNodeKeyTable(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id := params["id"]
	if _, ok := h.session.Node(id); !ok {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}
	writeJSON(w, http.StatusOK, entries(h.session.KeyTable().ForNode(id)))
}

// SetKeyTable pushes the key table rebuilt with a node's pending data
// ahead of the next sync
func (h *Handlers) SetKeyTable(w http.ResponseWriter, r *http.Request, params map[string]string) {
	var data flow.NodeData
	if !h.decode(w, r, &data) {
		return
	}
	n, ok := h.session.Node(params["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}
	n.Data = &data
	writeJSON(w, http.StatusOK, entries(h.session.SetKeyTable(n).Entries()))
}

// CreateNode adds a node built from the type defaults
func (h *Handlers) CreateNode(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req CreateNodeRequest
	if !h.decode(w, r, &req) {
		return
	}

	n, err := h.session.AddNode(req.Type, req.Name)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, flow.ErrUnknownNodeType) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	if req.Position != nil {
		n.Position = *req.Position
		h.session.Move(n.ID, *req.Position)
	}
	writeJSON(w, http.StatusCreated, n)
}

// GetNode returns one node with resolved inputs and validations
func (h *Handlers) GetNode(w http.ResponseWriter, r *http.Request, params map[string]string) {
	n, ok := h.session.Node(params["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}
	resp := NodeResponse{Node: n, Inputs: []binding.Resolution{}, Validations: h.session.Validations(n.ID)}
	if n.Data != nil {
		resp.Inputs = binding.ResolveAll(n.Data.InputKeys, h.session.KeyTable())
	}
	writeJSON(w, http.StatusOK, resp)
}

// SyncNodeData replaces the data of a node
func (h *Handlers) SyncNodeData(w http.ResponseWriter, r *http.Request, params map[string]string) {
	var data flow.NodeData
	if !h.decode(w, r, &data) {
		return
	}
	id := params["id"]
	if _, ok := h.session.Node(id); !ok {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}
	h.session.SyncNodeData(id, &data)
	n, _ := h.session.Node(id)
	writeJSON(w, http.StatusOK, n)
}

// DeleteNode removes a node and its edges
func (h *Handlers) DeleteNode(w http.ResponseWriter, r *http.Request, params map[string]string) {
	if !h.session.RemoveNode(params["id"]) {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleNode collapses or expands a node
func (h *Handlers) ToggleNode(w http.ResponseWriter, r *http.Request, params map[string]string) {
	var req ToggleRequest
	if !h.decode(w, r, &req) {
		return
	}
	id := params["id"]
	if _, ok := h.session.Node(id); !ok {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}
	h.session.ToggleNodeView(id, req.Collapsed)
	n, _ := h.session.Node(id)
	writeJSON(w, http.StatusOK, n)
}

// ReportSize feeds a measured node size into the layout loop
func (h *Handlers) ReportSize(w http.ResponseWriter, r *http.Request, params map[string]string) {
	var size layout.Size
	if !h.decode(w, r, &size) {
		return
	}
	id := params["id"]
	if _, ok := h.session.Node(id); !ok {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"changed": h.session.ReportNodeSize(id, size)})
}

// AddCategory appends a category to a categorizer
func (h *Handlers) AddCategory(w http.ResponseWriter, r *http.Request, params map[string]string) {
	var req CategoryRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, ok := h.session.AddCategory(params["id"], req.Category)
	if !ok {
		writeError(w, http.StatusNotFound, "categorizer not found")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// RenameCategory relabels a category and its edges
func (h *Handlers) RenameCategory(w http.ResponseWriter, r *http.Request, params map[string]string) {
	var req CategoryRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !h.session.RenameCategory(params["id"], params["branch"], req.Category) {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}
	h.writeNode(w, params["id"])
}

// DeleteCategory removes a category and its edges
func (h *Handlers) DeleteCategory(w http.ResponseWriter, r *http.Request, params map[string]string) {
	if !h.session.DeleteCategory(params["id"], params["branch"]) {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddCondition appends a condition to a condition node
func (h *Handlers) AddCondition(w http.ResponseWriter, r *http.Request, params map[string]string) {
	var req flow.Condition
	if !h.decode(w, r, &req) {
		return
	}
	c, ok := h.session.AddCondition(params["id"], req)
	if !ok {
		writeError(w, http.StatusNotFound, "condition node not found")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// RenameCondition relabels a condition and its edges
func (h *Handlers) RenameCondition(w http.ResponseWriter, r *http.Request, params map[string]string) {
	var req ConditionLabelRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !h.session.RenameCondition(params["id"], params["branch"], req.Label) {
		writeError(w, http.StatusNotFound, "condition not found")
		return
	}
	h.writeNode(w, params["id"])
}

// DeleteCondition removes a condition and its edges
func (h *Handlers) DeleteCondition(w http.ResponseWriter, r *http.Request, params map[string]string) {
	if !h.session.DeleteCondition(params["id"], params["branch"]) {
		writeError(w, http.StatusNotFound, "condition not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateEdge connects two nodes
func (h *Handlers) CreateEdge(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var e flow.Edge
	if !h.decode(w, r, &e) {
		return
	}
	added, err := h.session.Connect(e)
	switch {
	case errors.Is(err, flow.ErrNodeNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeJSON(w, http.StatusCreated, added)
	}
}

// DeleteEdge removes an edge
func (h *Handlers) DeleteEdge(w http.ResponseWriter, r *http.Request, params map[string]string) {
	if !h.session.Disconnect(params["id"]) {
		writeError(w, http.StatusNotFound, "edge not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListValidations summarizes every node with errors
func (h *Handlers) ListValidations(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	writeJSON(w, http.StatusOK, h.session.Invalid())
}

// GetValidations returns every domain result of one node
func (h *Handlers) GetValidations(w http.ResponseWriter, r *http.Request, params map[string]string) {
	writeJSON(w, http.StatusOK, h.session.Validations(params["id"]))
}

// ValidateNode validates the inputs of a node against the key table
func (h *Handlers) ValidateNode(w http.ResponseWriter, r *http.Request, params map[string]string) {
	var req ValidateNodeRequest
	if !h.decode(w, r, &req) {
		return
	}
	n, ok := h.session.Node(params["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}
	if req.Type == "" {
		req.Type = n.Type
	}
	writeJSON(w, http.StatusOK, h.session.ValidateNode(n.ID, req.Type, req.InputKeys))
}

// ValidateCondition validates the conditions of a condition node
func (h *Handlers) ValidateCondition(w http.ResponseWriter, r *http.Request, params map[string]string) {
	var req ValidateConditionRequest
	if !h.decode(w, r, &req) {
		return
	}
	n, ok := h.session.Node(params["id"])
	if !ok || n.Type != flow.NodeTypeCondition {
		writeError(w, http.StatusNotFound, "condition node not found")
		return
	}
	writeJSON(w, http.StatusOK, h.session.ValidateCondition(n.ID, req.Conditions))
}

// UpdateValidation stores a result computed by the client
func (h *Handlers) UpdateValidation(w http.ResponseWriter, r *http.Request, params map[string]string) {
	domain, ok := parseDomain(params["domain"])
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown validation domain %q", params["domain"]))
		return
	}
	var req UpdateValidationRequest
	if !h.decode(w, r, &req) {
		return
	}
	id := params["id"]
	if _, ok := h.session.Node(id); !ok {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}
	h.session.UpdateValidation(id, domain, req.Valid, req.Errors)
	writeJSON(w, http.StatusOK, h.session.GetValidation(id, domain))
}

// ClearValidation drops every stored result of a node
func (h *Handlers) ClearValidation(w http.ResponseWriter, r *http.Request, params map[string]string) {
	h.session.ClearValidation(params["id"])
	w.WriteHeader(http.StatusNoContent)
}

// FlushValidations runs pending debounced validations now
func (h *Handlers) FlushValidations(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	writeJSON(w, http.StatusOK, map[string]int{"flushed": h.session.FlushValidation()})
}

// GetTopology lints the graph and tries to compile it
func (h *Handlers) GetTopology(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	nodes, edges := h.session.Nodes(), h.session.Edges()
	resp := TopologyResponse{Report: topology.Check(nodes, edges)}
	if _, err := topology.Compile(nodes, edges); err != nil {
		resp.Error = err.Error()
	} else {
		resp.Compiled = true
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleEvents streams session events as Server-Sent Events
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	events := make(chan editor.Event, eventBuffer)
	cancel := h.session.Subscribe(func(ev editor.Event) {
		select {
		case events <- ev:
		default:
			h.logger.Warnf("Dropped %s event for slow SSE client", ev.Type)
		}
	})
	defer cancel()

	h.sendSSE(w, flusher, map[string]interface{}{"type": "ready", "version": h.session.Version()})

	for {
		select {
		case ev := <-events:
			h.sendSSE(w, flusher, ev)
		case <-r.Context().Done():
			h.logger.Debug("SSE client disconnected")
			return
		}
	}
}

// sendSSE sends a Server-Sent Event
func (h *Handlers) sendSSE(w http.ResponseWriter, flusher http.Flusher, payload interface{}) {
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		h.logger.Errorf("Failed to marshal SSE payload: %v", err)
		return
	}

	fmt.Fprintf(w, "data: %s\n\n", jsonPayload)
	flusher.Flush()
}

func parseDomain(s string) (validation.Domain, bool) {
	for _, d := range validation.Domains {
		if string(d) == s {
			return d, true
		}
	}
	return "", false
}

func entries(list []keytable.Entry) []keytable.Entry {
	if list == nil {
		return []keytable.Entry{}
	}
	return list
}

func (h *Handlers) writeNode(w http.ResponseWriter, id string) {
	n, _ := h.session.Node(id)
	writeJSON(w, http.StatusOK, n)
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.logger.Warnf("Failed to decode request: %v", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
