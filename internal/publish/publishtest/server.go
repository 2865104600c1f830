// Package publishtest provides an in-memory destination index for tests.
package publishtest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/spachava753/granny/internal/util"
)

// Request is one register or upload action received by the Server.
type Request struct {
	Action   string
	Fields   map[string][]string
	Filename string
	Content  []byte
}

// Server is a fake legacy upload endpoint with a simple index probe.
type Server struct {
	*httptest.Server

	Username string
	Password string

	mu           sync.Mutex
	probeStatus  int
	uploadStatus int
	openUploads  bool
	projects     map[string]bool
	requests     []Request
	probes       int
}

// NewServer starts a Server accepting the given credentials. It is closed
// when the test ends.
func NewServer(t testing.TB, username, password string) *Server {
	t.Helper()
	s := &Server{
		Username: username,
		Password: password,
		projects: map[string]bool{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// AddProject marks project as already registered.
func (s *Server) AddProject(project string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[util.NormalizeProjectName(project)] = true
}

// SetProbeStatus makes probes of unregistered projects answer status
// instead of 404.
func (s *Server) SetProbeStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probeStatus = status
}

// SetUploadStatus makes every upload fail with status.
func (s *Server) SetUploadStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploadStatus = status
}

// AllowUnregisteredUploads accepts uploads for projects never submitted.
// By default such uploads are rejected with 403.
func (s *Server) AllowUnregisteredUploads() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openUploads = true
}

// HasProject reports whether project is registered.
func (s *Server) HasProject(project string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projects[util.NormalizeProjectName(project)]
}

// Requests returns the register and upload actions received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Actions returns the action names received so far, in order.
func (s *Server) Actions() []string {
	var out []string
	for _, r := range s.Requests() {
		out = append(out, r.Action)
	}
	return out
}

// Probes returns how many registration probes were served.
func (s *Server) Probes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.probes
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/simple/"):
		s.probe(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/":
		s.action(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) probe(w http.ResponseWriter, r *http.Request) {
	project := strings.Trim(strings.TrimPrefix(r.URL.Path, "/simple/"), "/")

	s.mu.Lock()
	s.probes++
	registered := s.projects[project]
	status := s.probeStatus
	s.mu.Unlock()

	if registered {
		_, _ = fmt.Fprintf(w, "<html><body><h1>Links for %s</h1></body></html>", project)
		return
	}
	if status == 0 {
		status = http.StatusNotFound
	}
	w.WriteHeader(status)
}

func (s *Server) action(w http.ResponseWriter, r *http.Request) {
	user, pass, ok := r.BasicAuth()
	if !ok || user != s.Username || pass != s.Password {
		http.Error(w, "Invalid or non-existent authentication information.", http.StatusUnauthorized)
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req := Request{Action: r.FormValue(":action"), Fields: r.MultipartForm.Value}
	project := util.NormalizeProjectName(r.FormValue("name"))
	if project == "" {
		http.Error(w, "missing name", http.StatusBadRequest)
		return
	}

	switch req.Action {
	case "submit":
		s.mu.Lock()
		s.projects[project] = true
		s.requests = append(s.requests, req)
		s.mu.Unlock()
		_, _ = io.WriteString(w, "OK")

	case "file_upload":
		file, header, err := r.FormFile("content")
		if err != nil {
			http.Error(w, "missing content", http.StatusBadRequest)
			return
		}
		defer file.Close()
		content, err := io.ReadAll(file)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		sum := sha256.Sum256(content)
		if hex.EncodeToString(sum[:]) != r.FormValue("sha256_digest") {
			http.Error(w, "digest mismatch", http.StatusBadRequest)
			return
		}
		req.Filename = header.Filename
		req.Content = content

		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.openUploads && !s.projects[project] {
			http.Error(w, "project "+project+" is not registered", http.StatusForbidden)
			return
		}
		if s.uploadStatus != 0 {
			http.Error(w, "upload rejected", s.uploadStatus)
			return
		}
		s.requests = append(s.requests, req)
		_, _ = io.WriteString(w, "OK")

	default:
		http.Error(w, "unknown action "+req.Action, http.StatusBadRequest)
	}
}
